package bus

import (
	"sync"

	"github.com/evandro-godoy/wtnps-finadv/internal/domain/models"
	"github.com/evandro-godoy/wtnps-finadv/pkg/logger"
)

// Bus is an in-process publish/subscribe dispatcher keyed by event kind.
// Publish runs handlers synchronously on the calling goroutine, in
// registration order. A handler that panics is isolated: the panic is
// recovered and logged, remaining handlers still run, and Publish never
// fails to the caller.
type Bus struct {
	log *logger.Logger

	mu     sync.RWMutex
	nextID uint64
	subs   map[models.EventKind][]subscription
}

type subscription struct {
	id uint64
	fn func(models.Event)
}

// Handle identifies one subscription for later removal.
type Handle struct {
	kind models.EventKind
	id   uint64
}

// New creates an empty bus.
func New(log *logger.Logger) *Bus {
	return &Bus{
		log:  log,
		subs: make(map[models.EventKind][]subscription),
	}
}

// Subscribe registers a typed handler for the event kind of T and returns a
// handle for unsubscription. Multiple handlers per kind are allowed.
func Subscribe[T models.Event](b *Bus, fn func(T)) Handle {
	var zero T
	kind := zero.Kind()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs[kind] = append(b.subs[kind], subscription{
		id: id,
		fn: func(e models.Event) {
			if ev, ok := e.(T); ok {
				fn(ev)
			}
		},
	})
	return Handle{kind: kind, id: id}
}

// Unsubscribe removes the subscription behind the handle. Idempotent.
func (b *Bus) Unsubscribe(h Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[h.kind]
	for i, s := range list {
		if s.id == h.id {
			b.subs[h.kind] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Publish invokes all handlers registered for the event's kind. The handler
// list is copied under a short lock before invocation, so a handler may call
// Publish re-entrantly without deadlocking.
func (b *Bus) Publish(e models.Event) {
	b.mu.RLock()
	list := b.subs[e.Kind()]
	handlers := make([]subscription, len(list))
	copy(handlers, list)
	b.mu.RUnlock()

	for _, s := range handlers {
		b.invoke(s, e)
	}
}

func (b *Bus) invoke(s subscription, e models.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event handler panicked",
				logger.String("kind", string(e.Kind())),
				logger.Any("panic", r),
			)
		}
	}()
	s.fn(e)
}
