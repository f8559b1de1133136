package forward

import (
	"context"
	"sync"
	"time"

	"github.com/evandro-godoy/wtnps-finadv/internal/bus"
	"github.com/evandro-godoy/wtnps-finadv/internal/domain/models"
	domrepo "github.com/evandro-godoy/wtnps-finadv/internal/domain/repository"
	"github.com/evandro-godoy/wtnps-finadv/pkg/logger"
)

// Forwarder decouples the synchronous decision path from slow sinks. The
// bus handler does a non-blocking enqueue; a worker goroutine drains the
// channel into the publisher and the audit store. When the channel is
// full the decision is dropped and counted: backpressure must never
// stall the bar-close loop.
type Forwarder struct {
	cfg       Config
	publisher domrepo.DecisionPublisher
	store     domrepo.DecisionStore
	log       *logger.Logger
	metrics   domrepo.Metrics

	ch      chan models.FinalDecisionEvent
	handle  bus.Handle
	bus     *bus.Bus
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex
}

// Config holds forwarder settings.
type Config struct {
	QueueSize    int
	SinkTimeout  time.Duration
	RetryBackoff time.Duration
}

// New creates a forwarder. publisher and store may be nil; nil sinks are
// skipped so the pipeline runs without Kafka or ClickHouse configured.
func New(cfg Config, publisher domrepo.DecisionPublisher, store domrepo.DecisionStore,
	b *bus.Bus, log *logger.Logger, metrics domrepo.Metrics) *Forwarder {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = 5 * time.Second
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}
	return &Forwarder{
		cfg:       cfg,
		publisher: publisher,
		store:     store,
		log:       log,
		metrics:   metrics,
		bus:       b,
		ch:        make(chan models.FinalDecisionEvent, cfg.QueueSize),
	}
}

// Start subscribes to FinalDecisionEvents and launches the drain worker.
func (f *Forwarder) Start(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.started {
		return
	}
	f.started = true
	f.ctx, f.cancel = context.WithCancel(ctx)
	f.handle = bus.Subscribe(f.bus, f.onDecision)
	f.wg.Add(1)
	go f.drain()
}

// Stop unsubscribes, drains what is queued, and returns.
func (f *Forwarder) Stop() {
	f.mu.Lock()
	if !f.started {
		f.mu.Unlock()
		return
	}
	f.started = false
	f.mu.Unlock()

	f.bus.Unsubscribe(f.handle)
	close(f.ch)
	f.wg.Wait()
	f.cancel()
}

func (f *Forwarder) onDecision(e models.FinalDecisionEvent) {
	select {
	case f.ch <- e:
	default:
		f.metrics.RecordError("decision_dropped")
		f.log.Warn("decision queue full, dropping",
			logger.String("symbol", e.Symbol),
			logger.String("decision", e.Decision.String()),
		)
	}
}

func (f *Forwarder) drain() {
	defer f.wg.Done()
	for e := range f.ch {
		f.deliver(e)
	}
}

func (f *Forwarder) deliver(e models.FinalDecisionEvent) {
	start := time.Now()
	if f.publisher != nil {
		ctx, cancel := context.WithTimeout(f.ctx, f.cfg.SinkTimeout)
		if err := f.publisher.Publish(ctx, e); err != nil {
			f.metrics.RecordError("publish")
			f.log.Error("decision publish failed",
				logger.String("symbol", e.Symbol),
				logger.Error(err),
			)
		}
		cancel()
	}
	if f.store != nil {
		ctx, cancel := context.WithTimeout(f.ctx, f.cfg.SinkTimeout)
		if err := f.store.Insert(ctx, e); err != nil {
			f.metrics.RecordError("audit_insert")
			f.log.Error("decision audit insert failed",
				logger.String("symbol", e.Symbol),
				logger.Error(err),
			)
		}
		cancel()
	}
	f.metrics.RecordLatency("forward", time.Since(start).Seconds())
}
