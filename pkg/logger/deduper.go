package logger

import "sync"

// Deduper suppresses repeated log statements for conditions that should be
// reported once, not once per tick (missing models, broken rules).
type Deduper struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewDeduper creates an empty deduper.
func NewDeduper() *Deduper {
	return &Deduper{seen: make(map[string]struct{})}
}

// First reports whether key is being observed for the first time.
func (d *Deduper) First(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[key]; ok {
		return false
	}
	d.seen[key] = struct{}{}
	return true
}

// Reset forgets all observed keys.
func (d *Deduper) Reset() {
	d.mu.Lock()
	d.seen = make(map[string]struct{})
	d.mu.Unlock()
}
