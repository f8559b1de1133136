package monitor

import (
	"sync"

	"github.com/evandro-godoy/wtnps-finadv/internal/domain/models"
)

// CandleBuffer is a bounded, ordered candle sequence for one
// (symbol, timeframe). The monitor is the only writer; readers get copies.
// On overflow the oldest candle is evicted.
type CandleBuffer struct {
	mu       sync.RWMutex
	data     []models.Candle
	capacity int
}

// NewCandleBuffer allocates a buffer with the given capacity.
func NewCandleBuffer(capacity int) *CandleBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &CandleBuffer{
		data:     make([]models.Candle, 0, capacity),
		capacity: capacity,
	}
}

// Append adds a candle, evicting the oldest when full. Returns true if an
// eviction happened.
func (b *CandleBuffer) Append(c models.Candle) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	evicted := false
	if len(b.data) >= b.capacity {
		copy(b.data, b.data[1:])
		b.data = b.data[:len(b.data)-1]
		evicted = true
	}
	b.data = append(b.data, c)
	return evicted
}

// Len returns the current number of candles.
func (b *CandleBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.data)
}

// Capacity returns the fixed capacity.
func (b *CandleBuffer) Capacity() int { return b.capacity }

// Last returns the most recent candle, if any.
func (b *CandleBuffer) Last() (models.Candle, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.data) == 0 {
		return models.Candle{}, false
	}
	return b.data[len(b.data)-1], true
}

// Snapshot returns a read-only copy of the buffer contents, oldest first.
func (b *CandleBuffer) Snapshot() []models.Candle {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]models.Candle, len(b.data))
	copy(out, b.data)
	return out
}
