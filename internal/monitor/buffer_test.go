package monitor

import (
	"testing"
	"time"

	"github.com/evandro-godoy/wtnps-finadv/internal/domain/models"
)

func mkCandle(i int) models.Candle {
	return models.Candle{
		Symbol:   "BTCUSDT",
		OpenTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * 5 * time.Minute),
		Close:    float64(100 + i),
	}
}

func TestBufferAppendBelowCapacity(t *testing.T) {
	buf := NewCandleBuffer(3)
	for i := 0; i < 3; i++ {
		if evicted := buf.Append(mkCandle(i)); evicted {
			t.Fatalf("unexpected eviction at %d", i)
		}
	}
	if buf.Len() != 3 {
		t.Fatalf("len = %d, want 3", buf.Len())
	}
}

func TestBufferEvictsOldestFirst(t *testing.T) {
	buf := NewCandleBuffer(3)
	for i := 0; i < 5; i++ {
		buf.Append(mkCandle(i))
	}
	if buf.Len() != 3 {
		t.Fatalf("len = %d, want 3", buf.Len())
	}
	snap := buf.Snapshot()
	if snap[0].Close != 102 || snap[2].Close != 104 {
		t.Fatalf("unexpected window: first=%v last=%v", snap[0].Close, snap[2].Close)
	}
}

func TestBufferLast(t *testing.T) {
	buf := NewCandleBuffer(3)
	if _, ok := buf.Last(); ok {
		t.Fatalf("expected empty buffer")
	}
	buf.Append(mkCandle(0))
	buf.Append(mkCandle(1))
	last, ok := buf.Last()
	if !ok || last.Close != 101 {
		t.Fatalf("last = %v ok=%v", last, ok)
	}
}

func TestBufferSnapshotIsACopy(t *testing.T) {
	buf := NewCandleBuffer(3)
	buf.Append(mkCandle(0))
	snap := buf.Snapshot()
	snap[0].Close = -1
	again := buf.Snapshot()
	if again[0].Close != 100 {
		t.Fatalf("snapshot mutation leaked into buffer")
	}
}
