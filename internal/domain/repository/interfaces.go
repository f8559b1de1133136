package repository

import (
	"context"
	"time"

	"github.com/evandro-godoy/wtnps-finadv/internal/domain/models"
)

// CandleSource supplies closed bars on demand. Implementations raise on
// connectivity failure rather than return stale data.
type CandleSource interface {
	Connect(ctx context.Context) error
	// FetchLatest returns up to count most recent closed candles for the
	// symbol, oldest first.
	FetchLatest(ctx context.Context, symbol string, tf Timeframe, count int) ([]models.Candle, error)
	IsConnected() bool
	Close() error
}

// Predictor consumes a fixed-width numeric window and returns class
// probabilities in SELL, HOLD, BUY order.
type Predictor interface {
	Predict(window models.FeatureVector) ([]float64, error)
	InputWidth() int
}

// DecisionPublisher forwards final decisions to downstream consumers
// (execution, UI).
type DecisionPublisher interface {
	Publish(ctx context.Context, d models.FinalDecisionEvent) error
	Close() error
}

// DecisionStore persists one audit record per final decision.
type DecisionStore interface {
	Insert(ctx context.Context, d models.FinalDecisionEvent) error
	Latest(ctx context.Context, symbol string, limit int) ([]models.FinalDecisionEvent, error)
	Health(ctx context.Context) error
}

// Metrics records pipeline observability counters and gauges.
type Metrics interface {
	RecordCandle(symbol, tf string)
	RecordSignal(symbol, class string)
	RecordDecision(symbol, decision string, valid bool)
	RecordError(kind string)
	RecordBufferLen(symbol string, n int)
	RecordLastClose(symbol string, price float64)
	RecordLatency(op string, seconds float64)
}

// NopMetrics discards all recordings. Used by tests and tooling.
type NopMetrics struct{}

func (NopMetrics) RecordCandle(string, string)         {}
func (NopMetrics) RecordSignal(string, string)         {}
func (NopMetrics) RecordDecision(string, string, bool) {}
func (NopMetrics) RecordError(string)                  {}
func (NopMetrics) RecordBufferLen(string, int)         {}
func (NopMetrics) RecordLastClose(string, float64)     {}
func (NopMetrics) RecordLatency(string, float64)       {}

var _ Metrics = NopMetrics{}

// Clock abstracts wall time so boundary math is testable.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
