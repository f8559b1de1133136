package models

import "time"

// EventKind identifies the logical event type on the bus.
type EventKind string

const (
	KindMarketData    EventKind = "MARKET_DATA"
	KindSignal        EventKind = "SIGNAL"
	KindFinalDecision EventKind = "FINAL_DECISION"
)

// Event is the unit dispatched through the in-process bus.
type Event interface {
	Kind() EventKind
}

// MarketDataEvent wraps one closed candle. Per (symbol, timeframe) the
// open_time of successive events is non-decreasing and Seq is monotonic.
type MarketDataEvent struct {
	Seq         uint64
	PublishedAt time.Time
	Candle      Candle
}

func (MarketDataEvent) Kind() EventKind { return KindMarketData }

// SignalEvent is the raw model output for one completed inference. Produced
// at most once per candle, never retried or replayed.
type SignalEvent struct {
	Symbol     string
	Timestamp  time.Time
	Class      SignalClass
	Confidence float64 // probability of the argmax class, in [0,1]
	Price      float64 // close of the triggering candle
}

func (SignalEvent) Kind() EventKind { return KindSignal }

// FinalDecisionEvent is the gated decision after rule validation.
type FinalDecisionEvent struct {
	Symbol      string
	Timestamp   time.Time
	Signal      SignalClass
	Confidence  float64
	SetupValid  bool
	RuleMatched string // name of the first matching rule, empty if none
	Decision    SignalClass
}

func (FinalDecisionEvent) Kind() EventKind { return KindFinalDecision }
