package models

import "time"

// Candle is a single closed OHLCV bar. Immutable once produced.
type Candle struct {
	Symbol    string
	Timeframe string
	OpenTime  time.Time // UTC open time of the bar
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// FeatureRow holds the named, computed feature columns of one candle.
type FeatureRow map[string]float64

// FeatureVector is the flattened, normalized model input assembled from a
// candle window. Its length must equal the predictor's declared input width.
type FeatureVector []float64

// Width returns the vector length.
func (v FeatureVector) Width() int { return len(v) }
