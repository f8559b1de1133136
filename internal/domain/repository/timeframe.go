package repository

import "time"

// Timeframe is the fixed bar duration of a candle stream.
type Timeframe string

const (
	TFM1  Timeframe = "M1"
	TFM5  Timeframe = "M5"
	TFM15 Timeframe = "M15"
	TFM30 Timeframe = "M30"
	TFH1  Timeframe = "H1"
)

var tfDurations = map[Timeframe]time.Duration{
	TFM1:  time.Minute,
	TFM5:  5 * time.Minute,
	TFM15: 15 * time.Minute,
	TFM30: 30 * time.Minute,
	TFH1:  time.Hour,
}

// IsValidTimeframe returns true if tf is a supported timeframe.
func IsValidTimeframe(tf Timeframe) bool {
	_, ok := tfDurations[tf]
	return ok
}

// DefaultTimeframe returns the default timeframe.
func DefaultTimeframe() Timeframe { return TFM5 }

// NormalizeTimeframe converts a raw string to a valid timeframe (or default).
func NormalizeTimeframe(s string) Timeframe {
	if s == "" {
		return DefaultTimeframe()
	}
	tf := Timeframe(s)
	if IsValidTimeframe(tf) {
		return tf
	}
	return DefaultTimeframe()
}

// Duration returns the bar interval. Unknown timeframes fall back to the
// default interval.
func (tf Timeframe) Duration() time.Duration {
	if d, ok := tfDurations[tf]; ok {
		return d
	}
	return DefaultTimeframe().Duration()
}

// NextClose returns the next bar-close boundary strictly after now:
// the ceiling of now to the timeframe interval.
func (tf Timeframe) NextClose(now time.Time) time.Time {
	d := tf.Duration()
	return now.Truncate(d).Add(d)
}
