package indicator

import (
	"math"

	"github.com/evandro-godoy/wtnps-finadv/internal/domain/models"
)

// Trailing-window indicator helpers. All of them are tolerant of short
// input: a window shorter than the period degrades to a neutral value
// instead of erroring, so feature rows exist for every candle from the
// first one onward.

// SMA computes the simple moving average of the trailing period values.
// Shorter input averages what is available.
func SMA(values []float64, period int) float64 {
	if len(values) == 0 || period <= 0 {
		return 0
	}
	if len(values) < period {
		period = len(values)
	}
	sum := 0.0
	for i := len(values) - period; i < len(values); i++ {
		sum += values[i]
	}
	return sum / float64(period)
}

// EMA computes the exponential moving average with the standard smoothing
// factor 2/(period+1), seeded with the first value.
func EMA(values []float64, period int) float64 {
	if len(values) == 0 || period <= 0 {
		return 0
	}
	k := 2.0 / (float64(period) + 1.0)
	ema := values[0]
	for _, v := range values[1:] {
		ema = v*k + ema*(1.0-k)
	}
	return ema
}

// RSI computes the Wilder-smoothed relative strength index over the given
// period. Returns 50 when the input is too short to establish gains/losses.
func RSI(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period+1 {
		return 50.0
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs)
}

// ATR computes the Wilder average true range over the given period.
// Returns 0 when fewer than two candles are available.
func ATR(candles []models.Candle, period int) float64 {
	if period <= 0 || len(candles) < 2 {
		return 0
	}
	trs := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		prevClose := candles[i-1].Close
		tr := math.Max(candles[i].High-candles[i].Low,
			math.Max(math.Abs(candles[i].High-prevClose), math.Abs(candles[i].Low-prevClose)))
		trs = append(trs, tr)
	}
	if len(trs) < period {
		return SMA(trs, len(trs))
	}
	atr := SMA(trs[:period], period)
	for _, tr := range trs[period:] {
		atr = (atr*float64(period-1) + tr) / float64(period)
	}
	return atr
}

// Closes extracts close prices from candles.
func Closes(candles []models.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}
