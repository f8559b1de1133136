package strategy

import (
	"github.com/evandro-godoy/wtnps-finadv/internal/domain/models"
	"github.com/evandro-godoy/wtnps-finadv/internal/indicator"
)

// Features derives named indicator columns from a candle window. Column
// order is fixed per implementation and defines the layout of the model
// input vector.
type Features interface {
	Name() string
	Columns() []string
	// Compute returns one feature row per candle, in window order.
	Compute(window []models.Candle) []models.FeatureRow
}

// VolatilityFeatures is the default feature set: raw close/volume plus the
// trend and oscillator columns the setup rules reference.
type VolatilityFeatures struct{}

func (VolatilityFeatures) Name() string { return "volatility" }

func (VolatilityFeatures) Columns() []string {
	return []string{"close", "volume", "sma_20", "ema_9", "rsi", "atr", "ret_1"}
}

func (VolatilityFeatures) Compute(window []models.Candle) []models.FeatureRow {
	rows := make([]models.FeatureRow, len(window))
	closes := indicator.Closes(window)
	for i, c := range window {
		prefix := closes[:i+1]
		ret := 0.0
		if i > 0 && closes[i-1] != 0 {
			ret = (closes[i] - closes[i-1]) / closes[i-1]
		}
		rows[i] = models.FeatureRow{
			"close":  c.Close,
			"volume": c.Volume,
			"sma_20": indicator.SMA(prefix, 20),
			"ema_9":  indicator.EMA(prefix, 9),
			"rsi":    indicator.RSI(prefix, 14),
			"atr":    indicator.ATR(window[:i+1], 14),
			"ret_1":  ret,
		}
	}
	return rows
}

// TrendFeatures is a lighter feature set built around moving-average slope.
type TrendFeatures struct{}

func (TrendFeatures) Name() string { return "trend" }

func (TrendFeatures) Columns() []string {
	return []string{"close", "sma_20", "sma_50", "ema_9", "rsi", "ret_1"}
}

func (TrendFeatures) Compute(window []models.Candle) []models.FeatureRow {
	rows := make([]models.FeatureRow, len(window))
	closes := indicator.Closes(window)
	for i := range window {
		prefix := closes[:i+1]
		ret := 0.0
		if i > 0 && closes[i-1] != 0 {
			ret = (closes[i] - closes[i-1]) / closes[i-1]
		}
		rows[i] = models.FeatureRow{
			"close":  closes[i],
			"sma_20": indicator.SMA(prefix, 20),
			"sma_50": indicator.SMA(prefix, 50),
			"ema_9":  indicator.EMA(prefix, 9),
			"rsi":    indicator.RSI(prefix, 14),
			"ret_1":  ret,
		}
	}
	return rows
}
