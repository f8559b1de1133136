package models

import "fmt"

// Rule predicate types evaluated by the setup validator.
const (
	RulePriceAboveMA = "price_above_ma"
	RulePriceBelowMA = "price_below_ma"
	RuleRSIAbove     = "rsi_above"
	RuleRSIBelow     = "rsi_below"
)

// Rule is one declarative setup condition gating a signal. Rules are loaded
// once at startup and immutable afterwards.
type Rule struct {
	Condition SignalClass // signal class this rule applies to
	Type      string      // predicate type, one of the Rule* constants
	MAType    string      // "sma" or "ema", for the price/MA predicates
	Period    int         // moving-average period
	Level     float64     // RSI threshold, for the rsi predicates
}

// Name returns a stable identifier used in decision records and logs. It
// includes the predicate parameters so that two rules of the same type
// never share a name: the validator disables failing rules by name, and a
// collision would silence a healthy rule along with a broken one.
func (r Rule) Name() string {
	switch r.Type {
	case RulePriceAboveMA, RulePriceBelowMA:
		return fmt.Sprintf("%s_%s_%d", r.Type, r.MAType, r.Period)
	case RuleRSIAbove, RuleRSIBelow:
		return fmt.Sprintf("%s_%g", r.Type, r.Level)
	default:
		return r.Type
	}
}
