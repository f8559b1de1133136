package validator

import (
	"testing"
	"time"

	"github.com/evandro-godoy/wtnps-finadv/internal/bus"
	"github.com/evandro-godoy/wtnps-finadv/internal/domain/models"
	domrepo "github.com/evandro-godoy/wtnps-finadv/internal/domain/repository"
	"github.com/evandro-godoy/wtnps-finadv/pkg/logger"
)

type staticFeatures struct {
	row models.FeatureRow
}

func (s staticFeatures) LatestRow() (models.FeatureRow, bool) {
	if s.row == nil {
		return nil, false
	}
	return s.row, true
}

func testValidator(t *testing.T, rules []models.Rule, row models.FeatureRow) (*Validator, *bus.Bus) {
	t.Helper()
	b := bus.New(logger.Nop())
	v := New("BTCUSDT", rules, staticFeatures{row: row}, b, logger.Nop(), domrepo.NopMetrics{})
	return v, b
}

func TestHoldIsTriviallyValid(t *testing.T) {
	rules := []models.Rule{{Condition: models.ClassBuy, Type: models.RuleRSIBelow, Level: 70}}
	v, _ := testValidator(t, rules, models.FeatureRow{"rsi": 99})

	res := v.Evaluate(models.ClassHold)
	if !res.Valid || res.Decision != models.ClassHold || res.RuleMatched != "" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestNoRulesForClassPassesThrough(t *testing.T) {
	// SELL has no rules configured
	rules := []models.Rule{{Condition: models.ClassBuy, Type: models.RuleRSIBelow, Level: 70}}
	v, _ := testValidator(t, rules, models.FeatureRow{"rsi": 99})

	res := v.Evaluate(models.ClassSell)
	if !res.Valid || res.Decision != models.ClassSell {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestFirstMatchingRuleConfirmsSetup(t *testing.T) {
	rules := []models.Rule{
		{Condition: models.ClassBuy, Type: models.RuleRSIAbove, Level: 90},
		{Condition: models.ClassBuy, Type: models.RulePriceAboveMA, MAType: "sma", Period: 20},
	}
	row := models.FeatureRow{"rsi": 55, "close": 105, "sma_20": 100}
	v, _ := testValidator(t, rules, row)

	res := v.Evaluate(models.ClassBuy)
	if !res.Valid {
		t.Fatalf("expected valid setup")
	}
	if res.RuleMatched != "price_above_ma_sma_20" {
		t.Fatalf("rule = %q", res.RuleMatched)
	}
	if res.Decision != models.ClassBuy {
		t.Fatalf("decision = %s", res.Decision)
	}
}

func TestNoMatchingRuleForcesHold(t *testing.T) {
	rules := []models.Rule{
		{Condition: models.ClassBuy, Type: models.RulePriceAboveMA, MAType: "sma", Period: 20},
	}
	row := models.FeatureRow{"close": 95, "sma_20": 100}
	v, _ := testValidator(t, rules, row)

	res := v.Evaluate(models.ClassBuy)
	if res.Valid {
		t.Fatalf("expected invalid setup")
	}
	if res.Decision != models.ClassHold {
		t.Fatalf("decision = %s, want HOLD", res.Decision)
	}
}

func TestRuleWithMissingFeatureIsDisabledOthersStillMatch(t *testing.T) {
	rules := []models.Rule{
		{Condition: models.ClassBuy, Type: models.RulePriceAboveMA, MAType: "sma", Period: 200}, // sma_200 not computed
		{Condition: models.ClassBuy, Type: models.RuleRSIBelow, Level: 70},
	}
	row := models.FeatureRow{"close": 105, "sma_20": 100, "rsi": 40}
	v, _ := testValidator(t, rules, row)

	for i := 0; i < 3; i++ {
		res := v.Evaluate(models.ClassBuy)
		if !res.Valid || res.RuleMatched != "rsi_below_70" {
			t.Fatalf("iteration %d: %+v", i, res)
		}
	}
	if !v.disabled["price_above_ma_sma_200"] {
		t.Fatalf("broken rule was not disabled")
	}
}

func TestDisablingOneRuleSparesSameTypeSibling(t *testing.T) {
	// two price/MA rules of the same type and MA kind; only the sma_50
	// column is missing, the sma_20 rule must keep matching
	rules := []models.Rule{
		{Condition: models.ClassBuy, Type: models.RulePriceAboveMA, MAType: "sma", Period: 50},
		{Condition: models.ClassBuy, Type: models.RulePriceAboveMA, MAType: "sma", Period: 20},
	}
	row := models.FeatureRow{"close": 105, "sma_20": 100}
	v, _ := testValidator(t, rules, row)

	for i := 0; i < 3; i++ {
		res := v.Evaluate(models.ClassBuy)
		if !res.Valid {
			t.Fatalf("iteration %d: healthy sibling rule was vetoed: %+v", i, res)
		}
		if res.RuleMatched != "price_above_ma_sma_20" {
			t.Fatalf("iteration %d: rule = %q", i, res.RuleMatched)
		}
	}
	if !v.disabled["price_above_ma_sma_50"] {
		t.Fatalf("broken rule was not disabled")
	}
	if v.disabled["price_above_ma_sma_20"] {
		t.Fatalf("healthy rule was disabled alongside the broken one")
	}
}

func TestAllRulesBrokenFailsClosed(t *testing.T) {
	rules := []models.Rule{
		{Condition: models.ClassSell, Type: "regime_filter"}, // unknown type
	}
	v, _ := testValidator(t, rules, models.FeatureRow{"close": 100})

	res := v.Evaluate(models.ClassSell)
	if res.Valid {
		t.Fatalf("expected invalid setup when the only rule is broken")
	}
	if res.Decision != models.ClassHold {
		t.Fatalf("decision = %s, want HOLD", res.Decision)
	}
}

func TestRSIRules(t *testing.T) {
	rules := []models.Rule{
		{Condition: models.ClassSell, Type: models.RuleRSIAbove, Level: 70},
	}
	v, _ := testValidator(t, rules, models.FeatureRow{"rsi": 75})
	if res := v.Evaluate(models.ClassSell); !res.Valid || res.RuleMatched != "rsi_above_70" {
		t.Fatalf("rsi_above should match: %+v", res)
	}

	v2, _ := testValidator(t, rules, models.FeatureRow{"rsi": 65})
	if res := v2.Evaluate(models.ClassSell); res.Valid {
		t.Fatalf("rsi_above should not match at 65")
	}
}

func TestOnSignalPublishesFinalDecision(t *testing.T) {
	rules := []models.Rule{
		{Condition: models.ClassBuy, Type: models.RulePriceAboveMA, MAType: "sma", Period: 20},
	}
	row := models.FeatureRow{"close": 105, "sma_20": 100}
	v, b := testValidator(t, rules, row)
	bus.Subscribe(b, v.OnSignal)

	var decisions []models.FinalDecisionEvent
	bus.Subscribe(b, func(e models.FinalDecisionEvent) { decisions = append(decisions, e) })

	ts := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	b.Publish(models.SignalEvent{
		Symbol:     "BTCUSDT",
		Timestamp:  ts,
		Class:      models.ClassBuy,
		Confidence: 0.8,
		Price:      105,
	})

	if len(decisions) != 1 {
		t.Fatalf("decisions = %d, want 1", len(decisions))
	}
	d := decisions[0]
	if !d.SetupValid || d.Decision != models.ClassBuy || d.Signal != models.ClassBuy {
		t.Fatalf("unexpected decision: %+v", d)
	}
	if d.RuleMatched != "price_above_ma_sma_20" {
		t.Fatalf("rule = %q", d.RuleMatched)
	}
	if !d.Timestamp.Equal(ts) || d.Confidence != 0.8 {
		t.Fatalf("metadata not propagated: %+v", d)
	}
}

func TestOnSignalInvalidSetupPublishesHold(t *testing.T) {
	rules := []models.Rule{
		{Condition: models.ClassSell, Type: models.RuleRSIAbove, Level: 70},
	}
	v, b := testValidator(t, rules, models.FeatureRow{"rsi": 50})
	bus.Subscribe(b, v.OnSignal)

	var decisions []models.FinalDecisionEvent
	bus.Subscribe(b, func(e models.FinalDecisionEvent) { decisions = append(decisions, e) })

	b.Publish(models.SignalEvent{Symbol: "BTCUSDT", Class: models.ClassSell, Confidence: 0.9})

	if len(decisions) != 1 {
		t.Fatalf("decisions = %d", len(decisions))
	}
	d := decisions[0]
	if d.SetupValid {
		t.Fatalf("expected invalid setup")
	}
	if d.Signal != models.ClassSell || d.Decision != models.ClassHold {
		t.Fatalf("signal/decision = %s/%s", d.Signal, d.Decision)
	}
}

func TestOnSignalIgnoresOtherSymbols(t *testing.T) {
	v, b := testValidator(t, nil, models.FeatureRow{})
	bus.Subscribe(b, v.OnSignal)

	var decisions int
	bus.Subscribe(b, func(models.FinalDecisionEvent) { decisions++ })

	b.Publish(models.SignalEvent{Symbol: "ETHUSDT", Class: models.ClassBuy})
	if decisions != 0 {
		t.Fatalf("decision for foreign symbol")
	}
}
