package validator

import (
	"fmt"

	"github.com/evandro-godoy/wtnps-finadv/internal/bus"
	"github.com/evandro-godoy/wtnps-finadv/internal/domain/models"
	domrepo "github.com/evandro-godoy/wtnps-finadv/internal/domain/repository"
	"github.com/evandro-godoy/wtnps-finadv/pkg/logger"
)

// FeatureProvider exposes the latest computed feature row for a symbol.
// The strategy adapter implements it.
type FeatureProvider interface {
	LatestRow() (models.FeatureRow, bool)
}

// Validator gates SignalEvents through declarative setup rules and emits
// FinalDecisionEvents. Rules for the signal's class are evaluated as a
// disjunction: one matching rule confirms the setup.
//
// Failure policy is fail-open on configuration gaps (no rules for a class
// means the signal passes unconfirmed) and fail-closed on contested
// setups (rules exist but none match).
type Validator struct {
	symbol   string
	rules    map[models.SignalClass][]models.Rule
	features FeatureProvider
	bus      *bus.Bus
	log      *logger.Logger
	dedup    *logger.Deduper
	metrics  domrepo.Metrics

	// rules that raised an evaluation error are disabled for the rest of
	// the process lifetime instead of re-failing every bar
	disabled map[string]bool
}

// Result captures one setup evaluation.
type Result struct {
	Valid       bool
	RuleMatched string
	Decision    models.SignalClass
}

// New builds a validator for one symbol. Rules are grouped by the signal
// class they confirm.
func New(symbol string, rules []models.Rule, features FeatureProvider,
	b *bus.Bus, log *logger.Logger, metrics domrepo.Metrics) *Validator {
	grouped := make(map[models.SignalClass][]models.Rule)
	for _, r := range rules {
		grouped[r.Condition] = append(grouped[r.Condition], r)
	}
	return &Validator{
		symbol:   symbol,
		rules:    grouped,
		features: features,
		bus:      b,
		log:      log,
		dedup:    logger.NewDeduper(),
		metrics:  metrics,
		disabled: make(map[string]bool),
	}
}

// OnSignal evaluates the setup for an incoming signal and publishes the
// final decision. Runs on the publishing goroutine.
func (v *Validator) OnSignal(e models.SignalEvent) {
	if e.Symbol != v.symbol {
		return
	}

	res := v.Evaluate(e.Class)

	decision := models.ClassHold
	if res.Valid {
		decision = res.Decision
	}
	v.metrics.RecordDecision(v.symbol, decision.String(), res.Valid)
	v.bus.Publish(models.FinalDecisionEvent{
		Symbol:      e.Symbol,
		Timestamp:   e.Timestamp,
		Signal:      e.Class,
		Confidence:  e.Confidence,
		SetupValid:  res.Valid,
		RuleMatched: res.RuleMatched,
		Decision:    decision,
	})
}

// Evaluate applies the rule gate for a predicted class.
//
//   - HOLD is trivially valid; there is nothing to confirm.
//   - No rules configured for the class: valid, the signal passes through.
//   - At least one rule matches: valid, the first match is reported.
//   - Rules exist but none match: invalid, decision forced to HOLD.
func (v *Validator) Evaluate(class models.SignalClass) Result {
	if class == models.ClassHold {
		return Result{Valid: true, Decision: models.ClassHold}
	}

	rules := v.rules[class]
	if len(rules) == 0 {
		return Result{Valid: true, Decision: class}
	}

	row, ok := v.features.LatestRow()
	if !ok {
		// no features computed yet, treat all rules as non-matching
		return Result{Valid: false, Decision: models.ClassHold}
	}

	for _, r := range rules {
		name := r.Name()
		if v.disabled[name] {
			continue
		}
		match, err := v.match(r, row)
		if err != nil {
			v.disabled[name] = true
			if v.dedup.First("rule:" + v.symbol + ":" + name) {
				v.log.Error("setup rule disabled",
					logger.String("symbol", v.symbol),
					logger.String("rule", name),
					logger.Error(err),
				)
				v.metrics.RecordError("rule_evaluation")
			}
			continue
		}
		if match {
			return Result{Valid: true, RuleMatched: name, Decision: class}
		}
	}
	return Result{Valid: false, Decision: models.ClassHold}
}

// match evaluates a single rule predicate against the feature row. A
// referenced column that the strategy does not compute is an evaluation
// error, not a non-match.
func (v *Validator) match(r models.Rule, row models.FeatureRow) (bool, error) {
	switch r.Type {
	case models.RulePriceAboveMA, models.RulePriceBelowMA:
		price, err := v.column(row, "close")
		if err != nil {
			return false, err
		}
		ma, err := v.column(row, fmt.Sprintf("%s_%d", r.MAType, r.Period))
		if err != nil {
			return false, err
		}
		if r.Type == models.RulePriceAboveMA {
			return price > ma, nil
		}
		return price < ma, nil

	case models.RuleRSIAbove, models.RuleRSIBelow:
		rsi, err := v.column(row, "rsi")
		if err != nil {
			return false, err
		}
		if r.Type == models.RuleRSIAbove {
			return rsi > r.Level, nil
		}
		return rsi < r.Level, nil

	default:
		return false, fmt.Errorf("unknown rule type %q", r.Type)
	}
}

func (v *Validator) column(row models.FeatureRow, name string) (float64, error) {
	val, ok := row[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", models.ErrMissingFeature, name)
	}
	return val, nil
}
