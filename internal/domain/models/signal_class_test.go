package models

import "testing"

func TestArgmaxClassPicksHighestProbability(t *testing.T) {
	class, conf := ArgmaxClass([]float64{0.7, 0.2, 0.1})
	if class != ClassSell || conf != 0.7 {
		t.Fatalf("got %s/%v, want SELL/0.7", class, conf)
	}

	class, conf = ArgmaxClass([]float64{0.1, 0.2, 0.7})
	if class != ClassBuy || conf != 0.7 {
		t.Fatalf("got %s/%v, want BUY/0.7", class, conf)
	}
}

func TestArgmaxClassTieBreaksConservatively(t *testing.T) {
	// equal probabilities resolve HOLD over SELL over BUY
	class, _ := ArgmaxClass([]float64{0.4, 0.4, 0.2})
	if class != ClassHold {
		t.Fatalf("SELL/HOLD tie: got %s, want HOLD", class)
	}

	class, _ = ArgmaxClass([]float64{0.4, 0.2, 0.4})
	if class != ClassSell {
		t.Fatalf("SELL/BUY tie: got %s, want SELL", class)
	}

	class, _ = ArgmaxClass([]float64{0.3, 0.4, 0.4})
	if class != ClassHold {
		t.Fatalf("HOLD/BUY tie: got %s, want HOLD", class)
	}

	class, _ = ArgmaxClass([]float64{0.4, 0.4, 0.4})
	if class != ClassHold {
		t.Fatalf("three-way tie: got %s, want HOLD", class)
	}
}

func TestParseSignalClass(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want SignalClass
	}{
		{"BUY", ClassBuy},
		{"SELL", ClassSell},
		{"HOLD", ClassHold},
		{"buy", ClassBuy},
	} {
		got, err := ParseSignalClass(tc.in)
		if err != nil {
			t.Fatalf("%s: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("%s: got %s", tc.in, got)
		}
	}
	if _, err := ParseSignalClass("LONG"); err == nil {
		t.Fatalf("expected error for unknown class")
	}
}

func TestRuleName(t *testing.T) {
	r := Rule{Condition: ClassBuy, Type: RulePriceAboveMA, MAType: "sma", Period: 20}
	if r.Name() != "price_above_ma_sma_20" {
		t.Fatalf("name = %q", r.Name())
	}
	r = Rule{Condition: ClassSell, Type: RuleRSIAbove, Level: 70}
	if r.Name() != "rsi_above_70" {
		t.Fatalf("name = %q", r.Name())
	}
}

func TestRuleNamesAreUniquePerParameters(t *testing.T) {
	a := Rule{Condition: ClassBuy, Type: RulePriceAboveMA, MAType: "sma", Period: 50}
	b := Rule{Condition: ClassBuy, Type: RulePriceAboveMA, MAType: "sma", Period: 20}
	if a.Name() == b.Name() {
		t.Fatalf("rules with different periods share name %q", a.Name())
	}
	c := Rule{Condition: ClassSell, Type: RuleRSIAbove, Level: 70}
	d := Rule{Condition: ClassSell, Type: RuleRSIAbove, Level: 80}
	if c.Name() == d.Name() {
		t.Fatalf("rules with different levels share name %q", c.Name())
	}
}
