package strategy

import (
	"strings"
	"testing"
	"time"

	"github.com/evandro-godoy/wtnps-finadv/internal/domain/models"
)

func TestNewFeaturesDefaultsToVolatility(t *testing.T) {
	f, err := NewFeatures("")
	if err != nil {
		t.Fatalf("default strategy: %v", err)
	}
	if f.Name() != "volatility" {
		t.Fatalf("name = %q", f.Name())
	}
}

func TestNewFeaturesIsCaseInsensitive(t *testing.T) {
	f, err := NewFeatures(" Trend ")
	if err != nil {
		t.Fatalf("trend strategy: %v", err)
	}
	if f.Name() != "trend" {
		t.Fatalf("name = %q", f.Name())
	}
}

func TestNewFeaturesUnknown(t *testing.T) {
	_, err := NewFeatures("mean_reversion")
	if err == nil {
		t.Fatalf("expected error for unknown strategy")
	}
	if !strings.Contains(err.Error(), "trend") || !strings.Contains(err.Error(), "volatility") {
		t.Fatalf("error should list registered strategies: %v", err)
	}
}

func TestRegistered(t *testing.T) {
	got := Registered()
	if len(got) != 2 || got[0] != "trend" || got[1] != "volatility" {
		t.Fatalf("registered = %v", got)
	}
}

func TestVolatilityComputeOneRowPerCandle(t *testing.T) {
	window := make([]models.Candle, 5)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range window {
		window[i] = models.Candle{
			OpenTime: base.Add(time.Duration(i) * 5 * time.Minute),
			Close:    float64(100 + i),
			High:     float64(101 + i),
			Low:      float64(99 + i),
			Volume:   10,
		}
	}

	rows := VolatilityFeatures{}.Compute(window)
	if len(rows) != len(window) {
		t.Fatalf("rows = %d, want %d", len(rows), len(window))
	}
	for i, row := range rows {
		for _, col := range (VolatilityFeatures{}).Columns() {
			if _, ok := row[col]; !ok {
				t.Fatalf("row %d missing column %q", i, col)
			}
		}
	}
	if rows[0]["ret_1"] != 0 {
		t.Fatalf("first-row return = %v, want 0", rows[0]["ret_1"])
	}
	if want := (101.0 - 100.0) / 100.0; rows[1]["ret_1"] != want {
		t.Fatalf("ret_1 = %v, want %v", rows[1]["ret_1"], want)
	}
}
