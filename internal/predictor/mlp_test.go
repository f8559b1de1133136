package predictor

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/evandro-godoy/wtnps-finadv/internal/domain/models"
	"github.com/evandro-godoy/wtnps-finadv/internal/strategy"
)

// tinyMLP builds a valid 2-input, 2-hidden, 3-class model with zero
// weights: the forward pass yields uniform probabilities.
func tinyMLP() *MLP {
	return &MLP{
		InputSize:  2,
		HiddenSize: 2,
		OutputSize: 3,
		W1:         [][]float64{{0, 0}, {0, 0}},
		B1:         []float64{0, 0},
		W2:         [][]float64{{0, 0, 0}, {0, 0, 0}},
		B2:         []float64{0, 0, 0},
	}
}

func TestPredictProbabilitiesSumToOne(t *testing.T) {
	m := tinyMLP()
	m.B2 = []float64{0.5, -1, 2}

	probs, err := m.Predict(models.FeatureVector{1, 2})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if len(probs) != 3 {
		t.Fatalf("probs = %v", probs)
	}
	sum := 0.0
	for _, p := range probs {
		if p < 0 || p > 1 {
			t.Fatalf("probability out of range: %v", probs)
		}
		sum += p
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Fatalf("sum = %v, want 1", sum)
	}
	// B2 bias favors the third class
	if probs[2] <= probs[0] || probs[2] <= probs[1] {
		t.Fatalf("biased class not dominant: %v", probs)
	}
}

func TestPredictWidthMismatch(t *testing.T) {
	m := tinyMLP()
	_, err := m.Predict(models.FeatureVector{1, 2, 3})
	if !errors.Is(err, models.ErrWidthMismatch) {
		t.Fatalf("expected ErrWidthMismatch, got %v", err)
	}
}

func TestPredictLargeLogitsDoNotOverflow(t *testing.T) {
	m := tinyMLP()
	m.B2 = []float64{1000, 999, 0}

	probs, err := m.Predict(models.FeatureVector{0, 0})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	for _, p := range probs {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			t.Fatalf("softmax overflow: %v", probs)
		}
	}
	if probs[0] <= probs[1] {
		t.Fatalf("ordering lost: %v", probs)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	m := tinyMLP()
	m.W1[0][1] = 0.25
	path := filepath.Join(t.TempDir(), "model.json")

	if err := m.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.InputSize != 2 || loaded.W1[0][1] != 0.25 {
		t.Fatalf("round trip lost weights: %+v", loaded)
	}
}

func TestLoadRejectsBadShapes(t *testing.T) {
	m := tinyMLP()
	m.OutputSize = 2 // must match the class count
	m.W2 = [][]float64{{0, 0}, {0, 0}}
	m.B2 = []float64{0, 0}

	path := filepath.Join(t.TempDir(), "model.json")
	if err := m.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected shape validation error")
	}
}

func TestLoadRejectsTruncatedWeights(t *testing.T) {
	m := tinyMLP()
	m.W1 = [][]float64{{0, 0}} // one row short of InputSize

	path := filepath.Join(t.TempDir(), "model.json")
	if err := m.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected shape validation error")
	}
}

func TestFileLoaderMissingModel(t *testing.T) {
	l := FileLoader{Dir: t.TempDir()}
	_, _, err := l.Load("BTCUSDT", "volatility")
	if !errors.Is(err, models.ErrMissingPredictor) {
		t.Fatalf("expected ErrMissingPredictor, got %v", err)
	}
}

func TestFileLoaderModelWithScaler(t *testing.T) {
	dir := t.TempDir()
	m := tinyMLP()
	if err := m.Save(filepath.Join(dir, "BTCUSDT_volatility_prod_mlp.json")); err != nil {
		t.Fatalf("save model: %v", err)
	}
	n := strategy.NewNormalizer(2)
	n.Fit([][]float64{{1, 2}, {3, 4}})
	if err := n.Save(filepath.Join(dir, "BTCUSDT_volatility_prod_scaler.json")); err != nil {
		t.Fatalf("save scaler: %v", err)
	}

	pred, norm, err := FileLoader{Dir: dir}.Load("BTCUSDT", "volatility")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if pred == nil || pred.InputWidth() != 2 {
		t.Fatalf("predictor not loaded")
	}
	if norm == nil || !norm.Fitted {
		t.Fatalf("scaler not loaded")
	}
}

func TestFileLoaderModelWithoutScaler(t *testing.T) {
	dir := t.TempDir()
	if err := tinyMLP().Save(filepath.Join(dir, "ETHUSDT_trend_prod_mlp.json")); err != nil {
		t.Fatalf("save model: %v", err)
	}

	pred, norm, err := FileLoader{Dir: dir}.Load("ETHUSDT", "trend")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if pred == nil {
		t.Fatalf("predictor not loaded")
	}
	if norm != nil {
		t.Fatalf("expected nil normalizer without scaler artifact")
	}
}

func TestFileLoaderCorruptModelIsNotMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "BTCUSDT_volatility_prod_mlp.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, _, err := FileLoader{Dir: dir}.Load("BTCUSDT", "volatility")
	if err == nil {
		t.Fatalf("expected parse error")
	}
	if errors.Is(err, models.ErrMissingPredictor) {
		t.Fatalf("corrupt model must not be treated as missing")
	}
}
