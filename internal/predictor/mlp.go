package predictor

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/evandro-godoy/wtnps-finadv/internal/domain/models"
)

// MLP is a single-hidden-layer feed-forward classifier with a softmax
// output over the SELL, HOLD, BUY classes. Weights are loaded from a JSON
// artifact produced by the offline training pipeline.
type MLP struct {
	InputSize  int         `json:"input_size"`
	HiddenSize int         `json:"hidden_size"`
	OutputSize int         `json:"output_size"`
	W1         [][]float64 `json:"w1"` // input x hidden
	B1         []float64   `json:"b1"`
	W2         [][]float64 `json:"w2"` // hidden x output
	B2         []float64   `json:"b2"`
}

// InputWidth returns the declared model input width.
func (m *MLP) InputWidth() int { return m.InputSize }

// Predict runs a forward pass and returns class probabilities in SELL,
// HOLD, BUY order.
func (m *MLP) Predict(window models.FeatureVector) ([]float64, error) {
	if window.Width() != m.InputSize {
		return nil, fmt.Errorf("%w: got %d, model expects %d",
			models.ErrWidthMismatch, window.Width(), m.InputSize)
	}

	hidden := make([]float64, m.HiddenSize)
	for j := 0; j < m.HiddenSize; j++ {
		sum := m.B1[j]
		for i, v := range window {
			sum += v * m.W1[i][j]
		}
		if sum < 0 { // ReLU
			sum = 0
		}
		hidden[j] = sum
	}

	logits := make([]float64, m.OutputSize)
	for k := 0; k < m.OutputSize; k++ {
		sum := m.B2[k]
		for j, h := range hidden {
			sum += h * m.W2[j][k]
		}
		logits[k] = sum
	}
	return softmax(logits), nil
}

func softmax(logits []float64) []float64 {
	maxLogit := logits[0]
	for _, v := range logits[1:] {
		if v > maxLogit {
			maxLogit = v
		}
	}
	var sum float64
	out := make([]float64, len(logits))
	for i, v := range logits {
		out[i] = math.Exp(v - maxLogit)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// Load reads and validates an MLP weight artifact.
func Load(path string) (*MLP, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	var m MLP
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse model: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("model %s: %w", path, err)
	}
	return &m, nil
}

// Save writes the weight artifact as JSON.
func (m *MLP) Save(path string) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal model: %w", err)
	}
	return os.WriteFile(path, b, 0o644)
}

func (m *MLP) validate() error {
	if m.InputSize <= 0 || m.HiddenSize <= 0 {
		return fmt.Errorf("invalid layer sizes %d/%d", m.InputSize, m.HiddenSize)
	}
	if m.OutputSize != models.ClassCount {
		return fmt.Errorf("output size %d, want %d classes", m.OutputSize, models.ClassCount)
	}
	if len(m.W1) != m.InputSize || len(m.B1) != m.HiddenSize {
		return fmt.Errorf("input layer shape mismatch")
	}
	for _, row := range m.W1 {
		if len(row) != m.HiddenSize {
			return fmt.Errorf("input layer shape mismatch")
		}
	}
	if len(m.W2) != m.HiddenSize || len(m.B2) != m.OutputSize {
		return fmt.Errorf("output layer shape mismatch")
	}
	for _, row := range m.W2 {
		if len(row) != m.OutputSize {
			return fmt.Errorf("output layer shape mismatch")
		}
	}
	return nil
}
