package strategy

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// Normalizer applies fitted z-score normalization per feature column. An
// unfitted normalizer passes values through unchanged.
type Normalizer struct {
	Means   []float64 `json:"means"`
	Stddevs []float64 `json:"stddevs"`
	Fitted  bool      `json:"fitted"`
}

// NewNormalizer creates an unfitted normalizer for numFeatures columns.
func NewNormalizer(numFeatures int) *Normalizer {
	return &Normalizer{
		Means:   make([]float64, numFeatures),
		Stddevs: make([]float64, numFeatures),
	}
}

// Fit estimates mean and standard deviation per column from training rows.
func (n *Normalizer) Fit(data [][]float64) {
	if len(data) == 0 {
		return
	}
	numFeatures := len(data[0])
	n.Means = make([]float64, numFeatures)
	n.Stddevs = make([]float64, numFeatures)

	for i := 0; i < numFeatures; i++ {
		sum := 0.0
		for _, row := range data {
			sum += row[i]
		}
		n.Means[i] = sum / float64(len(data))
	}
	for i := 0; i < numFeatures; i++ {
		sumSq := 0.0
		for _, row := range data {
			diff := row[i] - n.Means[i]
			sumSq += diff * diff
		}
		n.Stddevs[i] = math.Sqrt(sumSq / float64(len(data)))
		if n.Stddevs[i] < 1e-10 {
			n.Stddevs[i] = 1.0
		}
	}
	n.Fitted = true
}

// Transform normalizes one feature row. Returns the input unchanged when
// unfitted or on column-count mismatch.
func (n *Normalizer) Transform(row []float64) []float64 {
	if !n.Fitted || len(row) != len(n.Means) {
		return row
	}
	out := make([]float64, len(row))
	for i, v := range row {
		out[i] = (v - n.Means[i]) / n.Stddevs[i]
	}
	return out
}

// LoadNormalizer reads fitted scaler parameters from a JSON artifact.
func LoadNormalizer(path string) (*Normalizer, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read normalizer: %w", err)
	}
	var n Normalizer
	if err := json.Unmarshal(b, &n); err != nil {
		return nil, fmt.Errorf("parse normalizer: %w", err)
	}
	return &n, nil
}

// Save writes the scaler parameters as a JSON artifact.
func (n *Normalizer) Save(path string) error {
	b, err := json.MarshalIndent(n, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal normalizer: %w", err)
	}
	return os.WriteFile(path, b, 0o644)
}
