package predictor

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/evandro-godoy/wtnps-finadv/internal/domain/models"
	domrepo "github.com/evandro-godoy/wtnps-finadv/internal/domain/repository"
	"github.com/evandro-godoy/wtnps-finadv/internal/strategy"
)

// FileLoader resolves per-symbol model artifacts from a directory. Artifact
// naming follows <symbol>_<strategy>_prod_{mlp,scaler}.json.
type FileLoader struct {
	Dir string
}

// Load returns the predictor and fitted normalizer for a symbol. A missing
// model file maps to ErrMissingPredictor so callers can degrade instead of
// aborting; any other read or shape failure is returned as-is.
func (l FileLoader) Load(symbol, strategyName string) (domrepo.Predictor, *strategy.Normalizer, error) {
	prefix := filepath.Join(l.Dir, fmt.Sprintf("%s_%s_prod", symbol, strategyName))

	mlp, err := Load(prefix + "_mlp.json")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s", models.ErrMissingPredictor, symbol)
		}
		return nil, nil, err
	}

	norm, err := strategy.LoadNormalizer(prefix + "_scaler.json")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// model without scaler runs on raw features
			return mlp, nil, nil
		}
		return nil, nil, err
	}
	return mlp, norm, nil
}
