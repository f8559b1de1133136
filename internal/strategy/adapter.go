package strategy

import (
	"sync"

	"github.com/evandro-godoy/wtnps-finadv/internal/bus"
	"github.com/evandro-godoy/wtnps-finadv/internal/domain/models"
	domrepo "github.com/evandro-godoy/wtnps-finadv/internal/domain/repository"
	"github.com/evandro-godoy/wtnps-finadv/pkg/logger"
)

// Adapter turns the MarketDataEvent stream of one symbol into SignalEvents
// via an injected predictor. It maintains its own feature window with an
// eviction policy independent of the monitor's candle buffer.
//
// A symbol without a loaded predictor degrades to ingest-only: the window
// keeps filling, no SignalEvent is ever emitted, and the condition is
// logged once. One symbol's missing model must not halt others.
type Adapter struct {
	symbol     string
	lookback   int
	margin     int
	features   Features
	normalizer *Normalizer
	predictor  domrepo.Predictor
	bus        *bus.Bus
	log        *logger.Logger
	dedup      *logger.Deduper
	metrics    domrepo.Metrics

	mu       sync.RWMutex
	window   []models.Candle
	lastRows []models.FeatureRow
}

// AdapterConfig holds per-symbol adapter settings.
type AdapterConfig struct {
	Symbol   string
	Lookback int
	Margin   int
}

// NewAdapter creates an adapter. predictor and normalizer may be nil; a nil
// predictor means the symbol runs degraded.
func NewAdapter(cfg AdapterConfig, features Features, predictor domrepo.Predictor, normalizer *Normalizer,
	b *bus.Bus, log *logger.Logger, metrics domrepo.Metrics) *Adapter {
	if cfg.Margin < 0 {
		cfg.Margin = 0
	}
	return &Adapter{
		symbol:     cfg.Symbol,
		lookback:   cfg.Lookback,
		margin:     cfg.Margin,
		features:   features,
		normalizer: normalizer,
		predictor:  predictor,
		bus:        b,
		log:        log,
		dedup:      logger.NewDeduper(),
		metrics:    metrics,
	}
}

// OnMarketData appends the candle to the feature window, recomputes the
// indicator columns, and runs inference once the window holds at least
// lookback rows. Runs on the publishing monitor's goroutine.
func (a *Adapter) OnMarketData(e models.MarketDataEvent) {
	c := e.Candle
	if c.Symbol != a.symbol {
		return
	}

	a.mu.Lock()
	if n := len(a.window); n > 0 && !c.OpenTime.After(a.window[n-1].OpenTime) {
		a.mu.Unlock()
		return
	}
	a.window = append(a.window, c)
	if max := a.lookback + a.margin; len(a.window) > max {
		a.window = a.window[len(a.window)-max:]
	}
	rows := a.features.Compute(a.window)
	a.lastRows = rows
	ready := len(a.window) >= a.lookback
	a.mu.Unlock()

	if !ready {
		return
	}
	a.infer(c, rows)
}

func (a *Adapter) infer(c models.Candle, rows []models.FeatureRow) {
	if a.predictor == nil {
		if a.dedup.First("missing_predictor:" + a.symbol) {
			a.log.Warn("symbol degraded to ingest-only",
				logger.String("symbol", a.symbol),
				logger.Error(models.ErrMissingPredictor),
			)
			a.metrics.RecordError("missing_predictor")
		}
		return
	}

	vec := a.assemble(rows)
	if vec.Width() != a.predictor.InputWidth() {
		a.log.Warn("inference skipped",
			logger.String("symbol", a.symbol),
			logger.Int("vector_width", vec.Width()),
			logger.Int("input_width", a.predictor.InputWidth()),
			logger.Error(models.ErrWidthMismatch),
		)
		a.metrics.RecordError("width_mismatch")
		return
	}

	probs, err := a.predictor.Predict(vec)
	if err != nil {
		a.log.Warn("inference failed",
			logger.String("symbol", a.symbol),
			logger.Error(err),
		)
		a.metrics.RecordError("inference")
		return
	}
	if len(probs) < models.ClassCount {
		a.log.Warn("inference skipped",
			logger.String("symbol", a.symbol),
			logger.Int("classes", len(probs)),
			logger.Int("class_count", models.ClassCount),
		)
		a.metrics.RecordError("class_count")
		return
	}

	class, confidence := models.ArgmaxClass(probs)
	a.metrics.RecordSignal(a.symbol, class.String())
	a.bus.Publish(models.SignalEvent{
		Symbol:     a.symbol,
		Timestamp:  c.OpenTime,
		Class:      class,
		Confidence: confidence,
		Price:      c.Close,
	})
}

// assemble flattens the last lookback rows into the model input vector,
// normalizing each row. Column order follows Features.Columns.
func (a *Adapter) assemble(rows []models.FeatureRow) models.FeatureVector {
	cols := a.features.Columns()
	tail := rows[len(rows)-a.lookback:]
	vec := make(models.FeatureVector, 0, a.lookback*len(cols))
	for _, row := range tail {
		raw := make([]float64, len(cols))
		for i, col := range cols {
			raw[i] = row[col]
		}
		if a.normalizer != nil {
			raw = a.normalizer.Transform(raw)
		}
		vec = append(vec, raw...)
	}
	return vec
}

// LatestRow returns the most recent computed feature row, if any.
func (a *Adapter) LatestRow() (models.FeatureRow, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if len(a.lastRows) == 0 {
		return nil, false
	}
	return a.lastRows[len(a.lastRows)-1], true
}

// WindowLen returns the current feature window length.
func (a *Adapter) WindowLen() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.window)
}
