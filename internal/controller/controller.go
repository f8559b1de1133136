package controller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/evandro-godoy/wtnps-finadv/internal/bus"
	"github.com/evandro-godoy/wtnps-finadv/internal/domain/models"
	domrepo "github.com/evandro-godoy/wtnps-finadv/internal/domain/repository"
	"github.com/evandro-godoy/wtnps-finadv/internal/monitor"
	"github.com/evandro-godoy/wtnps-finadv/internal/strategy"
	"github.com/evandro-godoy/wtnps-finadv/internal/validator"
	"github.com/evandro-godoy/wtnps-finadv/pkg/logger"
)

// AssetSpec describes one tradeable asset the pipeline runs.
type AssetSpec struct {
	Symbol       string
	Timeframe    domrepo.Timeframe
	Strategy     string
	Lookback     int
	Margin       int
	Settle       time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	Rules        []models.Rule
}

// ResourceLoader resolves the inference artifacts for one asset.
type ResourceLoader interface {
	Load(symbol, strategyName string) (domrepo.Predictor, *strategy.Normalizer, error)
}

// AssetResources bundles the live components of one asset.
type AssetResources struct {
	Monitor   *monitor.Monitor
	Adapter   *strategy.Adapter
	Validator *validator.Validator
}

// Controller owns pipeline startup, the per-asset resource registry, and
// shutdown. Initialization runs on a background goroutine so the process
// can expose readiness while warm-up fetches are in flight; slow loads
// (model files, bulk history) happen before the registry lock is taken,
// so readers are never blocked on I/O.
type Controller struct {
	source  domrepo.CandleSource
	loader  ResourceLoader
	bus     *bus.Bus
	log     *logger.Logger
	metrics domrepo.Metrics
	clock   domrepo.Clock

	mu         sync.RWMutex
	assets     map[string]*AssetResources
	lastCandle map[string]models.Candle
	ready      bool
	initErr    error

	initDone chan struct{}
	initOnce sync.Once
	stopOnce sync.Once
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	handles  []bus.Handle
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock overrides the wall clock used by the monitors.
func WithClock(c domrepo.Clock) Option {
	return func(ctl *Controller) { ctl.clock = c }
}

// New creates a controller. Call Start to begin initialization.
func New(source domrepo.CandleSource, loader ResourceLoader, b *bus.Bus,
	log *logger.Logger, metrics domrepo.Metrics, opts ...Option) *Controller {
	ctl := &Controller{
		source:     source,
		loader:     loader,
		bus:        b,
		log:        log,
		metrics:    metrics,
		clock:      domrepo.SystemClock{},
		assets:     make(map[string]*AssetResources),
		lastCandle: make(map[string]models.Candle),
		initDone:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(ctl)
	}
	return ctl
}

// Start launches background initialization for the given assets. Calling
// it more than once is a no-op.
func (ctl *Controller) Start(ctx context.Context, specs []AssetSpec) {
	ctl.initOnce.Do(func() {
		ctx, ctl.cancel = context.WithCancel(ctx)
		ctl.wg.Add(1)
		go func() {
			defer ctl.wg.Done()
			defer close(ctl.initDone)
			if err := ctl.initialize(ctx, specs); err != nil {
				ctl.mu.Lock()
				ctl.initErr = err
				ctl.mu.Unlock()
				ctl.log.Error("pipeline initialization failed", logger.Error(err))
			}
		}()
	})
}

func (ctl *Controller) initialize(ctx context.Context, specs []AssetSpec) error {
	start := ctl.clock.Now()

	if err := ctl.source.Connect(ctx); err != nil {
		return &models.FatalStartupError{Stage: "connect", Err: err}
	}

	ctl.handles = append(ctl.handles, bus.Subscribe(ctl.bus, ctl.onMarketData))

	// build everything first, then warm up, then start the loops: a fatal
	// on any asset must abort before any monitor goes live
	built := make([]*AssetResources, 0, len(specs))
	for _, spec := range specs {
		res, err := ctl.buildAsset(spec)
		if err != nil {
			return err
		}
		ctl.mu.Lock()
		ctl.assets[spec.Symbol] = res
		ctl.mu.Unlock()
		built = append(built, res)
	}

	for _, res := range built {
		if err := res.Monitor.WarmUp(ctx); err != nil {
			return err
		}
	}

	for _, res := range built {
		ctl.wg.Add(1)
		go func(m *monitor.Monitor) {
			defer ctl.wg.Done()
			m.Run(ctx)
		}(res.Monitor)
	}

	ctl.mu.Lock()
	ctl.ready = true
	ctl.mu.Unlock()

	ctl.metrics.RecordLatency("startup", ctl.clock.Now().Sub(start).Seconds())
	ctl.log.Info("pipeline ready",
		logger.Int("assets", len(built)),
		logger.Duration("startup", ctl.clock.Now().Sub(start)),
	)
	return nil
}

// buildAsset wires monitor, strategy adapter, and setup validator for one
// asset and subscribes them. Model loading happens here, outside the
// registry lock. A missing model degrades the asset instead of failing
// startup; any other artifact failure is fatal.
func (ctl *Controller) buildAsset(spec AssetSpec) (*AssetResources, error) {
	features, err := strategy.NewFeatures(spec.Strategy)
	if err != nil {
		return nil, &models.FatalStartupError{Stage: "strategy", Err: err}
	}

	pred, norm, err := ctl.loader.Load(spec.Symbol, features.Name())
	if err != nil {
		if !errors.Is(err, models.ErrMissingPredictor) {
			return nil, &models.FatalStartupError{Stage: "model", Err: err}
		}
		ctl.log.Warn("no model for symbol, running ingest-only",
			logger.String("symbol", spec.Symbol),
			logger.String("strategy", features.Name()),
		)
		ctl.metrics.RecordError("missing_predictor")
		pred, norm = nil, nil
	}

	mon := monitor.New(monitor.Config{
		Symbol:       spec.Symbol,
		Timeframe:    spec.Timeframe,
		Lookback:     spec.Lookback,
		Margin:       spec.Margin,
		Settle:       spec.Settle,
		MaxRetries:   spec.MaxRetries,
		RetryBackoff: spec.RetryBackoff,
	}, ctl.source, ctl.bus, ctl.log, ctl.metrics,
		monitor.WithClock(ctl.clock),
		monitor.WithFatalHandler(func(err error) {
			ctl.log.Error("asset monitor terminated",
				logger.String("symbol", spec.Symbol),
				logger.Error(err),
			)
		}),
	)

	adapter := strategy.NewAdapter(strategy.AdapterConfig{
		Symbol:   spec.Symbol,
		Lookback: spec.Lookback,
		Margin:   spec.Margin,
	}, features, pred, norm, ctl.bus, ctl.log, ctl.metrics)

	val := validator.New(spec.Symbol, spec.Rules, adapter, ctl.bus, ctl.log, ctl.metrics)

	ctl.handles = append(ctl.handles,
		bus.Subscribe(ctl.bus, adapter.OnMarketData),
		bus.Subscribe(ctl.bus, val.OnSignal),
	)

	return &AssetResources{Monitor: mon, Adapter: adapter, Validator: val}, nil
}

func (ctl *Controller) onMarketData(e models.MarketDataEvent) {
	ctl.mu.Lock()
	ctl.lastCandle[e.Candle.Symbol] = e.Candle
	ctl.mu.Unlock()
}

// IsReady reports whether initialization completed successfully.
func (ctl *Controller) IsReady() bool {
	ctl.mu.RLock()
	defer ctl.mu.RUnlock()
	return ctl.ready
}

// Err returns the initialization error, if any.
func (ctl *Controller) Err() error {
	ctl.mu.RLock()
	defer ctl.mu.RUnlock()
	return ctl.initErr
}

// InitDone is closed once initialization has finished, successfully or not.
func (ctl *Controller) InitDone() <-chan struct{} { return ctl.initDone }

// Asset returns the live resources for a symbol.
func (ctl *Controller) Asset(symbol string) (*AssetResources, bool) {
	ctl.mu.RLock()
	defer ctl.mu.RUnlock()
	res, ok := ctl.assets[symbol]
	return res, ok
}

// Symbols lists the registered symbols.
func (ctl *Controller) Symbols() []string {
	ctl.mu.RLock()
	defer ctl.mu.RUnlock()
	out := make([]string, 0, len(ctl.assets))
	for s := range ctl.assets {
		out = append(out, s)
	}
	return out
}

// LastCandle returns the most recent candle seen for a symbol.
func (ctl *Controller) LastCandle(symbol string) (models.Candle, bool) {
	ctl.mu.RLock()
	defer ctl.mu.RUnlock()
	c, ok := ctl.lastCandle[symbol]
	return c, ok
}

// Stop shuts the pipeline down: monitors are asked to stop, their loops
// are awaited, subscriptions are removed, and the source is closed.
// Idempotent.
func (ctl *Controller) Stop() {
	ctl.stopOnce.Do(func() {
		ctl.mu.RLock()
		monitors := make([]*monitor.Monitor, 0, len(ctl.assets))
		for _, res := range ctl.assets {
			monitors = append(monitors, res.Monitor)
		}
		ctl.mu.RUnlock()

		for _, m := range monitors {
			m.Stop()
		}
		if ctl.cancel != nil {
			ctl.cancel()
		}
		ctl.wg.Wait()

		for _, h := range ctl.handles {
			ctl.bus.Unsubscribe(h)
		}
		if err := ctl.source.Close(); err != nil {
			ctl.log.Warn("source close failed", logger.Error(err))
		}
		ctl.log.Info("pipeline stopped")
	})
}
