package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/evandro-godoy/wtnps-finadv/internal/bus"
	"github.com/evandro-godoy/wtnps-finadv/internal/domain/models"
	domrepo "github.com/evandro-godoy/wtnps-finadv/internal/domain/repository"
	"github.com/evandro-godoy/wtnps-finadv/internal/strategy"
	"github.com/evandro-godoy/wtnps-finadv/pkg/logger"
)

type scriptedSource struct {
	mu         sync.Mutex
	connectErr error
	fetchErr   error
	closed     bool
}

func (s *scriptedSource) Connect(ctx context.Context) error { return s.connectErr }

func (s *scriptedSource) FetchLatest(ctx context.Context, symbol string, tf domrepo.Timeframe, count int) ([]models.Candle, error) {
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	out := make([]models.Candle, 0, count)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < count; i++ {
		out = append(out, models.Candle{
			Symbol:   symbol,
			OpenTime: base.Add(time.Duration(i) * time.Hour),
			Close:    float64(100 + i),
			High:     float64(101 + i),
			Low:      float64(99 + i),
			Volume:   10,
		})
	}
	return out, nil
}

func (s *scriptedSource) IsConnected() bool { return true }

func (s *scriptedSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type staticPredictor struct {
	width int
	probs []float64
}

func (p staticPredictor) Predict(window models.FeatureVector) ([]float64, error) {
	return p.probs, nil
}

func (p staticPredictor) InputWidth() int { return p.width }

type scriptedLoader struct {
	missing map[string]bool
	loadErr error
	pred    domrepo.Predictor
}

func (l scriptedLoader) Load(symbol, strategyName string) (domrepo.Predictor, *strategy.Normalizer, error) {
	if l.loadErr != nil {
		return nil, nil, l.loadErr
	}
	if l.missing[symbol] {
		return nil, nil, fmt.Errorf("%s: %w", symbol, models.ErrMissingPredictor)
	}
	return l.pred, nil, nil
}

func spec(symbol string, lookback int) AssetSpec {
	return AssetSpec{
		Symbol:       symbol,
		Timeframe:    domrepo.TFH1,
		Strategy:     "volatility",
		Lookback:     lookback,
		Settle:       time.Millisecond,
		MaxRetries:   3,
		RetryBackoff: time.Millisecond,
	}
}

func waitInit(t *testing.T, ctl *Controller) {
	t.Helper()
	select {
	case <-ctl.InitDone():
	case <-time.After(5 * time.Second):
		t.Fatalf("initialization did not finish")
	}
}

func TestStartWarmsUpAndProducesDecisions(t *testing.T) {
	lookback := 3
	width := lookback * len(strategy.VolatilityFeatures{}.Columns())
	src := &scriptedSource{}
	loader := scriptedLoader{pred: staticPredictor{width: width, probs: []float64{0.1, 0.1, 0.8}}}
	b := bus.New(logger.Nop())

	var mu sync.Mutex
	var decisions []models.FinalDecisionEvent
	bus.Subscribe(b, func(e models.FinalDecisionEvent) {
		mu.Lock()
		decisions = append(decisions, e)
		mu.Unlock()
	})

	ctl := New(src, loader, b, logger.Nop(), domrepo.NopMetrics{})
	ctl.Start(context.Background(), []AssetSpec{spec("BTCUSDT", lookback)})
	waitInit(t, ctl)
	defer ctl.Stop()

	if err := ctl.Err(); err != nil {
		t.Fatalf("init error: %v", err)
	}
	if !ctl.IsReady() {
		t.Fatalf("controller not ready")
	}

	// the window fills on the last warm-up candle, so exactly one signal
	// has gone through the validator by now
	mu.Lock()
	n := len(decisions)
	var d models.FinalDecisionEvent
	if n > 0 {
		d = decisions[0]
	}
	mu.Unlock()
	if n != 1 {
		t.Fatalf("decisions = %d, want 1", n)
	}
	if d.Signal != models.ClassBuy || !d.SetupValid || d.Decision != models.ClassBuy {
		t.Fatalf("unexpected decision: %+v", d)
	}

	if _, ok := ctl.Asset("BTCUSDT"); !ok {
		t.Fatalf("asset not registered")
	}
	if syms := ctl.Symbols(); len(syms) != 1 || syms[0] != "BTCUSDT" {
		t.Fatalf("symbols = %v", syms)
	}
	if c, ok := ctl.LastCandle("BTCUSDT"); !ok || c.Close != 102 {
		t.Fatalf("last candle = %+v ok=%v", c, ok)
	}
}

func TestConnectFailureIsFatal(t *testing.T) {
	src := &scriptedSource{connectErr: fmt.Errorf("refused")}
	ctl := New(src, scriptedLoader{}, bus.New(logger.Nop()), logger.Nop(), domrepo.NopMetrics{})

	ctl.Start(context.Background(), []AssetSpec{spec("BTCUSDT", 3)})
	waitInit(t, ctl)
	defer ctl.Stop()

	var fatal *models.FatalStartupError
	if !errors.As(ctl.Err(), &fatal) {
		t.Fatalf("expected FatalStartupError, got %v", ctl.Err())
	}
	if fatal.Stage != "connect" {
		t.Fatalf("stage = %q", fatal.Stage)
	}
	if ctl.IsReady() {
		t.Fatalf("ready despite failed connect")
	}
}

func TestWarmUpFailureAbortsStartup(t *testing.T) {
	src := &scriptedSource{fetchErr: fmt.Errorf("timeout")}
	ctl := New(src, scriptedLoader{}, bus.New(logger.Nop()), logger.Nop(), domrepo.NopMetrics{})

	ctl.Start(context.Background(), []AssetSpec{spec("BTCUSDT", 3)})
	waitInit(t, ctl)
	defer ctl.Stop()

	var fatal *models.FatalStartupError
	if !errors.As(ctl.Err(), &fatal) {
		t.Fatalf("expected FatalStartupError, got %v", ctl.Err())
	}
	if ctl.IsReady() {
		t.Fatalf("ready despite failed warm-up")
	}
}

func TestUnknownStrategyIsFatal(t *testing.T) {
	ctl := New(&scriptedSource{}, scriptedLoader{}, bus.New(logger.Nop()), logger.Nop(), domrepo.NopMetrics{})

	s := spec("BTCUSDT", 3)
	s.Strategy = "mean_reversion"
	ctl.Start(context.Background(), []AssetSpec{s})
	waitInit(t, ctl)
	defer ctl.Stop()

	var fatal *models.FatalStartupError
	if !errors.As(ctl.Err(), &fatal) {
		t.Fatalf("expected FatalStartupError, got %v", ctl.Err())
	}
	if fatal.Stage != "strategy" {
		t.Fatalf("stage = %q", fatal.Stage)
	}
}

func TestMissingModelDegradesOneAssetOnly(t *testing.T) {
	lookback := 3
	width := lookback * len(strategy.VolatilityFeatures{}.Columns())
	src := &scriptedSource{}
	loader := scriptedLoader{
		missing: map[string]bool{"ETHUSDT": true},
		pred:    staticPredictor{width: width, probs: []float64{0.8, 0.1, 0.1}},
	}
	b := bus.New(logger.Nop())

	var mu sync.Mutex
	decisions := map[string]int{}
	bus.Subscribe(b, func(e models.FinalDecisionEvent) {
		mu.Lock()
		decisions[e.Symbol]++
		mu.Unlock()
	})

	ctl := New(src, loader, b, logger.Nop(), domrepo.NopMetrics{})
	ctl.Start(context.Background(), []AssetSpec{spec("BTCUSDT", lookback), spec("ETHUSDT", lookback)})
	waitInit(t, ctl)
	defer ctl.Stop()

	if err := ctl.Err(); err != nil {
		t.Fatalf("missing model must not fail startup: %v", err)
	}
	if !ctl.IsReady() {
		t.Fatalf("controller not ready")
	}

	mu.Lock()
	defer mu.Unlock()
	if decisions["BTCUSDT"] != 1 {
		t.Fatalf("BTCUSDT decisions = %d, want 1", decisions["BTCUSDT"])
	}
	if decisions["ETHUSDT"] != 0 {
		t.Fatalf("degraded ETHUSDT emitted %d decisions", decisions["ETHUSDT"])
	}

	// ingest still runs for the degraded asset
	if _, ok := ctl.LastCandle("ETHUSDT"); !ok {
		t.Fatalf("degraded asset received no candles")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	src := &scriptedSource{}
	ctl := New(src, scriptedLoader{missing: map[string]bool{"BTCUSDT": true}},
		bus.New(logger.Nop()), logger.Nop(), domrepo.NopMetrics{})

	ctl.Start(context.Background(), []AssetSpec{spec("BTCUSDT", 3)})
	waitInit(t, ctl)

	ctl.Stop()
	ctl.Stop()

	src.mu.Lock()
	closed := src.closed
	src.mu.Unlock()
	if !closed {
		t.Fatalf("source not closed on stop")
	}
}
