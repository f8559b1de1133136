package monitor

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
	"github.com/evandro-godoy/wtnps-finadv/pkg/logger"
)

type fetchResult struct {
	candles []models.Candle
	err     error
}

type fakeSource struct {
	mu           sync.Mutex
	results      []fetchResult
	connectCalls int
	fetchCalls   int
}

func (f *fakeSource) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectCalls++
	return nil
}

func (f *fakeSource) FetchLatest(ctx context.Context, symbol string, tf domrepo.Timeframe, count int) ([]models.Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	if len(f.results) == 0 {
		return nil, fmt.Errorf("no scripted result")
	}
	r := f.results[0]
	f.results = f.results[1:]
	return r.candles, r.err
}

func (f *fakeSource) IsConnected() bool { return true }
func (f *fakeSource) Close() error      { return nil }

func candleRange(from, n int) []models.Candle {
	out := make([]models.Candle, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, mkCandle(from+i))
	}
	return out
}

func testMonitor(t *testing.T, src *fakeSource, lookback, margin, maxRetries int) (*Monitor, *bus.Bus) {
	t.Helper()
	b := bus.New(logger.Nop())
	m := New(Config{
		Symbol:       "BTCUSDT",
		Timeframe:    domrepo.TFM5,
		Lookback:     lookback,
		Margin:       margin,
		Settle:       time.Millisecond,
		MaxRetries:   maxRetries,
		RetryBackoff: time.Millisecond,
	}, src, b, logger.Nop(), domrepo.NopMetrics{})
	return m, b
}

func TestWarmUpPublishesOneEventPerCandle(t *testing.T) {
	src := &fakeSource{results: []fetchResult{{candles: candleRange(0, 5)}}}
	m, b := testMonitor(t, src, 3, 2, 0)

	var events int
	bus.Subscribe(b, func(models.MarketDataEvent) { events++ })

	if err := m.WarmUp(context.Background()); err != nil {
		t.Fatalf("warmup: %v", err)
	}
	if events != 5 {
		t.Fatalf("events = %d, want 5", events)
	}
	if m.Buffer().Len() != 5 {
		t.Fatalf("buffer len = %d, want 5", m.Buffer().Len())
	}
}

func TestWarmUpInsufficientHistoryIsFatal(t *testing.T) {
	src := &fakeSource{results: []fetchResult{{candles: candleRange(0, 2)}}}
	m, _ := testMonitor(t, src, 3, 2, 0)

	err := m.WarmUp(context.Background())
	var fatal *models.FatalStartupError
	if !errors.As(err, &fatal) {
		t.Fatalf("expected FatalStartupError, got %v", err)
	}
	if fatal.Stage != "warmup" {
		t.Fatalf("stage = %q", fatal.Stage)
	}
}

func TestWarmUpFetchErrorIsFatal(t *testing.T) {
	src := &fakeSource{results: []fetchResult{{err: fmt.Errorf("timeout")}}}
	m, _ := testMonitor(t, src, 3, 2, 0)

	err := m.WarmUp(context.Background())
	var fatal *models.FatalStartupError
	if !errors.As(err, &fatal) {
		t.Fatalf("expected FatalStartupError, got %v", err)
	}
}

func TestDuplicateCandleIsDropped(t *testing.T) {
	src := &fakeSource{results: []fetchResult{{candles: candleRange(0, 3)}}}
	m, b := testMonitor(t, src, 3, 0, 0)

	var events int
	bus.Subscribe(b, func(models.MarketDataEvent) { events++ })

	if err := m.WarmUp(context.Background()); err != nil {
		t.Fatalf("warmup: %v", err)
	}

	m.process(mkCandle(2)) // resend of the latest bar
	if events != 3 {
		t.Fatalf("duplicate was published, events = %d", events)
	}

	m.process(mkCandle(3))
	if events != 4 {
		t.Fatalf("new bar not published, events = %d", events)
	}
}

func TestPullRecoversWithinRetryBudget(t *testing.T) {
	src := &fakeSource{results: []fetchResult{
		{err: fmt.Errorf("conn reset")},
		{err: fmt.Errorf("conn reset")},
		{err: fmt.Errorf("conn reset")},
		{candles: []models.Candle{mkCandle(0)}},
	}}
	m, b := testMonitor(t, src, 3, 0, 5)

	var events int
	bus.Subscribe(b, func(models.MarketDataEvent) { events++ })

	if err := m.pullClosedBar(context.Background()); err != nil {
		t.Fatalf("pull: %v", err)
	}
	if events != 1 {
		t.Fatalf("events = %d, want 1", events)
	}
	if m.failures != 0 {
		t.Fatalf("failure counter not reset: %d", m.failures)
	}
	if src.connectCalls != 3 {
		t.Fatalf("connect calls = %d, want 3", src.connectCalls)
	}
}

func TestFailureCounterResetsBetweenBars(t *testing.T) {
	// two bars each preceded by 3 failures; budget of 5 must never trip
	var results []fetchResult
	for bar := 0; bar < 2; bar++ {
		for i := 0; i < 3; i++ {
			results = append(results, fetchResult{err: fmt.Errorf("flaky")})
		}
		results = append(results, fetchResult{candles: []models.Candle{mkCandle(bar)}})
	}
	src := &fakeSource{results: results}
	m, _ := testMonitor(t, src, 3, 0, 5)

	for bar := 0; bar < 2; bar++ {
		if err := m.pullClosedBar(context.Background()); err != nil {
			t.Fatalf("bar %d: %v", bar, err)
		}
	}
}

func TestRetryBudgetExhaustedTerminates(t *testing.T) {
	src := &fakeSource{results: []fetchResult{
		{err: fmt.Errorf("down")},
		{err: fmt.Errorf("down")},
		{err: fmt.Errorf("down")},
	}}
	m, _ := testMonitor(t, src, 3, 0, 2)

	err := m.pullClosedBar(context.Background())
	var src2 *models.TransientSourceError
	if !errors.As(err, &src2) {
		t.Fatalf("expected TransientSourceError, got %v", err)
	}
	if src.fetchCalls != 3 {
		t.Fatalf("fetch calls = %d, want 3 (budget 2 means third failure terminates)", src.fetchCalls)
	}
}

func TestRunInvokesFatalHandlerOnExhaustedBudget(t *testing.T) {
	src := &fakeSource{results: []fetchResult{{err: fmt.Errorf("down")}}}
	b := bus.New(logger.Nop())

	fatalCh := make(chan error, 1)
	m := New(Config{
		Symbol:       "BTCUSDT",
		Timeframe:    domrepo.TFM5,
		Lookback:     3,
		Settle:       time.Millisecond,
		MaxRetries:   0,
		RetryBackoff: time.Millisecond,
	}, src, b, logger.Nop(), domrepo.NopMetrics{},
		WithClock(frozenClock{at: time.Date(2026, 1, 1, 0, 4, 59, 0, time.UTC)}),
		WithFatalHandler(func(err error) { fatalCh <- err }),
	)

	go m.Run(context.Background())

	select {
	case err := <-fatalCh:
		var src2 *models.TransientSourceError
		if !errors.As(err, &src2) {
			t.Fatalf("unexpected fatal error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("fatal handler not invoked")
	}

	select {
	case <-m.Done():
	case <-time.After(time.Second):
		t.Fatalf("monitor did not terminate")
	}
	if m.State() != StateStopped {
		t.Fatalf("state = %s, want STOPPED", m.State())
	}
}

// frozenClock pins the boundary one second ahead of real time so Run's
// first sleep is short.
type frozenClock struct{ at time.Time }

func (c frozenClock) Now() time.Time { return c.at }

func TestStopWakesSleepingMonitor(t *testing.T) {
	src := &fakeSource{}
	b := bus.New(logger.Nop())
	m := New(Config{
		Symbol:     "BTCUSDT",
		Timeframe:  domrepo.TFH1,
		Lookback:   3,
		MaxRetries: 1,
	}, src, b, logger.Nop(), domrepo.NopMetrics{})

	go m.Run(context.Background())
	time.Sleep(10 * time.Millisecond)

	m.Stop()
	m.Stop() // idempotent

	select {
	case <-m.Done():
	case <-time.After(time.Second):
		t.Fatalf("monitor did not stop")
	}
	if m.State() != StateStopped {
		t.Fatalf("state = %s, want STOPPED", m.State())
	}
}
