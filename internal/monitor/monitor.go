package monitor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/evandro-godoy/wtnps-finadv/internal/bus"
	"github.com/evandro-godoy/wtnps-finadv/internal/domain/models"
	domrepo "github.com/evandro-godoy/wtnps-finadv/internal/domain/repository"
	"github.com/evandro-godoy/wtnps-finadv/pkg/logger"
)

// State is the monitor lifecycle state.
type State int32

const (
	StateUninitialized State = iota
	StateWarmingUp
	StateRunning
	StateReconnecting
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "UNINITIALIZED"
	case StateWarmingUp:
		return "WARMING_UP"
	case StateRunning:
		return "RUNNING"
	case StateReconnecting:
		return "RECONNECTING"
	case StateStopping:
		return "STOPPING"
	case StateStopped:
		return "STOPPED"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Config holds per-symbol monitor settings.
type Config struct {
	Symbol       string
	Timeframe    domrepo.Timeframe
	Lookback     int           // candles required before inference can start
	Margin       int           // extra buffer headroom beyond lookback
	Settle       time.Duration // delay after bar close before pulling
	MaxRetries   int           // consecutive pull failures tolerated
	RetryBackoff time.Duration // pause between reconnect attempts
}

// Monitor keeps the candle buffer of one (symbol, timeframe) live: it wakes
// at each bar-close boundary, pulls the newly closed bar, and publishes
// exactly one MarketDataEvent per bar. Startup is fail-fast; steady-state
// pull failures are retried with reconnect up to a budget, after which this
// monitor terminates without affecting other symbols.
type Monitor struct {
	cfg     Config
	source  domrepo.CandleSource
	bus     *bus.Bus
	log     *logger.Logger
	metrics domrepo.Metrics
	clock   domrepo.Clock

	buf      *CandleBuffer
	onFatal  func(error)
	state    atomic.Int32
	seq      uint64
	lastOpen time.Time
	failures int

	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithClock overrides the wall clock.
func WithClock(c domrepo.Clock) Option {
	return func(m *Monitor) { m.clock = c }
}

// WithFatalHandler installs a callback invoked when the monitor terminates
// on an exhausted retry budget.
func WithFatalHandler(fn func(error)) Option {
	return func(m *Monitor) { m.onFatal = fn }
}

// New creates a monitor. The buffer capacity is lookback + margin.
func New(cfg Config, source domrepo.CandleSource, b *bus.Bus, log *logger.Logger, metrics domrepo.Metrics, opts ...Option) *Monitor {
	if cfg.Margin < 0 {
		cfg.Margin = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}
	m := &Monitor{
		cfg:     cfg,
		source:  source,
		bus:     b,
		log:     log,
		metrics: metrics,
		clock:   domrepo.SystemClock{},
		buf:     NewCandleBuffer(cfg.Lookback + cfg.Margin),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Buffer exposes the candle buffer for read-only snapshots.
func (m *Monitor) Buffer() *CandleBuffer { return m.buf }

// State returns the current lifecycle state.
func (m *Monitor) State() State { return State(m.state.Load()) }

// Done is closed when the run loop has exited.
func (m *Monitor) Done() <-chan struct{} { return m.done }

// WarmUp performs the bulk historical fetch and publishes one
// MarketDataEvent per warm-up candle. Returning fewer candles than the
// required lookback is a fatal startup condition: the pipeline never
// operates on insufficient data.
func (m *Monitor) WarmUp(ctx context.Context) error {
	m.state.Store(int32(StateWarmingUp))
	candles, err := m.source.FetchLatest(ctx, m.cfg.Symbol, m.cfg.Timeframe, m.buf.Capacity())
	if err != nil {
		return &models.FatalStartupError{Stage: "warmup", Err: err}
	}
	if len(candles) < m.cfg.Lookback {
		return &models.FatalStartupError{
			Stage: "warmup",
			Err:   fmt.Errorf("symbol %s: got %d candles, lookback requires %d", m.cfg.Symbol, len(candles), m.cfg.Lookback),
		}
	}
	for _, c := range candles {
		m.ingest(c)
	}
	m.log.Info("warm-up complete",
		logger.String("symbol", m.cfg.Symbol),
		logger.String("timeframe", string(m.cfg.Timeframe)),
		logger.Int("candles", m.buf.Len()),
	)
	return nil
}

// Run executes the steady-state loop until Stop is called, the context is
// canceled, or the retry budget is exhausted.
func (m *Monitor) Run(ctx context.Context) {
	defer close(m.done)
	defer m.state.Store(int32(StateStopped))
	m.state.Store(int32(StateRunning))

	for {
		boundary := m.cfg.Timeframe.NextClose(m.clock.Now()).Add(m.cfg.Settle)
		if !m.sleepUntil(ctx, boundary) {
			return
		}
		if err := m.pullClosedBar(ctx); err != nil {
			m.log.Error("monitor terminating: retry budget exhausted",
				logger.String("symbol", m.cfg.Symbol),
				logger.Error(err),
			)
			m.metrics.RecordError("monitor_fatal")
			if m.onFatal != nil {
				m.onFatal(err)
			}
			return
		}
		if m.stopped() {
			return
		}
	}
}

// Stop requests cooperative shutdown. Idempotent; wakes a sleeping monitor
// immediately, in-flight pulls are allowed to finish.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		m.state.Store(int32(StateStopping))
		close(m.stopCh)
	})
}

func (m *Monitor) stopped() bool {
	select {
	case <-m.stopCh:
		return true
	default:
		return false
	}
}

// sleepUntil blocks until the deadline; returns false if stopped first.
func (m *Monitor) sleepUntil(ctx context.Context, deadline time.Time) bool {
	d := deadline.Sub(m.clock.Now())
	if d <= 0 {
		return !m.stopped()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-m.stopCh:
		return false
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// pullClosedBar fetches the most recent closed bar, retrying with reconnect
// while the consecutive-failure budget allows. A non-nil return means the
// budget is exhausted and the monitor must terminate.
func (m *Monitor) pullClosedBar(ctx context.Context) error {
	for {
		candles, err := m.source.FetchLatest(ctx, m.cfg.Symbol, m.cfg.Timeframe, 1)
		if err == nil && len(candles) > 0 {
			m.failures = 0
			m.state.Store(int32(StateRunning))
			m.process(candles[len(candles)-1])
			return nil
		}
		if err == nil {
			err = fmt.Errorf("source returned no candles")
		}

		m.failures++
		m.metrics.RecordError("source_pull")
		src := &models.TransientSourceError{Symbol: m.cfg.Symbol, Err: err}
		if m.failures > m.cfg.MaxRetries {
			return src
		}
		m.log.Warn("pull failed, reconnecting",
			logger.String("symbol", m.cfg.Symbol),
			logger.Int("consecutive_failures", m.failures),
			logger.Int("max_retries", m.cfg.MaxRetries),
			logger.Error(err),
		)
		m.state.Store(int32(StateReconnecting))
		if cerr := m.source.Connect(ctx); cerr != nil {
			m.log.Warn("reconnect failed",
				logger.String("symbol", m.cfg.Symbol),
				logger.Error(cerr),
			)
		}
		if !m.sleepUntil(ctx, m.clock.Now().Add(m.cfg.RetryBackoff)) {
			return nil
		}
	}
}

// process deduplicates and ingests one candle, publishing the event for it.
func (m *Monitor) process(c models.Candle) {
	if !m.lastOpen.IsZero() && !c.OpenTime.After(m.lastOpen) {
		// resend or out-of-order bar
		m.log.Debug("duplicate candle rejected",
			logger.String("symbol", m.cfg.Symbol),
			logger.Time("open_time", c.OpenTime),
		)
		return
	}
	m.ingest(c)
}

func (m *Monitor) ingest(c models.Candle) {
	if !m.lastOpen.IsZero() && !c.OpenTime.After(m.lastOpen) {
		return
	}
	m.lastOpen = c.OpenTime
	m.buf.Append(c)
	m.seq++
	m.metrics.RecordCandle(m.cfg.Symbol, string(m.cfg.Timeframe))
	m.metrics.RecordBufferLen(m.cfg.Symbol, m.buf.Len())
	m.metrics.RecordLastClose(m.cfg.Symbol, c.Close)
	m.bus.Publish(models.MarketDataEvent{
		Seq:         m.seq,
		PublishedAt: m.clock.Now(),
		Candle:      c,
	})
}
