package binance

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/evandro-godoy/wtnps-finadv/internal/domain/models"
	domrepo "github.com/evandro-godoy/wtnps-finadv/internal/domain/repository"
	pkghttp "github.com/evandro-godoy/wtnps-finadv/pkg/http"
	"github.com/evandro-godoy/wtnps-finadv/pkg/logger"
)

const (
	defaultRESTBaseURL = "https://api.binance.com"
	defaultWSBaseURL   = "wss://stream.binance.com:9443"
)

// intervals maps internal timeframes to Binance kline interval strings.
var intervals = map[domrepo.Timeframe]string{
	domrepo.TFM1:  "1m",
	domrepo.TFM5:  "5m",
	domrepo.TFM15: "15m",
	domrepo.TFM30: "30m",
	domrepo.TFH1:  "1h",
}

// Source is a CandleSource backed by Binance spot market data. Closed bars
// arrive on a kline websocket stream and are cached; FetchLatest serves
// from the cache when it covers the request and falls back to the REST
// kline endpoint otherwise (bulk history, cache misses after reconnect).
type Source struct {
	cfg    Config
	http   *pkghttp.Client
	stream *Stream
	log    *logger.Logger

	mu        sync.RWMutex
	cache     map[cacheKey][]models.Candle
	connected bool
}

// Config holds Binance source settings.
type Config struct {
	RESTBaseURL  string
	WSBaseURL    string
	Symbols      []string
	Timeframe    domrepo.Timeframe
	CacheDepth   int
	HTTPTimeout  time.Duration
	PingInterval time.Duration
}

type cacheKey struct {
	symbol string
	tf     domrepo.Timeframe
}

// New creates a Binance source for the configured symbols.
func New(cfg Config, log *logger.Logger) *Source {
	if cfg.RESTBaseURL == "" {
		cfg.RESTBaseURL = defaultRESTBaseURL
	}
	if cfg.WSBaseURL == "" {
		cfg.WSBaseURL = defaultWSBaseURL
	}
	if cfg.CacheDepth <= 0 {
		cfg.CacheDepth = 16
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	s := &Source{
		cfg:   cfg,
		http:  pkghttp.NewClient(pkghttp.WithTimeout(cfg.HTTPTimeout)),
		log:   log,
		cache: make(map[cacheKey][]models.Candle),
	}
	s.stream = NewStream(cfg.WSBaseURL, cfg.Symbols, cfg.Timeframe, cfg.PingInterval, log, s.onClosedBar)
	return s
}

// Connect dials the kline stream. REST access needs no session, so a
// stream failure here is returned but the source stays usable for pulls.
func (s *Source) Connect(ctx context.Context) error {
	err := s.stream.Connect(ctx)
	s.mu.Lock()
	s.connected = err == nil
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("binance stream: %w", err)
	}
	return nil
}

// IsConnected reports stream connectivity.
func (s *Source) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// Close shuts down the stream.
func (s *Source) Close() error {
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
	return s.stream.Close()
}

// FetchLatest returns up to count most recent closed candles, oldest first.
func (s *Source) FetchLatest(ctx context.Context, symbol string, tf domrepo.Timeframe, count int) ([]models.Candle, error) {
	if count <= 0 {
		return nil, nil
	}
	if cached, ok := s.fromCache(symbol, tf, count); ok {
		return cached, nil
	}
	candles, err := s.fetchREST(ctx, symbol, tf, count)
	if err != nil {
		return nil, err
	}
	s.storeCache(symbol, tf, candles)
	return candles, nil
}

// onClosedBar is the stream callback for each closed kline.
func (s *Source) onClosedBar(c models.Candle, tf domrepo.Timeframe) {
	s.storeCache(c.Symbol, tf, []models.Candle{c})
}

func (s *Source) fromCache(symbol string, tf domrepo.Timeframe, count int) ([]models.Candle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	candles := s.cache[cacheKey{symbol, tf}]
	if len(candles) < count {
		return nil, false
	}
	// cache must be current: its newest bar has to cover the last closed
	// boundary, otherwise fall back to REST
	lastClosed := time.Now().UTC().Truncate(tf.Duration()).Add(-tf.Duration())
	if candles[len(candles)-1].OpenTime.Before(lastClosed) {
		return nil, false
	}
	out := make([]models.Candle, count)
	copy(out, candles[len(candles)-count:])
	return out, true
}

func (s *Source) storeCache(symbol string, tf domrepo.Timeframe, candles []models.Candle) {
	if len(candles) == 0 {
		return
	}
	key := cacheKey{symbol, tf}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.cache[key]
	for _, c := range candles {
		if n := len(cur); n > 0 && !c.OpenTime.After(cur[n-1].OpenTime) {
			continue
		}
		cur = append(cur, c)
	}
	if len(cur) > s.cfg.CacheDepth {
		cur = cur[len(cur)-s.cfg.CacheDepth:]
	}
	s.cache[key] = cur
}

// fetchREST pulls klines from GET /api/v3/klines. The exchange returns the
// in-progress bar last; it is dropped so callers only ever see closed bars.
func (s *Source) fetchREST(ctx context.Context, symbol string, tf domrepo.Timeframe, count int) ([]models.Candle, error) {
	interval, ok := intervals[tf]
	if !ok {
		return nil, fmt.Errorf("unsupported timeframe: %s", tf)
	}

	// request one extra so dropping the open bar still satisfies count
	var raw [][]any
	err := s.http.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method: pkghttp.MethodGet,
		URL:    s.cfg.RESTBaseURL + "/api/v3/klines",
		QueryParams: map[string][]string{
			"symbol":   {symbol},
			"interval": {interval},
			"limit":    {strconv.Itoa(count + 1)},
		},
	}, &raw)
	if err != nil {
		return nil, fmt.Errorf("binance klines %s/%s: %w", symbol, interval, err)
	}

	now := time.Now().UTC()
	out := make([]models.Candle, 0, len(raw))
	for _, k := range raw {
		c, err := parseKline(symbol, k)
		if err != nil {
			return nil, fmt.Errorf("binance klines %s/%s: %w", symbol, interval, err)
		}
		c.Timeframe = string(tf)
		if c.OpenTime.Add(tf.Duration()).After(now) {
			continue // still open
		}
		out = append(out, c)
	}
	if len(out) > count {
		out = out[len(out)-count:]
	}
	return out, nil
}

// parseKline decodes one REST kline row:
// [openTime, open, high, low, close, volume, closeTime, ...].
func parseKline(symbol string, k []any) (models.Candle, error) {
	if len(k) < 7 {
		return models.Candle{}, fmt.Errorf("short kline row: %d fields", len(k))
	}
	openMs, ok := k[0].(float64)
	if !ok {
		return models.Candle{}, fmt.Errorf("bad open time %v", k[0])
	}
	nums := make([]float64, 5)
	for i := 1; i <= 5; i++ {
		str, ok := k[i].(string)
		if !ok {
			return models.Candle{}, fmt.Errorf("bad kline field %v", k[i])
		}
		v, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return models.Candle{}, fmt.Errorf("parse kline field: %w", err)
		}
		nums[i-1] = v
	}
	return models.Candle{
		Symbol:   symbol,
		OpenTime: time.UnixMilli(int64(openMs)).UTC(),
		Open:     nums[0],
		High:     nums[1],
		Low:      nums[2],
		Close:    nums[3],
		Volume:   nums[4],
	}, nil
}

var _ domrepo.CandleSource = (*Source)(nil)
