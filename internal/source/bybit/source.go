package bybit

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/evandro-godoy/wtnps-finadv/internal/domain/models"
	domrepo "github.com/evandro-godoy/wtnps-finadv/internal/domain/repository"
	pkghttp "github.com/evandro-godoy/wtnps-finadv/pkg/http"
	"github.com/evandro-godoy/wtnps-finadv/pkg/logger"
)

const defaultBaseURL = "https://api.bybit.com"

// intervals maps internal timeframes to Bybit v5 interval strings.
var intervals = map[domrepo.Timeframe]string{
	domrepo.TFM1:  "1",
	domrepo.TFM5:  "5",
	domrepo.TFM15: "15",
	domrepo.TFM30: "30",
	domrepo.TFH1:  "60",
}

// Source is a pull-only CandleSource backed by the Bybit v5 kline endpoint.
// The API is sessionless, so Connect just probes reachability.
type Source struct {
	baseURL   string
	category  string
	http      *pkghttp.Client
	log       *logger.Logger
	connected atomic.Bool
}

// Config holds Bybit source settings.
type Config struct {
	BaseURL     string
	Category    string // "spot" or "linear"
	HTTPTimeout time.Duration
}

// New creates a Bybit source.
func New(cfg Config, log *logger.Logger) *Source {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Category == "" {
		cfg.Category = "spot"
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}
	return &Source{
		baseURL:  cfg.BaseURL,
		category: cfg.Category,
		http:     pkghttp.NewClient(pkghttp.WithTimeout(cfg.HTTPTimeout)),
		log:      log,
	}
}

// Connect probes the server time endpoint.
func (s *Source) Connect(ctx context.Context) error {
	var resp struct {
		RetCode int `json:"retCode"`
	}
	err := s.http.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method: pkghttp.MethodGet,
		URL:    s.baseURL + "/v5/market/time",
	}, &resp)
	if err != nil {
		s.connected.Store(false)
		return fmt.Errorf("bybit probe: %w", err)
	}
	s.connected.Store(true)
	return nil
}

func (s *Source) IsConnected() bool { return s.connected.Load() }

func (s *Source) Close() error {
	s.connected.Store(false)
	return nil
}

type klineResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		List [][]string `json:"list"` // newest first
	} `json:"result"`
}

// FetchLatest returns up to count most recent closed candles, oldest first.
func (s *Source) FetchLatest(ctx context.Context, symbol string, tf domrepo.Timeframe, count int) ([]models.Candle, error) {
	if count <= 0 {
		return nil, nil
	}
	interval, ok := intervals[tf]
	if !ok {
		return nil, fmt.Errorf("unsupported timeframe: %s", tf)
	}

	var resp klineResponse
	err := s.http.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method: pkghttp.MethodGet,
		URL:    s.baseURL + "/v5/market/kline",
		QueryParams: map[string][]string{
			"category": {s.category},
			"symbol":   {symbol},
			"interval": {interval},
			"limit":    {strconv.Itoa(count + 1)},
		},
	}, &resp)
	if err != nil {
		s.connected.Store(false)
		return nil, fmt.Errorf("bybit kline %s/%s: %w", symbol, interval, err)
	}
	if resp.RetCode != 0 {
		return nil, fmt.Errorf("bybit kline %s/%s: retCode %d: %s", symbol, interval, resp.RetCode, resp.RetMsg)
	}
	s.connected.Store(true)

	now := time.Now().UTC()
	out := make([]models.Candle, 0, len(resp.Result.List))
	// list arrives newest first; walk backwards to emit oldest first
	for i := len(resp.Result.List) - 1; i >= 0; i-- {
		c, err := parseRow(symbol, tf, resp.Result.List[i])
		if err != nil {
			return nil, fmt.Errorf("bybit kline %s/%s: %w", symbol, interval, err)
		}
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

// parseRow decodes one kline row: [startTime, open, high, low, close, volume, turnover].
func parseRow(symbol string, tf domrepo.Timeframe, row []string) (models.Candle, error) {
	if len(row) < 6 {
		return models.Candle{}, fmt.Errorf("short kline row: %d fields", len(row))
	}
	startMs, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return models.Candle{}, fmt.Errorf("parse start time: %w", err)
	}
	var nums [5]float64
	for i := 1; i <= 5; i++ {
		v, err := strconv.ParseFloat(row[i], 64)
		if err != nil {
			return models.Candle{}, fmt.Errorf("parse kline field: %w", err)
		}
		nums[i-1] = v
	}
	return models.Candle{
		Symbol:    symbol,
		Timeframe: string(tf),
		OpenTime:  time.UnixMilli(startMs).UTC(),
		Open:      nums[0],
		High:      nums[1],
		Low:       nums[2],
		Close:     nums[3],
		Volume:    nums[4],
	}, nil
}

var _ domrepo.CandleSource = (*Source)(nil)
