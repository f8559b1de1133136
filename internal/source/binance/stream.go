package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/evandro-godoy/wtnps-finadv/internal/domain/models"
	domrepo "github.com/evandro-godoy/wtnps-finadv/internal/domain/repository"
	"github.com/evandro-godoy/wtnps-finadv/pkg/logger"
)

// Stream reads the Binance combined kline websocket stream and invokes the
// callback once per closed bar. Frames for bars still in progress are
// dropped at the parse step.
type Stream struct {
	baseURL      string
	symbols      []string
	tf           domrepo.Timeframe
	pingInterval time.Duration
	log          *logger.Logger
	onClosed     func(models.Candle, domrepo.Timeframe)

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
}

// NewStream creates a stream for the symbols on one timeframe.
func NewStream(baseURL string, symbols []string, tf domrepo.Timeframe, pingInterval time.Duration,
	log *logger.Logger, onClosed func(models.Candle, domrepo.Timeframe)) *Stream {
	return &Stream{
		baseURL:      baseURL,
		symbols:      symbols,
		tf:           tf,
		pingInterval: pingInterval,
		log:          log,
		onClosed:     onClosed,
	}
}

// Connect dials the combined stream and starts the read and ping loops.
// Reconnecting closes any previous connection first.
func (s *Stream) Connect(ctx context.Context) error {
	interval, ok := intervals[s.tf]
	if !ok {
		return fmt.Errorf("unsupported timeframe: %s", s.tf)
	}

	streams := make([]string, 0, len(s.symbols))
	for _, sym := range s.symbols {
		streams = append(streams, strings.ToLower(sym)+"@kline_"+interval)
	}
	u := fmt.Sprintf("%s/stream?streams=%s", s.baseURL, strings.Join(streams, "/"))

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	if s.conn != nil {
		_ = s.conn.Close()
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	s.conn = conn
	s.cancel = cancel
	s.mu.Unlock()

	s.log.Info("kline stream connected",
		logger.Int("symbols", len(s.symbols)),
		logger.String("interval", interval),
	)

	go s.pingLoop(loopCtx, conn)
	go s.readLoop(loopCtx, conn)
	return nil
}

// Close terminates the loops and the connection.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.conn != nil {
		err := s.conn.Close()
		s.conn = nil
		return err
	}
	return nil
}

func (s *Stream) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = conn.WriteMessage(websocket.PingMessage, nil)
		}
	}
}

type wsKline struct {
	OpenTime int64  `json:"t"`
	Symbol   string `json:"s"`
	Interval string `json:"i"`
	Open     string `json:"o"`
	Close    string `json:"c"`
	High     string `json:"h"`
	Low      string `json:"l"`
	Volume   string `json:"v"`
	Closed   bool   `json:"x"`
}

type wsFrame struct {
	Stream string `json:"stream"`
	Data   struct {
		EventType string  `json:"e"`
		Kline     wsKline `json:"k"`
	} `json:"data"`
}

func (s *Stream) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		_, b, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				s.log.Warn("kline stream read failed", logger.Error(err))
			}
			return
		}
		var frame wsFrame
		if err := json.Unmarshal(b, &frame); err != nil {
			continue // ignore non-kline frames
		}
		if frame.Data.EventType != "kline" || !frame.Data.Kline.Closed {
			continue
		}
		c, err := parseWSKline(frame.Data.Kline, s.tf)
		if err != nil {
			s.log.Warn("kline frame dropped",
				logger.String("stream", frame.Stream),
				logger.Error(err),
			)
			continue
		}
		s.onClosed(c, s.tf)
	}
}

func parseWSKline(k wsKline, tf domrepo.Timeframe) (models.Candle, error) {
	fields := [5]string{k.Open, k.High, k.Low, k.Close, k.Volume}
	var nums [5]float64
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return models.Candle{}, fmt.Errorf("parse kline field: %w", err)
		}
		nums[i] = v
	}
	return models.Candle{
		Symbol:    k.Symbol,
		Timeframe: string(tf),
		OpenTime:  time.UnixMilli(k.OpenTime).UTC(),
		Open:      nums[0],
		High:      nums[1],
		Low:       nums[2],
		Close:     nums[3],
		Volume:    nums[4],
	}, nil
}
