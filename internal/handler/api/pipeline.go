package api

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/evandro-godoy/wtnps-finadv/internal/controller"
	"github.com/evandro-godoy/wtnps-finadv/internal/domain/models"
	domrepo "github.com/evandro-godoy/wtnps-finadv/internal/domain/repository"
	"github.com/evandro-godoy/wtnps-finadv/internal/service/cache"
	xhttp "github.com/evandro-godoy/wtnps-finadv/pkg/http"
	xlogger "github.com/evandro-godoy/wtnps-finadv/pkg/logger"
)

// PipelineHandler exposes the pipeline over HTTP: readiness, per-symbol
// status, buffer snapshots, and the decision audit trail.
type PipelineHandler struct {
	logger   *xlogger.Logger
	ctl      *controller.Controller
	store    domrepo.DecisionStore
	cache    cache.BytesCache
	cacheTTL time.Duration
}

func NewPipelineHandler(logger *xlogger.Logger, ctl *controller.Controller,
	store domrepo.DecisionStore, c cache.BytesCache) *PipelineHandler {
	return &PipelineHandler{
		logger:   logger,
		ctl:      ctl,
		store:    store,
		cache:    c,
		cacheTTL: 5 * time.Second,
	}
}

func (h *PipelineHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/ready", h.Ready)
	g.GET("/status", h.Status)
	g.GET("/candles", h.Candles)
	g.GET("/decisions/latest", h.Decisions)
}

// Ready reports readiness: 200 once all monitors are warmed up and
// running, 503 while initialization is in flight or has failed.
func (h *PipelineHandler) Ready(c echo.Context) error {
	if h.ctl.IsReady() {
		return xhttp.SuccessResponse(c, map[string]any{"ready": true})
	}
	body := map[string]any{"ready": false}
	if err := h.ctl.Err(); err != nil {
		body["error"] = err.Error()
	}
	return xhttp.UnavailableResponse(c, body)
}

type symbolStatus struct {
	Symbol    string  `json:"symbol"`
	State     string  `json:"state"`
	BufferLen int     `json:"buffer_len"`
	BufferCap int     `json:"buffer_cap"`
	WindowLen int     `json:"window_len"`
	LastOpen  string  `json:"last_open,omitempty"`
	LastClose float64 `json:"last_close,omitempty"`
}

// Status reports per-symbol monitor state and buffer fill.
func (h *PipelineHandler) Status(c echo.Context) error {
	req := &models.StatusRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	symbols := h.ctl.Symbols()
	if req.Symbol != "" {
		symbols = []string{req.Symbol}
	}

	out := make([]symbolStatus, 0, len(symbols))
	for _, sym := range symbols {
		res, ok := h.ctl.Asset(sym)
		if !ok {
			return xhttp.NotFoundResponse(c, fmt.Sprintf("unknown symbol: %s", sym))
		}
		st := symbolStatus{
			Symbol:    sym,
			State:     res.Monitor.State().String(),
			BufferLen: res.Monitor.Buffer().Len(),
			BufferCap: res.Monitor.Buffer().Capacity(),
			WindowLen: res.Adapter.WindowLen(),
		}
		if last, ok := h.ctl.LastCandle(sym); ok {
			st.LastOpen = last.OpenTime.Format(time.RFC3339)
			st.LastClose = last.Close
		}
		out = append(out, st)
	}
	return xhttp.ListResponse(c, out, int64(len(out)))
}

// Candles returns the most recent buffered candles for a symbol.
func (h *PipelineHandler) Candles(c echo.Context) error {
	req := &models.CandlesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, ok := h.ctl.Asset(req.Symbol)
	if !ok {
		return xhttp.NotFoundResponse(c, fmt.Sprintf("unknown symbol: %s", req.Symbol))
	}
	candles := res.Monitor.Buffer().Snapshot()
	if len(candles) > req.N {
		candles = candles[len(candles)-req.N:]
	}
	return xhttp.ListResponse(c, candles, int64(len(candles)))
}

// Decisions returns the latest audited decisions for a symbol, cached for
// a few seconds to shield ClickHouse from dashboard polling.
func (h *PipelineHandler) Decisions(c echo.Context) error {
	req := &models.DecisionsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.store == nil {
		return xhttp.UnavailableResponse(c, "decision audit store is not configured")
	}

	key := fmt.Sprintf("decisions:%s:%d", req.Symbol, req.N)
	if h.cache != nil {
		if b, ok, err := h.cache.GetBytes(key); err == nil && ok {
			var cached []models.FinalDecisionEvent
			if json.Unmarshal(b, &cached) == nil {
				return xhttp.ListResponse(c, cached, int64(len(cached)))
			}
		}
	}

	rows, err := h.store.Latest(c.Request().Context(), req.Symbol, req.N)
	if err != nil {
		h.logger.Error("latest decisions query error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalErrorf("query decisions: %v", err))
	}

	if h.cache != nil {
		if b, err := json.Marshal(rows); err == nil {
			_ = h.cache.SetBytes(key, b, h.cacheTTL)
		}
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}
