package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/evandro-godoy/wtnps-finadv/internal/controller"
	"github.com/evandro-godoy/wtnps-finadv/internal/forward"
	pkgch "github.com/evandro-godoy/wtnps-finadv/pkg/clickhouse"
	"github.com/evandro-godoy/wtnps-finadv/pkg/config"
	xhttp "github.com/evandro-godoy/wtnps-finadv/pkg/http"
	applogger "github.com/evandro-godoy/wtnps-finadv/pkg/logger"
)

// App encapsulates the application lifecycle: background pipeline startup,
// the HTTP surface, the decision forwarder, and coordinated shutdown.
//
// Startup is fail-fast: if pipeline initialization ends with an error, Run
// returns it and the caller exits non-zero. Once running, asset-level
// failures degrade that asset only.
type App struct {
	cfg       *config.Config
	log       *applogger.Logger
	ctl       *controller.Controller
	specs     []controller.AssetSpec
	forwarder *forward.Forwarder
	chClient  *pkgch.Client

	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
}

// New creates an App with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	ctl *controller.Controller,
	specs []controller.AssetSpec,
	forwarder *forward.Forwarder,
	chClient *pkgch.Client,
	httpHandler xhttp.Handler,
) *App {
	return &App{
		cfg:         cfg,
		log:         log,
		ctl:         ctl,
		specs:       specs,
		forwarder:   forwarder,
		chClient:    chClient,
		httpHandler: httpHandler,
	}
}

// Run starts the application and blocks until interrupted. A startup
// failure returns the error instead of blocking.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.log, a.httpHandler,
		xhttp.WithHost(a.cfg.Server.Host),
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(a.cfg.Server.CORS),
	)
	if err := a.httpServer.Start(); err != nil {
		return err
	}

	a.forwarder.Start(ctx)
	a.ctl.Start(ctx, a.specs)
	a.log.Info("pipeline starting",
		applogger.Int("assets", len(a.specs)),
		applogger.String("timeframe", a.cfg.Pipeline.Timeframe),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-a.ctl.InitDone():
		if err := a.ctl.Err(); err != nil {
			a.shutdown(ctx)
			return err
		}
	case sig := <-sigCh:
		a.log.Info("shutdown signal received during startup", applogger.String("signal", sig.String()))
		a.shutdown(ctx)
		return nil
	}

	sig := <-sigCh
	a.log.Info("shutdown signal received", applogger.String("signal", sig.String()))
	a.shutdown(ctx)
	return nil
}

// shutdown stops all services in dependency order: monitors first so no
// new decisions are produced, then the forwarder so queued decisions
// flush, then the outer surfaces.
func (a *App) shutdown(ctx context.Context) {
	a.ctl.Stop()
	a.forwarder.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
}
