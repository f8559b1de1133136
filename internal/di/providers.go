package di

import (
	"context"
	"fmt"
	"time"

	"github.com/evandro-godoy/wtnps-finadv/internal/bus"
	"github.com/evandro-godoy/wtnps-finadv/internal/controller"
	"github.com/evandro-godoy/wtnps-finadv/internal/domain/models"
	domrepo "github.com/evandro-godoy/wtnps-finadv/internal/domain/repository"
	"github.com/evandro-godoy/wtnps-finadv/internal/forward"
	"github.com/evandro-godoy/wtnps-finadv/internal/handler/api"
	"github.com/evandro-godoy/wtnps-finadv/internal/predictor"
	internalrepo "github.com/evandro-godoy/wtnps-finadv/internal/repository"
	icache "github.com/evandro-godoy/wtnps-finadv/internal/service/cache"
	"github.com/evandro-godoy/wtnps-finadv/internal/source/binance"
	"github.com/evandro-godoy/wtnps-finadv/internal/source/bybit"
	pkgch "github.com/evandro-godoy/wtnps-finadv/pkg/clickhouse"
	"github.com/evandro-godoy/wtnps-finadv/pkg/config"
	xhttp "github.com/evandro-godoy/wtnps-finadv/pkg/http"
	pkgkafka "github.com/evandro-godoy/wtnps-finadv/pkg/kafka"
	applogger "github.com/evandro-godoy/wtnps-finadv/pkg/logger"
	"github.com/evandro-godoy/wtnps-finadv/pkg/metrics"
	"github.com/evandro-godoy/wtnps-finadv/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: "stdout",
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideBus creates the in-process event bus.
func ProvideBus(log *applogger.Logger) *bus.Bus {
	return bus.New(log)
}

// ProvideCandleSource creates the configured market-data source.
func ProvideCandleSource(cfg *config.Config, log *applogger.Logger) (domrepo.CandleSource, error) {
	symbols := make([]string, 0, len(cfg.Assets))
	for _, a := range cfg.Assets {
		if a.IsEnabled() {
			symbols = append(symbols, a.Symbol)
		}
	}

	switch cfg.Source.Type {
	case "binance":
		return binance.New(binance.Config{
			RESTBaseURL:  cfg.Source.RESTBaseURL,
			WSBaseURL:    cfg.Source.WSBaseURL,
			Symbols:      symbols,
			Timeframe:    domrepo.Timeframe(cfg.Pipeline.Timeframe),
			CacheDepth:   cfg.Source.CacheDepth,
			HTTPTimeout:  cfg.Source.HTTPTimeout,
			PingInterval: cfg.Source.PingInterval,
		}, log), nil
	case "bybit":
		return bybit.New(bybit.Config{
			BaseURL:     cfg.Source.RESTBaseURL,
			Category:    cfg.Source.Category,
			HTTPTimeout: cfg.Source.HTTPTimeout,
		}, log), nil
	default:
		return nil, fmt.Errorf("unknown source type: %s", cfg.Source.Type)
	}
}

// ProvideModelLoader resolves per-symbol inference artifacts from disk.
func ProvideModelLoader(cfg *config.Config) controller.ResourceLoader {
	return predictor.FileLoader{Dir: cfg.Pipeline.ModelDir}
}

// ProvideController creates the pipeline controller.
func ProvideController(
	source domrepo.CandleSource,
	loader controller.ResourceLoader,
	b *bus.Bus,
	log *applogger.Logger,
	m domrepo.Metrics,
) *controller.Controller {
	return controller.New(source, loader, b, log, m)
}

// ProvideAssetSpecs converts the config assets into runtime specs.
func ProvideAssetSpecs(cfg *config.Config) ([]controller.AssetSpec, error) {
	tf := domrepo.Timeframe(cfg.Pipeline.Timeframe)
	specs := make([]controller.AssetSpec, 0, len(cfg.Assets))
	for _, a := range cfg.Assets {
		if !a.IsEnabled() {
			continue
		}
		rules := make([]models.Rule, 0, len(a.Rules))
		for _, r := range a.Rules {
			cond, err := models.ParseSignalClass(r.Condition)
			if err != nil {
				return nil, fmt.Errorf("asset %s: %w", a.Symbol, err)
			}
			rules = append(rules, models.Rule{
				Condition: cond,
				Type:      r.Type,
				MAType:    r.MAType,
				Period:    r.Period,
				Level:     r.Level,
			})
		}
		specs = append(specs, controller.AssetSpec{
			Symbol:       a.Symbol,
			Timeframe:    tf,
			Strategy:     a.Strategy,
			Lookback:     cfg.Pipeline.Lookback,
			Margin:       cfg.Pipeline.Margin,
			Settle:       cfg.Pipeline.Settle,
			MaxRetries:   cfg.Pipeline.MaxRetries,
			RetryBackoff: cfg.Pipeline.RetryBackoff,
			Rules:        rules,
		})
	}
	return specs, nil
}

// ProvideClickHouseClient creates a ClickHouse client and ensures the audit
// schema. Returns nil when ClickHouse is not configured.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.DecisionSchema); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideDecisionStore creates the audit store, or nil when ClickHouse is
// not configured.
func ProvideDecisionStore(chClient *pkgch.Client, log *applogger.Logger) domrepo.DecisionStore {
	if chClient == nil {
		return nil
	}
	store := internalrepo.NewCHDecisionStore(chClient)
	store.SetLogger(log)
	return store
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is not
// configured.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithBatching(cfg.Kafka.BatchSize, cfg.Kafka.BatchTimeout),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideDecisionPublisher creates the decision publisher, or nil when
// Kafka is not configured.
func ProvideDecisionPublisher(producer *pkgkafka.Producer, cfg *config.Config) domrepo.DecisionPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaDecisionPublisher(producer, cfg.Kafka.Topic)
}

// ProvideBytesCache creates the response cache: Redis when configured, an
// in-process TTL map otherwise.
func ProvideBytesCache(cfg *config.Config) icache.BytesCache {
	if cfg.Redis.Enabled {
		return icache.NewRedisCache(icache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	return icache.NewTTLCache()
}

// ProvideForwarder creates the decision forwarder.
func ProvideForwarder(
	cfg *config.Config,
	publisher domrepo.DecisionPublisher,
	store domrepo.DecisionStore,
	b *bus.Bus,
	log *applogger.Logger,
	m domrepo.Metrics,
) *forward.Forwarder {
	return forward.New(forward.Config{
		QueueSize: cfg.Pipeline.QueueSize,
	}, publisher, store, b, log, m)
}

// ProvideHTTPHandler creates the pipeline HTTP handler.
func ProvideHTTPHandler(
	log *applogger.Logger,
	ctl *controller.Controller,
	store domrepo.DecisionStore,
	c icache.BytesCache,
) xhttp.Handler {
	return api.NewPipelineHandler(log, ctl, store, c)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	ctl *controller.Controller,
	specs []controller.AssetSpec,
	forwarder *forward.Forwarder,
	chClient *pkgch.Client,
	handler xhttp.Handler,
) *server.App {
	return server.New(cfg, log, ctl, specs, forwarder, chClient, handler)
}
