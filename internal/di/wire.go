//go:build wireinject
// +build wireinject

package di

import (
	"github.com/evandro-godoy/wtnps-finadv/pkg/config"
	"github.com/evandro-godoy/wtnps-finadv/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,
		ProvideBus,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideBytesCache,

		// Repositories
		ProvideCandleSource,
		ProvideModelLoader,
		ProvideDecisionStore,
		ProvideDecisionPublisher,

		// Pipeline
		ProvideAssetSpecs,
		ProvideController,
		ProvideForwarder,

		// HTTP surface
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
