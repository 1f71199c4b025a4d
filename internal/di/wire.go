//go:build wireinject
// +build wireinject

package di

import (
	"HistFill/pkg/config"
	"HistFill/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideRedisCache,
		ProvideCacheService,
		ProvideQueue,
		ProvideEvents,
		ProvideArchive,
		ProvideMarketData,

		// Repositories
		ProvideTickerStore,
		ProvideFailedRegistry,
		ProvideJobStore,

		// Use cases
		ProvideCoverageChecker,
		ProvideFillWorker,
		ProvideJobManager,
		ProvideOrchestrator,
		ProvideJobRunner,

		// HTTP
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
