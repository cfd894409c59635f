//go:build wireinject
// +build wireinject

package di

import (
	"MarketPull/pkg/config"
	"MarketPull/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideCache,
		ProvidePublisher,

		// Storage tiers
		ProvideArchive,
		ProvideStore,

		// Crawl pipeline
		ProvideChains,
		ProvideOrchestrator,

		// HTTP surface
		ProvideHandler,

		ProvideApp,
	)
	return &server.App{}, nil
}
