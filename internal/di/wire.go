//go:build wireinject
// +build wireinject

package di

import (
	"MarketWatch/pkg/config"
	"MarketWatch/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// The returned cleanup closes infrastructure clients.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideCache,
		ProvideClickHouseClient,
		ProvideKafkaProducer,

		// Adapters
		ProvideMarketData,
		ProvideMarketStream,
		ProvideNotifier,
		ProvideCooldownStore,
		ProvideLevelsCache,
		ProvideSignalStore,
		ProvideSignalPublisher,

		// Domain
		ProvideRegistry,
		ProvideLevelFinder,

		// Use cases
		ProvideSignalRecorder,
		ProvideStreamIngestor,
		ProvideUniverseScanner,
		ProvideAlertDispatcher,
		ProvideAnalysisScheduler,
		ProvideHeadlineReporter,
		ProvideKafkaConsumer,
		ProvideMarketQuery,

		// Transport
		ProvideHTTPHandler,
		ProvideApp,
	)
	return nil, nil, nil
}
