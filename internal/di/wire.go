//go:build wireinject
// +build wireinject

package di

import (
	"GreyPulse/pkg/config"
	"GreyPulse/pkg/server"

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
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideCache,

		// Repositories
		ProvideReadingStore,
		ProvideBroadcaster,

		// Source clients and reliability
		ProvideSources,
		ProvideReliabilityTracker,

		// Analytics
		ProvideAggregator,
		ProvideEnricher,
		ProvideDetector,
		ProvideBaselineCalc,
		ProvideAlertEvaluator,

		// Engine
		ProvideCycleRunner,
		ProvideScheduler,
		ProvideControlHandler,
		ProvideTrackingHandler,

		// Application
		ProvideApp,
	)
	return &server.App{}, nil
}
