//go:build wireinject
// +build wireinject

package di

import (
	"CryptoArchive/internal/usecase"
	"CryptoArchive/pkg/config"
	"CryptoArchive/pkg/server"

	"github.com/google/wire"
)

var storageSet = wire.NewSet(
	ProvideArchive,
	ProvideRedis,
	ProvideCache,
	ProvideKafkaProducer,
	ProvidePublisher,
)

var jobSet = wire.NewSet(
	ProvidePriceSource,
	ProvideDirectIngestor,
	ProvideGrader,
	ProvideTargets,
	ProvideSnapshotJob,
	ProvideScheduler,
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,
		storageSet,
		jobSet,
		ProvideIngestor,
		ProvideHistory,
		ProvideMarket,
		ProvideQueue,
		ProvideKafkaConsumer,
		ProvideKafkaHandlers,
		ProvideHTTPHandler,
		ProvideHTTPServer,
		ProvideApp,
	)
	return nil, nil, nil
}

// InitializeScheduler wires only what the one-shot job runner needs. Tasks run inline.
func InitializeScheduler(cfg *config.Config) (*usecase.Scheduler, func(), error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,
		storageSet,
		jobSet,
	)
	return nil, nil, nil
}
