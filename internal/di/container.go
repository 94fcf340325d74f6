package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/coastguard/svm-spam-filter/internal/adapters/api"
	"github.com/coastguard/svm-spam-filter/internal/adapters/sklearn"
	"github.com/coastguard/svm-spam-filter/internal/config"
	"github.com/coastguard/svm-spam-filter/internal/core"
	"github.com/coastguard/svm-spam-filter/internal/factory"
	"github.com/coastguard/svm-spam-filter/internal/logging"
	"github.com/coastguard/svm-spam-filter/internal/metrics"
	"github.com/coastguard/svm-spam-filter/internal/ports"
)

// BuildContainer creates and configures the daemon's dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	if err := provideCore(container); err != nil {
		return nil, err
	}

	// Register metrics; nil when disabled
	if err := container.Provide(func(cfg *config.Config) *metrics.Metrics {
		if !cfg.GetMetrics().Enabled {
			return nil
		}
		return metrics.New()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(m *metrics.Metrics) core.PredictionObserver {
		if m == nil {
			return metrics.Nop{}
		}
		return m
	}); err != nil {
		return nil, err
	}

	// Register outer surfaces
	if err := container.Provide(factory.NewFilterFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewServerFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.FilterFactory) (ports.EmailFilter, error) {
		return f.CreateEmailFilter()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.ServerFactory) (*api.Server, error) {
		return f.CreateServer()
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// provideCore registers the artifacts, engine, history store and service.
// It expects *config.Config and *zap.Logger to be provided already.
func provideCore(container *dig.Container) error {
	// Register factories
	if err := container.Provide(factory.NewEngineFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewHistoryFactory); err != nil {
		return err
	}

	// Register artifacts and engine
	if err := container.Provide(func(f *factory.EngineFactory) (*sklearn.Artifacts, error) {
		return f.CreateArtifacts()
	}); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.EngineFactory, a *sklearn.Artifacts) (*core.PredictionEngine, error) {
		return f.CreateEngine(a)
	}); err != nil {
		return err
	}

	// Register history repository
	if err := container.Provide(func(f *factory.HistoryFactory) (core.HistoryRepository, error) {
		return f.CreateHistoryRepository()
	}); err != nil {
		return err
	}

	// Register service options
	if err := container.Provide(func(
		f *factory.HistoryFactory,
		repo core.HistoryRepository,
		a *sklearn.Artifacts,
	) (core.ServiceOptions, error) {
		return f.ServiceOptions(repo, a.Model.Info())
	}); err != nil {
		return err
	}

	// Register spam filter service
	return container.Provide(core.NewSpamFilterService)
}

// StopHistory stops background tasks and closes the history store if it has any
func StopHistory(repo core.HistoryRepository, logger *zap.Logger) {
	if stopper, ok := repo.(ports.Stopper); ok {
		stopper.Stop()
		logger.Debug("History store stopped")
	}
}
