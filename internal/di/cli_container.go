package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/coastguard/svm-spam-filter/internal/adapters/filter"
	"github.com/coastguard/svm-spam-filter/internal/config"
	"github.com/coastguard/svm-spam-filter/internal/core"
	"github.com/coastguard/svm-spam-filter/internal/factory"
	"github.com/coastguard/svm-spam-filter/internal/logging"
	"github.com/coastguard/svm-spam-filter/internal/metrics"
)

// CLIFlags contains the global flags of the CLI application
type CLIFlags struct {
	ConfigFile     string
	VectorizerPath string
	ModelPath      string
	NoHistory      bool
	Verbose        bool
	JSONLog        bool
}

// BuildCLIContainer creates and configures a dependency injection container for the CLI application
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		cfg, err := config.NewWithFile(flags.ConfigFile)
		if err != nil {
			return nil, err
		}
		if used := cfg.GetViper().ConfigFileUsed(); used != "" {
			logger.Info("Loaded configuration from file", zap.String("file", used))
		}
		applyFlags(cfg, flags)
		return cfg, nil
	}); err != nil {
		return nil, err
	}

	if err := provideCore(container); err != nil {
		return nil, err
	}

	// The CLI is short-lived; nothing scrapes its metrics
	if err := container.Provide(func() core.PredictionObserver { return metrics.Nop{} }); err != nil {
		return nil, err
	}

	// Register CLI filter
	if err := container.Provide(factory.NewFilterFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.FilterFactory) *filter.CliFilter {
		return f.CreateCliFilter()
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// applyFlags overrides configuration with explicitly given command line flags
func applyFlags(cfg *config.Config, flags *CLIFlags) {
	v := cfg.GetViper()
	if flags.VectorizerPath != "" || flags.ModelPath != "" {
		v.Set("artifacts.source", "file")
	}
	if flags.VectorizerPath != "" {
		v.Set("artifacts.vectorizer_path", flags.VectorizerPath)
	}
	if flags.ModelPath != "" {
		v.Set("artifacts.model_path", flags.ModelPath)
	}
	if flags.NoHistory {
		v.Set("history.enabled", false)
	}
	v.Set("filter.verbose", flags.Verbose)
}
