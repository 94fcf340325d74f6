package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/coastguard/svm-spam-filter/internal/adapters/api"
	"github.com/coastguard/svm-spam-filter/internal/config"
	"github.com/coastguard/svm-spam-filter/internal/core"
	"github.com/coastguard/svm-spam-filter/internal/di"
	"github.com/coastguard/svm-spam-filter/internal/ports"
	"go.uber.org/dig"
	"go.uber.org/zap"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", dig.RootCause(err))
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	cfg *config.Config,
	logger *zap.Logger,
	engine *core.PredictionEngine,
	server *api.Server,
	emailFilter ports.EmailFilter,
	historyRepo core.HistoryRepository,
) error {
	defer logger.Sync()
	defer di.StopHistory(historyRepo, logger)

	logger.Info("Spam filter starting", zap.Int("features", engine.Dimension()))

	serverCfg, err := cfg.GetServer()
	if err != nil {
		return err
	}
	filterCfg, err := cfg.GetFilter()
	if err != nil {
		return err
	}

	var started []ports.Server

	if serverCfg.Enabled {
		if err := server.Start(); err != nil {
			logger.Error("Failed to start HTTP API", zap.Error(err))
			return err
		}
		started = append(started, server)
	}

	if filterCfg.Enabled {
		if err := emailFilter.Start(); err != nil {
			logger.Error("Failed to start filter", zap.Error(err))
			stopAll(started, logger)
			return err
		}
		started = append(started, emailFilter)
	}

	if len(started) == 0 {
		return fmt.Errorf("nothing to run: both server.enabled and filter.enabled are false")
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")

	stopAll(started, logger)

	logger.Info("Shutdown complete")
	return nil
}

// stopAll stops servers in reverse start order
func stopAll(servers []ports.Server, logger *zap.Logger) {
	for i := len(servers) - 1; i >= 0; i-- {
		if err := servers[i].Stop(); err != nil {
			logger.Error("Failed to stop server", zap.Error(err))
		}
	}
}
