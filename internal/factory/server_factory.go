package factory

import (
	"fmt"

	"github.com/coastguard/svm-spam-filter/internal/adapters/api"
	"github.com/coastguard/svm-spam-filter/internal/config"
	"github.com/coastguard/svm-spam-filter/internal/core"
	"github.com/coastguard/svm-spam-filter/internal/metrics"
	"go.uber.org/zap"
)

// ServerFactory creates the HTTP API server
type ServerFactory struct {
	cfg     *config.Config
	logger  *zap.Logger
	service *core.SpamFilterService
	metrics *metrics.Metrics
}

// NewServerFactory creates a new server factory; m may be nil when metrics are disabled
func NewServerFactory(cfg *config.Config, logger *zap.Logger, service *core.SpamFilterService, m *metrics.Metrics) *ServerFactory {
	return &ServerFactory{
		cfg:     cfg,
		logger:  logger,
		service: service,
		metrics: m,
	}
}

// CreateServer creates the HTTP API server
func (f *ServerFactory) CreateServer() (*api.Server, error) {
	serverCfg, err := f.cfg.GetServer()
	if err != nil {
		return nil, fmt.Errorf("invalid server configuration: %w", err)
	}

	return api.NewServer(f.service, f.metrics, f.logger, api.Options{
		ListenAddress:  serverCfg.ListenAddress,
		ReadTimeout:    serverCfg.ReadTimeout,
		WriteTimeout:   serverCfg.WriteTimeout,
		RequestTimeout: serverCfg.RequestTimeout,
		CORSOrigins:    serverCfg.CORSOrigins,
		MetricsPath:    f.cfg.GetMetrics().Path,
	}), nil
}
