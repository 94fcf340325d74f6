package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/coastguard/svm-spam-filter/internal/adapters/history"
	"github.com/coastguard/svm-spam-filter/internal/config"
	"github.com/coastguard/svm-spam-filter/internal/core"
	"go.uber.org/zap"
)

// HistoryFactory creates history repositories based on configuration
type HistoryFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewHistoryFactory creates a new history factory
func NewHistoryFactory(cfg *config.Config, logger *zap.Logger) *HistoryFactory {
	return &HistoryFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateHistoryRepository creates a history repository based on the configuration.
// It returns nil when history is disabled.
func (f *HistoryFactory) CreateHistoryRepository() (core.HistoryRepository, error) {
	historyCfg, err := f.cfg.GetHistory()
	if err != nil {
		return nil, fmt.Errorf("invalid history configuration: %w", err)
	}
	if !historyCfg.Enabled {
		f.logger.Info("Prediction history disabled")
		return nil, nil
	}

	retention := history.Retention{
		MaxAge:    historyCfg.Retention,
		Frequency: historyCfg.CleanupFrequency,
	}

	var repo core.HistoryRepository
	switch historyCfg.Type {
	case "memory":
		repo = history.NewMemoryStore(f.logger, retention)
	case "json":
		repo, err = history.NewJSONFileStore(historyCfg.JSONPath, f.logger, retention)
	case "sqlite":
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(historyCfg.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		repo, err = history.NewSQLiteStore(historyCfg.SQLitePath, f.logger, retention)
	case "mysql":
		repo, err = history.NewMySQLStore(historyCfg.MySQLDSN, f.logger, retention)
	case "postgres":
		repo, err = history.NewPostgresStore(historyCfg.PostgresDSN, f.logger, retention)
	default:
		return nil, fmt.Errorf("unsupported history type: %s", historyCfg.Type)
	}
	if err != nil {
		return nil, err
	}

	f.logger.Info("Prediction history ready", zap.String("type", historyCfg.Type))
	return repo, nil
}

// ServiceOptions assembles the service options from configuration
func (f *HistoryFactory) ServiceOptions(repo core.HistoryRepository, info core.ModelInfo) (core.ServiceOptions, error) {
	historyCfg, err := f.cfg.GetHistory()
	if err != nil {
		return core.ServiceOptions{}, fmt.Errorf("invalid history configuration: %w", err)
	}
	serverCfg, err := f.cfg.GetServer()
	if err != nil {
		return core.ServiceOptions{}, fmt.Errorf("invalid server configuration: %w", err)
	}
	spamCfg := f.cfg.GetSpam()

	if len(spamCfg.WhitelistedDomains) > 0 {
		f.logger.Info("Loaded whitelisted domains", zap.Strings("domains", spamCfg.WhitelistedDomains))
	}

	return core.ServiceOptions{
		HistoryEnabled:     historyCfg.Enabled && repo != nil,
		MinTextLength:      spamCfg.MinTextLength,
		MaxBatchSize:       serverCfg.MaxBatchSize,
		TextPreviewLength:  historyCfg.TextPreviewLength,
		WhitelistedDomains: spamCfg.WhitelistedDomains,
		ModelInfo:          info,
	}, nil
}
