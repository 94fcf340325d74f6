package factory

import (
	"fmt"
	"os"

	"github.com/coastguard/svm-spam-filter/internal/adapters/filter"
	"github.com/coastguard/svm-spam-filter/internal/config"
	"github.com/coastguard/svm-spam-filter/internal/core"
	"github.com/coastguard/svm-spam-filter/internal/ports"
	"github.com/coastguard/svm-spam-filter/internal/utils"
	"go.uber.org/zap"
)

// FilterFactory creates email filters based on configuration
type FilterFactory struct {
	cfg         *config.Config
	logger      *zap.Logger
	spamService *core.SpamFilterService
}

// NewFilterFactory creates a new filter factory
func NewFilterFactory(cfg *config.Config, logger *zap.Logger, spamService *core.SpamFilterService) *FilterFactory {
	return &FilterFactory{
		cfg:         cfg,
		logger:      logger,
		spamService: spamService,
	}
}

// CreateEmailFilter creates an email filter based on the configuration
func (f *FilterFactory) CreateEmailFilter() (ports.EmailFilter, error) {
	filterCfg, err := f.cfg.GetFilter()
	if err != nil {
		return nil, fmt.Errorf("invalid filter configuration: %w", err)
	}

	limiter := utils.NewTextLimiter(filterCfg.MaxBodySize, f.logger)

	switch filterCfg.Type {
	case "postfix":
		return filter.NewPostfixFilter(f.spamService, limiter, f.logger, filter.PostfixConfig{
			ListenAddress:    filterCfg.ListenAddress,
			BlockSpam:        filterCfg.BlockSpam,
			SpamHeader:       filterCfg.SpamHeader,
			ScoreHeader:      filterCfg.ScoreHeader,
			ConfidenceHeader: filterCfg.ConfidenceHeader,
			PostfixAddress:   filterCfg.PostfixAddress,
			PostfixPort:      filterCfg.PostfixPort,
			PostfixEnabled:   filterCfg.PostfixEnabled,
			SubjectPrefix:    filterCfg.SubjectPrefix,
			ModifySubject:    filterCfg.ModifySubject,
			AnalysisTimeout:  filterCfg.AnalysisTimeout,
		}), nil
	case "cli":
		return f.CreateCliFilter(), nil
	default:
		return nil, fmt.Errorf("unsupported filter type: %s", filterCfg.Type)
	}
}

// CreateCliFilter creates the CLI filter that reports to stdout
func (f *FilterFactory) CreateCliFilter() *filter.CliFilter {
	return filter.NewCliFilter(
		f.spamService,
		utils.NewTextLimiter(f.cfg.GetInt("filter.max_body_size"), f.logger),
		f.logger,
		os.Stdout,
		f.cfg.GetBool("filter.verbose"),
	)
}
