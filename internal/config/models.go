package config

import (
	"fmt"
	"strings"
	"time"
)

// ArtifactsConfig describes where the exported vectorizer and model are read from
type ArtifactsConfig struct {
	Source         string
	VectorizerPath string
	ModelPath      string
	S3             S3Config
}

// S3Config represents the configuration for the S3 artifact source
type S3Config struct {
	Bucket        string
	Region        string
	Prefix        string
	VectorizerKey string
	ModelKey      string
}

// ServerConfig represents the configuration for the HTTP API
type ServerConfig struct {
	Enabled        bool
	ListenAddress  string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
	CORSOrigins    []string
	MaxBatchSize   int
}

// SpamConfig holds the input policy
type SpamConfig struct {
	MinTextLength      int
	WhitelistedDomains []string
}

// FilterConfig represents the configuration for the mail filter
type FilterConfig struct {
	Enabled          bool
	Type             string
	ListenAddress    string
	BlockSpam        bool
	MaxBodySize      int
	AnalysisTimeout  time.Duration
	SpamHeader       string
	ScoreHeader      string
	ConfidenceHeader string
	PostfixAddress   string
	PostfixPort      int
	PostfixEnabled   bool
	SubjectPrefix    string
	ModifySubject    bool
	Verbose          bool
}

// HistoryConfig represents the configuration for the prediction history store
type HistoryConfig struct {
	Enabled           bool
	Type              string
	JSONPath          string
	SQLitePath        string
	MySQLDSN          string
	PostgresDSN       string
	Retention         time.Duration
	CleanupFrequency  time.Duration
	TextPreviewLength int
}

// MetricsConfig represents the configuration for Prometheus metrics
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// GetArtifacts returns the artifact configuration
func (c *Config) GetArtifacts() ArtifactsConfig {
	return ArtifactsConfig{
		Source:         c.GetString("artifacts.source"),
		VectorizerPath: c.GetString("artifacts.vectorizer_path"),
		ModelPath:      c.GetString("artifacts.model_path"),
		S3: S3Config{
			Bucket:        c.GetString("artifacts.s3.bucket"),
			Region:        c.GetString("artifacts.s3.region"),
			Prefix:        c.GetString("artifacts.s3.prefix"),
			VectorizerKey: c.GetString("artifacts.s3.vectorizer_key"),
			ModelKey:      c.GetString("artifacts.s3.model_key"),
		},
	}
}

// GetServer returns the HTTP API configuration
func (c *Config) GetServer() (ServerConfig, error) {
	cfg := ServerConfig{
		Enabled:       c.GetBool("server.enabled"),
		ListenAddress: c.GetString("server.listen_address"),
		CORSOrigins:   c.getList("server.cors_origins"),
		MaxBatchSize:  c.GetInt("server.max_batch_size"),
	}

	var err error
	if cfg.ReadTimeout, err = c.GetDuration("server.read_timeout"); err != nil {
		return cfg, err
	}
	if cfg.WriteTimeout, err = c.GetDuration("server.write_timeout"); err != nil {
		return cfg, err
	}
	if cfg.RequestTimeout, err = c.GetDuration("server.request_timeout"); err != nil {
		return cfg, err
	}
	if cfg.MaxBatchSize <= 0 {
		return cfg, fmt.Errorf("server.max_batch_size must be positive, got %d", cfg.MaxBatchSize)
	}
	return cfg, nil
}

// GetSpam returns the input policy
func (c *Config) GetSpam() SpamConfig {
	return SpamConfig{
		MinTextLength:      c.GetInt("spam.min_text_length"),
		WhitelistedDomains: c.getList("spam.whitelisted_domains"),
	}
}

// GetFilter returns the mail filter configuration
func (c *Config) GetFilter() (FilterConfig, error) {
	timeout, err := c.GetDuration("filter.analysis_timeout")
	if err != nil {
		return FilterConfig{}, err
	}

	return FilterConfig{
		Enabled:          c.GetBool("filter.enabled"),
		Type:             c.GetString("filter.type"),
		ListenAddress:    c.GetString("filter.listen_address"),
		BlockSpam:        c.GetBool("filter.block_spam"),
		MaxBodySize:      c.GetInt("filter.max_body_size"),
		AnalysisTimeout:  timeout,
		SpamHeader:       c.GetString("filter.headers.spam"),
		ScoreHeader:      c.GetString("filter.headers.score"),
		ConfidenceHeader: c.GetString("filter.headers.confidence"),
		PostfixAddress:   c.GetString("filter.postfix.address"),
		PostfixPort:      c.GetInt("filter.postfix.port"),
		PostfixEnabled:   c.GetBool("filter.postfix.enabled"),
		SubjectPrefix:    c.GetString("filter.subject_prefix"),
		ModifySubject:    c.GetBool("filter.modify_subject"),
		Verbose:          c.GetBool("filter.verbose"),
	}, nil
}

// GetHistory returns the history store configuration
func (c *Config) GetHistory() (HistoryConfig, error) {
	cfg := HistoryConfig{
		Enabled:           c.GetBool("history.enabled"),
		Type:              c.GetString("history.type"),
		JSONPath:          c.GetString("history.json_path"),
		SQLitePath:        c.GetString("history.sqlite_path"),
		MySQLDSN:          c.GetString("history.mysql_dsn"),
		PostgresDSN:       c.GetString("history.postgres_dsn"),
		TextPreviewLength: c.GetInt("history.text_preview_length"),
	}

	var err error
	if cfg.Retention, err = c.GetDuration("history.retention"); err != nil {
		return cfg, err
	}
	if cfg.CleanupFrequency, err = c.GetDuration("history.cleanup_frequency"); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// GetMetrics returns the metrics configuration
func (c *Config) GetMetrics() MetricsConfig {
	return MetricsConfig{
		Enabled: c.GetBool("metrics.enabled"),
		Path:    c.GetString("metrics.path"),
	}
}

// getList reads a list that may also be given as a comma separated string
func (c *Config) getList(key string) []string {
	var out []string
	for _, item := range c.GetStringSlice(key) {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
