package core

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/coastguard/svm-spam-filter/internal/whitelist"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ServiceOptions holds the input policy and history settings of the service
type ServiceOptions struct {
	HistoryEnabled     bool
	MinTextLength      int
	MaxBatchSize       int
	TextPreviewLength  int
	WhitelistedDomains []string
	ModelInfo          ModelInfo
}

// SpamFilterService is the core service for spam detection
type SpamFilterService struct {
	engine            *PredictionEngine
	history           HistoryRepository
	observer          PredictionObserver
	logger            *zap.Logger
	historyEnabled    bool
	minTextLength     int
	maxBatchSize      int
	textPreviewLength int
	whitelist         *whitelist.Checker
	modelInfo         ModelInfo
	now               func() time.Time
}

// NewSpamFilterService creates a new spam filter service
func NewSpamFilterService(
	engine *PredictionEngine,
	history HistoryRepository,
	observer PredictionObserver,
	logger *zap.Logger,
	opts ServiceOptions,
) *SpamFilterService {
	if opts.MaxBatchSize <= 0 {
		opts.MaxBatchSize = 100
	}
	if opts.TextPreviewLength <= 0 {
		opts.TextPreviewLength = 200
	}

	return &SpamFilterService{
		engine:            engine,
		history:           history,
		observer:          observer,
		logger:            logger,
		historyEnabled:    opts.HistoryEnabled && history != nil,
		minTextLength:     opts.MinTextLength,
		maxBatchSize:      opts.MaxBatchSize,
		textPreviewLength: opts.TextPreviewLength,
		whitelist:         whitelist.NewChecker(opts.WhitelistedDomains, logger),
		modelInfo:         opts.ModelInfo,
		now:               time.Now,
	}
}

// HistoryEnabled reports whether predictions are being recorded
func (s *SpamFilterService) HistoryEnabled() bool {
	return s.historyEnabled
}

// MaxBatchSize returns the largest accepted batch
func (s *SpamFilterService) MaxBatchSize() int {
	return s.maxBatchSize
}

// ModelInfo returns information about the loaded model
func (s *SpamFilterService) ModelInfo() ModelInfo {
	info := s.modelInfo
	info.Features = s.engine.Dimension()
	return info
}

// validate applies the input policy to a single text
func (s *SpamFilterService) validate(text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ErrEmptyText
	}
	if s.minTextLength > 0 && utf8.RuneCountInString(trimmed) < s.minTextLength {
		return fmt.Errorf("%w: minimum is %d characters", ErrTextTooShort, s.minTextLength)
	}
	return nil
}

// Classify validates, classifies and records a single text
func (s *SpamFilterService) Classify(ctx context.Context, text string) (*PredictionResult, error) {
	if err := s.validate(text); err != nil {
		return nil, err
	}

	result, err := s.predict(text)
	if err != nil {
		return nil, err
	}

	s.record(ctx, text, result)

	s.logger.Info("Prediction made",
		zap.String("prediction", result.Prediction),
		zap.Float64("confidence_percentage", result.ConfidencePercentage))

	return result, nil
}

// ClassifyBatch classifies each text independently and records the successes
func (s *SpamFilterService) ClassifyBatch(ctx context.Context, texts []string) (*BatchResult, error) {
	if len(texts) == 0 || len(texts) > s.maxBatchSize {
		return nil, fmt.Errorf("%w: got %d emails, expected between 1 and %d", ErrBatchSize, len(texts), s.maxBatchSize)
	}

	batch := &BatchResult{
		Total: len(texts),
		Items: make([]BatchItem, len(texts)),
	}

	// blank items never reach the engine; the rest go through it as one batch
	var pending []string
	var positions []int
	for i, text := range texts {
		batch.Items[i] = BatchItem{Index: i}
		if strings.TrimSpace(text) == "" {
			batch.Items[i].Err = ErrEmptyText
			continue
		}
		pending = append(pending, text)
		positions = append(positions, i)
	}

	var perItem time.Duration
	var predicted []BatchItem
	if len(pending) > 0 {
		start := s.now()
		predicted = s.engine.PredictBatch(pending)
		perItem = s.now().Sub(start) / time.Duration(len(pending))
	}

	for j, item := range predicted {
		i := positions[j]
		if item.Err != nil {
			s.logger.Warn("Batch item failed", zap.Int("index", i), zap.Error(item.Err))
			batch.Items[i].Err = item.Err
			if s.observer != nil {
				s.observer.ObserveFailure()
			}
			continue
		}
		batch.Items[i].Result = item.Result
		if s.observer != nil {
			s.observer.ObservePrediction(item.Result, perItem)
		}
		s.record(ctx, texts[i], item.Result)
		if item.Result.IsSpam() {
			batch.SpamCount++
		}
	}
	batch.HamCount = batch.Total - batch.SpamCount

	s.logger.Info("Batch prediction made",
		zap.Int("total", batch.Total),
		zap.Int("spam_count", batch.SpamCount))

	return batch, nil
}

// AnalyzeEmail checks if an email is spam
func (s *SpamFilterService) AnalyzeEmail(ctx context.Context, email *Email) (*EmailVerdict, error) {
	if s.whitelist.IsWhitelisted(email.From) {
		s.logger.Info("Skipping spam check for whitelisted domain",
			zap.String("sender", email.From),
			zap.String("action", "whitelist_bypass"))

		return &EmailVerdict{
			Whitelisted: true,
			AnalyzedAt:  s.now().UTC(),
		}, nil
	}

	text := email.Text()
	result, err := s.predict(text)
	if err != nil {
		return nil, err
	}
	s.record(ctx, text, result)

	return &EmailVerdict{
		IsSpam:     result.IsSpam(),
		Result:     result,
		AnalyzedAt: s.now().UTC(),
	}, nil
}

func (s *SpamFilterService) predict(text string) (*PredictionResult, error) {
	start := s.now()
	result, err := s.engine.Predict(text)
	if err != nil {
		if s.observer != nil {
			s.observer.ObserveFailure()
		}
		return nil, err
	}
	if s.observer != nil {
		s.observer.ObservePrediction(result, s.now().Sub(start))
	}
	return result, nil
}

// record stores a prediction; storage failures never fail the prediction
func (s *SpamFilterService) record(ctx context.Context, text string, result *PredictionResult) {
	if !s.historyEnabled {
		return
	}

	record := &HistoryRecord{
		ID:                   uuid.NewString(),
		Timestamp:            s.now().UTC().Truncate(time.Microsecond),
		EmailText:            preview(text, s.textPreviewLength),
		Prediction:           result.Prediction,
		Label:                result.Label,
		Confidence:           result.Confidence,
		ConfidencePercentage: result.ConfidencePercentage,
		RawScore:             result.RawScore,
	}
	if err := s.history.Add(ctx, record); err != nil {
		s.logger.Error("Failed to record prediction", zap.Error(err))
		return
	}

	s.logger.Debug("Prediction recorded", zap.String("id", record.ID))
}

// History returns the last limit records; limit <= 0 returns everything
func (s *SpamFilterService) History(ctx context.Context, limit int) ([]*HistoryRecord, error) {
	if s.history == nil {
		return []*HistoryRecord{}, nil
	}
	records, err := s.history.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list predictions: %w", err)
	}
	return records, nil
}

// HistoryRange returns records recorded between start and end inclusive
func (s *SpamFilterService) HistoryRange(ctx context.Context, start, end time.Time) ([]*HistoryRecord, error) {
	if s.history == nil {
		return []*HistoryRecord{}, nil
	}
	records, err := s.history.ListRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list predictions: %w", err)
	}
	return records, nil
}

// Statistics computes aggregate statistics over the whole history
func (s *SpamFilterService) Statistics(ctx context.Context) (*Statistics, error) {
	records, err := s.History(ctx, 0)
	if err != nil {
		return nil, err
	}
	return ComputeStatistics(records), nil
}

// Metadata describes the history store
func (s *SpamFilterService) Metadata(ctx context.Context) (*Metadata, error) {
	records, err := s.History(ctx, 0)
	if err != nil {
		return nil, err
	}

	var createdAt time.Time
	if s.history != nil {
		if createdAt, err = s.history.CreatedAt(ctx); err != nil {
			return nil, fmt.Errorf("failed to read history metadata: %w", err)
		}
	}
	return ComputeMetadata(records, createdAt), nil
}

// ClearHistory removes every recorded prediction
func (s *SpamFilterService) ClearHistory(ctx context.Context) error {
	if s.history == nil {
		return nil
	}
	if err := s.history.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear predictions: %w", err)
	}
	s.logger.Warn("All predictions cleared")
	return nil
}

// preview returns at most n runes of text
func preview(text string, n int) string {
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	runes := []rune(text)
	return string(runes[:n])
}
