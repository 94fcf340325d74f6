package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/coastguard/svm-spam-filter/internal/core"
	"go.uber.org/zap"
)

// jsonDocument is the on-disk layout: a metadata block and the prediction list
type jsonDocument struct {
	Metadata    jsonMetadata `json:"metadata"`
	Predictions []jsonRecord `json:"predictions"`
}

type jsonMetadata struct {
	CreatedAt         string  `json:"created_at"`
	LastUpdated       string  `json:"last_updated"`
	Version           string  `json:"version"`
	TotalPredictions  int     `json:"total_predictions"`
	TotalSpam         int     `json:"total_spam"`
	TotalHam          int     `json:"total_ham"`
	AverageConfidence float64 `json:"average_confidence"`
}

type jsonRecord struct {
	ID                   string  `json:"id"`
	Timestamp            string  `json:"timestamp"`
	EmailText            string  `json:"email_text"`
	Prediction           string  `json:"prediction"`
	Label                int     `json:"label"`
	Confidence           float64 `json:"confidence"`
	ConfidencePercentage float64 `json:"confidence_percentage"`
	RawScore             float64 `json:"raw_score"`
}

// JSONFileStore keeps the history in a single JSON document that is rewritten on every change.
// The file is owned by one process; the document is cached in memory.
type JSONFileStore struct {
	path      string
	records   []*core.HistoryRecord
	createdAt time.Time
	mu        sync.RWMutex
	logger    *zap.Logger
	janitor   *janitor
}

// NewJSONFileStore opens or initialises the JSON history file
func NewJSONFileStore(path string, logger *zap.Logger, retention Retention) (*JSONFileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	store := &JSONFileStore{
		path:   path,
		logger: logger,
	}

	if err := store.load(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		store.createdAt = time.Now().UTC()
		store.records = make([]*core.HistoryRecord, 0)
		if err := store.persist(); err != nil {
			return nil, err
		}
		logger.Info("Initialized history file", zap.String("path", path))
	}

	store.janitor = startJanitor(store, retention, logger)
	return store, nil
}

func (s *JSONFileStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	var doc jsonDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorrupted, s.path, err)
	}

	createdAt, err := parseTimestamp(doc.Metadata.CreatedAt)
	if err != nil {
		createdAt = time.Now().UTC()
	}

	records := make([]*core.HistoryRecord, 0, len(doc.Predictions))
	for _, p := range doc.Predictions {
		ts, err := parseTimestamp(p.Timestamp)
		if err != nil {
			return fmt.Errorf("%w: record %s has invalid timestamp %q", ErrCorrupted, p.ID, p.Timestamp)
		}
		records = append(records, &core.HistoryRecord{
			ID:                   p.ID,
			Timestamp:            ts,
			EmailText:            p.EmailText,
			Prediction:           p.Prediction,
			Label:                p.Label,
			Confidence:           p.Confidence,
			ConfidencePercentage: p.ConfidencePercentage,
			RawScore:             p.RawScore,
		})
	}

	s.createdAt = createdAt
	s.records = records
	return nil
}

// persist writes the document atomically; callers hold the write lock
func (s *JSONFileStore) persist() error {
	meta := core.ComputeMetadata(s.records, s.createdAt)
	doc := jsonDocument{
		Metadata: jsonMetadata{
			CreatedAt:         formatTimestamp(meta.CreatedAt),
			LastUpdated:       formatTimestamp(time.Now()),
			Version:           meta.Version,
			TotalPredictions:  meta.TotalPredictions,
			TotalSpam:         meta.TotalSpam,
			TotalHam:          meta.TotalHam,
			AverageConfidence: meta.AverageConfidence,
		},
		Predictions: make([]jsonRecord, 0, len(s.records)),
	}
	for _, r := range s.records {
		doc.Predictions = append(doc.Predictions, jsonRecord{
			ID:                   r.ID,
			Timestamp:            formatTimestamp(r.Timestamp),
			EmailText:            r.EmailText,
			Prediction:           r.Prediction,
			Label:                r.Label,
			Confidence:           r.Confidence,
			ConfidencePercentage: r.ConfidencePercentage,
			RawScore:             r.RawScore,
		})
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write history file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace history file: %w", err)
	}
	return nil
}

// Add appends a record and rewrites the file
func (s *JSONFileStore) Add(ctx context.Context, record *core.HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := *record
	s.records = append(s.records, &r)
	if err := s.persist(); err != nil {
		s.records = s.records[:len(s.records)-1]
		return err
	}
	return nil
}

// List returns the most recent records in chronological order
func (s *JSONFileStore) List(ctx context.Context, limit int) ([]*core.HistoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := 0
	if limit > 0 && limit < len(s.records) {
		start = len(s.records) - limit
	}
	return copyRecords(s.records[start:]), nil
}

// ListRange returns records with start <= timestamp <= end
func (s *JSONFileStore) ListRange(ctx context.Context, start, end time.Time) ([]*core.HistoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return copyRecords(filterRange(s.records, start, end)), nil
}

// Clear resets the file to an empty document
func (s *JSONFileStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make([]*core.HistoryRecord, 0)
	s.createdAt = time.Now().UTC()
	return s.persist()
}

// Cleanup removes records older than the cutoff
func (s *JSONFileStore) Cleanup(ctx context.Context, olderThan time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept, removed := pruneBefore(s.records, olderThan)
	if removed == 0 {
		return nil
	}
	s.records = kept

	s.logger.Debug("Cleaned up expired history records", zap.Int("expired_count", removed))
	return s.persist()
}

// CreatedAt returns when the file was initialised
func (s *JSONFileStore) CreatedAt(ctx context.Context) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.createdAt, nil
}

// Stop stops the background cleanup task
func (s *JSONFileStore) Stop() {
	s.janitor.stop()
}
