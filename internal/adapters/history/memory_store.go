package history

import (
	"context"
	"sync"
	"time"

	"github.com/coastguard/svm-spam-filter/internal/core"
	"go.uber.org/zap"
)

// MemoryStore is an in-memory implementation of the HistoryRepository interface
type MemoryStore struct {
	records   []*core.HistoryRecord
	createdAt time.Time
	mu        sync.RWMutex
	logger    *zap.Logger
	janitor   *janitor
}

// NewMemoryStore creates a new in-memory history store
func NewMemoryStore(logger *zap.Logger, retention Retention) *MemoryStore {
	store := &MemoryStore{
		records:   make([]*core.HistoryRecord, 0),
		createdAt: time.Now().UTC(),
		logger:    logger,
	}
	store.janitor = startJanitor(store, retention, logger)
	return store
}

// Add stores a copy of the record
func (s *MemoryStore) Add(ctx context.Context, record *core.HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := *record
	s.records = append(s.records, &r)
	return nil
}

// List returns the most recent records in chronological order
func (s *MemoryStore) List(ctx context.Context, limit int) ([]*core.HistoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := 0
	if limit > 0 && limit < len(s.records) {
		start = len(s.records) - limit
	}
	return copyRecords(s.records[start:]), nil
}

// ListRange returns records with start <= timestamp <= end
func (s *MemoryStore) ListRange(ctx context.Context, start, end time.Time) ([]*core.HistoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return copyRecords(filterRange(s.records, start, end)), nil
}

// Clear removes every record and resets the creation time
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make([]*core.HistoryRecord, 0)
	s.createdAt = time.Now().UTC()
	return nil
}

// Cleanup removes records older than the cutoff
func (s *MemoryStore) Cleanup(ctx context.Context, olderThan time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept, removed := pruneBefore(s.records, olderThan)
	s.records = kept

	s.logger.Debug("Cleaned up expired history records", zap.Int("expired_count", removed))
	return nil
}

// CreatedAt returns when the store was initialised
func (s *MemoryStore) CreatedAt(ctx context.Context) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.createdAt, nil
}

// Stop stops the background cleanup task
func (s *MemoryStore) Stop() {
	s.janitor.stop()
}

func copyRecords(records []*core.HistoryRecord) []*core.HistoryRecord {
	out := make([]*core.HistoryRecord, len(records))
	for i, r := range records {
		c := *r
		out[i] = &c
	}
	return out
}

func filterRange(records []*core.HistoryRecord, start, end time.Time) []*core.HistoryRecord {
	out := make([]*core.HistoryRecord, 0)
	for _, r := range records {
		if !r.Timestamp.Before(start) && !r.Timestamp.After(end) {
			out = append(out, r)
		}
	}
	return out
}

func pruneBefore(records []*core.HistoryRecord, cutoff time.Time) ([]*core.HistoryRecord, int) {
	kept := make([]*core.HistoryRecord, 0, len(records))
	for _, r := range records {
		if !r.Timestamp.Before(cutoff) {
			kept = append(kept, r)
		}
	}
	return kept, len(records) - len(kept)
}
