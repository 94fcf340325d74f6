package history

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/coastguard/svm-spam-filter/internal/core"
	"go.uber.org/zap"
)

// ErrCorrupted is returned when a stored history document cannot be decoded
var ErrCorrupted = errors.New("history store is corrupted")

// timestampLayout is fixed width so stored timestamps sort lexically
const timestampLayout = "2006-01-02T15:04:05.000000Z"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Parse(time.RFC3339Nano, s)
	}
	return t, nil
}

// Retention configures background pruning. A zero MaxAge keeps records forever.
type Retention struct {
	MaxAge    time.Duration
	Frequency time.Duration
}

// janitor periodically removes records older than the retention age
type janitor struct {
	repo      core.HistoryRepository
	retention Retention
	logger    *zap.Logger
	stopCh    chan struct{}
	once      sync.Once
}

// startJanitor starts the cleanup task; it returns nil when retention is disabled
func startJanitor(repo core.HistoryRepository, retention Retention, logger *zap.Logger) *janitor {
	if retention.MaxAge <= 0 {
		return nil
	}
	if retention.Frequency <= 0 {
		retention.Frequency = time.Hour
	}

	j := &janitor{
		repo:      repo,
		retention: retention,
		logger:    logger,
		stopCh:    make(chan struct{}),
	}
	go j.run()
	return j
}

func (j *janitor) run() {
	ticker := time.NewTicker(j.retention.Frequency)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-j.retention.MaxAge)
			if err := j.repo.Cleanup(context.Background(), cutoff); err != nil {
				j.logger.Error("Failed to clean up prediction history", zap.Error(err))
			}
		case <-j.stopCh:
			return
		}
	}
}

func (j *janitor) stop() {
	if j == nil {
		return
	}
	j.once.Do(func() { close(j.stopCh) })
}
