package history

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/coastguard/svm-spam-filter/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stopper interface {
	Stop()
}

var base = time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)

func record(i int, prediction string) *core.HistoryRecord {
	label := core.LabelHam
	if prediction == core.PredictionSpam {
		label = core.LabelSpam
	}
	return &core.HistoryRecord{
		ID:                   fmt.Sprintf("rec-%02d", i),
		Timestamp:            base.Add(time.Duration(i) * time.Minute).Add(123456 * time.Microsecond),
		EmailText:            fmt.Sprintf("email number %d", i),
		Prediction:           prediction,
		Label:                label,
		Confidence:           0.25 * float64(i%4+1),
		ConfidencePercentage: 25 * float64(i%4+1),
		RawScore:             -1.5 + float64(i),
	}
}

func stores() map[string]func(t *testing.T) core.HistoryRepository {
	return map[string]func(t *testing.T) core.HistoryRepository{
		"memory": func(t *testing.T) core.HistoryRepository {
			return NewMemoryStore(zap.NewNop(), Retention{})
		},
		"json": func(t *testing.T) core.HistoryRepository {
			s, err := NewJSONFileStore(filepath.Join(t.TempDir(), "data", "history.json"), zap.NewNop(), Retention{})
			require.NoError(t, err)
			return s
		},
		"sqlite": func(t *testing.T) core.HistoryRepository {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"), zap.NewNop(), Retention{})
			require.NoError(t, err)
			return s
		},
	}
}

func TestHistoryRepositories(t *testing.T) {
	for name, open := range stores() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := open(t)
			defer repo.(stopper).Stop()

			created, err := repo.CreatedAt(ctx)
			require.NoError(t, err)
			assert.False(t, created.IsZero())

			records, err := repo.List(ctx, 0)
			require.NoError(t, err)
			assert.Empty(t, records)

			for i := 0; i < 5; i++ {
				prediction := core.PredictionHam
				if i%2 == 0 {
					prediction = core.PredictionSpam
				}
				require.NoError(t, repo.Add(ctx, record(i, prediction)))
			}

			t.Run("list all in order", func(t *testing.T) {
				records, err := repo.List(ctx, 0)
				require.NoError(t, err)
				require.Len(t, records, 5)
				for i, r := range records {
					assert.Equal(t, record(i, r.Prediction), r)
				}
			})

			t.Run("list most recent", func(t *testing.T) {
				records, err := repo.List(ctx, 2)
				require.NoError(t, err)
				require.Len(t, records, 2)
				assert.Equal(t, "rec-03", records[0].ID)
				assert.Equal(t, "rec-04", records[1].ID)

				records, err = repo.List(ctx, 50)
				require.NoError(t, err)
				assert.Len(t, records, 5)
			})

			t.Run("range is inclusive", func(t *testing.T) {
				start := record(1, core.PredictionHam).Timestamp
				end := record(3, core.PredictionHam).Timestamp
				records, err := repo.ListRange(ctx, start, end)
				require.NoError(t, err)
				require.Len(t, records, 3)
				assert.Equal(t, "rec-01", records[0].ID)
				assert.Equal(t, "rec-03", records[2].ID)

				records, err = repo.ListRange(ctx, base.Add(time.Hour), base.Add(2*time.Hour))
				require.NoError(t, err)
				assert.Empty(t, records)
			})

			t.Run("returned records are copies", func(t *testing.T) {
				records, err := repo.List(ctx, 1)
				require.NoError(t, err)
				records[0].Prediction = "tampered"

				records, err = repo.List(ctx, 1)
				require.NoError(t, err)
				assert.Equal(t, core.PredictionSpam, records[0].Prediction)
			})

			t.Run("cleanup prunes older records", func(t *testing.T) {
				require.NoError(t, repo.Cleanup(ctx, record(2, core.PredictionHam).Timestamp))
				records, err := repo.List(ctx, 0)
				require.NoError(t, err)
				require.Len(t, records, 3)
				assert.Equal(t, "rec-02", records[0].ID)
			})

			t.Run("clear empties and resets creation time", func(t *testing.T) {
				before, err := repo.CreatedAt(ctx)
				require.NoError(t, err)

				require.NoError(t, repo.Clear(ctx))
				records, err := repo.List(ctx, 0)
				require.NoError(t, err)
				assert.Empty(t, records)

				after, err := repo.CreatedAt(ctx)
				require.NoError(t, err)
				assert.False(t, after.Before(before))
			})
		})
	}
}

func TestJSONFileStoreReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.json")

	s, err := NewJSONFileStore(path, zap.NewNop(), Retention{})
	require.NoError(t, err)
	created, err := s.CreatedAt(ctx)
	require.NoError(t, err)

	require.NoError(t, s.Add(ctx, record(0, core.PredictionSpam)))
	require.NoError(t, s.Add(ctx, record(1, core.PredictionHam)))
	s.Stop()

	reopened, err := NewJSONFileStore(path, zap.NewNop(), Retention{})
	require.NoError(t, err)
	defer reopened.Stop()

	records, err := reopened.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, record(0, core.PredictionSpam), records[0])
	assert.Equal(t, record(1, core.PredictionHam), records[1])

	reloaded, err := reopened.CreatedAt(ctx)
	require.NoError(t, err)
	assert.Equal(t, created.Truncate(time.Microsecond), reloaded)
}

func TestJSONFileStoreDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	s, err := NewJSONFileStore(path, zap.NewNop(), Retention{})
	require.NoError(t, err)
	defer s.Stop()

	require.NoError(t, s.Add(context.Background(), record(0, core.PredictionSpam)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"total_predictions": 1`)
	assert.Contains(t, string(data), `"total_spam": 1`)
	assert.Contains(t, string(data), `"version": "1.0"`)
	assert.Contains(t, string(data), `"timestamp": "2024-05-10T08:00:00.123456Z"`)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestJSONFileStoreCorrupted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := NewJSONFileStore(path, zap.NewNop(), Retention{})
	assert.ErrorIs(t, err, ErrCorrupted)

	require.NoError(t, os.WriteFile(path, []byte(`{"predictions":[{"id":"x","timestamp":"yesterday"}]}`), 0644))
	_, err = NewJSONFileStore(path, zap.NewNop(), Retention{})
	assert.ErrorIs(t, err, ErrCorrupted)
}

func TestSQLiteStoreReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")

	s, err := NewSQLiteStore(path, zap.NewNop(), Retention{})
	require.NoError(t, err)
	created, err := s.CreatedAt(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Add(ctx, record(0, core.PredictionSpam)))
	s.Stop()

	reopened, err := NewSQLiteStore(path, zap.NewNop(), Retention{})
	require.NoError(t, err)
	defer reopened.Stop()

	records, err := reopened.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)

	again, err := reopened.CreatedAt(ctx)
	require.NoError(t, err)
	assert.Equal(t, created, again)

	assert.Error(t, reopened.Add(ctx, record(0, core.PredictionSpam)), "duplicate ids are rejected")
}

func TestRebind(t *testing.T) {
	assert.Equal(t, "a = ? AND b = ?", sqliteDialect.rebind("a = ? AND b = ?"))
	assert.Equal(t, "a = $1 AND b = $2", postgresDialect.rebind("a = ? AND b = ?"))
	assert.Equal(t, "no placeholders", postgresDialect.rebind("no placeholders"))
}

func TestTimestampFormat(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 6000, time.FixedZone("x", 3600))
	s := formatTimestamp(ts)
	assert.Equal(t, "2024-01-02T02:04:05.000006Z", s)

	parsed, err := parseTimestamp(s)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(ts))

	parsed, err = parseTimestamp("2024-01-02T02:04:05Z")
	require.NoError(t, err)
	assert.Equal(t, 2, parsed.Hour())

	_, err = parseTimestamp("garbage")
	assert.Error(t, err)
}

func TestJanitorPrunesExpiredRecords(t *testing.T) {
	s := NewMemoryStore(zap.NewNop(), Retention{MaxAge: time.Hour, Frequency: 10 * time.Millisecond})
	defer s.Stop()

	ctx := context.Background()
	old := record(0, core.PredictionSpam)
	old.Timestamp = time.Now().Add(-2 * time.Hour)
	fresh := record(1, core.PredictionHam)
	fresh.Timestamp = time.Now()
	require.NoError(t, s.Add(ctx, old))
	require.NoError(t, s.Add(ctx, fresh))

	assert.Eventually(t, func() bool {
		records, err := s.List(ctx, 0)
		return err == nil && len(records) == 1 && records[0].ID == fresh.ID
	}, 2*time.Second, 10*time.Millisecond)
}

func TestJanitorDisabled(t *testing.T) {
	assert.Nil(t, startJanitor(nil, Retention{}, zap.NewNop()))

	var j *janitor
	assert.NotPanics(t, j.stop)
}
