package history

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/coastguard/svm-spam-filter/internal/core"
	"go.uber.org/zap"
)

// dialect holds the SQL that differs between database engines
type dialect struct {
	name       string
	schema     []string
	insertMeta string
	positional bool
}

// rebind rewrites ? placeholders as $1..$n for positional dialects
func (d dialect) rebind(query string) string {
	if !d.positional {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const recordColumns = "id, ts, email_text, prediction, label, confidence, confidence_percentage, raw_score"

// SQLStore is a database/sql implementation of the HistoryRepository interface
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	logger  *zap.Logger
	janitor *janitor
}

// newSQLStore creates the schema and starts the cleanup task
func newSQLStore(db *sql.DB, d dialect, logger *zap.Logger, retention Retention) (*SQLStore, error) {
	for _, stmt := range d.schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create %s schema: %w", d.name, err)
		}
	}
	if _, err := db.Exec(d.rebind(d.insertMeta), formatTimestamp(time.Now())); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialise %s metadata: %w", d.name, err)
	}

	store := &SQLStore{
		db:      db,
		dialect: d,
		logger:  logger,
	}
	store.janitor = startJanitor(store, retention, logger)
	return store, nil
}

// Add stores a record
func (s *SQLStore) Add(ctx context.Context, record *core.HistoryRecord) error {
	_, err := s.db.ExecContext(ctx, s.dialect.rebind(`
		INSERT INTO predictions (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`), record.ID, formatTimestamp(record.Timestamp), record.EmailText, record.Prediction,
		record.Label, record.Confidence, record.ConfidencePercentage, record.RawScore)

	if err != nil {
		return fmt.Errorf("failed to insert prediction: %w", err)
	}
	return nil
}

// List returns the most recent records in chronological order
func (s *SQLStore) List(ctx context.Context, limit int) ([]*core.HistoryRecord, error) {
	if limit <= 0 {
		return s.query(ctx, `SELECT `+recordColumns+` FROM predictions ORDER BY seq ASC`)
	}
	return s.query(ctx, `
		SELECT `+recordColumns+` FROM (
			SELECT seq, `+recordColumns+` FROM predictions ORDER BY seq DESC LIMIT ?
		) recent ORDER BY seq ASC
	`, limit)
}

// ListRange returns records with start <= timestamp <= end
func (s *SQLStore) ListRange(ctx context.Context, start, end time.Time) ([]*core.HistoryRecord, error) {
	return s.query(ctx, `
		SELECT `+recordColumns+` FROM predictions
		WHERE ts >= ? AND ts <= ?
		ORDER BY seq ASC
	`, formatTimestamp(start), formatTimestamp(end))
}

func (s *SQLStore) query(ctx context.Context, query string, args ...any) ([]*core.HistoryRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer rows.Close()

	records := make([]*core.HistoryRecord, 0)
	for rows.Next() {
		var r core.HistoryRecord
		var ts string
		if err := rows.Scan(&r.ID, &ts, &r.EmailText, &r.Prediction, &r.Label,
			&r.Confidence, &r.ConfidencePercentage, &r.RawScore); err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		if r.Timestamp, err = parseTimestamp(ts); err != nil {
			return nil, fmt.Errorf("failed to parse timestamp of %s: %w", r.ID, err)
		}
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read predictions: %w", err)
	}
	return records, nil
}

// Clear removes every record and resets the creation time
func (s *SQLStore) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM predictions`); err != nil {
		return fmt.Errorf("failed to delete predictions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.dialect.rebind(`UPDATE history_meta SET created_at = ? WHERE id = 1`),
		formatTimestamp(time.Now())); err != nil {
		return fmt.Errorf("failed to reset history metadata: %w", err)
	}
	return tx.Commit()
}

// Cleanup removes records older than the cutoff
func (s *SQLStore) Cleanup(ctx context.Context, olderThan time.Time) error {
	result, err := s.db.ExecContext(ctx, s.dialect.rebind(`
		DELETE FROM predictions
		WHERE ts < ?
	`), formatTimestamp(olderThan))

	if err != nil {
		return fmt.Errorf("failed to clean up expired predictions: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		s.logger.Warn("Failed to get rows affected during cleanup", zap.Error(err))
	} else {
		s.logger.Debug("Cleaned up expired history records", zap.Int64("expired_count", rowsAffected))
	}

	return nil
}

// CreatedAt returns when the schema was initialised or last cleared
func (s *SQLStore) CreatedAt(ctx context.Context) (time.Time, error) {
	var createdAt string
	err := s.db.QueryRowContext(ctx, `SELECT created_at FROM history_meta WHERE id = 1`).Scan(&createdAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read history metadata: %w", err)
	}
	return parseTimestamp(createdAt)
}

// Stop stops the background cleanup task and closes the database connection
func (s *SQLStore) Stop() {
	s.janitor.stop()
	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close database", zap.String("dialect", s.dialect.name), zap.Error(err))
	}
}
