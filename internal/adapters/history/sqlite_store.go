package history

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

var sqliteDialect = dialect{
	name: "sqlite",
	schema: []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA busy_timeout = 5000`,
		`CREATE TABLE IF NOT EXISTS predictions (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			ts TEXT NOT NULL,
			email_text TEXT NOT NULL,
			prediction TEXT NOT NULL,
			label INTEGER NOT NULL,
			confidence REAL NOT NULL,
			confidence_percentage REAL NOT NULL,
			raw_score REAL NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_predictions_ts ON predictions(ts)`,
		`CREATE TABLE IF NOT EXISTS history_meta (
			id INTEGER PRIMARY KEY,
			created_at TEXT NOT NULL
		)`,
	},
	insertMeta: `INSERT OR IGNORE INTO history_meta (id, created_at) VALUES (1, ?)`,
}

// NewSQLiteStore opens a SQLite history database
func NewSQLiteStore(dbPath string, logger *zap.Logger, retention Retention) (*SQLStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// a single connection serialises writers and keeps :memory: databases shared
	db.SetMaxOpenConns(1)

	return newSQLStore(db, sqliteDialect, logger, retention)
}
