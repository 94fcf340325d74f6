package history

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

var postgresDialect = dialect{
	name: "postgres",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS predictions (
			seq BIGSERIAL PRIMARY KEY,
			id VARCHAR(36) NOT NULL UNIQUE,
			ts VARCHAR(32) NOT NULL,
			email_text TEXT NOT NULL,
			prediction VARCHAR(8) NOT NULL,
			label SMALLINT NOT NULL,
			confidence DOUBLE PRECISION NOT NULL,
			confidence_percentage DOUBLE PRECISION NOT NULL,
			raw_score DOUBLE PRECISION NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_predictions_ts ON predictions(ts)`,
		`CREATE TABLE IF NOT EXISTS history_meta (
			id INTEGER PRIMARY KEY,
			created_at VARCHAR(32) NOT NULL
		)`,
	},
	insertMeta: `INSERT INTO history_meta (id, created_at) VALUES (1, ?) ON CONFLICT (id) DO NOTHING`,
	positional: true,
}

// NewPostgresStore connects to a PostgreSQL history database
func NewPostgresStore(dsn string, logger *zap.Logger, retention Retention) (*SQLStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	return newSQLStore(db, postgresDialect, logger, retention)
}
