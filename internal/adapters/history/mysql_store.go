package history

import (
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

var mysqlDialect = dialect{
	name: "mysql",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS predictions (
			seq BIGINT AUTO_INCREMENT PRIMARY KEY,
			id VARCHAR(36) NOT NULL UNIQUE,
			ts VARCHAR(32) NOT NULL,
			email_text TEXT NOT NULL,
			prediction VARCHAR(8) NOT NULL,
			label TINYINT NOT NULL,
			confidence DOUBLE NOT NULL,
			confidence_percentage DOUBLE NOT NULL,
			raw_score DOUBLE NOT NULL,
			INDEX idx_predictions_ts (ts)
		)`,
		`CREATE TABLE IF NOT EXISTS history_meta (
			id INT PRIMARY KEY,
			created_at VARCHAR(32) NOT NULL
		)`,
	},
	insertMeta: `INSERT IGNORE INTO history_meta (id, created_at) VALUES (1, ?)`,
}

// NewMySQLStore connects to a MySQL history database
func NewMySQLStore(dsn string, logger *zap.Logger, retention Retention) (*SQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	return newSQLStore(db, mysqlDialect, logger, retention)
}
