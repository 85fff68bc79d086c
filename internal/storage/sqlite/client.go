package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/dennis1984/BYWebApp/pkg/logger"
)

type Client struct {
	db  *sql.DB
	now func() time.Time
}

// NewClient opens the database at dbPath. A single connection is kept so
// that transactional counter updates serialize instead of failing busy.
func NewClient(dbPath string) (*Client, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db, now: time.Now}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	var b strings.Builder
	b.WriteString(`
	CREATE TABLE IF NOT EXISTS dimensions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		subtitle TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		sort_order INTEGER NOT NULL DEFAULT 0,
		status INTEGER NOT NULL DEFAULT 1,
		created INTEGER NOT NULL,
		updated INTEGER NOT NULL,
		UNIQUE (name, status)
	);

	CREATE TABLE IF NOT EXISTS attributes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		dimension_id INTEGER NOT NULL,
		status INTEGER NOT NULL DEFAULT 1,
		created INTEGER NOT NULL,
		updated INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_attributes_dimension ON attributes(dimension_id);

	CREATE TABLE IF NOT EXISTS tags (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status INTEGER NOT NULL DEFAULT 1,
		created INTEGER NOT NULL,
		updated INTEGER NOT NULL,
		UNIQUE (name, status)
	);

	CREATE TABLE IF NOT EXISTS tag_configures (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tag_id INTEGER NOT NULL,
		attribute_id INTEGER NOT NULL,
		match_value REAL NOT NULL DEFAULT 1.0,
		status INTEGER NOT NULL DEFAULT 1,
		created INTEGER NOT NULL,
		updated INTEGER NOT NULL,
		UNIQUE (tag_id, attribute_id, status)
	);
	CREATE INDEX IF NOT EXISTS idx_tag_configures_attribute ON tag_configures(attribute_id);

	CREATE TABLE IF NOT EXISTS media_configures (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source_type INTEGER NOT NULL DEFAULT 1,
		media_id INTEGER NOT NULL,
		dimension_id INTEGER NOT NULL,
		attribute_id INTEGER NOT NULL,
		status INTEGER NOT NULL DEFAULT 1,
		created INTEGER NOT NULL,
		updated INTEGER NOT NULL,
		UNIQUE (source_type, media_id, attribute_id, status)
	);
	CREATE INDEX IF NOT EXISTS idx_media_configures_dim_attr ON media_configures(dimension_id, attribute_id);

	CREATE TABLE IF NOT EXISTS adjust_coefficients (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		value REAL NOT NULL DEFAULT 0,
		status INTEGER NOT NULL DEFAULT 1,
		created INTEGER NOT NULL,
		updated INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_adjust_coefficients_name ON adjust_coefficients(name);

	CREATE TABLE IF NOT EXISTS resource_tags (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		status INTEGER NOT NULL DEFAULT 1,
		created INTEGER NOT NULL,
		UNIQUE (name, status)
	);

	CREATE TABLE IF NOT EXISTS scores (
		user_id INTEGER PRIMARY KEY,
		score INTEGER NOT NULL DEFAULT 0,
		created INTEGER NOT NULL,
		updated INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS score_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		action INTEGER NOT NULL DEFAULT 0,
		score_count INTEGER NOT NULL DEFAULT 0,
		created INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_score_records_user ON score_records(user_id);

	CREATE TABLE IF NOT EXISTS resource_opinions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		source_type INTEGER NOT NULL,
		source_id INTEGER NOT NULL,
		counter TEXT NOT NULL,
		created INTEGER NOT NULL,
		UNIQUE (user_id, source_type, source_id, counter)
	);
	`)

	for _, table := range resourceTables() {
		fmt.Fprintf(&b, `
	CREATE TABLE IF NOT EXISTS %[1]s (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		subtitle TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		tags TEXT NOT NULL DEFAULT '[]',
		temperature REAL NOT NULL DEFAULT 0,
		read_count INTEGER NOT NULL DEFAULT 0,
		like_count INTEGER NOT NULL DEFAULT 0,
		collection_count INTEGER NOT NULL DEFAULT 0,
		comment_count INTEGER NOT NULL DEFAULT 0,
		media_type INTEGER NOT NULL DEFAULT 0,
		theme_type INTEGER NOT NULL DEFAULT 0,
		progress INTEGER NOT NULL DEFAULT 0,
		box_office_forecast REAL NOT NULL DEFAULT 0,
		public_praise_forecast REAL NOT NULL DEFAULT 0,
		air_time INTEGER,
		status INTEGER NOT NULL DEFAULT 1,
		created INTEGER NOT NULL,
		updated INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_%[1]s_updated ON %[1]s(updated);
	`, table)
	}

	if _, err := c.db.Exec(b.String()); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// inClause returns "?, ?, ?" for n placeholders and the args as []any.
func inClause(ids []int64) (string, []any) {
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	return strings.Join(placeholders, ", "), args
}
