package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"customfields/internal/config"
)

type sqliteDialect struct{}

func (sqliteDialect) Name() string                   { return "sqlite" }
func (sqliteDialect) DriverName() string             { return "sqlite" }
func (sqliteDialect) NewParamBuilder() *ParamBuilder { return &ParamBuilder{marker: "?"} }
func (sqliteDialect) NowExpr() string                { return "datetime('now')" }
func (sqliteDialect) SystemTablesSQL() string        { return sqliteSchema }

func (sqliteDialect) TableExists(ctx context.Context, q Querier, table string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?1", table).Scan(&n)
	return n > 0, err
}

func (sqliteDialect) OlderThanDays(column string, pb *ParamBuilder, days int) string {
	return fmt.Sprintf("%s < datetime('now', %s)", column, pb.Add(fmt.Sprintf("-%d days", days)))
}

// Roles are stored as a JSON array in a TEXT column.
func (sqliteDialect) ArrayParam(values []string) any {
	if len(values) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(values)
	return string(b)
}

func (sqliteDialect) ScanArray(src any) ([]string, error) {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	}
	out := []string{}
	if raw = strings.TrimSpace(raw); raw == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return []string{}, fmt.Errorf("scan roles: %w", err)
	}
	return out, nil
}

func (sqliteDialect) MapError(err error) error {
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return errors.Join(ErrUniqueViolation, err)
	}
	return err
}

// configure creates the data directory before the first connection is
// made. The pool is one connection: sqlite has a single writer.
func (sqliteDialect) configure(ctx context.Context, db *sql.DB, cfg config.DatabaseConfig) error {
	if cfg.Path != "" {
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return nil
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS _posts (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    type        TEXT NOT NULL,
    title       TEXT NOT NULL DEFAULT '',
    status      TEXT NOT NULL DEFAULT 'draft',
    created_at  TEXT DEFAULT (datetime('now')),
    updated_at  TEXT DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_posts_type ON _posts (type);

CREATE TABLE IF NOT EXISTS _postmeta (
    entity_id   INTEGER NOT NULL REFERENCES _posts(id) ON DELETE CASCADE,
    meta_key    TEXT NOT NULL,
    meta_value  TEXT,
    updated_at  TEXT DEFAULT (datetime('now')),
    PRIMARY KEY (entity_id, meta_key)
);
CREATE INDEX IF NOT EXISTS idx_postmeta_key ON _postmeta (meta_key);

CREATE TABLE IF NOT EXISTS _options (
    name        TEXT PRIMARY KEY,
    value       TEXT NOT NULL,
    updated_at  TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS _users (
    id            TEXT PRIMARY KEY,
    email         TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    roles         TEXT DEFAULT '[]',
    active        INTEGER DEFAULT 1,
    created_at    TEXT DEFAULT (datetime('now')),
    updated_at    TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS _events (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    trace_id        TEXT NOT NULL,
    span_id         TEXT NOT NULL,
    parent_span_id  TEXT,
    event_type      TEXT NOT NULL,
    source          TEXT NOT NULL,
    component       TEXT NOT NULL,
    action          TEXT NOT NULL,
    entity          TEXT,
    record_id       TEXT,
    user_id         TEXT,
    duration_ms     REAL,
    status          TEXT,
    metadata        TEXT,
    created_at      TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_events_trace ON _events (trace_id);
CREATE INDEX IF NOT EXISTS idx_events_entity_created ON _events (entity, created_at DESC);
`
