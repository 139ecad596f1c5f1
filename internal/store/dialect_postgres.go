package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"customfields/internal/config"
)

type postgresDialect struct{}

func (postgresDialect) Name() string                   { return "postgres" }
func (postgresDialect) DriverName() string             { return "pgx" }
func (postgresDialect) NewParamBuilder() *ParamBuilder { return &ParamBuilder{marker: "$"} }
func (postgresDialect) NowExpr() string                { return "NOW()" }
func (postgresDialect) SystemTablesSQL() string        { return postgresSchema }

func (postgresDialect) TableExists(ctx context.Context, q Querier, table string) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1)",
		table).Scan(&exists)
	return exists, err
}

func (postgresDialect) OlderThanDays(column string, pb *ParamBuilder, days int) string {
	return fmt.Sprintf("%s < NOW() - make_interval(days => %s)", column, pb.Add(days))
}

// Roles are a TEXT[] column; pgx encodes []string directly.
func (postgresDialect) ArrayParam(values []string) any {
	if values == nil {
		return []string{}
	}
	return values
}

// ScanArray accepts what pgx/stdlib hands back for TEXT[]: a decoded slice
// or the {a,b} literal.
func (postgresDialect) ScanArray(src any) ([]string, error) {
	switch v := src.(type) {
	case nil:
		return []string{}, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, len(v))
		for i, item := range v {
			out[i] = fmt.Sprint(item)
		}
		return out, nil
	case []byte:
		return parseArrayLiteral(string(v))
	case string:
		return parseArrayLiteral(v)
	}
	return nil, fmt.Errorf("scan roles: unexpected %T", src)
}

func parseArrayLiteral(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") {
		var out []string
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return nil, fmt.Errorf("scan roles: %w", err)
		}
		return out, nil
	}
	if !strings.HasPrefix(s, "{") || !strings.HasSuffix(s, "}") {
		return nil, fmt.Errorf("scan roles: not an array literal: %q", s)
	}
	inner := s[1 : len(s)-1]
	out := []string{}
	for _, part := range strings.Split(inner, ",") {
		if part = strings.Trim(strings.TrimSpace(part), `"`); part != "" {
			out = append(out, part)
		}
	}
	return out, nil
}

func (postgresDialect) MapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return errors.Join(ErrUniqueViolation, err)
	}
	return err
}

func (postgresDialect) configure(_ context.Context, db *sql.DB, cfg config.DatabaseConfig) error {
	if cfg.PoolSize > 0 {
		db.SetMaxOpenConns(cfg.PoolSize)
		db.SetMaxIdleConns(cfg.PoolSize)
	}
	return nil
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS _posts (
    id          BIGSERIAL PRIMARY KEY,
    type        TEXT NOT NULL,
    title       TEXT NOT NULL DEFAULT '',
    status      TEXT NOT NULL DEFAULT 'draft',
    created_at  TIMESTAMPTZ DEFAULT NOW(),
    updated_at  TIMESTAMPTZ DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_posts_type ON _posts (type);

CREATE TABLE IF NOT EXISTS _postmeta (
    entity_id   BIGINT NOT NULL REFERENCES _posts(id) ON DELETE CASCADE,
    meta_key    TEXT NOT NULL,
    meta_value  JSONB,
    updated_at  TIMESTAMPTZ DEFAULT NOW(),
    PRIMARY KEY (entity_id, meta_key)
);
CREATE INDEX IF NOT EXISTS idx_postmeta_key ON _postmeta (meta_key);

CREATE TABLE IF NOT EXISTS _options (
    name        TEXT PRIMARY KEY,
    value       JSONB NOT NULL,
    updated_at  TIMESTAMPTZ DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS _users (
    id            UUID PRIMARY KEY,
    email         TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    roles         TEXT[] DEFAULT '{}',
    active        BOOLEAN DEFAULT true,
    created_at    TIMESTAMPTZ DEFAULT NOW(),
    updated_at    TIMESTAMPTZ DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS _events (
    id              UUID PRIMARY KEY DEFAULT gen_random_uuid(),
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
    duration_ms     DOUBLE PRECISION,
    status          TEXT,
    metadata        JSONB,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_events_trace ON _events (trace_id);
CREATE INDEX IF NOT EXISTS idx_events_entity_created ON _events (entity, created_at DESC);
`
