package store

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"customfields/internal/config"
)

// Dialect covers the SQL that differs between sqlite and postgres. Queries
// that both accept, including INSERT ... ON CONFLICT, are written once.
type Dialect interface {
	// Name is "sqlite" or "postgres".
	Name() string
	DriverName() string
	NewParamBuilder() *ParamBuilder
	NowExpr() string
	SystemTablesSQL() string
	TableExists(ctx context.Context, q Querier, table string) (bool, error)

	// OlderThanDays is a predicate matching rows whose column is more than
	// days old.
	OlderThanDays(column string, pb *ParamBuilder, days int) string

	// ArrayParam encodes a role list for the roles column; ScanArray reverses it.
	ArrayParam(values []string) any
	ScanArray(src any) ([]string, error)

	// MapError wraps driver errors with ErrUniqueViolation where it applies.
	MapError(err error) error

	configure(ctx context.Context, db *sql.DB, cfg config.DatabaseConfig) error
}

// NewDialect returns the dialect for a configured driver. Anything other
// than "postgres" is sqlite.
func NewDialect(driver string) Dialect {
	if driver == "postgres" {
		return postgresDialect{}
	}
	return sqliteDialect{}
}

// ParamBuilder numbers placeholders as it collects arguments: $1, $2 on
// postgres and ?1, ?2 on sqlite.
type ParamBuilder struct {
	marker string
	args   []any
}

// Add records v and returns its placeholder.
func (p *ParamBuilder) Add(v any) string {
	p.args = append(p.args, v)
	return p.marker + strconv.Itoa(len(p.args))
}

// AddAll records every value and returns the placeholders joined by commas.
func (p *ParamBuilder) AddAll(values ...any) string {
	phs := make([]string, len(values))
	for i, v := range values {
		phs[i] = p.Add(v)
	}
	return strings.Join(phs, ", ")
}

func (p *ParamBuilder) Params() []any { return p.args }

// Upsert builds an INSERT of cols that, when the conflict columns already
// exist, overwrites the other columns and stamps updated_at.
func Upsert(d Dialect, pb *ParamBuilder, table string, conflict []string, cols []string, values ...any) string {
	taken := make(map[string]bool, len(conflict))
	for _, c := range conflict {
		taken[c] = true
	}
	var set []string
	for _, c := range cols {
		if !taken[c] {
			set = append(set, c+" = EXCLUDED."+c)
		}
	}
	set = append(set, "updated_at = "+d.NowExpr())
	return "INSERT INTO " + table + " (" + strings.Join(cols, ", ") + ") VALUES (" + pb.AddAll(values...) + ")" +
		" ON CONFLICT (" + strings.Join(conflict, ", ") + ") DO UPDATE SET " + strings.Join(set, ", ")
}
