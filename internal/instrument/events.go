package instrument

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"customfields/internal/store"
)

const eventSelect = "SELECT id, trace_id, span_id, parent_span_id, event_type, source, component, action, entity, record_id, user_id, duration_ms, status, metadata, created_at FROM _events"

// EventFilter narrows an event listing. Zero values match everything.
type EventFilter struct {
	Source    string
	Component string
	Action    string
	Entity    string
	EventType string
	TraceID   string
	Page      int
	PerPage   int
}

// EventReader queries _events.
type EventReader struct {
	db      *sql.DB
	dialect store.Dialect
}

func NewEventReader(db *sql.DB, dialect store.Dialect) *EventReader {
	return &EventReader{db: db, dialect: dialect}
}

// List returns one page of events, newest first, and the total match count.
func (r *EventReader) List(ctx context.Context, f EventFilter) ([]map[string]any, int64, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 {
		f.PerPage = 50
	}
	if f.PerPage > 100 {
		f.PerPage = 100
	}

	pb := r.dialect.NewParamBuilder()
	var conds []string
	for col, v := range map[string]string{
		"source":     f.Source,
		"component":  f.Component,
		"action":     f.Action,
		"entity":     f.Entity,
		"event_type": f.EventType,
		"trace_id":   f.TraceID,
	} {
		if v != "" {
			conds = append(conds, col+" = "+pb.Add(v))
		}
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	countRow, err := store.QueryRow(ctx, r.db, "SELECT COUNT(*) AS count FROM _events"+where, pb.Params()...)
	if err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}
	total, _ := store.ToInt64(countRow["count"])

	limit := pb.Add(f.PerPage)
	offset := pb.Add((f.Page - 1) * f.PerPage)
	rows, err := store.QueryRows(ctx, r.db, fmt.Sprintf("%s%s ORDER BY created_at DESC, id DESC LIMIT %s OFFSET %s", eventSelect, where, limit, offset), pb.Params()...)
	if err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}
	return decodeMetadata(rows), total, nil
}

// Trace returns every event of a trace in insertion order. It returns
// store.ErrNotFound for an unknown trace.
func (r *EventReader) Trace(ctx context.Context, traceID string) ([]map[string]any, error) {
	pb := r.dialect.NewParamBuilder()
	rows, err := store.QueryRows(ctx, r.db, eventSelect+" WHERE trace_id = "+pb.Add(traceID)+" ORDER BY id ASC", pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("get trace: %w", err)
	}
	if len(rows) == 0 {
		return nil, store.ErrNotFound
	}
	return decodeMetadata(rows), nil
}

func decodeMetadata(rows []map[string]any) []map[string]any {
	if rows == nil {
		return []map[string]any{}
	}
	for _, row := range rows {
		var raw string
		switch v := row["metadata"].(type) {
		case string:
			raw = v
		case []byte:
			raw = string(v)
		default:
			continue
		}
		var m map[string]any
		if json.Unmarshal([]byte(raw), &m) == nil {
			row["metadata"] = m
		}
	}
	return rows
}
