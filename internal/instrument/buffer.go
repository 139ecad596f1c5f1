package instrument

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"customfields/internal/store"
)

var eventColumns = []string{
	"trace_id", "span_id", "parent_span_id", "event_type", "source", "component",
	"action", "entity", "record_id", "user_id", "duration_ms", "status", "metadata",
}

// EventBuffer collects events in memory and writes them to _events in one
// batch insert, either on a timer or when maxSize events are pending.
type EventBuffer struct {
	db      *sql.DB
	dialect store.Dialect
	maxSize int

	mu     sync.Mutex
	events []Event

	ticker *time.Ticker
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewEventBuffer starts the flush loop. A non-positive interval disables
// the timer; events are then written only when the buffer fills or on Stop.
func NewEventBuffer(db *sql.DB, dialect store.Dialect, maxSize, flushIntervalMs int) *EventBuffer {
	if maxSize <= 0 {
		maxSize = 500
	}
	eb := &EventBuffer{db: db, dialect: dialect, maxSize: maxSize, done: make(chan struct{})}
	if flushIntervalMs > 0 {
		eb.ticker = time.NewTicker(time.Duration(flushIntervalMs) * time.Millisecond)
		eb.wg.Add(1)
		go eb.run()
	}
	return eb
}

func (eb *EventBuffer) run() {
	defer eb.wg.Done()
	for {
		select {
		case <-eb.done:
			return
		case <-eb.ticker.C:
			eb.Flush(context.Background())
		}
	}
}

// Enqueue adds an event; a full buffer is flushed in the background.
func (eb *EventBuffer) Enqueue(event Event) {
	eb.mu.Lock()
	eb.events = append(eb.events, event)
	full := len(eb.events) >= eb.maxSize
	eb.mu.Unlock()
	if full {
		go eb.Flush(context.Background())
	}
}

// Pending returns the number of events not yet written.
func (eb *EventBuffer) Pending() int {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	return len(eb.events)
}

// Flush writes every pending event. Failed batches are logged and dropped.
func (eb *EventBuffer) Flush(ctx context.Context) {
	eb.mu.Lock()
	batch := eb.events
	eb.events = nil
	eb.mu.Unlock()
	if len(batch) == 0 {
		return
	}
	if err := eb.insert(ctx, batch); err != nil {
		zap.S().Errorf("event buffer: dropped %d events: %v", len(batch), err)
	}
}

func (eb *EventBuffer) insert(ctx context.Context, batch []Event) error {
	tx, err := eb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if eb.dialect.Name() == "postgres" {
		if _, err := tx.ExecContext(ctx, "SET LOCAL synchronous_commit = off"); err != nil {
			return fmt.Errorf("synchronous_commit: %w", err)
		}
	}

	pb := eb.dialect.NewParamBuilder()
	rows := make([]string, 0, len(batch))
	for _, e := range batch {
		var meta any
		if e.Metadata != nil {
			b, err := json.Marshal(e.Metadata)
			if err != nil {
				return fmt.Errorf("encode metadata for %s: %w", e.Action, err)
			}
			meta = string(b)
		}
		values := []any{e.TraceID, e.SpanID, e.ParentSpanID, e.EventType, e.Source, e.Component,
			e.Action, e.Entity, e.RecordID, e.UserID, e.DurationMs, e.Status, meta}
		ph := make([]string, len(values))
		for i, v := range values {
			ph[i] = pb.Add(v)
		}
		rows = append(rows, "("+strings.Join(ph, ", ")+")")
	}

	sqlStr := fmt.Sprintf("INSERT INTO _events (%s) VALUES %s", strings.Join(eventColumns, ", "), strings.Join(rows, ", "))
	if _, err := tx.ExecContext(ctx, sqlStr, pb.Params()...); err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	return tx.Commit()
}

// Stop halts the timer and writes whatever is left.
func (eb *EventBuffer) Stop() {
	if eb.ticker != nil {
		eb.ticker.Stop()
	}
	close(eb.done)
	eb.wg.Wait()
	eb.Flush(context.Background())
}
