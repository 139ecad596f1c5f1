package instrument

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"customfields/internal/config"
	"customfields/internal/store"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(context.Background(), config.DatabaseConfig{Driver: "sqlite", Path: t.TempDir(), Name: "events"})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.Bootstrap(context.Background()))
	return s
}

func TestSpanAndBusinessEvent_Flush(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	buf := NewEventBuffer(s.DB, s.Dialect, 100, 0)
	inst := NewInstrumenter(buf)

	ctx = WithUserID(WithTraceID(ctx, "trace-1"), "user-1")
	child, span := inst.StartSpan(ctx, "engine", "save", "fields.save")
	span.SetEntity("person", "42")
	span.SetMetadata("persisted", 2)
	inst.EmitBusinessEvent(child, "field.persisted", "person", "42", map[string]any{"field": "email"})
	span.SetStatus("ok")
	span.End()
	span.End()

	assert.Equal(t, 2, buf.Pending())
	buf.Flush(ctx)
	assert.Equal(t, 0, buf.Pending())

	rows, err := NewEventReader(s.DB, s.Dialect).Trace(ctx, "trace-1")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	business, system := rows[0], rows[1]
	assert.Equal(t, "business", business["event_type"])
	assert.Equal(t, span.SpanID(), business["parent_span_id"])
	assert.Equal(t, map[string]any{"field": "email"}, business["metadata"])
	assert.Equal(t, "user-1", business["user_id"])

	assert.Equal(t, "system", system["event_type"])
	assert.Equal(t, "fields.save", system["action"])
	assert.Equal(t, "ok", system["status"])
	assert.Nil(t, system["parent_span_id"])
}

func TestEventReader_ListFiltersAndPages(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	buf := NewEventBuffer(s.DB, s.Dialect, 100, 0)
	inst := NewInstrumenter(buf)
	for i := 0; i < 3; i++ {
		inst.EmitBusinessEvent(ctx, "field.persisted", "person", "1", nil)
	}
	inst.EmitBusinessEvent(ctx, "field.persist_failed", "project", "2", nil)
	buf.Stop()

	r := NewEventReader(s.DB, s.Dialect)
	rows, total, err := r.List(ctx, EventFilter{Entity: "person", PerPage: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, rows, 2)

	rows, _, err = r.List(ctx, EventFilter{Entity: "person", PerPage: 2, Page: 2})
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	rows, total, err = r.List(ctx, EventFilter{Action: "field.persist_failed"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "project", rows[0]["entity"])

	_, err = r.Trace(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCleanupOldEvents(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	_, err := s.DB.ExecContext(ctx, `INSERT INTO _events (trace_id, span_id, event_type, source, component, action, created_at)
		VALUES ('t', 'old', 'system', 'http', 'handler', 'request', datetime('now', '-30 days')),
		       ('t', 'new', 'system', 'http', 'handler', 'request', datetime('now'))`)
	require.NoError(t, err)

	n, err := CleanupOldEvents(ctx, s.DB, s.Dialect, 7)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = CleanupOldEvents(ctx, s.DB, s.Dialect, 0)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMiddleware_PropagatesTraceID(t *testing.T) {
	s := testStore(t)
	buf := NewEventBuffer(s.DB, s.Dialect, 100, 0)
	app := fiber.New()
	app.Use(Middleware(config.InstrumentationConfig{Enabled: true, SamplingRate: 1}, buf))

	var seen string
	app.Get("/ping", func(c *fiber.Ctx) error {
		seen = GetTraceID(c.UserContext())
		_, ok := GetInstrumenter(c.UserContext()).(*BufferedInstrumenter)
		assert.True(t, ok)
		return c.SendString("pong")
	})

	req := httptest.NewRequest("GET", "/ping", nil)
	req.Header.Set("X-Trace-ID", "abc")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "abc", resp.Header.Get("X-Trace-ID"))
	assert.Equal(t, "abc", seen)
	assert.Equal(t, 1, buf.Pending())
}

func TestMiddleware_Disabled(t *testing.T) {
	app := fiber.New()
	app.Use(Middleware(config.InstrumentationConfig{Enabled: false}, nil))
	app.Get("/ping", func(c *fiber.Ctx) error {
		_, noop := GetInstrumenter(c.UserContext()).(NoopInstrumenter)
		assert.True(t, noop)
		return nil
	})
	_, err := app.Test(httptest.NewRequest("GET", "/ping", nil))
	require.NoError(t, err)
}
