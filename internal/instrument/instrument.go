package instrument

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type ctxKey int

const (
	traceIDKey ctxKey = iota
	parentSpanIDKey
	instrumenterKey
	userIDKey
)

// Instrumenter starts spans and emits one-shot business events.
type Instrumenter interface {
	StartSpan(ctx context.Context, source, component, action string) (context.Context, Span)
	EmitBusinessEvent(ctx context.Context, action, entity, recordID string, metadata map[string]any)
}

// Span is a timed operation. End enqueues it.
type Span interface {
	End()
	SetStatus(status string)
	SetMetadata(key string, value any)
	SetEntity(entity, recordID string)
	TraceID() string
	SpanID() string
}

// Event is a row of _events.
type Event struct {
	TraceID      string         `json:"trace_id"`
	SpanID       string         `json:"span_id"`
	ParentSpanID *string        `json:"parent_span_id"`
	EventType    string         `json:"event_type"`
	Source       string         `json:"source"`
	Component    string         `json:"component"`
	Action       string         `json:"action"`
	Entity       *string        `json:"entity"`
	RecordID     *string        `json:"record_id"`
	UserID       *string        `json:"user_id"`
	DurationMs   *float64       `json:"duration_ms"`
	Status       *string        `json:"status"`
	Metadata     map[string]any `json:"metadata"`
	CreatedAt    time.Time      `json:"created_at"`
}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

func GetTraceID(ctx context.Context) string {
	v, _ := ctx.Value(traceIDKey).(string)
	return v
}

func WithInstrumenter(ctx context.Context, inst Instrumenter) context.Context {
	return context.WithValue(ctx, instrumenterKey, inst)
}

// GetInstrumenter returns the instrumenter carried by ctx, or a no-op one.
func GetInstrumenter(ctx context.Context) Instrumenter {
	if inst, ok := ctx.Value(instrumenterKey).(Instrumenter); ok {
		return inst
	}
	return NoopInstrumenter{}
}

// WithUserID records the acting user on spans started from ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func optional(ctx context.Context, key ctxKey) *string {
	if v, ok := ctx.Value(key).(string); ok && v != "" {
		return &v
	}
	return nil
}

func ptr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// BufferedInstrumenter writes spans and events to an EventBuffer.
type BufferedInstrumenter struct {
	buffer *EventBuffer
}

func NewInstrumenter(buffer *EventBuffer) *BufferedInstrumenter {
	return &BufferedInstrumenter{buffer: buffer}
}

// StartSpan opens a span; spans started from the returned context become
// its children.
func (i *BufferedInstrumenter) StartSpan(ctx context.Context, source, component, action string) (context.Context, Span) {
	s := &bufferedSpan{
		buffer:  i.buffer,
		started: time.Now(),
		event: Event{
			TraceID:      GetTraceID(ctx),
			SpanID:       uuid.New().String(),
			ParentSpanID: optional(ctx, parentSpanIDKey),
			EventType:    "system",
			Source:       source,
			Component:    component,
			Action:       action,
			UserID:       optional(ctx, userIDKey),
			Metadata:     make(map[string]any),
		},
	}
	return context.WithValue(ctx, parentSpanIDKey, s.event.SpanID), s
}

func (i *BufferedInstrumenter) EmitBusinessEvent(ctx context.Context, action, entity, recordID string, metadata map[string]any) {
	i.buffer.Enqueue(Event{
		TraceID:      GetTraceID(ctx),
		SpanID:       uuid.New().String(),
		ParentSpanID: optional(ctx, parentSpanIDKey),
		EventType:    "business",
		Source:       "business",
		Component:    "engine",
		Action:       action,
		Entity:       ptr(entity),
		RecordID:     ptr(recordID),
		UserID:       optional(ctx, userIDKey),
		Metadata:     metadata,
	})
}

type bufferedSpan struct {
	mu      sync.Mutex
	buffer  *EventBuffer
	started time.Time
	event   Event
	ended   bool
}

func (s *bufferedSpan) TraceID() string { return s.event.TraceID }
func (s *bufferedSpan) SpanID() string  { return s.event.SpanID }

func (s *bufferedSpan) SetStatus(status string) {
	s.mu.Lock()
	s.event.Status = &status
	s.mu.Unlock()
}

func (s *bufferedSpan) SetMetadata(key string, value any) {
	s.mu.Lock()
	s.event.Metadata[key] = value
	s.mu.Unlock()
}

func (s *bufferedSpan) SetEntity(entity, recordID string) {
	s.mu.Lock()
	s.event.Entity = ptr(entity)
	s.event.RecordID = ptr(recordID)
	s.mu.Unlock()
}

// End is idempotent.
func (s *bufferedSpan) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.ended = true
	ms := float64(time.Since(s.started).Microseconds()) / 1000.0
	s.event.DurationMs = &ms
	s.buffer.Enqueue(s.event)
}
