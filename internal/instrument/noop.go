package instrument

import "context"

// NoopInstrumenter discards everything. It is what GetInstrumenter returns
// when instrumentation is disabled or the request was sampled out.
type NoopInstrumenter struct{}

func (NoopInstrumenter) StartSpan(ctx context.Context, _, _, _ string) (context.Context, Span) {
	return ctx, NoopSpan{}
}

func (NoopInstrumenter) EmitBusinessEvent(context.Context, string, string, string, map[string]any) {}

// NoopSpan discards all data.
type NoopSpan struct{}

func (NoopSpan) End()                     {}
func (NoopSpan) SetStatus(string)         {}
func (NoopSpan) SetMetadata(string, any)  {}
func (NoopSpan) SetEntity(string, string) {}
func (NoopSpan) TraceID() string          { return "" }
func (NoopSpan) SpanID() string           { return "" }
