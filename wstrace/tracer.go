// File: wstrace/tracer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Tracer/Span adapt the teacher's api.Tracer/api.Span contract (StartSpan/
// Finish/SetTag/Log/Context) onto a real go.opentelemetry.io/otel backend,
// the way vango-go-vango's pkg/middleware/otel.go resolves a trace.Tracer
// from the global provider and wraps Start/End/RecordError/SetAttributes
// around the caller's own lifecycle events.

package wstrace

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/momentics/wscore/wsconn"
	"github.com/momentics/wscore/wsmsg"
)

// Config configures a Tracer's name.
type Config struct {
	// ServiceName names the otel.Tracer (default "wscore").
	ServiceName string
}

// Option configures a Config.
type Option func(*Config)

// WithServiceName overrides the default "wscore" tracer name.
func WithServiceName(name string) Option { return func(c *Config) { c.ServiceName = name } }

func defaultConfig() Config { return Config{ServiceName: "wscore"} }

// Tracer resolves spans from the process-global OpenTelemetry tracer
// provider, matching the teacher's api.Tracer contract: StartSpan begins a
// unit of work and returns a context.Context carrying the span. There is
// no map-carrier Inject/Extract; span context travels only through that
// context.Context.
type Tracer struct {
	otel oteltrace.Tracer
}

// New resolves a Tracer from the global TracerProvider; callers configure
// that provider themselves (see go.opentelemetry.io/otel's
// SetTracerProvider) before traffic starts, same division of
// responsibility as vango-go-vango's OpenTelemetry middleware.
func New(opts ...Option) *Tracer {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return &Tracer{otel: otel.Tracer(cfg.ServiceName)}
}

// StartSpan begins a span named name as a child of ctx, returning the span
// and a context carrying it for any downstream otel-aware call.
func (t *Tracer) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, *Span) {
	spanCtx, raw := t.otel.Start(ctx, name,
		oteltrace.WithSpanKind(oteltrace.SpanKindServer),
		oteltrace.WithAttributes(attrs...),
	)
	return spanCtx, &Span{raw: raw}
}

// Span wraps an OpenTelemetry span with the teacher's narrower
// Finish/SetTag/Log vocabulary.
type Span struct {
	raw oteltrace.Span
}

// SetTag attaches one attribute to the span. string, bool, int, int64,
// uint16, uint64 and float64 values map to typed OTel attributes; any other
// value is recorded as a string via its String method, or as an empty
// string when it has none, since api.Span.SetTag's contract (key string,
// value any) is broader than OTel's typed attribute.KeyValue.
func (s *Span) SetTag(key string, value any) {
	s.raw.SetAttributes(toAttribute(key, value))
}

// Log records a point-in-time event on the span with the given fields.
func (s *Span) Log(name string, fields map[string]any) {
	attrs := make([]attribute.KeyValue, 0, len(fields))
	for k, v := range fields {
		attrs = append(attrs, toAttribute(k, v))
	}
	s.raw.AddEvent(name, oteltrace.WithAttributes(attrs...))
}

// RecordError marks the span as failed and attaches err.
func (s *Span) RecordError(err error) {
	if err == nil {
		return
	}
	s.raw.RecordError(err)
	s.raw.SetStatus(codes.Error, err.Error())
}

// Finish completes the span. Safe to call at most once per span, matching
// OTel's own End() contract.
func (s *Span) Finish() {
	s.raw.SetStatus(codes.Ok, "")
	s.raw.End()
}

func toAttribute(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case bool:
		return attribute.Bool(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case uint16:
		return attribute.Int(key, int(v))
	case uint64:
		return attribute.Int64(key, int64(v))
	case float64:
		return attribute.Float64(key, v)
	default:
		return attribute.String(key, toString(v))
	}
}

func toString(v any) string {
	if s, ok := v.(stringer); ok {
		return s.String()
	}
	return "" // unknown attribute types are recorded as "" rather than guessed at
}

type stringer interface {
	String() string
}

// Callbacks wraps cb so a span covers the connection's lifetime (from the
// handshake that constructs the Conn to its OnClose) plus one child event
// per inbound message, mirroring the span-per-event shape of
// vango-go-vango's OpenTelemetry middleware. connCtx is the context the
// caller already started a span on (typically the HTTP request context the
// Upgrade happened under); Callbacks starts its own connection-lifetime
// span as a child of it.
func (t *Tracer) Callbacks(connCtx context.Context, cb wsconn.Callbacks) wsconn.Callbacks {
	_, connSpan := t.StartSpan(connCtx, "wscore.connection")

	userOnMessage := cb.OnMessage
	cb.OnMessage = func(payload []byte, kind wsmsg.Kind) {
		connSpan.Log("message", map[string]any{"bytes": len(payload)})
		if userOnMessage != nil {
			userOnMessage(payload, kind)
		}
	}

	userOnClose := cb.OnClose
	cb.OnClose = func(code uint16, reason string) {
		connSpan.SetTag("close_code", code)
		connSpan.Finish()
		if userOnClose != nil {
			userOnClose(code, reason)
		}
	}

	userOnError := cb.OnError
	cb.OnError = func(err error) {
		connSpan.RecordError(err)
		if userOnError != nil {
			userOnError(err)
		}
	}

	return cb
}
