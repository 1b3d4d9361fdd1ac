package logging

import (
	"context"
	"log/slog"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestContextKeys(t *testing.T) {
	ctx := context.Background()

	ctx = WithRequestID(ctx, "req-123")
	if got := GetRequestID(ctx); got != "req-123" {
		t.Errorf("GetRequestID() = %q, want %q", got, "req-123")
	}

	ctx = WithProvider(ctx, "openai")
	if got := GetProvider(ctx); got != "openai" {
		t.Errorf("GetProvider() = %q, want %q", got, "openai")
	}

	ctx = WithModel(ctx, "gpt-4")
	if got := GetModel(ctx); got != "gpt-4" {
		t.Errorf("GetModel() = %q, want %q", got, "gpt-4")
	}

	ctx = WithChatID(ctx, "01HQ3Z")
	if got := GetChatID(ctx); got != "01HQ3Z" {
		t.Errorf("GetChatID() = %q, want %q", got, "01HQ3Z")
	}
}

func TestContextKeys_Missing(t *testing.T) {
	ctx := context.Background()

	if GetRequestID(ctx) != "" || GetProvider(ctx) != "" || GetModel(ctx) != "" || GetChatID(ctx) != "" {
		t.Error("expected empty values for an empty context")
	}
	if attrs := contextAttrs(ctx); len(attrs) != 0 {
		t.Errorf("expected no attrs, got %v", attrs)
	}
}

func TestContextAttrs(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithModel(ctx, "claude-2.1")

	attrs := contextAttrs(ctx)
	got := map[string]string{}
	for _, a := range attrs {
		got[a.Key] = a.Value.String()
	}

	if got["request_id"] != "req-1" || got["model"] != "claude-2.1" {
		t.Errorf("unexpected attrs %v", got)
	}
	if _, ok := got["provider"]; ok {
		t.Error("unset fields must not be emitted")
	}
}

func TestContextAttrs_Span(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	var traceID, spanID slog.Value
	for _, a := range contextAttrs(ctx) {
		switch a.Key {
		case "trace_id":
			traceID = a.Value
		case "span_id":
			spanID = a.Value
		}
	}

	if traceID.String() != span.SpanContext().TraceID().String() {
		t.Errorf("trace_id = %q, want %q", traceID.String(), span.SpanContext().TraceID())
	}
	if spanID.String() != span.SpanContext().SpanID().String() {
		t.Errorf("span_id = %q, want %q", spanID.String(), span.SpanContext().SpanID())
	}
}
