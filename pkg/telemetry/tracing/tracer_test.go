package tracing

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"multimind-hq/relay/pkg/config"
)

// recordingTracer returns a Tracer backed by an in-memory span recorder.
func recordingTracer(t *testing.T) (*Tracer, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithSpanProcessor(recorder),
	)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	return &Tracer{tracer: tp.Tracer("test"), provider: tp, enabled: true}, recorder
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  *config.TracingConfig
		wantErr bool
	}{
		{
			name:    "nil config",
			config:  nil,
			wantErr: true,
		},
		{
			name: "disabled tracing",
			config: &config.TracingConfig{
				Enabled:     false,
				ServiceName: "test-service",
			},
		},
		{
			name: "enabled with always sampler",
			config: &config.TracingConfig{
				Enabled:     true,
				Sampler:     "always",
				Endpoint:    "localhost:4317",
				ServiceName: "test-service",
				Insecure:    true,
				Timeout:     time.Second,
			},
		},
		{
			name: "enabled with ratio sampler",
			config: &config.TracingConfig{
				Enabled:     true,
				Sampler:     "ratio",
				SampleRatio: 0.5,
				Endpoint:    "localhost:4317",
				ServiceName: "test-service",
				Insecure:    true,
				Timeout:     time.Second,
			},
		},
		{
			name: "unknown sampler",
			config: &config.TracingConfig{
				Enabled:  true,
				Sampler:  "sometimes",
				Endpoint: "localhost:4317",
				Timeout:  time.Second,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracer, err := New(tt.config, "test")
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			defer tracer.Shutdown(ctx)

			if tracer.Enabled() != tt.config.Enabled {
				t.Errorf("Enabled() = %v, want %v", tracer.Enabled(), tt.config.Enabled)
			}

			_, span := tracer.Start(context.Background(), "test-span")
			span.End()
		})
	}
}

func TestDisabledTracer_NoTraceID(t *testing.T) {
	tracer, err := New(&config.TracingConfig{Enabled: false}, "test")
	if err != nil {
		t.Fatal(err)
	}

	ctx, span := tracer.Start(context.Background(), "noop")
	defer span.End()

	if id := TraceID(ctx); id != "" {
		t.Errorf("expected no trace id from noop tracer, got %q", id)
	}
	if err := tracer.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() on disabled tracer = %v", err)
	}
}

func TestTraceAndSpanID(t *testing.T) {
	tracer, _ := recordingTracer(t)

	if TraceID(context.Background()) != "" || SpanID(context.Background()) != "" {
		t.Error("expected empty ids without a span")
	}

	ctx, span := tracer.Start(context.Background(), "op")
	defer span.End()

	if got := TraceID(ctx); len(got) != 32 {
		t.Errorf("TraceID = %q, want 32 hex chars", got)
	}
	if got := SpanID(ctx); len(got) != 16 {
		t.Errorf("SpanID = %q, want 16 hex chars", got)
	}
}

func TestSetError(t *testing.T) {
	tracer, recorder := recordingTracer(t)

	_, failed := tracer.Start(context.Background(), "failed")
	SetError(failed, errors.New("upstream returned 502"))
	failed.End()

	_, ok := tracer.Start(context.Background(), "ok")
	SetError(ok, nil)
	ok.End()

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}

	if spans[0].Status().Code != codes.Error {
		t.Errorf("failed span status = %v", spans[0].Status().Code)
	}
	if len(spans[0].Events()) != 1 || spans[0].Events()[0].Name != "exception" {
		t.Errorf("expected an exception event, got %v", spans[0].Events())
	}
	if spans[1].Status().Code != codes.Ok {
		t.Errorf("ok span status = %v", spans[1].Status().Code)
	}
}

func TestCreateSampler(t *testing.T) {
	tests := []struct {
		strategy string
		ratio    float64
		wantErr  bool
	}{
		{SamplerAlways, 0, false},
		{SamplerNever, 0, false},
		{SamplerRatio, 0.25, false},
		{SamplerRatio, 1.5, true},
		{SamplerRatio, -0.1, true},
		{"adaptive", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.strategy, func(t *testing.T) {
			sampler, err := createSampler(tt.strategy, tt.ratio)
			if (err != nil) != tt.wantErr {
				t.Fatalf("createSampler(%q, %v) error = %v", tt.strategy, tt.ratio, err)
			}
			if err == nil && sampler == nil {
				t.Error("expected a sampler")
			}
		})
	}
}
