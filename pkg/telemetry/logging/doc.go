// Package logging configures structured logging for the relay.
//
// # Overview
//
// The package builds a log/slog handler that:
//   - Writes JSON or key=value text
//   - Adds request_id, provider, model and chat_id stored in the context
//   - Adds trace_id and span_id when an OpenTelemetry span is active
//   - Masks provider credentials in messages and fields
//
// # Usage
//
//	logger, err := logging.New(logging.Config{
//	    Level:         "info",
//	    Format:        "json",
//	    RedactSecrets: true,
//	})
//	if err != nil {
//	    return err
//	}
//	slog.SetDefault(logger)
//
//	ctx = logging.WithRequestID(ctx, id)
//	slog.InfoContext(ctx, "request queued")  // includes request_id
//
// # Redaction
//
// With RedactSecrets enabled:
//
//   - Provider keys: sk-abc123..., sk-ant-..., sk-or-... → sk-***
//   - Google keys: AIzaSy... → AIza***
//   - Authorization headers: Bearer abc → Bearer ***
//   - Fields named like api_key, token or secret keep only a 4 character prefix
package logging
