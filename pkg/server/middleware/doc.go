// Package middleware provides the HTTP middleware chain of the relay
// server.
//
// The server applies, outermost first:
//
//	RecoveryMiddleware   panics become a 500 error body
//	tracing middleware   server span per request (pkg/telemetry/tracing)
//	RequestIDMiddleware  X-Request-ID in, out and in every log line
//	LoggingMiddleware    one structured line per request
//	CORSMiddleware       only when server.cors.enabled
package middleware
