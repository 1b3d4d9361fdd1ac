package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies an APIError. Every failure that leaves a client, the
// queue engine or a circuit breaker maps to exactly one kind.
type ErrorKind string

const (
	// KindValidation is client-detected bad input (400). Never retried.
	KindValidation ErrorKind = "validation"

	// KindAuth is a missing or rejected credential (401). Never retried.
	KindAuth ErrorKind = "auth"

	// KindForbidden is an upstream 403. Never retried.
	KindForbidden ErrorKind = "forbidden"

	// KindNotFound is an upstream 404. Never retried.
	KindNotFound ErrorKind = "not_found"

	// KindRateLimit is an upstream 429.
	KindRateLimit ErrorKind = "rate_limit"

	// KindServer is any upstream 5xx. Retryable.
	KindServer ErrorKind = "server"

	// KindNetwork is a transport failure with no HTTP status (status 0). Retryable.
	KindNetwork ErrorKind = "network"

	// KindTimeout means the request exceeded its time budget (408).
	KindTimeout ErrorKind = "timeout"

	// KindCancelled is an explicit abort by the caller.
	KindCancelled ErrorKind = "cancelled"

	// KindCircuitOpen means a breaker rejected the call without running it.
	KindCircuitOpen ErrorKind = "circuit_open"

	// KindInvalidResponse means the upstream answered 2xx with an unusable body (500).
	KindInvalidResponse ErrorKind = "invalid_response"

	// KindNotImplemented marks an operation the provider does not support (501).
	KindNotImplemented ErrorKind = "not_implemented"

	// KindQueueFull is queue backpressure (503).
	KindQueueFull ErrorKind = "queue_full"

	// KindNotRunning means the queue engine is stopped (503).
	KindNotRunning ErrorKind = "not_running"

	// KindClient is any other upstream 4xx.
	KindClient ErrorKind = "client"
)

// Sentinels for errors.Is. They match any APIError of the same kind.
var (
	ErrValidation      = &APIError{Kind: KindValidation}
	ErrAuth            = &APIError{Kind: KindAuth}
	ErrForbidden       = &APIError{Kind: KindForbidden}
	ErrNotFound        = &APIError{Kind: KindNotFound}
	ErrRateLimit       = &APIError{Kind: KindRateLimit}
	ErrServer          = &APIError{Kind: KindServer}
	ErrNetwork         = &APIError{Kind: KindNetwork}
	ErrTimeout         = &APIError{Kind: KindTimeout}
	ErrCancelled       = &APIError{Kind: KindCancelled}
	ErrCircuitOpen     = &APIError{Kind: KindCircuitOpen}
	ErrInvalidResponse = &APIError{Kind: KindInvalidResponse}
	ErrNotImplemented  = &APIError{Kind: KindNotImplemented}
	ErrQueueFull       = &APIError{Kind: KindQueueFull}
	ErrNotRunning      = &APIError{Kind: KindNotRunning}
)

// APIError is the single error type surfaced to consumers of the relay.
// Status mirrors the HTTP status a consumer should render (0 for network
// failures) and Code is a stable machine-readable identifier.
type APIError struct {
	Kind     ErrorKind
	Status   int
	Code     string
	Message  string
	Provider Provider
	Cause    error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Provider != "" {
		if e.Status > 0 {
			return fmt.Sprintf("provider %q error (status %d): %s", e.Provider, e.Status, e.Message)
		}
		return fmt.Sprintf("provider %q error: %s", e.Provider, e.Message)
	}
	return e.Message
}

// Unwrap returns the underlying error for error chain support.
func (e *APIError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an APIError sentinel of the same kind.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// NewError builds an APIError of the given kind with the status implied by it.
func NewError(kind ErrorKind, message string) *APIError {
	return &APIError{
		Kind:    kind,
		Status:  statusForKind(kind),
		Code:    string(kind),
		Message: message,
	}
}

// ValidationError reports bad input detected before any I/O.
func ValidationError(message string) *APIError {
	return NewError(KindValidation, message)
}

// AuthError reports a missing or malformed credential.
func AuthError(p Provider, message string) *APIError {
	err := NewError(KindAuth, message)
	err.Code = "invalid_api_key"
	err.Provider = p
	return err
}

// CancelledError reports a request aborted by its caller.
func CancelledError(cause error) *APIError {
	err := NewError(KindCancelled, "Request cancelled")
	err.Cause = cause
	return err
}

// TimeoutError reports a request that exceeded its time budget.
func TimeoutError(message string, cause error) *APIError {
	err := NewError(KindTimeout, message)
	err.Cause = cause
	return err
}

// NetworkError reports a transport-level failure.
func NetworkError(p Provider, cause error) *APIError {
	err := NewError(KindNetwork, "Network error: unable to reach the provider")
	err.Code = "network_error"
	err.Provider = p
	err.Cause = cause
	return err
}

// InvalidResponseError reports a successful HTTP exchange with an unusable body.
func InvalidResponseError(p Provider, message string) *APIError {
	err := NewError(KindInvalidResponse, message)
	err.Provider = p
	return err
}

// NotImplementedError reports an operation the provider does not support.
func NotImplementedError(p Provider, operation string) *APIError {
	err := NewError(KindNotImplemented, operation+" is not implemented for this provider")
	err.Provider = p
	return err
}

var serverErrorMessages = map[int]string{
	http.StatusInternalServerError: "Internal server error occurred. Please try again later.",
	http.StatusBadGateway:          "Bad gateway. The server is temporarily unavailable.",
	http.StatusServiceUnavailable:  "Service unavailable. Please try again later.",
	http.StatusGatewayTimeout:      "Gateway timeout. The server took too long to respond.",
}

// HTTPError classifies a non-2xx upstream response. message is the text
// extracted from the provider's error envelope and may be empty.
func HTTPError(p Provider, status int, code, message string) *APIError {
	kind := kindForStatus(status)
	if message == "" {
		if m, ok := serverErrorMessages[status]; ok {
			message = m
		} else {
			message = fmt.Sprintf("HTTP error %d", status)
		}
	}
	if code == "" {
		code = string(kind)
	}
	return &APIError{
		Kind:     kind,
		Status:   status,
		Code:     code,
		Message:  message,
		Provider: p,
	}
}

func kindForStatus(status int) ErrorKind {
	switch {
	case status == http.StatusBadRequest:
		return KindValidation
	case status == http.StatusUnauthorized:
		return KindAuth
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusRequestTimeout:
		return KindTimeout
	case status == http.StatusTooManyRequests:
		return KindRateLimit
	case status >= 500:
		return KindServer
	default:
		return KindClient
	}
}

func statusForKind(kind ErrorKind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindTimeout:
		return http.StatusRequestTimeout
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindServer, KindInvalidResponse:
		return http.StatusInternalServerError
	case KindNotImplemented:
		return http.StatusNotImplemented
	case KindCircuitOpen, KindQueueFull, KindNotRunning:
		return http.StatusServiceUnavailable
	case KindClient:
		return http.StatusBadRequest
	default:
		return 0
	}
}

// StatusOf returns the status carried by err, or 0 when err is not an
// APIError. Context errors map to the cancellation and timeout statuses.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusRequestTimeout
	}
	return 0
}

// IsRetryable reports whether a client should retry after err: network
// failures and upstream 5xx only.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Kind == KindNetwork || apiErr.Kind == KindServer
}

// IsUpstreamFailure reports whether err says something about the health of
// the provider rather than about the caller's input. Circuit breakers only
// count these.
func IsUpstreamFailure(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return err != nil && !errors.Is(err, context.Canceled)
	}
	switch apiErr.Kind {
	case KindServer, KindNetwork, KindTimeout, KindInvalidResponse, KindRateLimit:
		return true
	default:
		return false
	}
}
