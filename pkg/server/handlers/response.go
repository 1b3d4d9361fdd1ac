package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"multimind-hq/relay/pkg/server/api"
)

// DefaultMaxBodyBytes bounds request bodies when no limit is configured.
const DefaultMaxBodyBytes int64 = 256 << 10

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

// writeError renders err as the standard error body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp, status := api.FromError(err)
	if status >= 500 {
		slog.ErrorContext(r.Context(), "request failed", "status", status, "code", resp.Error.Code, "error", err)
	}
	writeJSON(w, status, resp)
}

func writeBadRequest(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, api.NewErrorResponse(message, status, code))
}

// decodeJSON reads a bounded JSON body into v and answers the request
// itself when the body is unusable.
func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, v any) bool {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeBadRequest(w, http.StatusRequestEntityTooLarge, api.CodeRequestTooLarge,
				"Request body too large")
		case errors.Is(err, io.EOF):
			writeBadRequest(w, http.StatusBadRequest, api.CodeInvalidJSON, "Request body is empty")
		default:
			writeBadRequest(w, http.StatusBadRequest, api.CodeInvalidJSON, "Invalid JSON: "+err.Error())
		}
		return false
	}
	return true
}
