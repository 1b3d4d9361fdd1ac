package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"multimind-hq/relay/pkg/providers"
	"multimind-hq/relay/pkg/proxy"
	"multimind-hq/relay/pkg/server/api"
)

// Engine is the part of the request engine the HTTP surface drives.
type Engine interface {
	Start() error
	Stop(ctx context.Context) error
	Restart(ctx context.Context) error
	IsRunning() bool
	Status() proxy.Status
	HandleRequest(ctx context.Context, message, model string, provider providers.Provider, opts ...proxy.RequestOption) (*providers.Reply, error)
}

// ProxyHandler serves the engine status and lifecycle controls.
type ProxyHandler struct {
	Engine Engine
}

// NewProxyHandler creates a proxy handler.
func NewProxyHandler(engine Engine) *ProxyHandler {
	return &ProxyHandler{Engine: engine}
}

// Status handles GET /v1/status.
func (h *ProxyHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Engine.Status())
}

// Control handles POST /v1/proxy/{action} with action start, stop or
// restart, and answers with the resulting status.
func (h *ProxyHandler) Control(w http.ResponseWriter, r *http.Request) {
	action := r.PathValue("action")

	var err error
	switch action {
	case "start":
		err = h.Engine.Start()
		if errors.Is(err, proxy.ErrAlreadyRunning) {
			writeBadRequest(w, http.StatusConflict, "already_running", err.Error())
			return
		}
	case "stop":
		err = h.Engine.Stop(r.Context())
	case "restart":
		err = h.Engine.Restart(r.Context())
	default:
		writeBadRequest(w, http.StatusNotFound, "unknown_action", "Unknown proxy action: "+action)
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError,
			api.NewErrorResponse(err.Error(), http.StatusInternalServerError, api.CodeInternalError))
		return
	}

	slog.InfoContext(r.Context(), "proxy lifecycle changed", "action", action)
	writeJSON(w, http.StatusOK, h.Engine.Status())
}
