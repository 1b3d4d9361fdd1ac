package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"multimind-hq/relay/pkg/chat"
	"multimind-hq/relay/pkg/history"
	"multimind-hq/relay/pkg/providers"
	"multimind-hq/relay/pkg/proxy"
	"multimind-hq/relay/pkg/server/api"
)

// ChatHandler serves POST /v1/chat: one message, no history.
type ChatHandler struct {
	Engine       Engine
	MaxBodyBytes int64
}

// NewChatHandler creates a one-shot chat handler.
func NewChatHandler(engine Engine, maxBodyBytes int64) *ChatHandler {
	return &ChatHandler{Engine: engine, MaxBodyBytes: maxBodyBytes}
}

// ServeHTTP implements http.Handler.
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req api.ChatRequest
	if !decodeJSON(w, r, h.MaxBodyBytes, &req) {
		return
	}

	p, model, priority, err := req.Validate()
	if err != nil {
		writeError(w, r, err)
		return
	}

	start := time.Now()
	reply, err := h.Engine.HandleRequest(r.Context(), req.Message, model, p, proxy.WithPriority(priority))
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "chat request completed",
		"provider", string(p),
		"model", model,
		"attempts", reply.Attempts,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	writeJSON(w, http.StatusOK, reply)
}

// ChatsHandler serves the chat history API under /v1/chats.
type ChatsHandler struct {
	Service      *chat.Service
	MaxBodyBytes int64
}

// NewChatsHandler creates a chat history handler.
func NewChatsHandler(svc *chat.Service, maxBodyBytes int64) *ChatsHandler {
	return &ChatsHandler{Service: svc, MaxBodyBytes: maxBodyBytes}
}

// CreateChatRequest is the body of POST /v1/chats.
type CreateChatRequest struct {
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

// UpdateChatRequest is the body of PATCH /v1/chats/{id}. Omitted fields
// are left unchanged.
type UpdateChatRequest struct {
	Title    *string `json:"title,omitempty"`
	Provider *string `json:"provider,omitempty"`
	Model    *string `json:"model,omitempty"`
}

// SendRequest is the body of POST /v1/chats/{id}/messages.
type SendRequest struct {
	Message  string `json:"message"`
	Priority string `json:"priority,omitempty"`
}

// List handles GET /v1/chats.
func (h *ChatsHandler) List(w http.ResponseWriter, r *http.Request) {
	chats, err := h.Service.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chats)
}

// Create handles POST /v1/chats.
func (h *ChatsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateChatRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, h.MaxBodyBytes, &req) {
		return
	}

	p, err := parseOptionalProvider(req.Provider)
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.Service.NewChat(r.Context(), p, req.Model)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// Get handles GET /v1/chats/{id}.
func (h *ChatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.Service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Update handles PATCH /v1/chats/{id}.
func (h *ChatsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateChatRequest
	if !decodeJSON(w, r, h.MaxBodyBytes, &req) {
		return
	}
	id := r.PathValue("id")

	var (
		c   *history.Chat
		err error
	)
	if req.Provider != nil || req.Model != nil {
		var p providers.Provider
		if req.Provider != nil {
			if p, err = parseOptionalProvider(*req.Provider); err != nil {
				writeError(w, r, err)
				return
			}
		}
		model := ""
		if req.Model != nil {
			model = *req.Model
		}
		if c, err = h.Service.SetModel(r.Context(), id, p, model); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if req.Title != nil {
		if c, err = h.Service.Rename(r.Context(), id, *req.Title); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if c == nil {
		if c, err = h.Service.Get(r.Context(), id); err != nil {
			writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, c)
}

// Delete handles DELETE /v1/chats/{id}.
func (h *ChatsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteAll handles DELETE /v1/chats.
func (h *ChatsHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	n, err := h.Service.DeleteAll(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// Send handles POST /v1/chats/{id}/messages and answers with the
// assistant's message.
func (h *ChatsHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if !decodeJSON(w, r, h.MaxBodyBytes, &req) {
		return
	}

	var opts []proxy.RequestOption
	if req.Priority != "" {
		priority, err := proxy.ParsePriority(req.Priority)
		if err != nil || priority == proxy.PriorityLow {
			writeError(w, r, providers.ValidationError("priority must be high or medium"))
			return
		}
		opts = append(opts, proxy.WithPriority(priority))
	}

	msg, err := h.Service.Send(r.Context(), r.PathValue("id"), req.Message, opts...)
	if err != nil {
		resp, status := api.FromError(err)
		if c, getErr := h.Service.Get(r.Context(), r.PathValue("id")); getErr == nil {
			resp.Error.Guidance = chat.Guidance(c.Provider, err)
		}
		writeJSON(w, status, resp)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

// Clear handles DELETE /v1/chats/{id}/messages.
func (h *ChatsHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Clear(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseOptionalProvider(name string) (providers.Provider, error) {
	if name == "" {
		return "", nil
	}
	p, err := providers.ParseProvider(name)
	if err != nil {
		return "", providers.ValidationError(err.Error())
	}
	return p, nil
}
