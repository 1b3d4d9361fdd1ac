package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"multimind-hq/relay/pkg/credentials"
	"multimind-hq/relay/pkg/providers"
	"multimind-hq/relay/pkg/proxy"
)

// ProviderView is one entry of GET /v1/providers.
type ProviderView struct {
	providers.ProviderInfo
	Configured   bool   `json:"configured"`
	DefaultModel string `json:"default_model"`
	ModelCount   int    `json:"model_count"`
}

// ModelsResponse is the body of GET /v1/providers/{provider}/models.
type ModelsResponse struct {
	Provider providers.Provider `json:"provider"`
	Source   string             `json:"source"`
	Default  string             `json:"default_model"`
	Best     string             `json:"best_model,omitempty"`
	Models   []providers.Model  `json:"models"`
}

// ProvidersHandler lists providers and their models.
type ProvidersHandler struct {
	Clients     proxy.ClientSource
	Credentials providers.CredentialStore
}

// NewProvidersHandler creates a providers handler.
func NewProvidersHandler(clients proxy.ClientSource, creds providers.CredentialStore) *ProvidersHandler {
	return &ProvidersHandler{Clients: clients, Credentials: creds}
}

// List handles GET /v1/providers.
func (h *ProvidersHandler) List(w http.ResponseWriter, r *http.Request) {
	configured := map[providers.Provider]bool{}
	if h.Credentials != nil {
		configured = credentials.Configured(h.Credentials)
	}

	infos := providers.Registry()
	out := make([]ProviderView, 0, len(infos))
	for _, info := range infos {
		out = append(out, ProviderView{
			ProviderInfo: info,
			Configured:   configured[info.ID],
			DefaultModel: providers.DefaultModel(info.ID),
			ModelCount:   len(providers.StaticModels(info.ID)),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// Models handles GET /v1/providers/{provider}/models. With ?remote=1 the
// provider's live listing is fetched; providers without a listing endpoint
// fall back to the built-in catalog.
func (h *ProvidersHandler) Models(w http.ResponseWriter, r *http.Request) {
	p, err := providers.ParseProvider(r.PathValue("provider"))
	if err != nil {
		writeError(w, r, providers.HTTPError("", http.StatusNotFound, "unknown_provider", err.Error()))
		return
	}

	resp := ModelsResponse{
		Provider: p,
		Source:   "static",
		Default:  providers.DefaultModel(p),
		Models:   providers.StaticModels(p),
	}

	if remote, _ := strconv.ParseBool(r.URL.Query().Get("remote")); remote {
		models, err := h.fetch(r, p)
		switch {
		case err == nil:
			resp.Source = "remote"
			resp.Models = models
		case errors.Is(err, providers.ErrNotImplemented):
		default:
			writeError(w, r, err)
			return
		}
	}

	if best, ok := providers.SelectBestModel(p, resp.Models); ok {
		resp.Best = best.ID
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ProvidersHandler) fetch(r *http.Request, p providers.Provider) ([]providers.Model, error) {
	client, err := h.Clients.Get(p)
	if err != nil {
		return nil, err
	}
	return client.FetchModels(r.Context())
}
