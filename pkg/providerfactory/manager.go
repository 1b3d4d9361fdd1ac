package providerfactory

import (
	"log/slog"
	"sort"
	"sync"

	"multimind-hq/relay/pkg/providers"
)

// Factory hands out one live client per provider. Clients are created on
// first use and reused until ClearCache.
type Factory struct {
	creds  providers.CredentialStore
	config providers.ClientConfig
	opts   []providers.ClientOption

	mu      sync.RWMutex
	clients map[providers.Provider]providers.ChatClient
}

// New creates a factory whose clients read credentials from creds.
func New(creds providers.CredentialStore, cfg providers.ClientConfig, opts ...providers.ClientOption) *Factory {
	return &Factory{
		creds:   creds,
		config:  cfg,
		opts:    opts,
		clients: make(map[providers.Provider]providers.ChatClient),
	}
}

// Get returns the cached client for p, creating it if needed. Unknown
// providers fail before anything is built.
func (f *Factory) Get(p providers.Provider) (providers.ChatClient, error) {
	if !p.Valid() {
		return nil, &ConfigError{Provider: string(p), Message: "unknown provider"}
	}

	f.mu.RLock()
	client, ok := f.clients[p]
	f.mu.RUnlock()
	if ok {
		return client, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if client, ok := f.clients[p]; ok {
		return client, nil
	}

	created, err := NewClient(p, f.creds, f.config, f.opts...)
	if err != nil {
		return nil, err
	}
	f.clients[p] = created

	slog.Info("provider client cached",
		"provider", string(p),
		"cached_clients", len(f.clients),
	)
	return created, nil
}

// ClearCache drops every cached client so the next Get rebuilds it. Calls
// already in flight on a dropped client run to completion.
func (f *Factory) ClearCache() {
	f.clear()
}

func (f *Factory) clear() map[providers.Provider]providers.ChatClient {
	f.mu.Lock()
	dropped := f.clients
	f.clients = make(map[providers.Provider]providers.ChatClient)
	f.mu.Unlock()

	if len(dropped) > 0 {
		slog.Info("provider client cache cleared", "dropped", len(dropped))
	}
	return dropped
}

// Cached returns the providers that currently have a live client.
func (f *Factory) Cached() []providers.Provider {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]providers.Provider, 0, len(f.clients))
	for p := range f.clients {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Close empties the cache and stops in-flight calls on every client.
func (f *Factory) Close() error {
	for _, client := range f.clear() {
		client.StopResponse()
	}
	return nil
}
