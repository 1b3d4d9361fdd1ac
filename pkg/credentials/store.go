package credentials

import (
	"log/slog"
	"strings"

	"multimind-hq/relay/pkg/config"
	"multimind-hq/relay/pkg/providers"
)

var (
	_ providers.CredentialStore = (*StaticStore)(nil)
	_ providers.CredentialStore = (*EnvStore)(nil)
	_ providers.CredentialStore = (*FileStore)(nil)
	_ providers.CredentialStore = (*Chain)(nil)
)

// StaticStore serves the credentials written in the configuration file.
type StaticStore struct {
	keys     map[providers.Provider]string
	gateways map[providers.Provider]string
}

// NewStaticStore builds a store from the providers section of the
// configuration. Unknown provider names are skipped; config validation
// rejects them earlier.
func NewStaticStore(entries map[string]config.ProviderConfig) *StaticStore {
	s := &StaticStore{
		keys:     make(map[providers.Provider]string),
		gateways: make(map[providers.Provider]string),
	}
	for name, entry := range entries {
		p, err := providers.ParseProvider(name)
		if err != nil {
			slog.Warn("ignoring credentials for unknown provider", "provider", name)
			continue
		}
		if key := strings.TrimSpace(entry.APIKey); key != "" {
			s.keys[p] = key
		}
		if url := strings.TrimSpace(entry.GatewayURL); url != "" {
			s.gateways[p] = url
		}
	}
	return s
}

// Credentials implements providers.CredentialStore.
func (s *StaticStore) Credentials() map[providers.Provider]string {
	return copyMap(s.keys)
}

// GatewayOverrides implements providers.CredentialStore.
func (s *StaticStore) GatewayOverrides() map[providers.Provider]string {
	return copyMap(s.gateways)
}

// Chain merges several stores. For every provider the first store holding a
// value wins, so stores are passed highest precedence first:
//
//	credentials.NewChain(env, file, static)
type Chain struct {
	stores []providers.CredentialStore
}

// NewChain creates a chain over stores. Nil stores are dropped.
func NewChain(stores ...providers.CredentialStore) *Chain {
	c := &Chain{}
	for _, s := range stores {
		if s != nil {
			c.stores = append(c.stores, s)
		}
	}
	return c
}

// Credentials implements providers.CredentialStore.
func (c *Chain) Credentials() map[providers.Provider]string {
	out := make(map[providers.Provider]string)
	for i := len(c.stores) - 1; i >= 0; i-- {
		for p, v := range c.stores[i].Credentials() {
			out[p] = v
		}
	}
	return out
}

// GatewayOverrides implements providers.CredentialStore.
func (c *Chain) GatewayOverrides() map[providers.Provider]string {
	out := make(map[providers.Provider]string)
	for i := len(c.stores) - 1; i >= 0; i-- {
		for p, v := range c.stores[i].GatewayOverrides() {
			out[p] = v
		}
	}
	return out
}

// Configured reports, per provider, whether any store holds a credential.
// Providers that need no key count as configured when they have a gateway.
func Configured(store providers.CredentialStore) map[providers.Provider]bool {
	keys := store.Credentials()
	gateways := store.GatewayOverrides()

	out := make(map[providers.Provider]bool, len(providers.AllProviders()))
	for _, p := range providers.AllProviders() {
		info, _ := providers.Lookup(p)
		if info.RequiresKey {
			out[p] = keys[p] != ""
		} else {
			out[p] = keys[p] != "" || gateways[p] != ""
		}
	}
	return out
}

func copyMap(in map[providers.Provider]string) map[providers.Provider]string {
	out := make(map[providers.Provider]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
