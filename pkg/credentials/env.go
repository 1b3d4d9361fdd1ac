package credentials

import (
	"os"
	"strings"

	"multimind-hq/relay/pkg/providers"
)

// EnvStore reads credentials from environment variables named
// <PREFIX>_<PROVIDER>_API_KEY and <PREFIX>_<PROVIDER>_GATEWAY_URL, for
// example MULTIMIND_OPENAI_API_KEY. Variables are read on every call, so
// the store never goes stale.
type EnvStore struct {
	Prefix string
}

// NewEnvStore creates an environment store. An empty prefix uses
// "MULTIMIND".
func NewEnvStore(prefix string) *EnvStore {
	if prefix == "" {
		prefix = "MULTIMIND"
	}
	return &EnvStore{Prefix: strings.TrimSuffix(prefix, "_")}
}

// Credentials implements providers.CredentialStore.
func (s *EnvStore) Credentials() map[providers.Provider]string {
	return s.collect("API_KEY")
}

// GatewayOverrides implements providers.CredentialStore.
func (s *EnvStore) GatewayOverrides() map[providers.Provider]string {
	return s.collect("GATEWAY_URL")
}

// VarName returns the variable holding field for p.
//
// Example: VarName(providers.OpenRouter, "API_KEY") -> "MULTIMIND_OPENROUTER_API_KEY"
func (s *EnvStore) VarName(p providers.Provider, field string) string {
	return s.Prefix + "_" + strings.ToUpper(string(p)) + "_" + field
}

func (s *EnvStore) collect(field string) map[providers.Provider]string {
	out := make(map[providers.Provider]string)
	for _, p := range providers.AllProviders() {
		if v := strings.TrimSpace(os.Getenv(s.VarName(p, field))); v != "" {
			out[p] = v
		}
	}
	return out
}
