// Package credentials supplies provider API keys and gateway overrides to
// the provider clients.
//
// Three stores implement providers.CredentialStore:
//
//   - StaticStore: the providers section of the configuration file
//   - EnvStore: MULTIMIND_<PROVIDER>_API_KEY and MULTIMIND_<PROVIDER>_GATEWAY_URL
//   - FileStore: a 0600 YAML file, optionally watched with fsnotify
//
// Chain layers them, highest precedence first:
//
//	store := credentials.NewChain(env, file, static)
//	factory := providerfactory.New(store, clientCfg)
//	file.OnChange(factory.ClearCache)
//
// Clients read credentials on every request, so a rotated key is used by the
// next call; clearing the factory cache also drops pooled connections.
package credentials
