// Package providers is the provider-abstraction layer of the relay.
//
// It holds the static registry (ProviderInfo, model catalogs, best and
// default model selection), credential format validation, the APIError
// taxonomy shared by every layer, and Client, the one ChatClient
// implementation. Client validates input, resolves credentials and gateway
// overrides from a CredentialStore, performs the HTTP call with bounded
// exponential backoff and hands the body to a provider Adapter.
//
// Adapters live in subpackages, one per provider:
//
//	openai      chat/completions, bearer auth
//	anthropic   v1/messages, x-api-key
//	google      models/{model}:generateContent, x-goog-api-key
//	openrouter  chat/completions with auto model resolution
//	cloudflare  gateway chat/completions, result.response envelope
//
// Typical use goes through providerfactory:
//
//	factory := providerfactory.New(store, providers.DefaultClientConfig())
//	client, err := factory.Get(providers.OpenAI)
//	if err != nil {
//	    return err
//	}
//	reply, err := client.SendMessage(ctx, "Hello", "gpt-3.5-turbo")
//
// Errors are *APIError values. Use errors.Is with the Err* sentinels, or
// StatusOf, to classify them.
package providers
