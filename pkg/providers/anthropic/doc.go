// Package anthropic implements the Anthropic Messages API adapter.
//
// Requests go to {base}/v1/messages with the x-api-key and
// anthropic-version headers. When a gateway override points at an
// OpenAI-compatible intermediary, the shared choices and result envelopes
// are accepted as well.
//
// Anthropic has no model listing endpoint wired here; FetchModels fails
// with providers.ErrNotImplemented and callers fall back to the static
// catalog.
package anthropic
