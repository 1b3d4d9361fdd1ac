// Package cloudflare implements the adapter for Workers AI models reached
// through a gateway worker.
//
// The gateway exposes an OpenAI-style chat/completions route and answers
// with the Workers AI envelope {"result": {"response": ...}}. Cloudflare
// needs no key of its own; when a token is stored it is forwarded as a
// bearer token.
package cloudflare
