// Package openai implements the OpenAI adapter.
//
// Requests go to {base}/chat/completions with bearer authentication, where
// base is https://api.openai.com/v1 unless a gateway override is stored.
// Model listing uses GET {base}/models and keeps chat-capable GPT models.
package openai
