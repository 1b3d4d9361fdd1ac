// Package openrouter implements the OpenRouter adapter. OpenRouter speaks the
// OpenAI chat completions dialect and aggregates many vendors, so it is the
// only provider with an auto model.
package openrouter
