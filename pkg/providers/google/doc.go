// Package google implements the Gemini generateContent adapter.
//
// Model ids are normalised to the "models/" form and "auto" resolves to
// gemini-1.0-pro. Gemini can report failures inside an otherwise successful
// body; those are surfaced as typed errors through providers.ErrorParser.
package google
