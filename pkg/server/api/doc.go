// Package api defines the JSON shapes of the relay's HTTP and NATS
// surfaces.
//
// A chat request names a provider, an optional model and the user's text:
//
//	{"provider": "anthropic", "model": "claude-3-opus-20240229", "message": "Hello"}
//
// Success is the provider reply as the client produced it:
//
//	{"success": true, "result": {"response": "Hi!", "usage": {...}}}
//
// Failures carry the relay's classification of the error:
//
//	{"error": {"message": "Queue is full", "status": 503, "code": "queue_full"}}
package api
