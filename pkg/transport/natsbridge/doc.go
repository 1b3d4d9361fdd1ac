// Package natsbridge exposes the request engine on a NATS subject.
//
// Requests use the same JSON as POST /v1/chat and are answered on the
// message's reply subject:
//
//	nats req multimind.chat '{"provider":"anthropic","message":"Hello"}'
//	{"success":true,"result":{"response":"Hi!"}}
//
// Failures answer with the HTTP error body. Trace context and the
// X-Request-ID header travel in NATS headers in both directions.
package natsbridge
