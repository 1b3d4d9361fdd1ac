// Multimind is a rate-limited, circuit-breaking relay in front of several
// LLM providers.
//
// It queues chat requests by priority, spreads them over a sliding rate
// window, retries transient failures and keeps a breaker per provider. The
// relay is reachable over HTTP, over NATS and from the command line.
//
// Usage:
//
//	# Start the relay with the default configuration
//	multimind run
//
//	# Start with a configuration file
//	multimind run --config /etc/multimind/config.yaml
//
//	# Send one message without starting a server
//	multimind send --provider anthropic "Summarize RFC 9110 in one line"
//
//	# List providers and whether a key is configured
//	multimind providers
//
//	# Store an API key in the credentials file
//	multimind keys set openai sk-...
//
//	# Show the status of a running relay
//	multimind status --addr 127.0.0.1:8787
package main

import "os"

func main() {
	os.Exit(Execute())
}
