package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"multimind-hq/relay/pkg/cli"
)

var (
	// Global flags
	cfgFile string
	output  string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "multimind",
	Short: "Multimind - rate-limited relay for LLM providers",
	Long: `Multimind relays chat messages to OpenAI, Anthropic, Google, OpenRouter
and Cloudflare Workers AI.

Requests are queued by priority, admitted through a sliding rate window,
retried on transient failures and guarded by a circuit breaker per provider.
Conversations can be kept in a local SQLite history.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return cli.ExitCode(err)
	}
	return cli.ExitOK
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults when empty)")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "text", "output format: text, json")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

// formatter resolves the --output flag.
func formatter() (cli.Formatter, error) {
	format, err := cli.ParseFormat(output)
	if err != nil {
		return nil, cli.NewConfigError("output", err.Error())
	}
	return cli.NewFormatter(format), nil
}
