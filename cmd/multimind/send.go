package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"multimind-hq/relay/pkg/chat"
	"multimind-hq/relay/pkg/cli"
	"multimind-hq/relay/pkg/providers"
	"multimind-hq/relay/pkg/proxy"
	"multimind-hq/relay/pkg/telemetry/logging"
)

var sendFlags struct {
	provider string
	model    string
	priority string
	chatID   string
	timeout  time.Duration
	quiet    bool
}

var sendCmd = &cobra.Command{
	Use:   "send [message]",
	Short: "Send one message through the relay engine",
	Long: `Send one message through an in-process engine and print the reply.

The message is taken from the arguments, or from stdin when the only
argument is "-". With --chat the message is sent in an existing chat and
both turns are stored in the history.

Examples:
  # Ask the default OpenAI model
  multimind send "What is a circuit breaker?"

  # Pick provider and model
  multimind send --provider anthropic --model claude-3-haiku-20240307 "Hello"

  # Pipe a prompt
  cat prompt.txt | multimind send --provider google -

  # Continue a stored chat
  multimind send --chat 01J8Z3N5W6V7X8Y9Z0ABCDEF12 "And in Go?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: sendMessage,
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringVarP(&sendFlags.provider, "provider", "p", string(providers.OpenAI), "provider name")
	sendCmd.Flags().StringVarP(&sendFlags.model, "model", "m", "", "model id (provider default when empty)")
	sendCmd.Flags().StringVar(&sendFlags.priority, "priority", "medium", "queue priority: high, medium, low")
	sendCmd.Flags().StringVar(&sendFlags.chatID, "chat", "", "send within this stored chat")
	sendCmd.Flags().DurationVar(&sendFlags.timeout, "timeout", 2*time.Minute, "overall deadline")
	sendCmd.Flags().BoolVarP(&sendFlags.quiet, "quiet", "q", false, "no spinner")
}

// sendResult is what `send -o json` prints.
type sendResult struct {
	Provider  providers.Provider    `json:"provider"`
	Model     string                `json:"model"`
	Response  string                `json:"response"`
	Usage     *providers.TokenUsage `json:"usage,omitempty"`
	ElapsedMS int64                 `json:"elapsed_ms"`
}

func (r sendResult) WriteText(w io.Writer) error {
	_, err := fmt.Fprintln(w, r.Response)
	return err
}

func sendMessage(cmd *cobra.Command, args []string) error {
	f, err := formatter()
	if err != nil {
		return err
	}
	message, err := readMessage(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}
	provider, err := providers.ParseProvider(sendFlags.provider)
	if err != nil {
		return cli.NewConfigError("provider", err.Error())
	}
	priority, err := proxy.ParsePriority(sendFlags.priority)
	if err != nil {
		return cli.NewConfigError("priority", err.Error())
	}
	model := sendFlags.model
	if model == "" {
		model = providers.DefaultModel(provider)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// keep stderr for the spinner unless asked for more
	logCfg := cfg.Telemetry.Logging
	if !verbose {
		logCfg.Level = "error"
	}
	logger, err := newLogger(&logCfg, cmd.ErrOrStderr(), nil)
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)

	a, err := buildApp(cfg, logger, appOptions{history: sendFlags.chatID != ""})
	if err != nil {
		return cli.NewCommandError("send", err)
	}
	defer a.close(context.Background())

	if err := a.engine.Start(); err != nil {
		return cli.NewCommandError("send", err)
	}

	ctx, cancel := cli.SetupSignalHandler()
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, sendFlags.timeout)
	defer cancelTimeout()
	ctx = logging.WithRequestID(ctx, "cli")

	var spinner *cli.Spinner
	if !sendFlags.quiet {
		spinner = cli.NewSpinner(cmd.ErrOrStderr())
		spinner.Start("Waiting for " + string(provider))
	}
	start := time.Now()

	result := sendResult{Provider: provider, Model: model}
	if sendFlags.chatID != "" {
		err = sendInChat(ctx, a, message, priority, &result)
	} else {
		var reply *providers.Reply
		reply, err = a.engine.HandleRequest(ctx, message, model, provider, proxy.WithPriority(priority))
		if err == nil {
			result.Response = reply.Result.Response
			result.Usage = reply.Result.Usage
		}
	}

	if spinner != nil {
		spinner.Stop()
	}
	if err != nil {
		if hint := chat.Guidance(result.Provider, err); hint != "" {
			fmt.Fprintln(cmd.ErrOrStderr(), hint)
		}
		return cli.NewCommandError("send", err)
	}

	result.ElapsedMS = time.Since(start).Milliseconds()
	return f.FormatTo(cmd.OutOrStdout(), result)
}

func sendInChat(ctx context.Context, a *app, message string, priority proxy.Priority, result *sendResult) error {
	if a.chats == nil {
		return errors.New("chat history is disabled in the configuration")
	}
	c, err := a.chats.Get(ctx, sendFlags.chatID)
	if err != nil {
		return err
	}
	result.Provider, result.Model = c.Provider, c.Model

	answer, err := a.chats.Send(ctx, c.ID, message, proxy.WithPriority(priority))
	if err != nil {
		return err
	}
	result.Response = answer.Content
	return nil
}

func readMessage(stdin io.Reader, args []string) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		if stdin == nil {
			stdin = os.Stdin
		}
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read message from stdin: %w", err)
		}
		args = []string{string(data)}
	}
	message := strings.TrimSpace(strings.Join(args, " "))
	if message == "" {
		return "", cli.NewConfigError("message", "Message cannot be empty")
	}
	return message, nil
}
