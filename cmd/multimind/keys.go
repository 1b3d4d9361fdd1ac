package main

import (
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"multimind-hq/relay/pkg/cli"
	"multimind-hq/relay/pkg/credentials"
	"multimind-hq/relay/pkg/providers"
	"multimind-hq/relay/pkg/telemetry/logging"
)

const defaultCredentialsFile = "~/.multimind/credentials.yaml"

var keysFile string

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage provider API keys and gateways",
	Long: `Manage the credentials file.

The file is written with mode 0600. A running relay watching the same file
picks up changes without a restart.

Examples:
  multimind keys set anthropic sk-ant-...
  multimind keys gateway cloudflare https://gateway.ai.cloudflare.com/v1/acct/gw
  multimind keys list`,
}

var keysSetCmd = &cobra.Command{
	Use:   "set <provider> <key>",
	Short: "Store an API key (an empty key removes it)",
	Args:  cobra.ExactArgs(2),
	RunE:  setKey,
}

var keysGatewayCmd = &cobra.Command{
	Use:   "gateway <provider> <url>",
	Short: "Store a gateway URL override (an empty url removes it)",
	Args:  cobra.ExactArgs(2),
	RunE:  setGateway,
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored keys, masked",
	Args:  cobra.NoArgs,
	RunE:  listKeys,
}

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysSetCmd, keysGatewayCmd, keysListCmd)
	keysCmd.PersistentFlags().StringVar(&keysFile, "file", "", "credentials file (credentials.file or "+defaultCredentialsFile+" when empty)")
}

// openKeyFile opens the credentials file named by --file, the configuration
// or the default location, in that order.
func openKeyFile() (*credentials.FileStore, error) {
	path := keysFile
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			return nil, err
		}
		path = cfg.Credentials.File
	}
	if path == "" {
		path = defaultCredentialsFile
	}
	store, err := credentials.NewFileStore(path, false, slog.Default())
	if err != nil {
		return nil, cli.NewCommandError("keys", err)
	}
	return store, nil
}

func setKey(cmd *cobra.Command, args []string) error {
	p, err := providers.ParseProvider(args[0])
	if err != nil {
		return cli.NewConfigError("provider", err.Error())
	}
	store, err := openKeyFile()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.SetKey(p, args[1]); err != nil {
		return cli.NewCommandError("keys set", err)
	}
	if args[1] == "" {
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Removed %s key from %s\n", p, store.Path())
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Saved %s key %s to %s\n", p, logging.RedactAPIKey(args[1]), store.Path())
	}
	return nil
}

func setGateway(cmd *cobra.Command, args []string) error {
	p, err := providers.ParseProvider(args[0])
	if err != nil {
		return cli.NewConfigError("provider", err.Error())
	}
	store, err := openKeyFile()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.SetGateway(p, args[1]); err != nil {
		return cli.NewCommandError("keys gateway", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Saved %s gateway to %s\n", p, store.Path())
	return nil
}

// keyRow is one line of `multimind keys list`.
type keyRow struct {
	Provider providers.Provider `json:"provider"`
	Key      string             `json:"key,omitempty"`
	Gateway  string             `json:"gateway,omitempty"`
}

type keyList []keyRow

func (l keyList) WriteText(w io.Writer) error {
	if len(l) == 0 {
		_, err := fmt.Fprintln(w, "No credentials stored")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PROVIDER\tKEY\tGATEWAY")
	for _, r := range l {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Provider, dash(r.Key), dash(r.Gateway))
	}
	return tw.Flush()
}

func listKeys(cmd *cobra.Command, _ []string) error {
	f, err := formatter()
	if err != nil {
		return err
	}
	store, err := openKeyFile()
	if err != nil {
		return err
	}
	defer store.Close()

	keys := store.Credentials()
	gateways := store.GatewayOverrides()

	var list keyList
	for _, p := range providers.AllProviders() {
		if keys[p] == "" && gateways[p] == "" {
			continue
		}
		row := keyRow{Provider: p, Gateway: gateways[p]}
		if keys[p] != "" {
			row.Key = logging.RedactAPIKey(keys[p])
		}
		list = append(list, row)
	}
	return f.FormatTo(cmd.OutOrStdout(), list)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
