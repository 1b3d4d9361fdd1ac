package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"multimind-hq/relay/pkg/cli"
	"multimind-hq/relay/pkg/config"
	"multimind-hq/relay/pkg/providerfactory"
	"multimind-hq/relay/pkg/providers"
)

var modelsRemote bool

var modelsCmd = &cobra.Command{
	Use:   "models <provider>",
	Short: "List the models of a provider",
	Long: `List the models a provider offers.

By default the built-in catalog is shown. With --remote the provider's live
model listing is fetched using the configured credentials; providers
without a listing endpoint fall back to the catalog.

Examples:
  multimind models anthropic
  multimind models openrouter --remote -o json`,
	Args: cobra.ExactArgs(1),
	RunE: listModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.Flags().BoolVar(&modelsRemote, "remote", false, "fetch the provider's live model list")
}

func listModels(cmd *cobra.Command, args []string) error {
	f, err := formatter()
	if err != nil {
		return err
	}
	p, err := providers.ParseProvider(args[0])
	if err != nil {
		return cli.NewConfigError("provider", err.Error())
	}

	list := modelList{
		Provider: p,
		Source:   "static",
		Default:  providers.DefaultModel(p),
		Models:   providers.StaticModels(p),
	}

	if modelsRemote {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		models, err := fetchModels(cmd.Context(), cfg, p)
		switch {
		case err == nil:
			list.Source = "remote"
			list.Models = models
		case errors.Is(err, providers.ErrNotImplemented):
			slog.Debug("provider has no model listing, using catalog", "provider", p)
		default:
			return cli.NewCommandError("models", err)
		}
	}

	return f.FormatTo(cmd.OutOrStdout(), list)
}

func fetchModels(ctx context.Context, cfg *config.Config, p providers.Provider) ([]providers.Model, error) {
	creds, fileStore, err := credentialChain(cfg, false, slog.Default())
	if err != nil {
		return nil, err
	}
	if fileStore != nil {
		defer fileStore.Close()
	}

	factory := providerfactory.New(creds, clientConfig(&cfg.Client))
	defer factory.Close()

	client, err := factory.Get(p)
	if err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return client.FetchModels(ctx)
}
