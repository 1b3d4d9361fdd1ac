package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"multimind-hq/relay/pkg/credentials"
	"multimind-hq/relay/pkg/providers"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List providers and whether a key is configured",
	Long: `List every supported provider with its default model and whether a
credential is available from the environment, the credentials file or the
configuration.`,
	Args: cobra.NoArgs,
	RunE: listProviders,
}

func init() {
	rootCmd.AddCommand(providersCmd)
}

func listProviders(cmd *cobra.Command, _ []string) error {
	f, err := formatter()
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	creds, fileStore, err := credentialChain(cfg, false, slog.Default())
	if err != nil {
		return err
	}
	if fileStore != nil {
		defer fileStore.Close()
	}

	configured := credentials.Configured(creds)
	var list providerList
	for _, info := range providers.Registry() {
		list = append(list, providerRow{
			ID:           info.ID,
			Name:         info.Name,
			Configured:   configured[info.ID],
			DefaultModel: providers.DefaultModel(info.ID),
			Models:       len(providers.StaticModels(info.ID)),
		})
	}
	return f.FormatTo(cmd.OutOrStdout(), list)
}
