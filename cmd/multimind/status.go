package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"multimind-hq/relay/pkg/cli"
	"multimind-hq/relay/pkg/proxy"
	"multimind-hq/relay/pkg/server/api"
)

var statusAddr string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the status of a running relay",
	Long: `Query GET /v1/status on a running relay and print queue, rate window
and circuit breaker state.

Examples:
  multimind status
  multimind status --addr 10.0.0.5:8787 -o json`,
	Args: cobra.NoArgs,
	RunE: showStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVar(&statusAddr, "addr", "", "relay address (server.listen_address when empty)")
}

func showStatus(cmd *cobra.Command, _ []string) error {
	f, err := formatter()
	if err != nil {
		return err
	}
	addr := statusAddr
	if addr == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		addr = cfg.Server.ListenAddress
	}

	status, err := fetchStatus(&http.Client{Timeout: 5 * time.Second}, addr)
	if err != nil {
		return cli.NewCommandError("status", err)
	}
	return f.FormatTo(cmd.OutOrStdout(), statusView{Status: *status})
}

func fetchStatus(client *http.Client, addr string) (*proxy.Status, error) {
	url := strings.TrimRight(addr, "/")
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "http://" + url
	}

	resp, err := client.Get(url + "/v1/status")
	if err != nil {
		return nil, fmt.Errorf("relay not reachable at %s: %w", addr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e api.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&e) == nil && e.Error.Message != "" {
			return nil, fmt.Errorf("relay returned %d: %s", resp.StatusCode, e.Error.Message)
		}
		return nil, fmt.Errorf("relay returned %d", resp.StatusCode)
	}

	var status proxy.Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("invalid status response: %w", err)
	}
	return &status, nil
}
