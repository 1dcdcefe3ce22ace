package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/textscan/internal/api"
	"github.com/jackzampolin/textscan/internal/server/endpoints"
)

var serverURL string

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

var (
	waitAttempts uint
	waitDelay    time.Duration
)

var waitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Wait until the server answers health checks",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := api.NewClient(getServerURL())
		if err := client.WaitReady(cmd.Context(), waitAttempts, waitDelay); err != nil {
			return fmt.Errorf("server at %s not ready: %w", getServerURL(), err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "ready")
		return nil
	},
}

func init() {
	registry := api.NewRegistry()
	for _, ep := range endpoints.All(endpoints.Config{}) {
		registry.Register(ep)
	}
	apiCmd := registry.BuildCommands(getServerURL)

	// Add --server flag to api command (persistent so all subcommands inherit it)
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:8080", "Server URL",
	)

	waitCmd.Flags().UintVar(&waitAttempts, "attempts", 30, "Number of health checks before giving up")
	waitCmd.Flags().DurationVar(&waitDelay, "delay", time.Second, "Delay between health checks")
	apiCmd.AddCommand(waitCmd)

	rootCmd.AddCommand(apiCmd)
}
