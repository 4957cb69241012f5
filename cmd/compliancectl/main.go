// Command compliancectl submits campaigns for compliance analysis and inspects results.
package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"CampaignCompliance/internal/client"
)

var (
	version = "dev"

	serverURL  string
	outputFlag string
	timeout    time.Duration
	api        *client.Client
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "compliancectl",
		Short: "CLI for the campaign compliance service",
		Long: `compliancectl talks to the compliance server HTTP API.

It uploads guidelines, submits campaign content for the three-layer
compliance analysis and follows an analysis until it settles.`,
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if _, err := parseOutputFormat(outputFlag); err != nil {
				return err
			}
			api = client.New(serverURL, nil)
			return nil
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("COMPLIANCE_SERVER", "http://localhost:8080"), "Compliance server URL")
	rootCmd.PersistentFlags().StringVarP(&outputFlag, "output", "o", "table", "Output format: table, json, yaml")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Minute, "Overall deadline for the command")

	rootCmd.AddCommand(newSubmitCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newAnalysesCmd())
	rootCmd.AddCommand(newGuidelinesCmd())
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
