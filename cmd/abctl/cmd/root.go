package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/appboost/bridge/client"
	"github.com/appboost/bridge/log"
)

var (
	appLogger log.Logger

	serverURL string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "abctl",
	Short: "abctl is a CLI tool to interact with the AppBoost bridge API",
	Long:  `A command-line interface for exchanging parent tokens, inspecting sessions, and checking the health of an AppBoost bridge server.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := zerolog.InfoLevel
		if verbose {
			level = zerolog.DebugLevel
		}
		appLogger = log.NewZerologAdapter(level, true)
		appLogger.Debug(cmd.Context(), "abctl starting", map[string]interface{}{"server": serverURL})
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "bridge server base URL")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func apiClient() *client.APIClient {
	return client.NewAPIClient(serverURL)
}
