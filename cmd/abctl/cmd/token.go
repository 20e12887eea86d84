package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Exchange and refresh bridge tokens",
}

var exchangeCmd = &cobra.Command{
	Use:   "exchange <parent-token>",
	Short: "Exchange a parent platform token for a bridge session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := apiClient().ExchangeToken(cmd.Context(), args[0], nil)
		if err != nil {
			return fmt.Errorf("exchange failed: %w", err)
		}
		return printJSON(session)
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh <refresh-token>",
	Short: "Mint a fresh session from a refresh token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := apiClient().RefreshToken(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("refresh failed: %w", err)
		}
		return printJSON(session)
	},
}

var sessionCmd = &cobra.Command{
	Use:   "session <access-token>",
	Short: "Show the profile behind an access token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		profile, err := apiClient().GetProfile(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("session lookup failed: %w", err)
		}
		return printJSON(profile)
	},
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	tokenCmd.AddCommand(exchangeCmd)
	tokenCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(sessionCmd)
}
