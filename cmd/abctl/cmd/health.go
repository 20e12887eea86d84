package cmd

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check whether the bridge server is up",
	RunE: func(cmd *cobra.Command, args []string) error {
		httpClient := &http.Client{Timeout: 5 * time.Second}

		req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, serverURL+"/healthz", nil)
		if err != nil {
			return err
		}
		resp, err := httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("server unreachable: %w", err)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("server unhealthy: status %d: %s", resp.StatusCode, string(body))
		}
		fmt.Println(string(body))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
