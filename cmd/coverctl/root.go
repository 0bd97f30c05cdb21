// coverctl drives the operational endpoints of a running coverpulse server:
// the confidence decay sweep and the expired-record cleanup.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	token     string
)

var rootCmd = &cobra.Command{
	Use:   "coverctl",
	Short: "Operator CLI for a coverpulse server",
	Long:  "Triggers maintenance operations (confidence decay sweep, expired-record cleanup) against a running coverpulse instance.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if token == "" {
			token = os.Getenv("ADMIN_TOKEN")
		}
		if token == "" {
			return fmt.Errorf("operator token required: pass --token or set ADMIN_TOKEN")
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server-url", "http://localhost:8080", "base URL of the coverpulse server")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "operator bearer token (defaults to ADMIN_TOKEN)")
}

// postAdmin sends one authenticated request to an /admin endpoint and decodes
// the JSON report into out.
func postAdmin(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serverURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	client := &http.Client{Timeout: 10 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, raw)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode report: %w", err)
	}
	return nil
}

func printReport(report any) error {
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format report: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
