package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check server health",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := fizzyClient.Health(context.Background())
		if err != nil {
			return err
		}
		fmt.Println(status)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:     "stats",
	Short:   "Show account and queue statistics",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet,
			strings.TrimRight(serverURL, "/")+"/v1/stats", nil)
		if err != nil {
			return err
		}
		req.Header.Set("X-Fizzy-Account", accountID)
		if authToken != "" {
			req.Header.Set("Authorization", "Bearer "+authToken)
		}

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("server returned %d", resp.StatusCode)
		}

		var stats struct {
			Cards         map[string]int `json:"cards"`
			Jobs          map[string]int `json:"jobs"`
			StreamClients int            `json:"stream_clients"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
			return err
		}
		if jsonOutput {
			printJSON(stats)
			return nil
		}

		fmt.Println("Cards:")
		for _, status := range []string{"draft", "open", "postponed", "closed"} {
			if n := stats.Cards[status]; n > 0 {
				fmt.Printf("  %-10s %d\n", status, n)
			}
		}
		fmt.Println("Jobs:")
		for _, status := range []string{"pending", "running", "done", "dead"} {
			if n := stats.Jobs[status]; n > 0 {
				fmt.Printf("  %-10s %d\n", status, n)
			}
		}
		fmt.Printf("Stream clients: %d\n", stats.StreamClients)
		return nil
	},
}
