package main

import (
	"os"

	"github.com/fizzyhq/fizzy/internal/client"
	"github.com/fizzyhq/fizzy/internal/ui"
	"github.com/spf13/cobra"
)

var (
	serverURL  string
	authToken  string
	accountID  string
	userID     string
	jsonOutput bool

	fizzyClient client.FizzyClient
)

func defaultServerURL() string {
	if s := os.Getenv("FIZZY_URL"); s != "" {
		return s
	}
	if u := activeRemoteURL(); u != "" {
		return u
	}
	return "http://localhost:8080"
}

func defaultToken() string {
	if s := os.Getenv("FIZZY_TOKEN"); s != "" {
		return s
	}
	return activeRemoteToken()
}

func defaultAccount() string {
	if s := os.Getenv("FIZZY_ACCOUNT"); s != "" {
		return s
	}
	return activeRemoteAccount()
}

func defaultUser() string {
	if s := os.Getenv("FIZZY_USER"); s != "" {
		return s
	}
	return activeRemoteUser()
}

var rootCmd = &cobra.Command{
	Use:   "fizzy <command>",
	Short: "CLI client for the fizzy service",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !ui.ShouldUseColor() {
			ui.ForceNoColor()
		}
		fizzyClient = client.NewHTTPClient(serverURL, authToken, accountID, userID)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if fizzyClient != nil {
			fizzyClient.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "url", defaultServerURL(), "server URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", defaultToken(), "bearer token")
	rootCmd.PersistentFlags().StringVar(&accountID, "account", defaultAccount(), "account ID (tenant)")
	rootCmd.PersistentFlags().StringVar(&userID, "user", defaultUser(), "acting user ID")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	rootCmd.AddGroup(
		&cobra.Group{ID: "cards", Title: "Cards:"},
		&cobra.Group{ID: "workflow", Title: "Workflows:"},
		&cobra.Group{ID: "inbox", Title: "Inbox:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)
	cobra.EnableCommandSorting = false

	// Cards
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(commentCmd)

	// Workflows
	rootCmd.AddCommand(closeCmd)
	rootCmd.AddCommand(reopenCmd)
	rootCmd.AddCommand(assignCmd)
	rootCmd.AddCommand(moveCmd)
	rootCmd.AddCommand(postponeCmd)
	rootCmd.AddCommand(watchCardCmd)
	rootCmd.AddCommand(unwatchCmd)

	// Inbox
	rootCmd.AddCommand(inboxCmd)
	rootCmd.AddCommand(streamCmd)

	// System
	rootCmd.AddCommand(accountCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(boardCmd)
	rootCmd.AddCommand(webhookCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(remoteCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
