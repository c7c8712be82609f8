package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fizzyhq/fizzy/internal/ui"
	"github.com/spf13/cobra"
)

var webhookCmd = &cobra.Command{
	Use:     "webhook",
	Short:   "Manage webhooks",
	GroupID: "system",
}

var webhookAddCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Register a webhook endpoint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := fizzyClient.CreateWebhook(context.Background(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(resp)
			return nil
		}
		fmt.Printf("webhook %s created\n", resp.ID)
		// The secret is only shown once; there is no way to fetch it later.
		fmt.Printf("signing secret: %s\n", resp.Secret)
		return nil
	},
}

var webhookListCmd = &cobra.Command{
	Use:   "list",
	Short: "List webhooks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		webhooks, err := fizzyClient.ListWebhooks(context.Background())
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(webhooks)
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tURL\tSTATE")
		for _, wh := range webhooks {
			state := ui.RenderOK("active")
			if !wh.Active {
				state = ui.RenderMuted("inactive")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", wh.ID, wh.URL, state)
		}
		return w.Flush()
	},
}

var webhookRemoveCmd = &cobra.Command{
	Use:   "remove <webhook-id>",
	Short: "Deactivate a webhook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := fizzyClient.DeactivateWebhook(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Printf("webhook %s deactivated\n", args[0])
		return nil
	},
}

var webhookDeliveriesCmd = &cobra.Command{
	Use:   "deliveries <webhook-id>",
	Short: "Show a webhook's delivery history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deliveries, err := fizzyClient.ListDeliveries(context.Background(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(deliveries)
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "EVENT\tATTEMPT\tSTATUS\tAT\tERROR")
		for _, d := range deliveries {
			status := "-"
			if d.ResponseStatus != nil {
				status = fmt.Sprintf("%d", *d.ResponseStatus)
			}
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
				d.EventID, d.Attempt, status,
				d.AttemptedAt.Format("2006-01-02 15:04:05"), d.Error)
		}
		return w.Flush()
	},
}

func init() {
	webhookCmd.AddCommand(webhookAddCmd)
	webhookCmd.AddCommand(webhookListCmd)
	webhookCmd.AddCommand(webhookRemoveCmd)
	webhookCmd.AddCommand(webhookDeliveriesCmd)
}
