package main

import (
	"context"

	"github.com/fizzyhq/fizzy/internal/client"
	"github.com/spf13/cobra"
)

var updateCmd = &cobra.Command{
	Use:     "update <card-id>",
	Short:   "Update a card's title or description",
	GroupID: "cards",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := &client.UpdateCardRequest{}
		if cmd.Flags().Changed("title") {
			title, _ := cmd.Flags().GetString("title")
			req.Title = &title
		}
		if cmd.Flags().Changed("description") {
			description, _ := cmd.Flags().GetString("description")
			req.Description = &description
		}
		if publish, _ := cmd.Flags().GetBool("publish"); publish {
			open := "open"
			req.Status = &open
		}
		mentions, _ := cmd.Flags().GetStringSlice("mention")
		req.Mentions = mentions

		card, err := fizzyClient.UpdateCard(context.Background(), args[0], req)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(card)
			return nil
		}
		printCard(card)
		return nil
	},
}

func init() {
	updateCmd.Flags().String("title", "", "new title")
	updateCmd.Flags().String("description", "", "new description")
	updateCmd.Flags().Bool("publish", false, "publish a draft card")
	updateCmd.Flags().StringSlice("mention", nil, "user IDs to mention")
}
