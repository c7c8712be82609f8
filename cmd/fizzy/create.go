package main

import (
	"context"

	"github.com/fizzyhq/fizzy/internal/client"
	"github.com/spf13/cobra"
)

var createCmd = &cobra.Command{
	Use:     "create <title>",
	Short:   "Create a card",
	GroupID: "cards",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		boardID, _ := cmd.Flags().GetString("board")
		description, _ := cmd.Flags().GetString("description")
		assignee, _ := cmd.Flags().GetString("assignee")
		draft, _ := cmd.Flags().GetBool("draft")
		mentions, _ := cmd.Flags().GetStringSlice("mention")

		req := &client.CreateCardRequest{
			BoardID:     boardID,
			Title:       args[0],
			Description: description,
			AssigneeID:  assignee,
			Mentions:    mentions,
		}
		if draft {
			req.Status = "draft"
		}

		card, err := fizzyClient.CreateCard(context.Background(), req)
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
	createCmd.Flags().String("board", "", "board ID (required)")
	createCmd.Flags().String("description", "", "card description")
	createCmd.Flags().String("assignee", "", "assignee user ID")
	createCmd.Flags().Bool("draft", false, "create as an invisible draft")
	createCmd.Flags().StringSlice("mention", nil, "user IDs to mention")
	createCmd.MarkFlagRequired("board")
}
