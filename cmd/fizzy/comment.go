package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var commentCmd = &cobra.Command{
	Use:     "comment <card-id> <body>",
	Short:   "Comment on a card",
	GroupID: "cards",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mentions, _ := cmd.Flags().GetStringSlice("mention")

		comment, err := fizzyClient.AddComment(context.Background(), args[0], args[1], mentions)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(comment)
			return nil
		}
		fmt.Printf("comment %s added to %s\n", comment.ID, comment.CardID)
		return nil
	},
}

func init() {
	commentCmd.Flags().StringSlice("mention", nil, "user IDs to mention")
}
