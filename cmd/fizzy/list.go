package main

import (
	"context"

	"github.com/fizzyhq/fizzy/internal/client"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List cards",
	GroupID: "cards",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		boardID, _ := cmd.Flags().GetString("board")
		status, _ := cmd.Flags().GetStringSlice("status")
		assignee, _ := cmd.Flags().GetString("assignee")
		search, _ := cmd.Flags().GetString("search")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		resp, err := fizzyClient.ListCards(context.Background(), &client.ListCardsRequest{
			BoardID:  boardID,
			Status:   status,
			Assignee: assignee,
			Search:   search,
			Limit:    limit,
			Offset:   offset,
		})
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(resp)
			return nil
		}
		printCardList(resp.Cards, resp.Total)
		return nil
	},
}

func init() {
	listCmd.Flags().String("board", "", "filter by board ID")
	listCmd.Flags().StringSlice("status", nil, "filter by status (draft, open, closed, postponed)")
	listCmd.Flags().String("assignee", "", "filter by assignee")
	listCmd.Flags().String("search", "", "search in title and description")
	listCmd.Flags().Int("limit", 50, "max cards to return")
	listCmd.Flags().Int("offset", 0, "pagination offset")
}
