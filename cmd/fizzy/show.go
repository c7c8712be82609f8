package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:     "show <card-id>",
	Short:   "Show a card with its comments",
	GroupID: "cards",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		withEvents, _ := cmd.Flags().GetBool("events")

		card, err := fizzyClient.GetCard(context.Background(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(card)
			return nil
		}
		printCard(card)

		if withEvents {
			events, err := fizzyClient.GetEvents(context.Background(), args[0])
			if err != nil {
				return err
			}
			fmt.Println()
			printEventList(events)
		}
		return nil
	},
}

func init() {
	showCmd.Flags().Bool("events", false, "include the card's event history")
}
