package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fizzyhq/fizzy/internal/model"
	"github.com/spf13/cobra"
)

func printCardResult(card *model.Card) {
	if jsonOutput {
		printJSON(card)
		return
	}
	printCard(card)
}

var closeCmd = &cobra.Command{
	Use:     "close <card-id>",
	Short:   "Close a card",
	GroupID: "workflow",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		card, err := fizzyClient.CloseCard(context.Background(), args[0])
		if err != nil {
			return err
		}
		printCardResult(card)
		return nil
	},
}

var reopenCmd = &cobra.Command{
	Use:     "reopen <card-id>",
	Short:   "Reopen a closed or postponed card",
	GroupID: "workflow",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		card, err := fizzyClient.ReopenCard(context.Background(), args[0])
		if err != nil {
			return err
		}
		printCardResult(card)
		return nil
	},
}

var assignCmd = &cobra.Command{
	Use:     "assign <card-id> <user-id>",
	Short:   "Assign a card to a user",
	GroupID: "workflow",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		card, err := fizzyClient.AssignCard(context.Background(), args[0], args[1])
		if err != nil {
			return err
		}
		printCardResult(card)
		return nil
	},
}

var moveCmd = &cobra.Command{
	Use:     "move <card-id> <board-id>",
	Short:   "Move a card to another board",
	GroupID: "workflow",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		card, err := fizzyClient.MoveCard(context.Background(), args[0], args[1])
		if err != nil {
			return err
		}
		printCardResult(card)
		return nil
	},
}

var postponeCmd = &cobra.Command{
	Use:     "postpone <card-id>",
	Short:   "Postpone an open card",
	GroupID: "workflow",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var until *time.Time
		if cmd.Flags().Changed("until") {
			raw, _ := cmd.Flags().GetString("until")
			t, err := time.Parse("2006-01-02", raw)
			if err != nil {
				return fmt.Errorf("invalid --until date %q (want YYYY-MM-DD): %w", raw, err)
			}
			until = &t
		}

		card, err := fizzyClient.PostponeCard(context.Background(), args[0], until)
		if err != nil {
			return err
		}
		printCardResult(card)
		return nil
	},
}

var watchCardCmd = &cobra.Command{
	Use:     "watch <card-id>",
	Short:   "Watch a card to receive its notifications",
	GroupID: "workflow",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := fizzyClient.Watch(context.Background(), args[0], userID); err != nil {
			return err
		}
		fmt.Printf("watching %s\n", args[0])
		return nil
	},
}

var unwatchCmd = &cobra.Command{
	Use:     "unwatch <card-id>",
	Short:   "Stop watching a card",
	GroupID: "workflow",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := fizzyClient.Unwatch(context.Background(), args[0], userID); err != nil {
			return err
		}
		fmt.Printf("stopped watching %s\n", args[0])
		return nil
	},
}

func init() {
	postponeCmd.Flags().String("until", "", "postpone until this date (YYYY-MM-DD)")
}
