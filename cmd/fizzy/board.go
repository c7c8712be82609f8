package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var boardCmd = &cobra.Command{
	Use:     "board",
	Short:   "Manage boards",
	GroupID: "system",
}

var boardCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a board",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		board, err := fizzyClient.CreateBoard(context.Background(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(board)
			return nil
		}
		fmt.Printf("board %s created (%s)\n", board.ID, board.Name)
		return nil
	},
}

var boardListCmd = &cobra.Command{
	Use:   "list",
	Short: "List boards",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		boards, err := fizzyClient.ListBoards(context.Background())
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(boards)
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tCREATED")
		for _, b := range boards {
			fmt.Fprintf(w, "%s\t%s\t%s\n", b.ID, b.Name, b.CreatedAt.Format("2006-01-02"))
		}
		return w.Flush()
	},
}

func init() {
	boardCmd.AddCommand(boardCreateCmd)
	boardCmd.AddCommand(boardListCmd)
}
