package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fizzyhq/fizzy/internal/ui"
	"github.com/spf13/cobra"
)

var inboxCmd = &cobra.Command{
	Use:     "inbox",
	Short:   "List your notifications",
	GroupID: "inbox",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		unreadOnly, _ := cmd.Flags().GetBool("unread")

		notifications, err := fizzyClient.ListNotifications(context.Background(), unreadOnly)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(notifications)
			return nil
		}
		if len(notifications) == 0 {
			fmt.Println("inbox empty")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATE\tACTION\tSUBJECT\tACTOR")
		for _, n := range notifications {
			state := "unread"
			if n.ReadAt != nil {
				state = ui.RenderMuted("read")
			}
			action, subject, actor := "", "", ""
			if n.Event != nil {
				action = n.Event.Action.String()
				subject = n.Event.SubjectID
				actor = n.Event.ActorID
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", n.ID, state, action, subject, actor)
		}
		return w.Flush()
	},
}

var inboxReadCmd = &cobra.Command{
	Use:   "read <notification-id>",
	Short: "Mark a notification as read",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := fizzyClient.ReadNotification(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Printf("notification %s marked read\n", args[0])
		return nil
	},
}

var inboxDismissCmd = &cobra.Command{
	Use:   "dismiss <notification-id>",
	Short: "Dismiss a notification",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := fizzyClient.DismissNotification(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Printf("notification %s dismissed\n", args[0])
		return nil
	},
}

func init() {
	inboxCmd.Flags().Bool("unread", false, "only unread notifications")
	inboxCmd.AddCommand(inboxReadCmd)
	inboxCmd.AddCommand(inboxDismissCmd)
}
