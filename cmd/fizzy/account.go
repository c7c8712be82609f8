package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var accountCmd = &cobra.Command{
	Use:     "account",
	Short:   "Manage accounts",
	GroupID: "system",
}

var accountCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new account (tenant)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		account, err := fizzyClient.CreateAccount(context.Background(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(account)
			return nil
		}
		fmt.Printf("account %s created (%s)\n", account.ID, account.Name)
		return nil
	},
}

var userCmd = &cobra.Command{
	Use:     "user",
	Short:   "Manage users in the current account",
	GroupID: "system",
}

var userAddCmd = &cobra.Command{
	Use:   "add <handle>",
	Short: "Add a user to the account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")

		user, err := fizzyClient.CreateUser(context.Background(), args[0], name)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(user)
			return nil
		}
		fmt.Printf("user %s created (@%s)\n", user.ID, user.Handle)
		return nil
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users in the account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		users, err := fizzyClient.ListUsers(context.Background())
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(users)
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tHANDLE\tNAME")
		for _, u := range users {
			fmt.Fprintf(w, "%s\t@%s\t%s\n", u.ID, u.Handle, u.Name)
		}
		return w.Flush()
	},
}

func init() {
	accountCmd.AddCommand(accountCreateCmd)

	userAddCmd.Flags().String("name", "", "display name")
	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userListCmd)
}
