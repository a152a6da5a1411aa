package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var registerCmd = &cobra.Command{
	Use:   "register <username> <email>",
	Short: "Create a new account",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		authenticator, _, closeStore, err := newAuthenticator()
		if err != nil {
			return err
		}
		defer closeStore()

		password, err := prompt("password: ")
		if err != nil {
			return err
		}
		confirm, err := prompt("confirm password: ")
		if err != nil {
			return err
		}

		principal, err := authenticator.Register(cmd.Context(), args[0], args[1], password, confirm)
		if err != nil {
			return err
		}

		fmt.Println("account created, log in to continue")
		printPrincipal(principal)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(registerCmd)
}
