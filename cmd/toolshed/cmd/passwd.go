package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var passwdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Change the account password",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		authenticator, _, closeStore, err := newAuthenticator()
		if err != nil {
			return err
		}
		defer closeStore()

		current, err := prompt("current password: ")
		if err != nil {
			return err
		}
		updated, err := prompt("new password: ")
		if err != nil {
			return err
		}
		confirm, err := prompt("confirm new password: ")
		if err != nil {
			return err
		}
		if updated != confirm {
			return fmt.Errorf("password confirmation does not match")
		}

		if err := authenticator.ChangePassword(cmd.Context(), current, updated); err != nil {
			return err
		}
		fmt.Println("password changed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(passwdCmd)
}
