package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var twoFactorCmd = &cobra.Command{
	Use:   "2fa",
	Short: "Manage second-factor enrollment",
}

var twoFactorEnableCmd = &cobra.Command{
	Use:   "enable <destination>",
	Short: "Enable the second factor with an out-of-band destination",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		authenticator, _, closeStore, err := newAuthenticator()
		if err != nil {
			return err
		}
		defer closeStore()

		if err := authenticator.EnableSecondFactor(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Println("second factor enabled; future logins require a delivered code")
		return nil
	},
}

var twoFactorDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Disable the second factor",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		authenticator, _, closeStore, err := newAuthenticator()
		if err != nil {
			return err
		}
		defer closeStore()

		if err := authenticator.DisableSecondFactor(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("second factor disabled")
		return nil
	},
}

var twoFactorTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Send a test code to the enrolled destination",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		authenticator, _, closeStore, err := newAuthenticator()
		if err != nil {
			return err
		}
		defer closeStore()

		if err := authenticator.SendTestCode(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("test code sent")
		return nil
	},
}

func init() {
	twoFactorCmd.AddCommand(twoFactorEnableCmd, twoFactorDisableCmd, twoFactorTestCmd)
	rootCmd.AddCommand(twoFactorCmd)
}
