package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kseleznov/toolshed/internal/client/auth"
)

var loginPassword string

var loginCmd = &cobra.Command{
	Use:   "login <identifier>",
	Short: "Log in with a username or email",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		authenticator, _, closeStore, err := newAuthenticator()
		if err != nil {
			return err
		}
		defer closeStore()

		password := loginPassword
		if password == "" {
			password, err = prompt("password: ")
			if err != nil {
				return err
			}
		}

		result, err := authenticator.Login(cmd.Context(), args[0], password)
		if err != nil {
			return err
		}

		if !result.RequiresSecondFactor() {
			fmt.Println("logged in")
			printPrincipal(result.Principal)
			return nil
		}

		fmt.Println("a verification code has been sent to your enrolled destination")
		for {
			code, err := prompt("code: ")
			if err != nil {
				return err
			}
			completed, err := authenticator.VerifySecondFactor(cmd.Context(), code, result.Challenge)
			if errors.Is(err, auth.ErrInvalidCode) {
				fmt.Println("invalid code, try again")
				continue
			}
			if err != nil {
				return err
			}
			fmt.Println("logged in")
			printPrincipal(completed.Principal)
			return nil
		}
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "password (prompted when omitted)")
	rootCmd.AddCommand(loginCmd)
}
