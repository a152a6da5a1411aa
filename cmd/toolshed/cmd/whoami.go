package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kseleznov/toolshed/internal/client/auth"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the currently authenticated principal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		authenticator, _, closeStore, err := newAuthenticator()
		if err != nil {
			return err
		}
		defer closeStore()

		if err := authenticator.ResolveSession(cmd.Context()); err != nil {
			return err
		}

		snapshot := authenticator.Snapshot()
		if snapshot.State != auth.StateAuthenticated {
			return fmt.Errorf("not logged in")
		}
		printPrincipal(snapshot.Principal)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}
