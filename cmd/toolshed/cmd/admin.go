package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kseleznov/toolshed/internal/client/auth"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Administrative commands (admin role required)",
}

var auditLimit int

var adminAuditCmd = &cobra.Command{
	Use:   "audit",
	Short: "List recent security audit entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		authenticator, client, closeStore, err := newAuthenticator()
		if err != nil {
			return err
		}
		defer closeStore()

		if err := authenticator.ResolveSession(cmd.Context()); err != nil {
			return err
		}

		gate := auth.NewRouteGate(authenticator)
		switch gate.Decide("admin") {
		case auth.Admitted:
		case auth.Redirected:
			return fmt.Errorf("admin role required")
		default:
			return fmt.Errorf("session state is unresolved")
		}

		token, err := authenticator.Token()
		if err != nil {
			return err
		}
		entries, err := client.ListAudit(cmd.Context(), token, auditLimit)
		if err != nil {
			return err
		}

		for _, entry := range entries {
			principal := "-"
			if entry.PrincipalID != nil {
				principal = *entry.PrincipalID
			}
			fmt.Printf("%s  %-24s  %-36s  %s\n", entry.CreatedAt.Format("2006-01-02 15:04:05"), entry.Action, principal, entry.Detail)
		}
		return nil
	},
}

var adminRoleCmd = &cobra.Command{
	Use:   "set-role <principal-id> <role>",
	Short: "Change a principal's role",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		authenticator, client, closeStore, err := newAuthenticator()
		if err != nil {
			return err
		}
		defer closeStore()

		if err := authenticator.ResolveSession(cmd.Context()); err != nil {
			return err
		}
		if auth.NewRouteGate(authenticator).Decide("admin") != auth.Admitted {
			return fmt.Errorf("admin role required")
		}

		token, err := authenticator.Token()
		if err != nil {
			return err
		}
		principal, err := client.SetRole(cmd.Context(), token, args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Println("role updated")
		printPrincipal(principal)
		return nil
	},
}

func init() {
	adminAuditCmd.Flags().IntVar(&auditLimit, "limit", 50, "maximum number of entries")
	adminCmd.AddCommand(adminAuditCmd, adminRoleCmd)
	rootCmd.AddCommand(adminCmd)
}
