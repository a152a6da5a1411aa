// Package cmd implements the toolshed command line client.
package cmd

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kseleznov/toolshed/internal/client/api"
	"github.com/kseleznov/toolshed/internal/client/auth"
	"github.com/kseleznov/toolshed/internal/client/session"
)

var (
	serverURL   string
	sessionFile string
)

var rootCmd = &cobra.Command{
	Use:           "toolshed",
	Short:         "Command line client for the toolshed directory service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "base URL of the toolshed service")
	rootCmd.PersistentFlags().StringVar(&sessionFile, "session-file", "", "path to the session store (default ~/.toolshed/session.db)")
}

func sessionPath() (string, error) {
	if sessionFile != "" {
		return sessionFile, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	dir := filepath.Join(home, ".toolshed")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create state directory: %w", err)
	}
	return filepath.Join(dir, "session.db"), nil
}

// newAuthenticator wires the API client, the on-disk session store and the
// authenticator. The returned closer releases the store file.
func newAuthenticator() (*auth.Authenticator, *api.Client, func(), error) {
	client, err := api.New(serverURL)
	if err != nil {
		return nil, nil, nil, err
	}

	path, err := sessionPath()
	if err != nil {
		return nil, nil, nil, err
	}
	store, err := session.Open(path)
	if err != nil {
		return nil, nil, nil, err
	}

	authenticator, err := auth.NewAuthenticator(client, store)
	if err != nil {
		_ = store.Close()
		return nil, nil, nil, err
	}
	return authenticator, client, func() { _ = store.Close() }, nil
}

func prompt(label string) (string, error) {
	fmt.Fprint(os.Stderr, label)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func printPrincipal(p *api.Principal) {
	fmt.Printf("id:          %s\n", p.ID)
	fmt.Printf("username:    %s\n", p.Username)
	fmt.Printf("email:       %s\n", p.Email)
	fmt.Printf("role:        %s\n", p.Role)
	fmt.Printf("2fa enabled: %t\n", p.TwoFactorEnabled)
}
