package cli

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/grimoiredev/grimoire/internal/app"
	"github.com/grimoiredev/grimoire/internal/domain"
)

func newAuthCommand(container *app.Container) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the git session used for remote promotion",
	}
	cmd.AddCommand(newAuthLoginCommand(container))
	cmd.AddCommand(newAuthLogoutCommand(container))
	cmd.AddCommand(newAuthStatusCommand(container))
	return cmd
}

func newAuthLoginCommand(container *app.Container) *cobra.Command {
	var (
		platform string
		username string
		token    string
		server   string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store git credentials for promotion commits",
		Long: "The access token is encrypted before it touches disk. GitHub tokens\n" +
			"need the repo scope to commit settings and open pull requests.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				fmt.Fprint(cmd.OutOrStdout(), "Access token: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil {
					return fmt.Errorf("read token: %w", err)
				}
				token = strings.TrimSpace(line)
			}
			if token == "" {
				return fmt.Errorf("an access token is required")
			}

			if _, err := container.Sessions.Create(domain.Credentials{
				Platform:  domain.Platform(strings.ToLower(platform)),
				Username:  username,
				Token:     token,
				ServerURL: server,
				CreatedAt: time.Now(),
			}); err != nil {
				return fmt.Errorf("store session: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Logged in to %s", platform)
			if username != "" {
				fmt.Fprintf(cmd.OutOrStdout(), " as %s", username)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}

	cmd.Flags().StringVarP(&platform, "platform", "p", string(domain.PlatformGitHub), "Git platform: github, gitlab or gitea")
	cmd.Flags().StringVarP(&username, "username", "u", "", "Account username")
	cmd.Flags().StringVarP(&token, "token", "t", "", "Access token (prompted when omitted)")
	cmd.Flags().StringVarP(&server, "server", "s", "", "Self-hosted server URL")
	return cmd
}

func newAuthLogoutCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Delete the stored git session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if container.Sessions.Delete(container.Sessions.Active()) {
				fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "No active session.")
			}
			return nil
		},
	}
}

func newAuthStatusCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current git session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token := container.Sessions.Active()
			if token == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "Not authenticated.")
				return nil
			}
			creds, ok := container.Sessions.Credentials(token)
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Stored session is invalid; run 'grimoire auth login' again.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Authenticated on %s", creds.Platform)
			if creds.Username != "" {
				fmt.Fprintf(cmd.OutOrStdout(), " as %s", creds.Username)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
}
