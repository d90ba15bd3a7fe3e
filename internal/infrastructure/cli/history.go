package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/grimoiredev/grimoire/internal/app"
	"github.com/grimoiredev/grimoire/internal/domain"
)

func newHistoryCommand(container *app.Container) *cobra.Command {
	var (
		view    string
		refresh bool
	)

	cmd := &cobra.Command{
		Use:   "history <project>",
		Short: "Show the merged experiment history",
		Long: "Local view lists stored records with the current test and prod entries\n" +
			"pinned on top. Remote view lists the repository's promotion commits.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := resolveProject(container, args[0])
			if err != nil {
				return err
			}
			mode, err := parseViewMode(pickView(view, container.Config.Preferences.DefaultView))
			if err != nil {
				return err
			}

			items, err := container.HistoryService.View(cmd.Context(), project.ID, mode, refresh)
			if err != nil {
				return describeRemoteFailure(err)
			}
			NewRenderer(nil).RenderView(project, mode, items)
			return nil
		},
	}

	cmd.Flags().StringVarP(&view, "view", "v", "", "View mode: local or remote (default from config)")
	cmd.Flags().BoolVarP(&refresh, "refresh", "r", false, "Bypass the cache and refetch remote data")
	return cmd
}

func pickView(flag, configured string) string {
	if flag != "" {
		return flag
	}
	return configured
}

// describeRemoteFailure maps classified remote errors onto actionable
// messages.
func describeRemoteFailure(err error) error {
	var remoteErr *domain.RemoteError
	if !errors.As(err, &remoteErr) {
		return err
	}
	switch remoteErr.Kind {
	case domain.FailureAuthRequired:
		return fmt.Errorf("authentication required: %s (run 'grimoire auth login')", remoteErr.Message)
	case domain.FailureForbidden:
		return fmt.Errorf("access denied: %s (check repository permissions, then 'grimoire auth login')", remoteErr.Message)
	case domain.FailureRepoEmpty:
		return errors.New("the repository is empty; promote a record first to create the settings files")
	case domain.FailureUnsupportedPlatform:
		return fmt.Errorf("unsupported git platform: %s", remoteErr.Message)
	default:
		return err
	}
}
