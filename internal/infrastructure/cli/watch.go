package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/grimoiredev/grimoire/internal/app"
	"github.com/grimoiredev/grimoire/internal/domain"
	"github.com/grimoiredev/grimoire/internal/infrastructure/scheduler"
	"github.com/grimoiredev/grimoire/internal/ports"
)

func newWatchCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <project>",
		Short: "Follow the remote promotion history",
		Long: "Re-renders the remote view on the configured refresh interval and syncs\n" +
			"pending pull requests each cycle. Interrupt to stop.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := resolveProject(container, args[0])
			if err != nil {
				return err
			}
			if !project.RemoteBacked() {
				return fmt.Errorf("project %q has no git repository", project.Name)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			renderer := NewRenderer(nil)
			cycle := func(ctx context.Context) error {
				if _, err := container.PromotionService.SyncMergeStatus(ctx, project.ID); err != nil {
					return fmt.Errorf("sync pull requests: %w", err)
				}
				items, err := container.HistoryService.View(ctx, project.ID, domain.ViewRemote, true)
				if err != nil {
					return fmt.Errorf("refresh remote view: %w", err)
				}
				renderer.RenderView(project, domain.ViewRemote, items)
				return nil
			}

			// The first pass runs in the foreground and reports its error;
			// tick failures reach only the debug log.
			if err := cycle(ctx); err != nil {
				return err
			}
			refresher := container.NewRefresher(backgroundCycle(container.Logger, project, cycle))
			refresher.Start(ctx)
			defer refresher.Stop()

			fmt.Fprintln(out, "Watching for changes; press Ctrl-C to stop.")
			<-ctx.Done()
			return nil
		},
	}
}

// backgroundCycle wraps a refresh pass for the scheduler. Failures are
// logged at debug level and never reach the terminal.
func backgroundCycle(log ports.Logger, project domain.Project, cycle func(context.Context) error) scheduler.RefreshFunc {
	return func(ctx context.Context) {
		if err := cycle(ctx); err != nil {
			log.Debug("background refresh failed", map[string]interface{}{
				"project": project.Name,
				"error":   err.Error(),
			})
		}
	}
}
