// Package cli wires the cobra command tree on top of the application
// services.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/grimoiredev/grimoire/internal/app"
)

// Options holds CLI-level configuration.
type Options struct {
	Verbose bool
}

// NewRootCmd wires the cobra root command.
func NewRootCmd(ctx context.Context, opts Options) (*cobra.Command, error) {
	container, err := app.BuildContainer(ctx, opts.Verbose)
	if err != nil {
		return nil, err
	}
	container.PromotionService.Prompter = NewPrompter(nil, nil)

	root := &cobra.Command{
		Use:   "grimoire",
		Short: "Grimoire - prompt experimentation and promotion",
		Long: "Grimoire records prompt experiments against model endpoints and promotes\n" +
			"the good ones through test and production tiers backed by git.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return container.Close()
		},
	}

	root.AddCommand(newProjectCommand(container))
	root.AddCommand(newGenerateCommand(container))
	root.AddCommand(newHistoryCommand(container))
	root.AddCommand(newRateCommand(container))
	root.AddCommand(newNotesCommand(container))
	root.AddCommand(newPromoteCommand(container))
	root.AddCommand(newUntagCommand(container))
	root.AddCommand(newSyncCommand(container))
	root.AddCommand(newWatchCommand(container))
	root.AddCommand(newAuthCommand(container))
	root.AddCommand(newDoctorCommand(container))
	root.AddCommand(newVersionCommand())
	return root, nil
}
