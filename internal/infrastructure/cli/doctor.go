package cli

import (
	"github.com/spf13/cobra"

	"github.com/grimoiredev/grimoire/internal/app"
)

func newDoctorCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose configuration, storage and repository access",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := container.DoctorService.Run(cmd.Context())
			NewRenderer(nil).RenderHealth(report)
			return err
		},
	}
}
