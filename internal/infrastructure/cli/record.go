package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/grimoiredev/grimoire/internal/app"
	"github.com/grimoiredev/grimoire/internal/domain"
)

func newRateCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "rate <record> <up|down|clear>",
		Short: "Rate a record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRecordID(args[0])
			if err != nil {
				return err
			}
			var rating domain.Rating
			switch strings.ToLower(args[1]) {
			case "up", "+1":
				rating = domain.RatingUp
			case "down", "-1":
				rating = domain.RatingDown
			case "clear":
				rating = domain.RatingNone
			default:
				return fmt.Errorf("unknown rating %q, expected up, down or clear", args[1])
			}
			if err := container.Store.UpdateRating(id, rating); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Record #%d rated\n", id)
			return nil
		},
	}
}

func newNotesCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "notes <record> [text...]",
		Short: "Attach notes to a record (empty text clears them)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRecordID(args[0])
			if err != nil {
				return err
			}
			notes := strings.Join(args[1:], " ")
			if err := container.Store.UpdateNotes(id, notes); err != nil {
				return err
			}
			if notes == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Record #%d notes cleared\n", id)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Record #%d notes updated\n", id)
			}
			return nil
		},
	}
}
