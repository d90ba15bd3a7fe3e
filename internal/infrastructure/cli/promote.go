package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/grimoiredev/grimoire/internal/app"
	"github.com/grimoiredev/grimoire/internal/application/promotion"
	"github.com/grimoiredev/grimoire/internal/domain"
)

func newPromoteCommand(container *app.Container) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "promote",
		Short: "Promote a record through the test and production tiers",
	}
	cmd.AddCommand(newPromoteTestCommand(container))
	cmd.AddCommand(newPromoteProdCommand(container))
	return cmd
}

func newPromoteTestCommand(container *app.Container) *cobra.Command {
	var (
		copyLink bool
		skipAsk  bool
	)

	cmd := &cobra.Command{
		Use:   "test <record>",
		Short: "Mark a record as the current test prompt",
		Long: "Commits the record's settings to the project repository as the test\n" +
			"prompt. Only one record per project holds the test tag at a time.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPromotion(cmd, container, args[0], copyLink, skipAsk,
				func(ctx context.Context, id int64) (domain.PromotionResult, error) {
					return container.PromotionService.MarkAsTest(ctx, id)
				})
		},
	}

	cmd.Flags().BoolVarP(&copyLink, "copy", "c", false, "Copy the commit link to the clipboard")
	cmd.Flags().BoolVarP(&skipAsk, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func newPromoteProdCommand(container *app.Container) *cobra.Command {
	var (
		copyLink bool
		skipAsk  bool
	)

	cmd := &cobra.Command{
		Use:   "prod <record>",
		Short: "Open a production promotion pull request for a test record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPromotion(cmd, container, args[0], copyLink, skipAsk,
				func(ctx context.Context, id int64) (domain.PromotionResult, error) {
					return container.PromotionService.MarkAsProd(ctx, id)
				})
		},
	}

	cmd.Flags().BoolVarP(&copyLink, "copy", "c", false, "Copy the pull request link to the clipboard")
	cmd.Flags().BoolVarP(&skipAsk, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func runPromotion(
	cmd *cobra.Command,
	container *app.Container,
	arg string,
	copyLink, skipAsk bool,
	run func(context.Context, int64) (domain.PromotionResult, error),
) error {
	id, err := parseRecordID(arg)
	if err != nil {
		return err
	}

	if skipAsk {
		prompter := container.PromotionService.Prompter
		container.PromotionService.Prompter = nil
		defer func() { container.PromotionService.Prompter = prompter }()
	}

	result, err := run(cmd.Context(), id)
	if errors.Is(err, promotion.ErrDeclined) {
		fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
		return nil
	}
	if err != nil {
		if result.Reauthenticate {
			return describeRemoteFailure(err)
		}
		return err
	}

	NewRenderer(nil).RenderPromotion(result)
	if copyLink {
		copyPromotionLink(cmd, result)
	}
	return nil
}

func copyPromotionLink(cmd *cobra.Command, result domain.PromotionResult) {
	var link string
	switch {
	case result.Commit != nil:
		link = result.Commit.URL
	case result.PR != nil:
		link = result.PR.URL
	}
	if link == "" {
		return
	}
	clipboard := NewClipboard()
	if !clipboard.Enabled() {
		return
	}
	if err := clipboard.Copy(link); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "clipboard copy failed: %v\n", err)
		return
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Link copied to clipboard")
}

func newUntagCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "untag <record>",
		Short: "Remove the test tag from a record on a local-only project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRecordID(args[0])
			if err != nil {
				return err
			}
			result, err := container.PromotionService.RemoveTestTag(id)
			if err != nil {
				return err
			}
			NewRenderer(nil).RenderPromotion(result)
			return nil
		},
	}
}

func newSyncCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "sync <project>",
		Short: "Check pending production pull requests for merges",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := resolveProject(container, args[0])
			if err != nil {
				return err
			}

			spinner := NewSpinner(cmd.ErrOrStderr(), "checking pull requests")
			spinner.Start()
			result, err := container.PromotionService.SyncMergeStatus(cmd.Context(), project.ID)
			spinner.Stop()
			if err != nil {
				return describeRemoteFailure(err)
			}

			if result.Checked == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No pending promotions.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Checked %d pending promotion(s), %d merged\n",
				result.Checked, result.Merged)
			return nil
		},
	}
}
