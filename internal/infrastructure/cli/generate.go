package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/grimoiredev/grimoire/internal/app"
	"github.com/grimoiredev/grimoire/internal/application/generate"
	"github.com/grimoiredev/grimoire/internal/domain"
	"github.com/grimoiredev/grimoire/internal/ports"
)

func newGenerateCommand(container *app.Container) *cobra.Command {
	var (
		systemPrompt string
		vars         []string
		temperature  float64
		maxLen       int
		topP         float64
		topK         int
		timeout      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "generate <project> <prompt...>",
		Short: "Run a prompt against a project's model endpoint",
		Long: "Streams the model output while it is produced and records the full run,\n" +
			"including partial output when the stream fails. {{name}} placeholders in\n" +
			"the prompt are substituted from --var bindings.",
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := resolveProject(container, args[0])
			if err != nil {
				return err
			}
			variables, err := parseVars(vars)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			out := cmd.OutOrStdout()
			record, err := container.GenerateService.Run(ctx, generate.Request{
				ProjectID:    project.ID,
				UserPrompt:   strings.Join(args[1:], " "),
				SystemPrompt: systemPrompt,
				Variables:    variables,
				Params: domain.SamplingParams{
					Temperature: temperature,
					MaxLen:      maxLen,
					TopP:        topP,
					TopK:        topK,
				},
			}, ports.StreamHandlers{
				OnDelta: func(text string) { fmt.Fprint(out, text) },
				OnDone:  func() { fmt.Fprintln(out) },
				OnError: func(message string) {
					fmt.Fprintf(cmd.ErrOrStderr(), "\nstream failed: %s\n", message)
				},
			})
			if record.ID != 0 {
				fmt.Fprintf(out, "Saved as record #%d\n", record.ID)
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&systemPrompt, "system", "s", "", "System prompt")
	cmd.Flags().StringArrayVar(&vars, "var", nil, "Template variable binding name=value (repeatable)")
	cmd.Flags().Float64Var(&temperature, "temperature", 0, "Sampling temperature (default from config)")
	cmd.Flags().IntVar(&maxLen, "max-len", 0, "Maximum output length")
	cmd.Flags().Float64Var(&topP, "top-p", 0, "Nucleus sampling threshold")
	cmd.Flags().IntVar(&topK, "top-k", 0, "Top-k sampling cutoff")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Abort the run after this duration")
	return cmd
}
