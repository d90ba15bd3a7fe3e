package cli

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/grimoiredev/grimoire/internal/app"
	"github.com/grimoiredev/grimoire/internal/domain"
)

func newProjectCommand(container *app.Container) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects",
	}
	cmd.AddCommand(newProjectAddCommand(container))
	cmd.AddCommand(newProjectListCommand(container))
	return cmd
}

func newProjectAddCommand(container *app.Container) *cobra.Command {
	var (
		description string
		generateURL string
		providerID  string
		repoURL     string
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := container.Store.CreateProject(domain.Project{
				Name:        args[0],
				Description: description,
				GenerateURL: generateURL,
				ProviderID:  providerID,
				GitRepoURL:  repoURL,
				CreatedAt:   time.Now(),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created project %q (#%d)\n", project.Name, project.ID)
			if project.RemoteBacked() {
				fmt.Fprintf(cmd.OutOrStdout(), "Promotions will commit to %s\n", project.GitRepoURL)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "Project description")
	cmd.Flags().StringVarP(&generateURL, "generate-url", "u", "", "Model endpoint for generation")
	cmd.Flags().StringVarP(&providerID, "provider", "p", "default", "Provider identifier used in repository paths")
	cmd.Flags().StringVarP(&repoURL, "repo", "r", "", "Git repository backing promotions (optional)")
	return cmd
}

func newProjectListCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			projects, err := container.Store.Projects()
			if err != nil {
				return err
			}
			if len(projects) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no projects yet; run 'grimoire project add'")
				return nil
			}
			for _, p := range projects {
				repo := "local only"
				if p.RemoteBacked() {
					repo = p.GitRepoURL
				}
				fmt.Fprintf(cmd.OutOrStdout(), "#%-3d %-20s %-12s %s\n",
					p.ID, p.Name, humanize.Time(p.CreatedAt), repo)
			}
			return nil
		},
	}
}
