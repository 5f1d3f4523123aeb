// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-journey/internal/project"
	"github.com/pdiddy/research-journey/pkg/types"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Create, list and inspect research projects",
}

var projectCreateCmd = &cobra.Command{
	Use:   "create [title]",
	Short: "Create a project in the discovery phase with its default tasks",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := actingSession(cmd)
		if err != nil {
			return err
		}
		desc, _ := cmd.Flags().GetString("description")
		collaborators, _ := cmd.Flags().GetStringSlice("collaborator")
		return withApp(func(ctx context.Context, a *app) error {
			p, err := a.projects.Create(ctx, sess, project.NewProject{
				Title:         strings.Join(args, " "),
				Description:   desc,
				Collaborators: collaborators,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if ok, err := printJSON(cmd, out, p); ok {
				return err
			}
			fmt.Fprintf(out, "Created project %s (%s)\n", p.ID, p.Title)
			return nil
		})
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects you own or collaborate on, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := actingSession(cmd)
		if err != nil {
			return err
		}
		return withApp(func(ctx context.Context, a *app) error {
			ps, err := a.projects.List(ctx, sess)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if ok, err := printJSON(cmd, out, ps); ok {
				return err
			}
			if len(ps) == 0 {
				fmt.Fprintln(out, "No projects.")
				return nil
			}
			fmt.Fprintf(out, "%-36s  %-40s  %-12s  %s\n", "ID", "Title", "Phase", "Progress")
			fmt.Fprintln(out, strings.Repeat("-", 100))
			for _, p := range ps {
				phase := string(p.Phase)
				if p.Completed {
					phase = "completed"
				}
				fmt.Fprintf(out, "%-36s  %-40s  %-12s  %d%%\n", p.ID, truncate(p.Title, 40), phase, p.Progress)
			}
			return nil
		})
	},
}

var projectShowCmd = &cobra.Command{
	Use:   "show [project-id]",
	Short: "Show a project's journey: phases, progress and tasks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := actingSession(cmd)
		if err != nil {
			return err
		}
		return withApp(func(ctx context.Context, a *app) error {
			v, err := a.journey.SelectProject(ctx, sess, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if ok, err := printJSON(cmd, out, v); ok {
				return err
			}
			p := v.Project
			fmt.Fprintf(out, "%s\n%s\n\n", p.Title, strings.Repeat("=", len(p.Title)))
			if p.Topic != nil {
				fmt.Fprintf(out, "Topic: %s\n", p.Topic.Title)
			}
			fmt.Fprintf(out, "Progress: %d%%\n\n", p.Progress)
			for _, ph := range v.Phases {
				fmt.Fprintf(out, "  %-12s  %-9s  +%d\n", ph.Phase, ph.State, ph.Bonus)
			}
			fmt.Fprintln(out)
			for _, st := range types.TaskStatuses() {
				fmt.Fprintf(out, "%s (%d)\n", st, len(v.Tasks[st]))
				for _, t := range v.Tasks[st] {
					fmt.Fprintf(out, "  %-36s  %s\n", t.ID, t.Title)
				}
			}
			return nil
		})
	},
}

func init() {
	projectCreateCmd.Flags().String("description", "", "project description")
	projectCreateCmd.Flags().StringSlice("collaborator", nil, "collaborator user id (repeatable)")
	for _, c := range []*cobra.Command{projectCreateCmd, projectListCmd, projectShowCmd} {
		c.Flags().Bool("json", false, "output as JSON")
		projectCmd.AddCommand(c)
	}
	rootCmd.AddCommand(projectCmd)
}
