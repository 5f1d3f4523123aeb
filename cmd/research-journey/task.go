// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-journey/internal/tasks"
	"github.com/pdiddy/research-journey/pkg/types"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage a project's research tasks",
}

var taskAddCmd = &cobra.Command{
	Use:   "add [project-id] [title]",
	Short: "Add a task to a project",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := actingSession(cmd)
		if err != nil {
			return err
		}
		phase, _ := cmd.Flags().GetString("phase")
		priority, _ := cmd.Flags().GetString("priority")
		desc, _ := cmd.Flags().GetString("description")
		due, _ := cmd.Flags().GetString("due")
		requestID, _ := cmd.Flags().GetString("request-id")
		assignee, _ := cmd.Flags().GetString("assignee")

		nt := tasks.NewTask{
			Title:       strings.Join(args[1:], " "),
			Description: desc,
			Phase:       types.Phase(phase),
			Priority:    types.TaskPriority(priority),
			Assignee:    assignee,
			RequestID:   requestID,
		}
		if due != "" {
			d, err := time.Parse(time.DateOnly, due)
			if err != nil {
				return fmt.Errorf("--due must be YYYY-MM-DD: %w", err)
			}
			nt.DueDate = &d
		}

		return withApp(func(ctx context.Context, a *app) error {
			if _, err := a.projects.Get(ctx, sess, args[0]); err != nil {
				return err
			}
			t, err := a.tasks.AddTask(ctx, args[0], nt)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if ok, err := printJSON(cmd, out, t); ok {
				return err
			}
			fmt.Fprintf(out, "Added task %s (%s, %s)\n", t.ID, t.Status, t.Priority)
			return nil
		})
	},
}

var taskStatusCmd = &cobra.Command{
	Use:   "status [task-id] [todo|in_progress|completed]",
	Short: "Change a task's status and refresh the project's progress",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := actingSession(cmd)
		if err != nil {
			return err
		}
		return withApp(func(ctx context.Context, a *app) error {
			t, p, err := a.journey.UpdateTaskStatus(ctx, sess, args[0], types.TaskStatus(args[1]))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if ok, err := printJSON(cmd, out, t); ok {
				return err
			}
			fmt.Fprintf(out, "%s is %s; %s at %d%%\n", t.Title, t.Status, p.Phase, p.Progress)
			return nil
		})
	},
}

var taskListCmd = &cobra.Command{
	Use:   "list [project-id]",
	Short: "List a project's tasks in creation order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := actingSession(cmd)
		if err != nil {
			return err
		}
		return withApp(func(ctx context.Context, a *app) error {
			if _, err := a.projects.Get(ctx, sess, args[0]); err != nil {
				return err
			}
			ts, err := a.tasks.ListTasks(ctx, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if ok, err := printJSON(cmd, out, ts); ok {
				return err
			}
			fmt.Fprintf(out, "%-36s  %-11s  %-11s  %-8s  %s\n", "ID", "Phase", "Status", "Priority", "Title")
			fmt.Fprintln(out, strings.Repeat("-", 100))
			for _, t := range ts {
				fmt.Fprintf(out, "%-36s  %-11s  %-11s  %-8s  %s\n", t.ID, t.Phase, t.Status, t.Priority, truncate(t.Title, 40))
			}
			return nil
		})
	},
}

func init() {
	taskAddCmd.Flags().String("phase", "", "phase the task belongs to")
	taskAddCmd.Flags().String("priority", "", "low, medium or high (default medium)")
	taskAddCmd.Flags().String("description", "", "task description")
	taskAddCmd.Flags().String("due", "", "due date (YYYY-MM-DD)")
	taskAddCmd.Flags().String("assignee", "", "user the task is assigned to")
	taskAddCmd.Flags().String("request-id", "", "idempotency key; repeating it returns the first task")

	for _, c := range []*cobra.Command{taskAddCmd, taskStatusCmd, taskListCmd} {
		c.Flags().Bool("json", false, "output as JSON")
		taskCmd.AddCommand(c)
	}
	rootCmd.AddCommand(taskCmd)
}
