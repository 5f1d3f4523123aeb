// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-journey/pkg/types"
)

var phaseCmd = &cobra.Command{
	Use:   "phase",
	Short: "Advance a project through its research phases",
}

func printPhase(cmd *cobra.Command, p types.ResearchProject) error {
	out := cmd.OutOrStdout()
	if ok, err := printJSON(cmd, out, p); ok {
		return err
	}
	if p.Completed {
		fmt.Fprintf(out, "%s: research completed\n", p.ID)
		return nil
	}
	fmt.Fprintf(out, "%s: %s at %d%%\n", p.ID, p.Phase, p.Progress)
	return nil
}

var phaseCompleteCmd = &cobra.Command{
	Use:   "complete [project-id] [current-phase]",
	Short: "Complete the current phase and move to the next one",
	Long: `Complete checks that current-phase is the project's stored phase and
its requirements are met, completes the phase's tasks, pays the phase
bonus and moves the project to the next phase. Evaluation is finished
with "phase research-complete" instead.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := actingSession(cmd)
		if err != nil {
			return err
		}
		return withApp(func(ctx context.Context, a *app) error {
			p, err := a.journey.CompletePhase(ctx, sess, args[0], types.Phase(args[1]))
			if err != nil {
				return err
			}
			return printPhase(cmd, p)
		})
	},
}

var phaseProgressCmd = &cobra.Command{
	Use:   "progress [project-id] [phase] [0-100]",
	Short: "Set the progress of the current phase",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := actingSession(cmd)
		if err != nil {
			return err
		}
		v, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("progress %q is not a number", args[2])
		}
		return withApp(func(ctx context.Context, a *app) error {
			p, err := a.journey.SetProgress(ctx, sess, args[0], types.Phase(args[1]), v)
			if err != nil {
				return err
			}
			return printPhase(cmd, p)
		})
	},
}

var phaseResearchCompleteCmd = &cobra.Command{
	Use:   "research-complete [project-id]",
	Short: "Finish the evaluation phase and mark the research complete",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := actingSession(cmd)
		if err != nil {
			return err
		}
		return withApp(func(ctx context.Context, a *app) error {
			p, err := a.journey.CompleteResearch(ctx, sess, args[0])
			if err != nil {
				return err
			}
			return printPhase(cmd, p)
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{phaseCompleteCmd, phaseProgressCmd, phaseResearchCompleteCmd} {
		c.Flags().Bool("json", false, "output as JSON")
		phaseCmd.AddCommand(c)
	}
	rootCmd.AddCommand(phaseCmd)
}
