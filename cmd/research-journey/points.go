// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-journey/pkg/types"
)

var pointsCmd = &cobra.Command{
	Use:   "points",
	Short: "Show and spend points",
}

var pointsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show your total, history and achievements",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := actingSession(cmd)
		if err != nil {
			return err
		}
		user, err := sess.Require()
		if err != nil {
			return err
		}
		return withApp(func(ctx context.Context, a *app) error {
			pts, err := a.ledger.Points(ctx, user.ID)
			if err != nil {
				return err
			}
			achievements, err := a.ledger.Achievements(ctx, user.ID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if ok, err := printJSON(cmd, out, struct {
				Points       types.UserPoints        `json:"points"`
				Achievements []types.UserAchievement `json:"achievements"`
			}{pts, achievements}); ok {
				return err
			}
			fmt.Fprintf(out, "%s has %d points\n\n", user.ID, pts.Total)
			for _, tx := range pts.History {
				fmt.Fprintf(out, "  %s  %+6d  %s\n", tx.CreatedAt.Format("2006-01-02 15:04"), tx.Amount, tx.Description)
			}
			if len(achievements) > 0 {
				fmt.Fprintln(out, "\nAchievements:")
				for _, ach := range achievements {
					fmt.Fprintf(out, "  %-10s  %s\n", ach.Type, ach.Title)
				}
			}
			return nil
		})
	},
}

var pointsAwardCmd = &cobra.Command{
	Use:   "award [user-id] [amount] [description]",
	Short: "Award points to a user",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("amount %q is not a number", args[1])
		}
		return withApp(func(ctx context.Context, a *app) error {
			tx, err := a.ledger.AwardPoints(ctx, args[0], amount, strings.Join(args[2:], " "))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if ok, err := printJSON(cmd, out, tx); ok {
				return err
			}
			fmt.Fprintf(out, "Awarded %d points to %s\n", tx.Amount, tx.UserID)
			return nil
		})
	},
}

var pointsRedeemCmd = &cobra.Command{
	Use:   "redeem [reward-id]",
	Short: "Spend points on a reward",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := actingSession(cmd)
		if err != nil {
			return err
		}
		user, err := sess.Require()
		if err != nil {
			return err
		}
		return withApp(func(ctx context.Context, a *app) error {
			tx, err := a.ledger.RedeemReward(ctx, user.ID, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if ok, err := printJSON(cmd, out, tx); ok {
				return err
			}
			fmt.Fprintf(out, "Redeemed %s for %d points\n", args[0], -tx.Amount)
			return nil
		})
	},
}

var pointsRewardsCmd = &cobra.Command{
	Use:   "rewards",
	Short: "List the reward catalog, or add to it with --add",
	RunE: func(cmd *cobra.Command, args []string) error {
		add, _ := cmd.Flags().GetString("add")
		cost, _ := cmd.Flags().GetInt("cost")
		desc, _ := cmd.Flags().GetString("description")
		return withApp(func(ctx context.Context, a *app) error {
			out := cmd.OutOrStdout()
			if add != "" {
				r, err := a.ledger.CreateReward(ctx, types.Reward{Title: add, Description: desc, Cost: cost})
				if err != nil {
					return err
				}
				if ok, err := printJSON(cmd, out, r); ok {
					return err
				}
				fmt.Fprintf(out, "Created reward %s (%d points)\n", r.ID, r.Cost)
				return nil
			}

			rs, err := a.ledger.ListRewards(ctx)
			if err != nil {
				return err
			}
			if ok, err := printJSON(cmd, out, rs); ok {
				return err
			}
			if len(rs) == 0 {
				fmt.Fprintln(out, "No rewards.")
				return nil
			}
			for _, r := range rs {
				fmt.Fprintf(out, "%-30s  %6d  %s\n", r.ID, r.Cost, r.Title)
			}
			return nil
		})
	},
}

func init() {
	pointsRewardsCmd.Flags().String("add", "", "title of a reward to create")
	pointsRewardsCmd.Flags().Int("cost", 0, "cost of the new reward")
	pointsRewardsCmd.Flags().String("description", "", "description of the new reward")

	for _, c := range []*cobra.Command{pointsShowCmd, pointsAwardCmd, pointsRedeemCmd, pointsRewardsCmd} {
		c.Flags().Bool("json", false, "output as JSON")
		pointsCmd.AddCommand(c)
	}
	rootCmd.AddCommand(pointsCmd)
}
