// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile [user-id]",
	Short: "Repair point totals that drifted from their history",
	Long: `Reconcile recomputes each user's total from the transaction history and
rewrites the stored total when they differ. With no user it checks every
user; serve runs the same job on ledger.reconcile_schedule.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			out := cmd.OutOrStdout()
			if len(args) == 1 {
				drift, err := a.ledger.Reconcile(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s: drift %d\n", args[0], drift)
				return nil
			}
			repaired, err := a.ledger.ReconcileAll(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Repaired %d users\n", repaired)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}
