// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-journey/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export [project-id]",
	Short: "Write a project journal and upload it when a bucket is configured",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := actingSession(cmd)
		if err != nil {
			return err
		}
		format, _ := cmd.Flags().GetString("format")
		return withApp(func(ctx context.Context, a *app) error {
			res, err := a.exporter.Export(ctx, sess, args[0], export.Format(format))
			out := cmd.OutOrStdout()
			if res.Path != "" {
				fmt.Fprintf(out, "Wrote %s\n", res.Path)
			}
			if err != nil {
				return err
			}
			if res.URL != "" {
				fmt.Fprintf(out, "Uploaded %s\n", res.URL)
			}
			return nil
		})
	},
}

func init() {
	exportCmd.Flags().String("format", string(export.FormatYAML), "yaml or json")
	rootCmd.AddCommand(exportCmd)
}
