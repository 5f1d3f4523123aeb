// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-journey/internal/directory"
	"github.com/pdiddy/research-journey/pkg/types"
)

var directoryCmd = &cobra.Command{
	Use:   "directory",
	Short: "Search and join research communities",
}

var directorySearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search local and platform communities",
	Long: `Search queries every enabled platform concurrently. A platform that
fails is reported and skipped; results from the others are still shown.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		platform, _ := cmd.Flags().GetString("platform")
		topicName, _ := cmd.Flags().GetString("topic")
		sortBy, _ := cmd.Flags().GetString("sort")
		return withApp(func(ctx context.Context, a *app) error {
			res, err := a.directory.SearchCommunities(ctx, directory.Filter{
				Text:     strings.Join(args, " "),
				Platform: types.Platform(platform),
				Topic:    topicName,
				Sort:     sortBy,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if ok, err := printJSON(cmd, out, res); ok {
				return err
			}
			fmt.Fprintf(out, "%-8s  %-24s  %-36s  %s\n", "Platform", "ID", "Name", "Members")
			fmt.Fprintln(out, strings.Repeat("-", 90))
			for _, l := range res.Listings {
				fmt.Fprintf(out, "%-8s  %-24s  %-36s  %d\n", l.Platform, truncate(l.ID, 24), truncate(l.Name, 36), l.MemberCount)
			}
			for _, e := range res.BackendErrors {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", e)
			}
			return nil
		})
	},
}

var directoryJoinCmd = &cobra.Command{
	Use:   "join [platform] [community-id]",
	Short: "Join a community",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := actingSession(cmd)
		if err != nil {
			return err
		}
		return withApp(func(ctx context.Context, a *app) error {
			res, err := a.directory.JoinCommunity(ctx, sess, types.Platform(args[0]), args[1])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if ok, err := printJSON(cmd, out, res); ok {
				return err
			}
			if !res.Joined {
				fmt.Fprintf(out, "Already joined %s\n", args[1])
			} else {
				fmt.Fprintf(out, "Joined %s\n", args[1])
			}
			if res.Join.InviteURL != "" {
				fmt.Fprintf(out, "Invite: %s\n", res.Join.InviteURL)
			}
			return nil
		})
	},
}

func init() {
	directorySearchCmd.Flags().String("platform", "", "discord, slack, reddit or custom")
	directorySearchCmd.Flags().String("topic", "", "only communities tagged with this topic")
	directorySearchCmd.Flags().String("sort", directory.SortMembers, "members, recent or name")

	for _, c := range []*cobra.Command{directorySearchCmd, directoryJoinCmd} {
		c.Flags().Bool("json", false, "output as JSON")
		directoryCmd.AddCommand(c)
	}
	rootCmd.AddCommand(directoryCmd)
}
