// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-journey/internal/topic"
)

var topicCmd = &cobra.Command{
	Use:   "topic",
	Short: "Browse the topic catalog and commit a topic onto a project",
}

var topicCatalogCmd = &cobra.Command{
	Use:   "catalog [query]",
	Short: "Search the topic catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		category, _ := cmd.Flags().GetString("category")
		catalog := topic.DefaultCatalog()
		ts := catalog.Search(strings.Join(args, " "), category)

		out := cmd.OutOrStdout()
		if ok, err := printJSON(cmd, out, ts); ok {
			return err
		}
		if len(ts) == 0 {
			fmt.Fprintf(out, "No topics. Categories: %s\n", strings.Join(catalog.Categories(), ", "))
			return nil
		}
		fmt.Fprintf(out, "%-28s  %-40s  %-18s  %s\n", "ID", "Title", "Category", "Relevance")
		fmt.Fprintln(out, strings.Repeat("-", 100))
		for _, t := range ts {
			mark := ""
			if t.Trending {
				mark = " (trending)"
			}
			fmt.Fprintf(out, "%-28s  %-40s  %-18s  %.0f%%%s\n", t.ID, truncate(t.Title, 40), t.Category, t.Relevance*100, mark)
		}
		return nil
	},
}

var topicConfirmCmd = &cobra.Command{
	Use:   "confirm [project-id] [topic-id]",
	Short: "Select a topic, answer its questionnaire and move the project to design",
	Long: `Confirm stages the topic, validates the answers against the topic's
keywords and the goal options, then commits the topic. On success the
discovery phase is complete and the project moves to design.

Run with no --interest or --goal to print the available options.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := actingSession(cmd)
		if err != nil {
			return err
		}
		reason, _ := cmd.Flags().GetString("reason")
		interests, _ := cmd.Flags().GetStringSlice("interest")
		goals, _ := cmd.Flags().GetStringSlice("goal")

		return withApp(func(ctx context.Context, a *app) error {
			q, err := a.topics.Select(sess, args[0], args[1])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(interests) == 0 && len(goals) == 0 {
				a.topics.Cancel(sess, args[0])
				fmt.Fprintf(out, "%s\n\nInterests: %s\nGoals:     %s\n",
					q.Topic.Title, strings.Join(q.Keywords, ", "), strings.Join(q.Goals, ", "))
				return nil
			}
			p, err := a.topics.Confirm(ctx, sess, args[0], topic.Answers{
				Reason:    reason,
				Interests: interests,
				Goals:     goals,
			})
			if err != nil {
				return err
			}
			return printPhase(cmd, p)
		})
	},
}

func init() {
	topicCatalogCmd.Flags().String("category", "", "only topics in this category")
	topicConfirmCmd.Flags().String("reason", "", "why this topic interests you")
	topicConfirmCmd.Flags().StringSlice("interest", nil, "topic keyword you are interested in (repeatable)")
	topicConfirmCmd.Flags().StringSlice("goal", nil, "research goal (repeatable)")

	for _, c := range []*cobra.Command{topicCatalogCmd, topicConfirmCmd} {
		c.Flags().Bool("json", false, "output as JSON")
		topicCmd.AddCommand(c)
	}
	rootCmd.AddCommand(topicCmd)
}
