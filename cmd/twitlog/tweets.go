// Tweets and analytics commands for the twitlog CLI.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/twitlog/internal/collect"
)

var (
	flagNoTweets    bool
	flagNoAnalytics bool
)

var tweetsCmd = &cobra.Command{
	Use:   "tweets",
	Short: "Archive new tweets from the account's timeline",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		opts, err := collectorOptions(ctx, true, false)
		if err != nil {
			return err
		}
		conn, err := openArchive(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()

		n, err := collect.New(conn, cfg.Username, opts...).UpdateTweets(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("tweets added %d\n", n)
		return nil
	},
}

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Archive new tweets and their engagement metrics",
	Long: `analytics first archives new tweets, then fetches the metrics of every
stored tweet through the web session (cookies from TWITLOG_COOKIES or the
cookies key of config.yaml) and records a snapshot where they changed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		opts, err := collectorOptions(ctx, !flagNoTweets, !flagNoAnalytics)
		if err != nil {
			return err
		}
		conn, err := openArchive(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()
		c := collect.New(conn, cfg.Username, opts...)

		if !flagNoTweets {
			n, err := c.UpdateTweets(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("tweets added %d\n", n)
		}
		if !flagNoAnalytics {
			n, err := c.UpdateMetrics(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("metric snapshots %d\n", n)
		}
		return nil
	},
}

func init() {
	analyticsCmd.Flags().BoolVarP(&flagNoTweets, "no-tweets", "x", false, "skip fetching new tweets")
	analyticsCmd.Flags().BoolVarP(&flagNoAnalytics, "no-analytics", "X", false, "skip fetching metrics")
}
