// Followers command for the twitlog CLI.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/twitlog/internal/collect"
)

var (
	flagNoRelationships bool
	flagNoProfiles      bool
)

var followersCmd = &cobra.Command{
	Use:   "followers",
	Short: "Archive follower and friend relationships and profiles",
	Long: `followers merges the account's follower and friend lists with the
archive, recording a relationship snapshot for every change, then fetches a
profile for every user that has none yet.`,
	Args: cobra.NoArgs,
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
		c := collect.New(conn, cfg.Username, opts...)

		if !flagNoRelationships {
			stats, err := c.UpdateRelationships(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("followers %d, friends %d, new users %d, changed %d\n",
				stats.Followers, stats.Friends, stats.NewUsers, stats.Changed)
		}
		if !flagNoProfiles {
			n, err := c.UpdateProfiles(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("profiles archived %d\n", n)
		}
		return nil
	},
}

func init() {
	followersCmd.Flags().BoolVarP(&flagNoRelationships, "no-relationships", "x", false, "skip the relationship pass")
	followersCmd.Flags().BoolVarP(&flagNoProfiles, "no-profiles", "X", false, "skip the profile pass")
}
