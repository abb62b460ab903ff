// Version command for the twitlog CLI.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/twitlog/pkg/twitlog"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the twitlog version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("twitlog", twitlog.Version)
	},
}
