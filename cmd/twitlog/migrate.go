// Migrate command for the twitlog CLI.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	Long: `migrate applies every pending schema migration to the user's
database. A timestamped backup is written to the backups directory before
the first pending migration.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := newDatabase()
		if err != nil {
			return err
		}
		ran, err := db.Migrate(cmd.Context())
		if err != nil {
			return err
		}
		if len(ran) == 0 {
			fmt.Println("database is up to date")
			return nil
		}
		for _, name := range ran {
			fmt.Println("applied", name)
		}
		return nil
	},
}
