// Database inspection commands for the twitlog CLI.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/twitlog/internal/schema"
)

var flagJSON bool

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Inspect and maintain the user's database",
}

var dbTablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List tables",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, conn, err := connectExisting(cmd.Context())
		if err != nil {
			return err
		}
		defer conn.Close()

		tables, err := conn.Tables(cmd.Context())
		if err != nil {
			return err
		}
		return printList(tables)
	},
}

var dbSchemaCmd = &cobra.Command{
	Use:   "schema <table>",
	Short: "Print the CREATE TABLE statement of a table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, conn, err := connectExisting(cmd.Context())
		if err != nil {
			return err
		}
		defer conn.Close()

		text, err := conn.Schema(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(text)
		return nil
	},
}

var dbColumnsCmd = &cobra.Command{
	Use:   "columns <table>",
	Short: "List the columns of a table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, conn, err := connectExisting(cmd.Context())
		if err != nil {
			return err
		}
		defer conn.Close()

		cols, err := conn.Columns(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printList(cols)
	},
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations and the last sync times",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, conn, err := connectExisting(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()

		st, err := db.MigrationStatus(ctx)
		if err != nil {
			return err
		}
		keys := []string{schema.KeyFollowersSyncedAt, schema.KeyTweetsSyncedAt, schema.KeyMetricsSyncedAt}
		synced := map[string]string{}
		for _, key := range keys {
			at, ok, err := schema.LastSynced(ctx, conn, key)
			if err != nil {
				return err
			}
			if ok {
				synced[key] = at.Format(time.RFC3339)
			}
		}

		if flagJSON {
			return writeJSON(struct {
				Applied []string          `json:"applied"`
				Pending []string          `json:"pending"`
				Synced  map[string]string `json:"synced"`
			}{st.Applied, st.Pending, synced})
		}
		for _, name := range st.Applied {
			fmt.Println("applied ", name)
		}
		for _, name := range st.Pending {
			fmt.Println("pending ", name)
		}
		for _, key := range keys {
			if at, ok := synced[key]; ok {
				fmt.Println(key, at)
			}
		}
		return nil
	},
}

var dbBackupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Write a timestamped copy of the database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := newDatabase()
		if err != nil {
			return err
		}
		path, err := db.Backup(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	},
}

var dbDropColumnCmd = &cobra.Command{
	Use:   "drop-column <table> <column>",
	Short: "Remove a column by rebuilding its table",
	Long: `drop-column rebuilds the table without the column and copies the
remaining data across. A backup is written first. Columns that take part in
a key, a constraint or an index are refused.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, conn, err := connectExisting(cmd.Context())
		if err != nil {
			return err
		}
		defer conn.Close()

		path, err := db.Backup(cmd.Context())
		if err != nil {
			return err
		}
		logger.Info("database backed up", "path", path)
		return conn.DropColumn(cmd.Context(), args[0], args[1])
	},
}

func init() {
	dbCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output as JSON")

	dbCmd.AddCommand(dbTablesCmd)
	dbCmd.AddCommand(dbSchemaCmd)
	dbCmd.AddCommand(dbColumnsCmd)
	dbCmd.AddCommand(dbStatusCmd)
	dbCmd.AddCommand(dbBackupCmd)
	dbCmd.AddCommand(dbDropColumnCmd)
}

func printList(items []string) error {
	if flagJSON {
		return writeJSON(items)
	}
	for _, item := range items {
		fmt.Println(item)
	}
	return nil
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
