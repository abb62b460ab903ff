// Package schema holds the twitlog table layout as an ordered migration
// list, plus accessors for the key/value config table.
package schema

import (
	"context"

	"github.com/mesh-intelligence/twitlog/internal/sqlite"
)

// Migrations returns the schema steps in the order they must be applied.
// Append new steps at the end; never rename or reorder existing ones.
func Migrations() []sqlite.Migration {
	return []sqlite.Migration{
		{Name: "create_config_table", Up: createConfigTable},
		{Name: "create_user_tables", Up: createUserTables},
		{Name: "create_tweet_tables", Up: createTweetTables},
		{Name: "create_snapshot_indexes", Up: createSnapshotIndexes},
	}
}

func execAll(ctx context.Context, c *sqlite.Conn, stmts ...string) error {
	for _, stmt := range stmts {
		if _, err := c.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func createConfigTable(ctx context.Context, c *sqlite.Conn) error {
	return execAll(ctx, c, `CREATE TABLE config (
    key TEXT UNIQUE NOT NULL,
    value TEXT NOT NULL
)`)
}

func createUserTables(ctx context.Context, c *sqlite.Conn) error {
	return execAll(ctx, c,
		`CREATE TABLE users (
    id INTEGER PRIMARY KEY NOT NULL,
    name TEXT,
    last_profile_id INTEGER REFERENCES user_profiles (id),
    last_relationship_id INTEGER REFERENCES user_relationships (id)
)`,
		`CREATE TABLE user_profiles (
    id INTEGER PRIMARY KEY AUTOINCREMENT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT (datetime('now')),
    user_id INTEGER NOT NULL REFERENCES users (id),
    json TEXT NOT NULL
)`,
		`CREATE TABLE user_relationships (
    id INTEGER PRIMARY KEY AUTOINCREMENT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT (datetime('now')),
    user_id INTEGER NOT NULL REFERENCES users (id),
    is_friend BOOLEAN NOT NULL,
    is_follower BOOLEAN NOT NULL
)`,
	)
}

func createTweetTables(ctx context.Context, c *sqlite.Conn) error {
	return execAll(ctx, c,
		`CREATE TABLE tweets (
    id INTEGER PRIMARY KEY NOT NULL,
    json TEXT,
    last_metrics_id INTEGER REFERENCES tweet_metrics (id)
)`,
		`CREATE TABLE tweet_metrics (
    id INTEGER PRIMARY KEY AUTOINCREMENT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT (datetime('now')),
    tweet_id INTEGER NOT NULL REFERENCES tweets (id),
    json TEXT NOT NULL
)`,
	)
}

func createSnapshotIndexes(ctx context.Context, c *sqlite.Conn) error {
	return execAll(ctx, c,
		"CREATE INDEX user_profiles_user_id ON user_profiles (user_id)",
		"CREATE INDEX user_relationships_user_id ON user_relationships (user_id)",
		"CREATE INDEX tweet_metrics_tweet_id ON tweet_metrics (tweet_id)",
	)
}
