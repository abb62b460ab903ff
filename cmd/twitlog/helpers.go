// Shared helpers for twitlog CLI commands.
package main

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/twitlog/internal/collect"
	"github.com/mesh-intelligence/twitlog/internal/schema"
	"github.com/mesh-intelligence/twitlog/internal/sqlite"
	"github.com/mesh-intelligence/twitlog/internal/twitter"
)

// newDatabase returns the handle for the configured user's archive.
func newDatabase() (*sqlite.Database, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return sqlite.New(cfg.DatabasePath(),
		sqlite.WithMigrations(schema.Migrations()),
		sqlite.WithLogger(logger),
	), nil
}

// openArchive creates the user's database when missing, brings it up to
// date, and connects to it. The caller must close the connection.
func openArchive(ctx context.Context) (*sqlite.Conn, error) {
	db, err := newDatabase()
	if err != nil {
		return nil, err
	}
	if err := db.Create(ctx, true); err != nil {
		return nil, fmt.Errorf("create database: %w", err)
	}
	if _, err := db.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db.Connect(ctx, false)
}

// connectExisting connects to the user's database without creating it.
func connectExisting(ctx context.Context) (*sqlite.Database, *sqlite.Conn, error) {
	db, err := newDatabase()
	if err != nil {
		return nil, nil, err
	}
	conn, err := db.Connect(ctx, false)
	if err != nil {
		return nil, nil, err
	}
	return db, conn, nil
}

// collectorOptions builds the collaborators a sync command needs.
func collectorOptions(ctx context.Context, needAPI, needWeb bool) ([]collect.Option, error) {
	opts := []collect.Option{collect.WithLogger(logger)}
	if needAPI {
		if err := cfg.RequireAPI(); err != nil {
			return nil, fmt.Errorf("bearer token: %w", err)
		}
		opts = append(opts, collect.WithPager(
			twitter.NewClient(ctx, cfg.Credentials.BearerToken, twitter.WithClientLogger(logger))))
	}
	if needWeb {
		session, err := twitter.NewWebSession("", cfg.Cookies, logger)
		if err != nil {
			return nil, err
		}
		opts = append(opts, collect.WithMetricsSource(session))
	}
	return opts, nil
}
