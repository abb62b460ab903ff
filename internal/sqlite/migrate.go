package sqlite

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/twitlog/pkg/types"
)

// MigrationsTable is the bookkeeping table recording applied migrations.
const MigrationsTable = "migrations"

const createMigrationsTable = `CREATE TABLE IF NOT EXISTS migrations (
    name TEXT UNIQUE NOT NULL,
    applied_at TIMESTAMP NOT NULL DEFAULT (datetime('now'))
)`

// Migration is one named schema change. Up runs inside its own transaction
// scope together with the bookkeeping insert, so it is applied exactly once
// or not at all. Names are the identity of a migration and must never be
// reused.
type Migration struct {
	Name string
	Up   func(ctx context.Context, c *Conn) error
}

// MigrationStatus reports which migrations of a list have been applied.
type MigrationStatus struct {
	Applied []string
	Pending []string
}

// Migrator applies an ordered list of migrations to a connection.
type Migrator struct {
	migrations []Migration

	// backup runs once, before the first pending migration of a pass.
	backup func(ctx context.Context, c *Conn) (string, error)
}

// NewMigrator returns a Migrator for migrations, which are applied in the
// given order. backup may be nil.
func NewMigrator(migrations []Migration, backup func(ctx context.Context, c *Conn) (string, error)) *Migrator {
	return &Migrator{migrations: migrations, backup: backup}
}

func (m *Migrator) validate() error {
	seen := make(map[string]bool, len(m.migrations))
	for _, mig := range m.migrations {
		if mig.Name == "" || mig.Up == nil {
			return fmt.Errorf("migration %q: name and Up are required: %w", mig.Name, types.ErrInvalidArgument)
		}
		if seen[mig.Name] {
			return fmt.Errorf("migration %q: duplicate name: %w", mig.Name, types.ErrInvalidArgument)
		}
		seen[mig.Name] = true
	}
	return nil
}

// applied reads the names already recorded. The bookkeeping table is only
// created when the probe finds it missing, so an up-to-date database is
// never written to.
func (m *Migrator) applied(ctx context.Context, c *Conn) (map[string]bool, error) {
	names := make(map[string]bool)
	err := c.Transaction(ctx, func(c *Conn) error {
		rows, err := c.Query(ctx, "SELECT name FROM migrations")
		if err != nil {
			if !isNoSuchTable(err, MigrationsTable) {
				return err
			}
			_, err = c.Exec(ctx, createMigrationsTable)
			return err
		}
		for _, row := range rows {
			name, _ := row.String("name")
			names[name] = true
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read applied migrations: %w", err)
	}
	return names, nil
}

// Status reports applied and pending migrations without changing anything
// beyond creating the bookkeeping table on first use.
func (m *Migrator) Status(ctx context.Context, c *Conn) (MigrationStatus, error) {
	if err := m.validate(); err != nil {
		return MigrationStatus{}, err
	}
	done, err := m.applied(ctx, c)
	if err != nil {
		return MigrationStatus{}, err
	}
	var st MigrationStatus
	for _, mig := range m.migrations {
		if done[mig.Name] {
			st.Applied = append(st.Applied, mig.Name)
		} else {
			st.Pending = append(st.Pending, mig.Name)
		}
	}
	return st, nil
}

// Run applies every pending migration in order and returns the names it
// applied. A failing step is rolled back and reported as *MigrationError;
// the steps before it stay applied and a later Run resumes at the failed
// step.
func (m *Migrator) Run(ctx context.Context, c *Conn) ([]string, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}
	done, err := m.applied(ctx, c)
	if err != nil {
		return nil, err
	}

	var ran []string
	backedUp := false
	for _, mig := range m.migrations {
		if done[mig.Name] {
			continue
		}
		if !backedUp && m.backup != nil {
			path, err := m.backup(ctx, c)
			if err != nil {
				return ran, fmt.Errorf("backup before migration %s: %w", mig.Name, err)
			}
			c.logger.Info("database backed up", "path", path)
		}
		backedUp = true

		err := c.Transaction(ctx, func(c *Conn) error {
			if err := mig.Up(ctx, c); err != nil {
				return err
			}
			_, err := c.Exec(ctx, "INSERT INTO migrations (name) VALUES (?)", mig.Name)
			return err
		})
		if err != nil {
			return ran, &MigrationError{Name: mig.Name, Err: err}
		}
		c.logger.Info("migration applied", "name", mig.Name)
		ran = append(ran, mig.Name)
	}
	return ran, nil
}
