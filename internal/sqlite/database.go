package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/twitlog/pkg/types"
)

// driverName is the database/sql name registered by modernc.org/sqlite.
const driverName = "sqlite"

// Database is a handle on one database file. It holds no open connection;
// Connect opens one per call.
type Database struct {
	path       string
	migrations []Migration
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures a Database.
type Option func(*Database)

// WithMigrations sets the ordered migration list applied by Create, Open
// and Migrate.
func WithMigrations(migrations []Migration) Option {
	return func(d *Database) { d.migrations = migrations }
}

// WithLogger sets the logger handed to every connection.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Database) { d.logger = logger }
}

// WithClock overrides the time source used to name backups.
func WithClock(now func() time.Time) Option {
	return func(d *Database) { d.now = now }
}

// New returns a handle bound to path without touching the file system.
func New(path string, opts ...Option) *Database {
	d := &Database{
		path:   path,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Open returns a handle bound to path and, when the file already exists,
// applies any pending migrations to it.
func Open(ctx context.Context, path string, opts ...Option) (*Database, error) {
	d := New(path, opts...)
	if d.Exists() {
		if _, err := d.Migrate(ctx); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Path returns the database file path.
func (d *Database) Path() string {
	return d.path
}

// Exists reports whether the database file is present.
func (d *Database) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// Create makes the database file and migrates it. An existing file is an
// error unless ifNotExists is set, in which case Create does nothing.
func (d *Database) Create(ctx context.Context, ifNotExists bool) error {
	if d.Exists() {
		if ifNotExists {
			return nil
		}
		return fmt.Errorf("create database %s: %w", d.path, types.ErrAlreadyExists)
	}
	if err := os.MkdirAll(filepath.Dir(d.path), 0o755); err != nil {
		return fmt.Errorf("create database dir: %w", err)
	}

	c, err := d.Connect(ctx, true)
	if err != nil {
		return err
	}
	defer c.Close()

	_, err = d.migrator().Run(ctx, c)
	return err
}

// Connect opens a connection to the database file with foreign key
// enforcement on. Without create, a missing file is types.ErrNotFound.
func (d *Database) Connect(ctx context.Context, create bool) (*Conn, error) {
	if !create && !d.Exists() {
		return nil, fmt.Errorf("connect to %s: %w", d.path, types.ErrNotFound)
	}

	db, err := sql.Open(driverName, d.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.path, err)
	}
	// Transaction state lives on one physical connection.
	db.SetMaxOpenConns(1)

	raw, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to %s: %w", d.path, err)
	}

	c := &Conn{db: db, conn: raw, logger: d.logger}
	if _, err := c.Exec(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		return nil, errors.Join(err, c.Close())
	}
	return c, nil
}

// Migrate opens a connection and applies pending migrations, returning the
// names applied.
func (d *Database) Migrate(ctx context.Context) ([]string, error) {
	c, err := d.Connect(ctx, false)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return d.migrator().Run(ctx, c)
}

// MigrationStatus reports applied and pending migrations.
func (d *Database) MigrationStatus(ctx context.Context) (MigrationStatus, error) {
	c, err := d.Connect(ctx, false)
	if err != nil {
		return MigrationStatus{}, err
	}
	defer c.Close()
	return d.migrator().Status(ctx, c)
}

// Backup writes a timestamped copy of the database file into the sibling
// backups directory and returns its path.
func (d *Database) Backup(ctx context.Context) (string, error) {
	c, err := d.Connect(ctx, false)
	if err != nil {
		return "", err
	}
	defer c.Close()
	return d.backup(ctx, c)
}

func (d *Database) backup(ctx context.Context, c *Conn) (string, error) {
	return backupFile(ctx, c, d.path, d.now())
}

func (d *Database) migrator() *Migrator {
	return NewMigrator(d.migrations, d.backup)
}
