package sqlite

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoTransaction is returned by Commit and Rollback when no scope is open.
var ErrNoTransaction = errors.New("no transaction in progress")

// StatementError reports a statement the engine rejected, together with the
// bound parameters.
type StatementError struct {
	SQL  string
	Args []any
	Err  error
}

func (e *StatementError) Error() string {
	if len(e.Args) == 0 {
		return fmt.Sprintf("execute %q: %v", e.SQL, e.Err)
	}
	return fmt.Sprintf("execute %q %v: %v", e.SQL, e.Args, e.Err)
}

func (e *StatementError) Unwrap() error { return e.Err }

// MigrationError reports the migration step that failed. Steps before it
// stay applied; the failing step's own changes were rolled back.
type MigrationError struct {
	Name string
	Err  error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("migration %s: %v", e.Name, e.Err)
}

func (e *MigrationError) Unwrap() error { return e.Err }

// isNoSuchTable reports whether err is the engine's complaint about a
// missing table with the given name.
func isNoSuchTable(err error, table string) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "no such table: "+table)
}
