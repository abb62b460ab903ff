package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mesh-intelligence/twitlog/pkg/types"
)

// savepointPrefix names nested scopes; the depth is appended.
const savepointPrefix = "twitlog_"

// Conn wraps one physical SQLite connection and adds reentrant transaction
// scopes, the statement builder, and schema introspection.
type Conn struct {
	db     *sql.DB
	conn   *sql.Conn
	logger *slog.Logger
	depth  int
}

// Logger returns the logger statements are reported to.
func (c *Conn) Logger() *slog.Logger {
	return c.logger
}

// Depth reports how many transaction scopes are open.
func (c *Conn) Depth() int {
	return c.depth
}

// Close releases the physical connection. An open transaction is rolled
// back by the engine.
func (c *Conn) Close() error {
	if c.conn == nil {
		return nil
	}
	connErr := c.conn.Close()
	dbErr := c.db.Close()
	c.conn = nil
	c.depth = 0
	return errors.Join(connErr, dbErr)
}

// Exec runs a statement that returns no rows.
func (c *Conn) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	c.logger.Debug("sql exec", "statement", query, "args", args)
	res, err := c.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, &StatementError{SQL: query, Args: args, Err: err}
	}
	return res, nil
}

// Query runs a statement and collects every result row.
func (c *Conn) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	c.logger.Debug("sql query", "statement", query, "args", args)
	rows, err := c.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &StatementError{SQL: query, Args: args, Err: err}
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, &StatementError{SQL: query, Args: args, Err: err}
	}

	var out []Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &StatementError{SQL: query, Args: args, Err: err}
		}
		row := make(Row, len(cols))
		for i, name := range cols {
			if b, ok := vals[i].([]byte); ok {
				vals[i] = append([]byte(nil), b...)
			}
			row[name] = vals[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, &StatementError{SQL: query, Args: args, Err: err}
	}
	return out, nil
}

// QueryRow returns the first row of the result, or types.ErrNotFound when
// the result is empty.
func (c *Conn) QueryRow(ctx context.Context, query string, args ...any) (Row, error) {
	rows, err := c.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("query %q: %w", query, types.ErrNotFound)
	}
	return rows[0], nil
}

// Transaction runs fn inside a scope. The outermost scope issues BEGIN and
// COMMIT; nested scopes use savepoints, so a failure inside fn undoes only
// the work done since this scope was entered. A panic in fn rolls the scope
// back and is re-raised.
func (c *Conn) Transaction(ctx context.Context, fn func(*Conn) error) error {
	if err := c.Begin(ctx); err != nil {
		return err
	}
	done := false
	defer func() {
		if done {
			return
		}
		p := recover()
		if rbErr := c.Rollback(ctx); rbErr != nil {
			c.logger.Error("rollback after panic failed", "error", rbErr)
		}
		if p != nil {
			panic(p)
		}
	}()

	fnErr := fn(c)
	done = true
	if fnErr != nil {
		if rbErr := c.Rollback(ctx); rbErr != nil {
			return errors.Join(fnErr, rbErr)
		}
		return fnErr
	}
	return c.Commit(ctx)
}

// Begin opens a scope: a transaction at depth zero, a savepoint otherwise.
// Every Begin must be paired with exactly one Commit or Rollback.
func (c *Conn) Begin(ctx context.Context) error {
	stmt := "BEGIN"
	if c.depth > 0 {
		stmt = "SAVEPOINT " + savepointName(c.depth)
	}
	if _, err := c.Exec(ctx, stmt); err != nil {
		return err
	}
	c.depth++
	return nil
}

// Commit closes the innermost scope, committing at the outermost level and
// releasing the savepoint otherwise.
func (c *Conn) Commit(ctx context.Context) error {
	if c.depth == 0 {
		return ErrNoTransaction
	}
	ctx = context.WithoutCancel(ctx)
	c.depth--
	if c.depth > 0 {
		_, err := c.Exec(ctx, "RELEASE "+savepointName(c.depth))
		return err
	}
	if _, err := c.Exec(ctx, "COMMIT"); err != nil {
		// A failed COMMIT (deferred constraint, busy) leaves the transaction
		// open; close it so the connection is usable again.
		if _, rbErr := c.conn.ExecContext(ctx, "ROLLBACK"); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return nil
}

// Rollback closes the innermost scope, discarding its work. At the
// outermost level the whole transaction is rolled back; nested scopes roll
// back to their savepoint and leave the enclosing transaction intact.
func (c *Conn) Rollback(ctx context.Context) error {
	if c.depth == 0 {
		return ErrNoTransaction
	}
	ctx = context.WithoutCancel(ctx)
	c.depth--
	if c.depth == 0 {
		_, err := c.Exec(ctx, "ROLLBACK")
		return err
	}
	name := savepointName(c.depth)
	if _, err := c.Exec(ctx, "ROLLBACK TO "+name); err != nil {
		return err
	}
	_, err := c.Exec(ctx, "RELEASE "+name)
	return err
}

func savepointName(depth int) string {
	return fmt.Sprintf("%s%d", savepointPrefix, depth)
}
