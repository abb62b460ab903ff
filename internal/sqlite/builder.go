package sqlite

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mesh-intelligence/twitlog/pkg/types"
)

// ConflictPolicy is the resolution clause of INSERT OR <policy>.
type ConflictPolicy string

// Conflict policies accepted by Insert. The empty policy emits a plain
// INSERT, which fails on constraint conflicts.
const (
	OnConflictNone     ConflictPolicy = ""
	OnConflictRollback ConflictPolicy = "ROLLBACK"
	OnConflictAbort    ConflictPolicy = "ABORT"
	OnConflictFail     ConflictPolicy = "FAIL"
	OnConflictIgnore   ConflictPolicy = "IGNORE"
	OnConflictReplace  ConflictPolicy = "REPLACE"
)

func (p ConflictPolicy) valid() bool {
	switch p {
	case OnConflictNone, OnConflictRollback, OnConflictAbort, OnConflictFail, OnConflictIgnore, OnConflictReplace:
		return true
	}
	return false
}

// Insert writes one row built from data and returns its rowid. Columns are
// emitted in name order. When the policy is OnConflictIgnore and the row
// was skipped, the returned id is zero.
func (c *Conn) Insert(ctx context.Context, table string, data map[string]any, onConflict ConflictPolicy) (int64, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("insert into %s: no columns: %w", table, types.ErrInvalidArgument)
	}
	if !onConflict.valid() {
		return 0, fmt.Errorf("insert into %s: conflict policy %q: %w", table, onConflict, types.ErrInvalidArgument)
	}

	cols, params := sortedPairs(data)
	placeholders := strings.Repeat("?,", len(cols))
	placeholders = placeholders[:len(placeholders)-1]

	var b strings.Builder
	b.WriteString("INSERT ")
	if onConflict != OnConflictNone {
		b.WriteString("OR ")
		b.WriteString(string(onConflict))
		b.WriteByte(' ')
	}
	fmt.Fprintf(&b, "INTO %s (%s) VALUES (%s)",
		EscapeIdentifier(table),
		strings.Join(escapeAll(cols), ","),
		placeholders,
	)

	res, err := c.Exec(ctx, b.String(), params...)
	if err != nil {
		return 0, err
	}
	if onConflict == OnConflictIgnore {
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return 0, nil
		}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert into %s: last insert id: %w", table, err)
	}
	return id, nil
}

// Update sets the columns in data on every row matching where (equality
// tests joined by AND; nil matches every row) and returns the number of
// rows changed.
func (c *Conn) Update(ctx context.Context, table string, data, where map[string]any) (int64, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("update %s: no columns: %w", table, types.ErrInvalidArgument)
	}

	cols, params := sortedPairs(data)
	sets := make([]string, len(cols))
	for i, col := range cols {
		sets[i] = EscapeIdentifier(col) + " = ?"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "UPDATE %s SET %s", EscapeIdentifier(table), strings.Join(sets, ", "))
	if len(where) > 0 {
		keys, vals := sortedPairs(where)
		conds := make([]string, len(keys))
		for i, k := range keys {
			conds[i] = EscapeIdentifier(k) + " = ?"
		}
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
		params = append(params, vals...)
	}

	res, err := c.Exec(ctx, b.String(), params...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update %s: rows affected: %w", table, err)
	}
	return n, nil
}

func sortedPairs(m map[string]any) ([]string, []any) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	vals := make([]any, len(keys))
	for i, k := range keys {
		vals[i] = m[k]
	}
	return keys, vals
}
