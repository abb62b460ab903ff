package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/twitlog/pkg/types"
)

func TestInsert_SortedColumnsAndID(t *testing.T) {
	ctx := context.Background()
	log := &statementLog{}
	_, c := openTestConn(t, WithLogger(debugLogger(log)))
	mustExec(t, c, "CREATE TABLE people (id INTEGER PRIMARY KEY, name TEXT NOT NULL, age INTEGER)")

	id, err := c.Insert(ctx, "people", map[string]any{"name": "alice", "age": 30}, OnConflictNone)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	assert.Contains(t, log.statements(t), `INSERT INTO "people" ("age","name") VALUES (?,?)`)

	row, err := c.QueryRow(ctx, "SELECT name, age FROM people WHERE id = ?", id)
	require.NoError(t, err)
	name, _ := row.String("name")
	age, _ := row.Int64("age")
	assert.Equal(t, "alice", name)
	assert.Equal(t, int64(30), age)
}

func TestInsert_ConflictPolicies(t *testing.T) {
	ctx := context.Background()
	log := &statementLog{}
	_, c := openTestConn(t, WithLogger(debugLogger(log)))
	mustExec(t, c, "CREATE TABLE kv (key TEXT UNIQUE NOT NULL, value TEXT NOT NULL)")

	_, err := c.Insert(ctx, "kv", map[string]any{"key": "a", "value": "1"}, OnConflictNone)
	require.NoError(t, err)

	_, err = c.Insert(ctx, "kv", map[string]any{"key": "a", "value": "2"}, OnConflictNone)
	var stmtErr *StatementError
	require.ErrorAs(t, err, &stmtErr, "unique conflict without a policy fails")

	id, err := c.Insert(ctx, "kv", map[string]any{"key": "a", "value": "3"}, OnConflictIgnore)
	require.NoError(t, err)
	assert.Zero(t, id, "ignored insert reports no row")

	_, err = c.Insert(ctx, "kv", map[string]any{"key": "a", "value": "4"}, OnConflictReplace)
	require.NoError(t, err)
	assert.Contains(t, log.statements(t), `INSERT OR REPLACE INTO "kv" ("key","value") VALUES (?,?)`)

	row, err := c.QueryRow(ctx, "SELECT value FROM kv WHERE key = 'a'")
	require.NoError(t, err)
	v, _ := row.String("value")
	assert.Equal(t, "4", v)
	assert.Equal(t, int64(1), countRows(t, c, "kv"))
}

func TestInsert_InvalidArguments(t *testing.T) {
	ctx := context.Background()
	_, c := openTestConn(t)

	_, err := c.Insert(ctx, "kv", nil, OnConflictNone)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)

	_, err = c.Insert(ctx, "kv", map[string]any{"a": 1}, ConflictPolicy("IGNORE; DROP TABLE kv"))
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestInsert_NotNullViolation(t *testing.T) {
	ctx := context.Background()
	_, c := openTestConn(t)
	mustExec(t, c, "CREATE TABLE people (id INTEGER PRIMARY KEY, name TEXT NOT NULL, age INTEGER)")

	_, err := c.Insert(ctx, "people", map[string]any{"age": 3}, OnConflictNone)
	var stmtErr *StatementError
	require.ErrorAs(t, err, &stmtErr)
	assert.Contains(t, stmtErr.SQL, "INSERT INTO")
}

func TestInsert_ForeignKeyViolation(t *testing.T) {
	ctx := context.Background()
	_, c := openTestConn(t)
	mustExec(t, c,
		"CREATE TABLE parents (id INTEGER PRIMARY KEY)",
		"CREATE TABLE children (id INTEGER PRIMARY KEY, parent_id INTEGER NOT NULL REFERENCES parents (id))",
	)

	_, err := c.Insert(ctx, "children", map[string]any{"parent_id": 99}, OnConflictNone)
	var stmtErr *StatementError
	assert.ErrorAs(t, err, &stmtErr)
}

func TestInsert_QuotedIdentifiers(t *testing.T) {
	ctx := context.Background()
	_, c := openTestConn(t)
	mustExec(t, c, `CREATE TABLE "odd ""table""" ("select" TEXT, "we""ird" TEXT)`)

	_, err := c.Insert(ctx, `odd "table"`, map[string]any{"select": "s", `we"ird`: "w"}, OnConflictNone)
	require.NoError(t, err)
	assert.Equal(t, int64(1), countRows(t, c, `odd "table"`))
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	log := &statementLog{}
	_, c := openTestConn(t, WithLogger(debugLogger(log)))
	mustExec(t, c, "CREATE TABLE people (id INTEGER PRIMARY KEY, name TEXT, age INTEGER, city TEXT)")
	for _, name := range []string{"alice", "bob", "carol"} {
		_, err := c.Insert(ctx, "people", map[string]any{"name": name, "age": 20, "city": "x"}, OnConflictNone)
		require.NoError(t, err)
	}

	n, err := c.Update(ctx, "people", map[string]any{"name": "bobby", "age": 21}, map[string]any{"name": "bob", "city": "x"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Contains(t, log.statements(t), `UPDATE "people" SET "age" = ?, "name" = ? WHERE "city" = ? AND "name" = ?`)

	n, err = c.Update(ctx, "people", map[string]any{"city": "y"}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	row, err := c.QueryRow(ctx, "SELECT age, city FROM people WHERE name = 'bobby'")
	require.NoError(t, err)
	age, _ := row.Int64("age")
	city, _ := row.String("city")
	assert.Equal(t, int64(21), age)
	assert.Equal(t, "y", city)

	_, err = c.Update(ctx, "people", map[string]any{}, nil)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}
