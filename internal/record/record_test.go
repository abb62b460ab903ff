package record

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/twitlog/internal/sqlite"
)

type entry struct {
	Record
}

type labeled struct {
	Record
	Label string
}

var baseSchema = NewSchema[*labeled]("entries",
	Column[*labeled]{Name: "created_at"},
	Column[*labeled]{Name: "label", Getter: func(e *labeled) (any, bool) { return "base", true }},
)

var labeledSchema = baseSchema.Extend("",
	Column[*labeled]{
		Name: "label",
		Getter: func(e *labeled) (any, bool) {
			if e.Label == "" {
				return nil, false
			}
			return e.Label, true
		},
		Restore: func(e *labeled, v any) error {
			e.Label = strings.ToLower(v.(string))
			return nil
		},
	},
	Column[*labeled]{
		Name: "payload",
		Persist: func(e *labeled) (any, error) {
			v, ok := e.Value("payload")
			if !ok {
				return nil, ErrAbsent
			}
			b, err := json.Marshal(v)
			return string(b), err
		},
		Restore: func(e *labeled, v any) error {
			var out map[string]any
			if err := json.Unmarshal([]byte(v.(string)), &out); err != nil {
				return err
			}
			e.Set("payload", out)
			return nil
		},
	},
)

var entrySchema = NewSchema[*entry]("plain", Column[*entry]{Name: "name"}, Column[*entry]{Name: "age"})

func testConn(t *testing.T) *sqlite.Conn {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db := sqlite.New(filepath.Join(t.TempDir(), "record.sqlite"), sqlite.WithLogger(logger))
	require.NoError(t, db.Create(ctx, false))
	c, err := db.Connect(ctx, false)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	_, err = c.Exec(ctx, "CREATE TABLE plain (id INTEGER PRIMARY KEY, name TEXT, age INTEGER)")
	require.NoError(t, err)
	_, err = c.Exec(ctx, "CREATE TABLE entries (id INTEGER PRIMARY KEY, created_at TEXT, label TEXT, payload TEXT)")
	require.NoError(t, err)
	return c
}

func TestRecord_ZeroValueIsDirty(t *testing.T) {
	var e entry
	assert.True(t, e.Dirty())
	_, ok := e.ID()
	assert.False(t, ok)

	_, ok = e.Value("name")
	assert.False(t, ok)
	e.Set("name", "alice")
	v, ok := e.Value("name")
	assert.True(t, ok)
	assert.Equal(t, "alice", v)
}

func TestSchema_ColumnsMergedAndOrdered(t *testing.T) {
	assert.Equal(t, "entries", labeledSchema.Table())
	assert.Equal(t, []string{"created_at", "label", "payload"}, labeledSchema.Columns())
	assert.Equal(t, []string{"created_at", "label"}, baseSchema.Columns(), "extending leaves the base intact")

	e := &labeled{Label: "Mine"}
	v, ok := labeledSchema.Value(e, "label")
	require.True(t, ok)
	assert.Equal(t, "Mine", v, "the most specific column wins")
	v, _ = baseSchema.Value(e, "label")
	assert.Equal(t, "base", v)

	renamed := labeledSchema.Extend("archived_entries")
	assert.Equal(t, "archived_entries", renamed.Table())
	assert.Equal(t, labeledSchema.Columns(), renamed.Columns())
}

func TestSchema_EmptyColumnNamePanics(t *testing.T) {
	assert.Panics(t, func() {
		NewSchema[*entry]("plain", Column[*entry]{})
	})
}

func TestPersist_InsertThenUpdate(t *testing.T) {
	ctx := context.Background()
	c := testConn(t)

	e := &entry{}
	e.Set("name", "alice")
	e.Set("age", 30)
	id, err := entrySchema.Persist(ctx, c, e, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	assert.False(t, e.Dirty())

	e.Set("age", 31)
	assert.True(t, e.Dirty())
	id2, err := entrySchema.Persist(ctx, c, e, false)
	require.NoError(t, err)
	assert.Equal(t, id, id2)
	assert.False(t, e.Dirty())

	row, err := c.QueryRow(ctx, "SELECT * FROM plain WHERE id = ?", id)
	require.NoError(t, err)
	name, _ := row.String("name")
	age, _ := row.Int64("age")
	assert.Equal(t, "alice", name)
	assert.Equal(t, int64(31), age)

	rows, err := c.Query(ctx, "SELECT id FROM plain")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestPersist_CleanIsNoop(t *testing.T) {
	ctx := context.Background()
	c := testConn(t)

	e := &entry{}
	e.Set("name", "bob")
	_, err := entrySchema.Persist(ctx, c, e, false)
	require.NoError(t, err)

	_, err = c.Exec(ctx, "UPDATE plain SET name = 'changed'")
	require.NoError(t, err)

	_, err = entrySchema.Persist(ctx, c, e, false)
	require.NoError(t, err)
	row, err := c.QueryRow(ctx, "SELECT name FROM plain")
	require.NoError(t, err)
	name, _ := row.String("name")
	assert.Equal(t, "changed", name, "clean record is not written")

	_, err = entrySchema.Persist(ctx, c, e, true)
	require.NoError(t, err)
	row, err = c.QueryRow(ctx, "SELECT name FROM plain")
	require.NoError(t, err)
	name, _ = row.String("name")
	assert.Equal(t, "bob", name, "forced persist writes")
}

func TestRestoreThenPersist_NoWrite(t *testing.T) {
	ctx := context.Background()
	c := testConn(t)
	_, err := c.Exec(ctx, "INSERT INTO plain (id, name, age) VALUES (7, 'carol', 40)")
	require.NoError(t, err)

	row, err := c.QueryRow(ctx, "SELECT * FROM plain WHERE id = 7")
	require.NoError(t, err)
	e := &entry{}
	require.NoError(t, entrySchema.Restore(e, row))
	assert.False(t, e.Dirty())
	id, ok := e.ID()
	require.True(t, ok)
	assert.Equal(t, int64(7), id)

	_, err = c.Exec(ctx, "UPDATE plain SET age = 41 WHERE id = 7")
	require.NoError(t, err)
	_, err = entrySchema.Persist(ctx, c, e, false)
	require.NoError(t, err)

	row, err = c.QueryRow(ctx, "SELECT age FROM plain WHERE id = 7")
	require.NoError(t, err)
	age, _ := row.Int64("age")
	assert.Equal(t, int64(41), age)
}

func TestPersistHooks(t *testing.T) {
	ctx := context.Background()
	c := testConn(t)

	e := &labeled{Label: "Hello"}
	e.Set("created_at", "2024-01-02 03:04:05")
	id, err := labeledSchema.Persist(ctx, c, e, false)
	require.NoError(t, err)

	row, err := c.QueryRow(ctx, "SELECT * FROM entries WHERE id = ?", id)
	require.NoError(t, err)
	label, _ := row.String("label")
	assert.Equal(t, "Hello", label, "getter supplies the value")
	payload, ok := row.Get("payload")
	assert.True(t, ok)
	assert.Nil(t, payload, "absent payload is omitted")

	e.Set("payload", map[string]any{"b": 2, "a": 1})
	_, err = labeledSchema.Persist(ctx, c, e, false)
	require.NoError(t, err)
	row, err = c.QueryRow(ctx, "SELECT payload FROM entries WHERE id = ?", id)
	require.NoError(t, err)
	text, _ := row.String("payload")
	assert.Equal(t, `{"a":1,"b":2}`, text)

	loaded := &labeled{}
	require.NoError(t, labeledSchema.Load(ctx, c, loaded, id))
	assert.Equal(t, "hello", loaded.Label, "restore hook runs")
	v, _ := loaded.Value("payload")
	assert.Equal(t, map[string]any{"a": float64(1), "b": float64(2)}, v)
	assert.False(t, loaded.Dirty())
}

func TestRestore_IgnoreAndMismatch(t *testing.T) {
	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	e := &entry{}
	e.SetID(3)
	row := sqlite.Row{"id": int64(4), "name": "dave", "age": int64(50)}
	require.NoError(t, entrySchema.Restore(e, row, "age"))

	id, _ := e.ID()
	assert.Equal(t, int64(4), id, "the row's id wins")
	name, _ := e.Value("name")
	assert.Equal(t, "dave", name)
	_, ok := e.Value("age")
	assert.False(t, ok, "ignored column is skipped")
	assert.Contains(t, logs.String(), "record id replaced on restore")
}

func TestRestore_MismatchReportsToSchemaLogger(t *testing.T) {
	var global, own bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&global, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	schema := entrySchema.WithLogger(slog.New(slog.NewTextHandler(&own, nil)))
	e := &entry{}
	e.SetID(3)
	require.NoError(t, schema.Restore(e, sqlite.Row{"id": int64(4)}))

	assert.Contains(t, own.String(), "record id replaced on restore")
	assert.Empty(t, global.String())
	assert.Equal(t, entrySchema.Columns(), schema.Columns())
}

func TestIDOrPersist(t *testing.T) {
	ctx := context.Background()
	c := testConn(t)

	e := &entry{}
	e.Set("name", "erin")
	id, err := entrySchema.IDOrPersist(ctx, c, e)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	e.Set("name", "erin2")
	again, err := entrySchema.IDOrPersist(ctx, c, e)
	require.NoError(t, err)
	assert.Equal(t, id, again)
	assert.True(t, e.Dirty(), "an existing id is returned without writing")
}
