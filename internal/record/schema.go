package record

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/mesh-intelligence/twitlog/internal/sqlite"
)

// IDColumn is the primary key every mapped table carries.
const IDColumn = "id"

// ErrAbsent is returned by a Persist hook to leave the column out of the
// written row.
var ErrAbsent = errors.New("value absent")

// Column describes one mapped column. All hooks are optional.
//
// Hooks:
//   - Getter: computes the value read through Schema.Value; the bool is
//     false when there is no value
//   - Persist: converts the value for storage; ErrAbsent omits the column
//   - Restore: loads a stored value back into the entity
type Column[T Mapped] struct {
	Name    string
	Getter  func(T) (any, bool)
	Persist func(T) (any, error)
	Restore func(T, any) error
}

// Schema is the immutable column list of an entity type, ordered by name.
type Schema[T Mapped] struct {
	table   string
	columns []Column[T]
	logger  *slog.Logger
}

// NewSchema returns a schema for table. It panics on a column with an
// empty name.
func NewSchema[T Mapped](table string, cols ...Column[T]) *Schema[T] {
	return (&Schema[T]{}).Extend(table, cols...)
}

// Extend returns a new schema holding the union of s's columns and cols,
// where a column in cols replaces the one of the same name in s. An empty
// table keeps s's table.
func (s *Schema[T]) Extend(table string, cols ...Column[T]) *Schema[T] {
	byName := make(map[string]Column[T], len(s.columns)+len(cols))
	for _, c := range s.columns {
		byName[c.Name] = c
	}
	for _, c := range cols {
		if c.Name == "" {
			panic("record: column with empty name")
		}
		byName[c.Name] = c
	}

	out := &Schema[T]{table: s.table, logger: s.logger}
	if table != "" {
		out.table = table
	}
	for _, c := range byName {
		out.columns = append(out.columns, c)
	}
	slices.SortFunc(out.columns, func(a, b Column[T]) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// WithLogger returns a copy of s that reports to logger instead of
// slog.Default.
func (s *Schema[T]) WithLogger(logger *slog.Logger) *Schema[T] {
	out := *s
	out.logger = logger
	return &out
}

func (s *Schema[T]) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

// Table returns the mapped table name.
func (s *Schema[T]) Table() string {
	return s.table
}

// Columns returns the column names in order.
func (s *Schema[T]) Columns() []string {
	names := make([]string, len(s.columns))
	for i, c := range s.columns {
		names[i] = c.Name
	}
	return names
}

// Column returns the descriptor for name.
func (s *Schema[T]) Column(name string) (Column[T], bool) {
	for _, c := range s.columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column[T]{}, false
}

// Value returns the value of a column, through its Getter when it has one.
func (s *Schema[T]) Value(obj T, name string) (any, bool) {
	if c, ok := s.Column(name); ok && c.Getter != nil {
		return c.Getter(obj)
	}
	return obj.Mapped().Value(name)
}

// Data builds the row written for obj. The id column is never included.
func (s *Schema[T]) Data(obj T) (map[string]any, error) {
	data := make(map[string]any, len(s.columns))
	for _, c := range s.columns {
		if c.Name == IDColumn {
			continue
		}
		if c.Persist != nil {
			v, err := c.Persist(obj)
			if errors.Is(err, ErrAbsent) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("persist %s.%s: %w", s.table, c.Name, err)
			}
			data[c.Name] = v
			continue
		}
		if v, ok := s.Value(obj, c.Name); ok {
			data[c.Name] = v
		}
	}
	return data, nil
}

// Persist writes obj to its table: an insert when it has no id yet, an
// update by id otherwise. A clean record is left alone unless force is set.
// On success the record is clean and its id is returned.
func (s *Schema[T]) Persist(ctx context.Context, c *sqlite.Conn, obj T, force bool) (int64, error) {
	rec := obj.Mapped()
	if !rec.Dirty() && !force {
		return rec.id, nil
	}
	data, err := s.Data(obj)
	if err != nil {
		return 0, err
	}

	if !rec.hasID {
		id, err := c.Insert(ctx, s.table, data, sqlite.OnConflictNone)
		if err != nil {
			return 0, err
		}
		rec.SetID(id)
	} else if len(data) > 0 {
		if _, err := c.Update(ctx, s.table, data, map[string]any{IDColumn: rec.id}); err != nil {
			return 0, err
		}
	}
	rec.clean = true
	return rec.id, nil
}

// IDOrPersist returns obj's id, persisting it first when it has none.
func (s *Schema[T]) IDOrPersist(ctx context.Context, c *sqlite.Conn, obj T) (int64, error) {
	if id, ok := obj.Mapped().ID(); ok {
		return id, nil
	}
	return s.Persist(ctx, c, obj, false)
}

// Restore loads the columns present in row into obj, skipping ignored
// names, and leaves the record clean: it now mirrors the stored row. An id
// in the row replaces the record's id.
func (s *Schema[T]) Restore(obj T, row sqlite.Row, ignore ...string) error {
	rec := obj.Mapped()

	if v, ok := row.Int64(IDColumn); ok && !slices.Contains(ignore, IDColumn) {
		if rec.hasID && rec.id != v {
			s.log().Warn("record id replaced on restore", "table", s.table, "old", rec.id, "new", v)
		}
		rec.SetID(v)
	}
	for _, c := range s.columns {
		if c.Name == IDColumn || slices.Contains(ignore, c.Name) {
			continue
		}
		v, ok := row.Get(c.Name)
		if !ok {
			continue
		}
		if c.Restore != nil {
			if err := c.Restore(obj, v); err != nil {
				return fmt.Errorf("restore %s.%s: %w", s.table, c.Name, err)
			}
			continue
		}
		rec.put(c.Name, v)
	}
	rec.clean = true
	return nil
}

// Load restores obj from the row with the given id. A schema without its
// own logger reports through the connection's.
func (s *Schema[T]) Load(ctx context.Context, c *sqlite.Conn, obj T, id int64) error {
	row, err := c.QueryRow(ctx, fmt.Sprintf("SELECT * FROM %s WHERE %s = ?",
		sqlite.EscapeIdentifier(s.table), sqlite.EscapeIdentifier(IDColumn)), id)
	if err != nil {
		return err
	}
	if s.logger == nil {
		return s.WithLogger(c.Logger()).Restore(obj, row)
	}
	return s.Restore(obj, row)
}
