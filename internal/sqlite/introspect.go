package sqlite

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/mesh-intelligence/twitlog/pkg/types"
)

// Creation-statement clauses that TableDef cannot carry through a rebuild.
// PRAGMA metadata reports none of them, so a rebuilt table would lose them.
var unsupportedClause = regexp.MustCompile(`(?i)\b(CHECK|COLLATE|GENERATED|WITHOUT\s+ROWID|STRICT|DEFERRABLE|ON\s+CONFLICT|MATCH\s+\w+)\b`)

var autoIncrementClause = regexp.MustCompile(`(?i)\bAUTOINCREMENT\b`)

// Tables returns the names of the user tables, ordered by name.
func (c *Conn) Tables(ctx context.Context) ([]string, error) {
	rows, err := c.Query(ctx, `SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite\_%' ESCAPE '\'
		ORDER BY name`)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(rows))
	for _, row := range rows {
		name, _ := row.String("name")
		names = append(names, name)
	}
	return names, nil
}

// Schema returns the CREATE TABLE statement stored for table.
func (c *Conn) Schema(ctx context.Context, table string) (string, error) {
	row, err := c.QueryRow(ctx, "SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?", table)
	if err != nil {
		return "", fmt.Errorf("schema of table %s: %w", table, err)
	}
	text, _ := row.String("sql")
	return text, nil
}

// Columns returns the column names of table in declaration order.
func (c *Conn) Columns(ctx context.Context, table string) ([]string, error) {
	rows, err := c.Query(ctx, "SELECT name FROM pragma_table_info(?) ORDER BY cid", table)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("columns of table %s: %w", table, types.ErrNotFound)
	}
	names := make([]string, len(rows))
	for i, row := range rows {
		names[i], _ = row.String("name")
	}
	return names, nil
}

// TableDef reads the structural description of table from the engine's
// PRAGMA metadata.
func (c *Conn) TableDef(ctx context.Context, table string) (TableDef, error) {
	createSQL, err := c.Schema(ctx, table)
	if err != nil {
		return TableDef{}, err
	}
	def := TableDef{
		Name:          table,
		AutoIncrement: autoIncrementClause.MatchString(createSQL),
	}

	cols, err := c.Query(ctx, "SELECT * FROM pragma_table_info(?) ORDER BY cid", table)
	if err != nil {
		return TableDef{}, err
	}
	type pkCol struct {
		name string
		pos  int64
	}
	var pks []pkCol
	for _, row := range cols {
		col := ColumnDef{}
		col.Name, _ = row.String("name")
		col.Type, _ = row.String("type")
		notNull, _ := row.Int64("notnull")
		col.NotNull = notNull != 0
		col.Default, _ = row.String("dflt_value")
		if pos, _ := row.Int64("pk"); pos > 0 {
			pks = append(pks, pkCol{name: col.Name, pos: pos})
		}
		def.Columns = append(def.Columns, col)
	}
	sort.Slice(pks, func(i, j int) bool { return pks[i].pos < pks[j].pos })
	for _, pk := range pks {
		def.PrimaryKey = append(def.PrimaryKey, pk.name)
	}

	indexes, err := c.Query(ctx, "SELECT * FROM pragma_index_list(?) ORDER BY seq", table)
	if err != nil {
		return TableDef{}, err
	}
	for _, idx := range indexes {
		if origin, _ := idx.String("origin"); origin != "u" {
			continue
		}
		name, _ := idx.String("name")
		cols, err := c.indexColumns(ctx, name)
		if err != nil {
			return TableDef{}, err
		}
		def.Uniques = append(def.Uniques, cols)
	}

	fks, err := c.Query(ctx, "SELECT * FROM pragma_foreign_key_list(?) ORDER BY id, seq", table)
	if err != nil {
		return TableDef{}, err
	}
	lastID := int64(-1)
	for _, row := range fks {
		id, _ := row.Int64("id")
		if id != lastID {
			fk := ForeignKey{}
			fk.Table, _ = row.String("table")
			fk.OnUpdate, _ = row.String("on_update")
			fk.OnDelete, _ = row.String("on_delete")
			def.ForeignKeys = append(def.ForeignKeys, fk)
			lastID = id
		}
		fk := &def.ForeignKeys[len(def.ForeignKeys)-1]
		from, _ := row.String("from")
		fk.Columns = append(fk.Columns, from)
		if to, ok := row.String("to"); ok {
			fk.References = append(fk.References, to)
		}
	}

	return def, nil
}

// indexColumns returns the columns of an index in key order. An expression
// term is reported as an empty name.
func (c *Conn) indexColumns(ctx context.Context, index string) ([]string, error) {
	rows, err := c.Query(ctx, "SELECT name FROM pragma_index_info(?) ORDER BY seqno", index)
	if err != nil {
		return nil, err
	}
	cols := make([]string, len(rows))
	for i, row := range rows {
		cols[i], _ = row.String("name")
	}
	return cols, nil
}

type explicitIndex struct {
	name    string
	sql     string
	columns []string
	partial bool
}

// explicitIndexes lists the CREATE INDEX statements attached to table.
func (c *Conn) explicitIndexes(ctx context.Context, table string) ([]explicitIndex, error) {
	rows, err := c.Query(ctx, "SELECT * FROM pragma_index_list(?) ORDER BY seq", table)
	if err != nil {
		return nil, err
	}
	var out []explicitIndex
	for _, row := range rows {
		if origin, _ := row.String("origin"); origin != "c" {
			continue
		}
		idx := explicitIndex{}
		idx.name, _ = row.String("name")
		partial, _ := row.Int64("partial")
		idx.partial = partial != 0
		src, err := c.QueryRow(ctx, "SELECT sql FROM sqlite_master WHERE type = 'index' AND name = ?", idx.name)
		if err != nil {
			return nil, err
		}
		idx.sql, _ = src.String("sql")
		if idx.columns, err = c.indexColumns(ctx, idx.name); err != nil {
			return nil, err
		}
		out = append(out, idx)
	}
	return out, nil
}

// referencingTables returns the other tables whose foreign keys point at
// table.
func (c *Conn) referencingTables(ctx context.Context, table string) ([]string, error) {
	tables, err := c.Tables(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, other := range tables {
		if other == table {
			continue
		}
		rows, err := c.Query(ctx, `SELECT "table" FROM pragma_foreign_key_list(?)`, other)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			if parent, _ := row.String("table"); strings.EqualFold(parent, table) {
				out = append(out, other)
				break
			}
		}
	}
	return out, nil
}

// DropColumn removes column from table by rebuilding it: the table is
// renamed aside, recreated from its structural definition without the
// column, refilled, and the old copy dropped. Explicit indexes that do not
// mention the column are recreated. The rebuild runs in its own scope, so a
// failure leaves the table untouched.
func (c *Conn) DropColumn(ctx context.Context, table, column string) error {
	return c.Transaction(ctx, func(c *Conn) error {
		def, err := c.TableDef(ctx, table)
		if err != nil {
			return err
		}
		next, err := def.WithoutColumn(column)
		if err != nil {
			return err
		}
		column, _ = def.LookupColumn(column)
		createSQL, err := c.Schema(ctx, table)
		if err != nil {
			return err
		}
		if m := unsupportedClause.FindString(createSQL); m != "" {
			return fmt.Errorf("drop column %s.%s: table uses %s: %w", table, column, strings.ToUpper(m), types.ErrInvalidArgument)
		}
		newSQL := next.CreateSQL()
		if newSQL == def.CreateSQL() {
			return fmt.Errorf("drop column %s.%s: no change in schema: %w", table, column, types.ErrInvalidArgument)
		}

		refs, err := c.referencingTables(ctx, table)
		if err != nil {
			return err
		}
		if len(refs) > 0 {
			return fmt.Errorf("drop column %s.%s: referenced by %s: %w", table, column, strings.Join(refs, ", "), types.ErrInvalidArgument)
		}
		triggers, err := c.QueryRow(ctx, "SELECT count(*) AS n FROM sqlite_master WHERE type = 'trigger' AND tbl_name = ?", table)
		if err != nil {
			return err
		}
		if n, _ := triggers.Int64("n"); n > 0 {
			return fmt.Errorf("drop column %s.%s: table has triggers: %w", table, column, types.ErrInvalidArgument)
		}
		indexes, err := c.explicitIndexes(ctx, table)
		if err != nil {
			return err
		}
		for _, idx := range indexes {
			if idx.partial {
				return fmt.Errorf("drop column %s.%s: partial index %s: %w", table, column, idx.name, types.ErrInvalidArgument)
			}
			for _, col := range idx.columns {
				if col == "" || strings.EqualFold(col, column) {
					return fmt.Errorf("drop column %s.%s: used by index %s: %w", table, column, idx.name, types.ErrInvalidArgument)
				}
			}
		}

		old := "old_" + table
		keep := strings.Join(escapeAll(next.ColumnNames()), ",")

		// Keep views that name the table pointing at the rebuilt copy.
		if _, err := c.Exec(ctx, "PRAGMA legacy_alter_table = ON"); err != nil {
			return err
		}
		_, renameErr := c.Exec(ctx, fmt.Sprintf("ALTER TABLE %s RENAME TO %s", EscapeIdentifier(table), EscapeIdentifier(old)))
		if _, err := c.Exec(ctx, "PRAGMA legacy_alter_table = OFF"); err != nil {
			return err
		}
		if renameErr != nil {
			return renameErr
		}

		steps := []string{
			newSQL,
			fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s", EscapeIdentifier(table), keep, keep, EscapeIdentifier(old)),
			"DROP TABLE " + EscapeIdentifier(old),
		}
		for _, idx := range indexes {
			steps = append(steps, idx.sql)
		}
		for _, stmt := range steps {
			if _, err := c.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		c.logger.Info("column dropped", "table", table, "column", column)
		return nil
	})
}
