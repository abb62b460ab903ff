package sqlite

import (
	"fmt"
	"slices"
	"strings"

	"github.com/mesh-intelligence/twitlog/pkg/types"
)

// ColumnDef describes one column as the engine reports it.
//
// Fields:
//   - Type: declared type, verbatim (may be empty)
//   - Default: raw default expression, empty when the column has none
type ColumnDef struct {
	Name    string
	Type    string
	NotNull bool
	Default string
}

// ForeignKey is one FOREIGN KEY clause. References is empty when the clause
// targets the parent's primary key implicitly.
type ForeignKey struct {
	Columns    []string
	Table      string
	References []string
	OnUpdate   string
	OnDelete   string
}

// TableDef is the structural description of a table that DropColumn
// rebuilds from. It carries what PRAGMA metadata can express: columns,
// primary key, unique constraints and foreign keys.
type TableDef struct {
	Name          string
	Columns       []ColumnDef
	PrimaryKey    []string
	AutoIncrement bool
	Uniques       [][]string
	ForeignKeys   []ForeignKey
}

// ColumnNames returns the column names in declaration order.
func (t TableDef) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// HasColumn reports whether the table declares name. Names match without
// regard to case, as in SQL.
func (t TableDef) HasColumn(name string) bool {
	_, ok := t.LookupColumn(name)
	return ok
}

// LookupColumn returns the declared spelling of the column matching name.
func (t TableDef) LookupColumn(name string) (string, bool) {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c.Name, true
		}
	}
	return "", false
}

func containsFold(names []string, name string) bool {
	return slices.ContainsFunc(names, func(n string) bool { return strings.EqualFold(n, name) })
}

// WithoutColumn returns a copy of t minus the named column. It refuses when
// the column takes part in a key or constraint, since removing it would
// silently change the table's meaning.
func (t TableDef) WithoutColumn(name string) (TableDef, error) {
	declared, ok := t.LookupColumn(name)
	if !ok {
		return TableDef{}, fmt.Errorf("drop column %s.%s: no such column: %w", t.Name, name, types.ErrInvalidArgument)
	}
	name = declared
	if len(t.Columns) == 1 {
		return TableDef{}, fmt.Errorf("drop column %s.%s: last column: %w", t.Name, name, types.ErrInvalidArgument)
	}
	if containsFold(t.PrimaryKey, name) {
		return TableDef{}, fmt.Errorf("drop column %s.%s: part of primary key: %w", t.Name, name, types.ErrInvalidArgument)
	}
	for _, u := range t.Uniques {
		if containsFold(u, name) {
			return TableDef{}, fmt.Errorf("drop column %s.%s: part of unique constraint: %w", t.Name, name, types.ErrInvalidArgument)
		}
	}
	for _, fk := range t.ForeignKeys {
		if containsFold(fk.Columns, name) {
			return TableDef{}, fmt.Errorf("drop column %s.%s: part of foreign key: %w", t.Name, name, types.ErrInvalidArgument)
		}
	}

	out := t
	out.Columns = slices.DeleteFunc(slices.Clone(t.Columns), func(c ColumnDef) bool { return c.Name == name })
	return out, nil
}

// CreateSQL renders the CREATE TABLE statement for t with every identifier
// escaped. A single-column primary key is declared inline so an INTEGER key
// keeps aliasing the rowid.
func (t TableDef) CreateSQL() string {
	inlinePK := len(t.PrimaryKey) == 1

	defs := make([]string, 0, len(t.Columns)+len(t.Uniques)+len(t.ForeignKeys)+1)
	for _, c := range t.Columns {
		var b strings.Builder
		b.WriteString(EscapeIdentifier(c.Name))
		if c.Type != "" {
			b.WriteByte(' ')
			b.WriteString(c.Type)
		}
		if inlinePK && c.Name == t.PrimaryKey[0] {
			b.WriteString(" PRIMARY KEY")
			if t.AutoIncrement {
				b.WriteString(" AUTOINCREMENT")
			}
		}
		if c.NotNull {
			b.WriteString(" NOT NULL")
		}
		if c.Default != "" {
			b.WriteString(" DEFAULT (")
			b.WriteString(c.Default)
			b.WriteByte(')')
		}
		defs = append(defs, b.String())
	}
	if len(t.PrimaryKey) > 1 {
		defs = append(defs, "PRIMARY KEY ("+strings.Join(escapeAll(t.PrimaryKey), ", ")+")")
	}
	for _, u := range t.Uniques {
		defs = append(defs, "UNIQUE ("+strings.Join(escapeAll(u), ", ")+")")
	}
	for _, fk := range t.ForeignKeys {
		var b strings.Builder
		fmt.Fprintf(&b, "FOREIGN KEY (%s) REFERENCES %s", strings.Join(escapeAll(fk.Columns), ", "), EscapeIdentifier(fk.Table))
		if len(fk.References) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(escapeAll(fk.References), ", "))
		}
		if fk.OnUpdate != "" && fk.OnUpdate != "NO ACTION" {
			b.WriteString(" ON UPDATE " + fk.OnUpdate)
		}
		if fk.OnDelete != "" && fk.OnDelete != "NO ACTION" {
			b.WriteString(" ON DELETE " + fk.OnDelete)
		}
		defs = append(defs, b.String())
	}

	return fmt.Sprintf("CREATE TABLE %s (\n    %s\n)", EscapeIdentifier(t.Name), strings.Join(defs, ",\n    "))
}
