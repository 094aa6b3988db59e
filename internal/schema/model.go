// Package schema holds the immutable relational model built from an
// introspected database.
package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dbsmedya/modlens/internal/introspect"
	"github.com/dbsmedya/modlens/internal/types"
)

// Table is the model of one table.
type Table struct {
	Name        string
	Columns     []types.Column
	PrimaryKey  []string
	DeclaredFKs []types.ForeignKey
	MinedFKs    []types.ForeignKey
	IsOrigin    bool
	// ImplicitRowID is set when PrimaryKey is the implicit rowid.
	ImplicitRowID bool

	columns map[string]int
}

// Column returns a column by case-insensitive name.
func (t *Table) Column(name string) (types.Column, bool) {
	idx, ok := t.columns[strings.ToLower(name)]
	if !ok {
		return types.Column{}, false
	}
	return t.Columns[idx], true
}

// ColumnNames returns the column names in declaration order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// ForeignKeys returns declared then mined foreign keys.
func (t *Table) ForeignKeys() []types.ForeignKey {
	fks := make([]types.ForeignKey, 0, len(t.DeclaredFKs)+len(t.MinedFKs))
	fks = append(fks, t.DeclaredFKs...)
	return append(fks, t.MinedFKs...)
}

// Model is the read-only relational model. It is safe for concurrent use.
type Model struct {
	tables      map[string]*Table
	names       []string
	referencing map[string][]types.ForeignKey
	ambiguities []introspect.Ambiguity
	rejected    []RejectedEdge
	sentinel    string
}

// RejectedEdge is a foreign key dropped while building the model.
type RejectedEdge struct {
	ForeignKey types.ForeignKey
	Reason     string
}

// New builds the model from an introspected schema. Foreign keys whose
// target table or column is missing, or whose target column is not part of
// the target primary key, are dropped and listed by Rejected.
func New(s *introspect.Schema) (*Model, error) {
	if s == nil {
		return nil, fmt.Errorf("schema: nil introspection result")
	}

	m := &Model{
		tables:      make(map[string]*Table, len(s.Tables)),
		referencing: make(map[string][]types.ForeignKey),
		ambiguities: append([]introspect.Ambiguity(nil), s.Ambiguities...),
		sentinel:    s.Sentinel,
	}

	for _, info := range s.Tables {
		key := strings.ToLower(info.Name)
		if _, dup := m.tables[key]; dup {
			return nil, fmt.Errorf("schema: duplicate table name %q", info.Name)
		}

		t := &Table{
			Name:          info.Name,
			Columns:       append([]types.Column(nil), info.Columns...),
			PrimaryKey:    append([]string(nil), info.PrimaryKey...),
			IsOrigin:      info.IsOrigin,
			ImplicitRowID: info.ImplicitRowID,
			columns:       make(map[string]int, len(info.Columns)),
		}
		for i, c := range t.Columns {
			t.columns[strings.ToLower(c.Name)] = i
		}
		if len(t.PrimaryKey) == 0 {
			return nil, fmt.Errorf("schema: table %s has no primary key", t.Name)
		}
		if !t.ImplicitRowID {
			for _, pk := range t.PrimaryKey {
				if _, ok := t.Column(pk); !ok {
					return nil, fmt.Errorf("schema: primary key column %s.%s does not exist", t.Name, pk)
				}
			}
		}

		m.tables[key] = t
		m.names = append(m.names, t.Name)
	}
	sort.Strings(m.names)

	for _, info := range s.Tables {
		for _, fk := range info.DeclaredFKs {
			m.addForeignKey(fk)
		}
	}
	for _, fk := range s.MinedFKs {
		m.addForeignKey(fk)
	}

	return m, nil
}

func (m *Model) addForeignKey(fk types.ForeignKey) {
	child, ok := m.tables[strings.ToLower(fk.FromTable)]
	if !ok {
		m.reject(fk, "child table not found")
		return
	}
	from, ok := child.Column(fk.FromColumn)
	if !ok {
		m.reject(fk, "child column not found")
		return
	}
	parent, ok := m.tables[strings.ToLower(fk.ToTable)]
	if !ok {
		m.reject(fk, "parent table not found")
		return
	}
	to, ok := parent.Column(fk.ToColumn)
	if !ok || to.PrimaryKey == 0 {
		m.reject(fk, "target column is not part of the parent primary key")
		return
	}

	fk.FromTable, fk.FromColumn = child.Name, from.Name
	fk.ToTable, fk.ToColumn = parent.Name, to.Name

	if fk.Origin == types.OriginMined {
		child.MinedFKs = append(child.MinedFKs, fk)
	} else {
		child.DeclaredFKs = append(child.DeclaredFKs, fk)
	}
	key := strings.ToLower(parent.Name)
	m.referencing[key] = append(m.referencing[key], fk)
}

func (m *Model) reject(fk types.ForeignKey, reason string) {
	m.rejected = append(m.rejected, RejectedEdge{ForeignKey: fk, Reason: reason})
}

// ResolveTable returns the canonical name of a table. Lookup ignores case.
func (m *Model) ResolveTable(name string) (string, error) {
	t, err := m.Table(name)
	if err != nil {
		return "", err
	}
	return t.Name, nil
}

// ResolveColumn returns the canonical name of a column of table.
func (m *Model) ResolveColumn(table, name string) (string, error) {
	t, err := m.Table(table)
	if err != nil {
		return "", err
	}
	if strings.EqualFold(name, introspect.RowIDColumn) && t.ImplicitRowID {
		return introspect.RowIDColumn, nil
	}
	c, ok := t.Column(name)
	if !ok {
		return "", types.NewColumnNotFound(t.Name, name)
	}
	return c.Name, nil
}

// Table returns the table model.
func (m *Model) Table(name string) (*Table, error) {
	t, ok := m.tables[strings.ToLower(name)]
	if !ok {
		return nil, types.NewTableNotFound(name)
	}
	return t, nil
}

// Tables returns every canonical table name in sorted order.
func (m *Model) Tables() []string {
	return append([]string(nil), m.names...)
}

// PrimaryKey returns the primary key columns of a table, or nil when the
// table does not exist.
func (m *Model) PrimaryKey(table string) []string {
	t, err := m.Table(table)
	if err != nil {
		return nil
	}
	return append([]string(nil), t.PrimaryKey...)
}

// ForeignKeys returns declared then mined foreign keys of a table.
func (m *Model) ForeignKeys(table string) []types.ForeignKey {
	t, err := m.Table(table)
	if err != nil {
		return nil
	}
	return t.ForeignKeys()
}

// Referencing returns every foreign key that targets parent.
func (m *Model) Referencing(parent string) []types.ForeignKey {
	return append([]types.ForeignKey(nil), m.referencing[strings.ToLower(parent)]...)
}

// RequiredColumns returns the columns an INSERT must supply: NOT NULL
// columns without a default plus primary key columns. An INTEGER PRIMARY
// KEY aliases the rowid and is assigned automatically.
func (m *Model) RequiredColumns(table string) []string {
	t, err := m.Table(table)
	if err != nil {
		return nil
	}

	var required []string
	for _, c := range t.Columns {
		if c.HasDefault() {
			continue
		}
		if c.PrimaryKey > 0 {
			if isRowIDAlias(t, c) {
				continue
			}
			required = append(required, c.Name)
			continue
		}
		if c.NotNull {
			required = append(required, c.Name)
		}
	}
	return required
}

func isRowIDAlias(t *Table, c types.Column) bool {
	return len(t.PrimaryKey) == 1 && strings.EqualFold(strings.TrimSpace(c.DeclaredType), "INTEGER")
}

// Defaults returns the declared default expression of every column that has one.
func (m *Model) Defaults(table string) map[string]string {
	t, err := m.Table(table)
	if err != nil {
		return nil
	}
	defaults := make(map[string]string)
	for _, c := range t.Columns {
		if c.Default != nil {
			defaults[c.Name] = *c.Default
		}
	}
	return defaults
}

// ColumnType returns the scalar type of a column.
func (m *Model) ColumnType(table, column string) (types.ColumnType, error) {
	t, err := m.Table(table)
	if err != nil {
		return "", err
	}
	c, ok := t.Column(column)
	if !ok {
		return "", types.NewColumnNotFound(t.Name, column)
	}
	return c.Type, nil
}

// Ambiguities returns the columns with unresolved FK candidates.
func (m *Model) Ambiguities() []introspect.Ambiguity {
	return append([]introspect.Ambiguity(nil), m.ambiguities...)
}

// Rejected returns the foreign keys dropped while building the model.
func (m *Model) Rejected() []RejectedEdge {
	return append([]RejectedEdge(nil), m.rejected...)
}

// Sentinel returns the table excluded from FK mining.
func (m *Model) Sentinel() string {
	return m.sentinel
}
