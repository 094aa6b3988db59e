// Package introspect reads the raw schema of a SQLite content database and
// infers the foreign keys its declarations leave out.
package introspect

import (
	"sort"
	"strings"

	"github.com/dbsmedya/modlens/internal/types"
)

// RowIDColumn is the implicit key of tables that declare no primary key.
const RowIDColumn = "rowid"

// TableInfo is the raw metadata of one table.
type TableInfo struct {
	Name        string
	Columns     []types.Column
	PrimaryKey  []string
	DeclaredFKs []types.ForeignKey
	// ImplicitRowID is set when the table declares no primary key and
	// PrimaryKey holds the rowid.
	ImplicitRowID bool
	IsOrigin      bool
}

// Column returns a column by exact name.
func (t *TableInfo) Column(name string) (types.Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return types.Column{}, false
}

// ColumnFold returns a column by case-insensitive name.
func (t *TableInfo) ColumnFold(name string) (types.Column, bool) {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return types.Column{}, false
}

// SinglePK returns the primary key column when the key has exactly one column.
func (t *TableInfo) SinglePK() (string, bool) {
	if len(t.PrimaryKey) != 1 || t.ImplicitRowID {
		return "", false
	}
	return t.PrimaryKey[0], true
}

// Ambiguity is a column with several equally valid mined FK targets that
// could not be narrowed to one. Callers disambiguate it.
type Ambiguity struct {
	Table      string   `json:"table" yaml:"table"`
	Column     string   `json:"column" yaml:"column"`
	Candidates []string `json:"candidates" yaml:"candidates"`
}

// Schema is the result of one introspection run.
type Schema struct {
	Tables      []*TableInfo
	MinedFKs    []types.ForeignKey
	Ambiguities []Ambiguity
	Sentinel    string
}

// Table returns the table with the given name, ignoring case.
func (s *Schema) Table(name string) (*TableInfo, bool) {
	for _, t := range s.Tables {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return nil, false
}

func sortForeignKeys(fks []types.ForeignKey) {
	sort.SliceStable(fks, func(i, j int) bool {
		if fks[i].FromTable != fks[j].FromTable {
			return fks[i].FromTable < fks[j].FromTable
		}
		if fks[i].FromColumn != fks[j].FromColumn {
			return fks[i].FromColumn < fks[j].FromColumn
		}
		return fks[i].ToTable < fks[j].ToTable
	})
}
