package graph

import (
	"fmt"
	"sort"

	"github.com/dbsmedya/modlens/internal/schema"
	"github.com/dbsmedya/modlens/internal/types"
)

// ParentRef identifies a referenced record: the parent table, the column
// the reference targets and the record key.
type ParentRef struct {
	Table  string
	Column string
	Key    string
}

// ChildRef identifies a referencing record.
type ChildRef struct {
	Table string
	Key   string
}

// TablePair is a parent/child table pair connected by several FK columns.
type TablePair struct {
	Parent  string
	Child   string
	Columns []string
}

// Index maps materialised parent records to the records referencing them.
type Index struct {
	edges  map[ParentRef][]ChildRef
	tables map[string]bool
	count  int
}

type keyedRecord struct {
	key string
	rec types.Record
}

// BuildIndex links a batch of records along the model's foreign keys.
// For every record and every FK of its table, the parent table's records
// are scanned in order for the first one whose target column equals the
// FK value. Records are keyed by their primary key tuple; records missing
// a key value get an ordinal key "#n" (1-based) within their table.
//
// Tables with several FK columns to the same parent produce one link per
// column; see AmbiguousPairs.
func BuildIndex(records []types.Record, model *schema.Model) *Index {
	idx := &Index{
		edges:  make(map[ParentRef][]ChildRef),
		tables: make(map[string]bool),
	}

	byTable := make(map[string][]keyedRecord)
	for _, rec := range records {
		table := rec.Table
		if name, err := model.ResolveTable(table); err == nil {
			table = name
		}
		idx.tables[table] = true

		key := fmt.Sprintf("#%d", len(byTable[table])+1)
		if k, ok := rec.Key(model.PrimaryKey(table)); ok {
			key = k.String()
		}
		byTable[table] = append(byTable[table], keyedRecord{key: key, rec: rec})
	}

	tables := make([]string, 0, len(byTable))
	for t := range byTable {
		tables = append(tables, t)
	}
	sort.Strings(tables)

	for _, table := range tables {
		fks := model.ForeignKeys(table)
		for _, child := range byTable[table] {
			for _, fk := range fks {
				v, ok := child.rec.Get(fk.FromColumn)
				if !ok || v.IsNull() {
					continue
				}
				parent, ok := findParent(byTable[fk.ToTable], fk.ToColumn, v)
				if !ok {
					continue
				}
				ref := ParentRef{Table: fk.ToTable, Column: fk.ToColumn, Key: parent.key}
				idx.edges[ref] = append(idx.edges[ref], ChildRef{Table: table, Key: child.key})
				idx.count++
			}
		}
	}

	return idx
}

func findParent(candidates []keyedRecord, column string, v types.Value) (keyedRecord, bool) {
	for _, c := range candidates {
		pv, ok := c.rec.Get(column)
		if ok && pv.Equal(v) {
			return c, true
		}
	}
	return keyedRecord{}, false
}

// Children returns the records referencing parent, sorted by table then key.
func (i *Index) Children(parent ParentRef) []ChildRef {
	children := append([]ChildRef(nil), i.edges[parent]...)
	sort.Slice(children, func(a, b int) bool {
		if children[a].Table != children[b].Table {
			return children[a].Table < children[b].Table
		}
		return children[a].Key < children[b].Key
	})
	return children
}

// Parents returns every referenced record, sorted.
func (i *Index) Parents() []ParentRef {
	parents := make([]ParentRef, 0, len(i.edges))
	for p := range i.edges {
		parents = append(parents, p)
	}
	sort.Slice(parents, func(a, b int) bool {
		pa, pb := parents[a], parents[b]
		if pa.Table != pb.Table {
			return pa.Table < pb.Table
		}
		if pa.Column != pb.Column {
			return pa.Column < pb.Column
		}
		return pa.Key < pb.Key
	})
	return parents
}

// Len returns the number of referenced records.
func (i *Index) Len() int {
	return len(i.edges)
}

// EdgeCount returns the number of parent/child links.
func (i *Index) EdgeCount() int {
	return i.count
}

// AmbiguousPairs lists the (parent, child) table pairs among the indexed
// tables where the child has more than one FK column to the same parent.
// Links for such pairs cannot tell which role a child plays.
func (i *Index) AmbiguousPairs(model *schema.Model) []TablePair {
	tables := make([]string, 0, len(i.tables))
	for t := range i.tables {
		tables = append(tables, t)
	}
	sort.Strings(tables)

	var pairs []TablePair
	for _, child := range tables {
		columns := make(map[string][]string)
		var parents []string
		for _, fk := range model.ForeignKeys(child) {
			if _, seen := columns[fk.ToTable]; !seen {
				parents = append(parents, fk.ToTable)
			}
			columns[fk.ToTable] = append(columns[fk.ToTable], fk.FromColumn)
		}
		sort.Strings(parents)
		for _, parent := range parents {
			if len(columns[parent]) > 1 {
				pairs = append(pairs, TablePair{Parent: parent, Child: child, Columns: columns[parent]})
			}
		}
	}
	return pairs
}
