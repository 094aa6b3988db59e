package types

import (
	"strings"

	"github.com/elliotchance/orderedmap/v2"
)

// Record is one materialised row produced from an INSERT statement.
// Fields keep the column order in which they were written.
type Record struct {
	Table  string
	Fields *orderedmap.OrderedMap[string, Value]
}

// NewRecord creates an empty record for the given (canonical) table name.
func NewRecord(table string) Record {
	return Record{
		Table:  table,
		Fields: orderedmap.NewOrderedMap[string, Value](),
	}
}

// Set assigns a column value, keeping the first insertion position.
func (r Record) Set(column string, v Value) {
	r.Fields.Set(column, v)
}

// Get returns the value of a column.
func (r Record) Get(column string) (Value, bool) {
	if r.Fields == nil {
		return Value{}, false
	}
	return r.Fields.Get(column)
}

// Columns returns the column names in insertion order.
func (r Record) Columns() []string {
	if r.Fields == nil {
		return nil
	}
	cols := make([]string, 0, r.Fields.Len())
	for el := r.Fields.Front(); el != nil; el = el.Next() {
		cols = append(cols, el.Key)
	}
	return cols
}

// Len returns the number of fields.
func (r Record) Len() int {
	if r.Fields == nil {
		return 0
	}
	return r.Fields.Len()
}

// Key extracts the primary key tuple. It returns false when any key column
// is missing or NULL.
func (r Record) Key(pk []string) (RecordKey, bool) {
	if len(pk) == 0 {
		return nil, false
	}
	key := make(RecordKey, 0, len(pk))
	for _, col := range pk {
		v, ok := r.Get(col)
		if !ok || v.IsNull() {
			return nil, false
		}
		key = append(key, v)
	}
	return key, true
}

// RecordKey is the primary key tuple identifying a record or a simulated row.
type RecordKey []Value

// String renders the key. Single-column keys render the bare value,
// composite keys join the parts with ", ".
func (k RecordKey) String() string {
	parts := make([]string, len(k))
	for i, v := range k {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}

// Equal compares two keys element-wise.
func (k RecordKey) Equal(o RecordKey) bool {
	if len(k) != len(o) {
		return false
	}
	for i := range k {
		if !k[i].Equal(o[i]) {
			return false
		}
	}
	return true
}
