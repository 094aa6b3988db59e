package types

import "fmt"

// DeletedDescription is the diff description of a row removed by a statement.
const DeletedDescription = "Deleted"

// DiffEntry describes the simulated effect on one row.
type DiffEntry struct {
	Key         string `json:"key" yaml:"key"`
	Description string `json:"description" yaml:"description"`
}

// MutationDiff is the ordered list of row effects of one UPDATE or DELETE.
type MutationDiff []DiffEntry

// ChangeLine formats a single column change as "col: old -> new".
func ChangeLine(column string, before, after Value) string {
	return fmt.Sprintf("%s: %s -> %s", column, before.String(), after.String())
}

// Keys returns the row keys in diff order.
func (d MutationDiff) Keys() []string {
	keys := make([]string, len(d))
	for i, e := range d {
		keys[i] = e.Key
	}
	return keys
}
