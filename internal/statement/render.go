package statement

import (
	"strings"

	"github.com/dbsmedya/modlens/internal/sqlutil"
	"github.com/dbsmedya/modlens/internal/types"
)

// RenderInsert serialises a record as a single-row INSERT. Interpreting
// the result yields an equal record.
func RenderInsert(rec types.Record) string {
	cols := rec.Columns()
	values := make([]string, len(cols))
	for i, c := range cols {
		v, _ := rec.Get(c)
		values[i] = v.SQL()
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(sqlutil.QuoteIdentifier(rec.Table))
	if len(cols) == 0 {
		b.WriteString(" DEFAULT VALUES;")
		return b.String()
	}
	b.WriteString(" (")
	b.WriteString(strings.Join(sqlutil.QuoteIdentifiers(cols), ", "))
	b.WriteString(") VALUES (")
	b.WriteString(strings.Join(values, ", "))
	b.WriteString(");")
	return b.String()
}
