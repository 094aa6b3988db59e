package types

import (
	"fmt"
	"strings"
)

// ColumnType is the scalar type of a column after affinity mapping and
// boolean inference.
type ColumnType string

const (
	ColumnText    ColumnType = "text"
	ColumnInteger ColumnType = "integer"
	ColumnReal    ColumnType = "real"
	ColumnBoolean ColumnType = "boolean"
	ColumnBlob    ColumnType = "blob"
	ColumnNumeric ColumnType = "numeric"
)

// ParseColumnType maps a declared SQLite type to a ColumnType using the
// SQLite affinity rules. BOOLEAN declarations map to integer; only the
// observed data makes a column boolean.
func ParseColumnType(declared string) ColumnType {
	d := strings.ToUpper(strings.TrimSpace(declared))
	switch {
	case strings.Contains(d, "INT"), strings.Contains(d, "BOOL"):
		return ColumnInteger
	case strings.Contains(d, "CHAR"), strings.Contains(d, "CLOB"), strings.Contains(d, "TEXT"):
		return ColumnText
	case d == "", strings.Contains(d, "BLOB"):
		return ColumnBlob
	case strings.Contains(d, "REAL"), strings.Contains(d, "FLOA"), strings.Contains(d, "DOUB"):
		return ColumnReal
	default:
		return ColumnNumeric
	}
}

// Accepts reports whether a literal value kind fits the column type.
// NULL and raw expressions are always accepted; the database decides.
func (t ColumnType) Accepts(v Value) bool {
	switch v.Kind {
	case KindNull, KindRaw:
		return true
	case KindText:
		return t == ColumnText || t == ColumnBlob || t == ColumnNumeric
	case KindInteger:
		if t == ColumnBoolean {
			return v.Int == 0 || v.Int == 1
		}
		return t != ColumnText
	case KindReal:
		return t == ColumnReal || t == ColumnNumeric || t == ColumnBlob
	default:
		return false
	}
}

// Column describes one table column.
type Column struct {
	Name         string
	DeclaredType string
	Type         ColumnType
	NotNull      bool
	Default      *string
	PrimaryKey   int // 1-based position in the primary key, 0 when not part of it
}

// HasDefault reports whether the column declares a default value.
func (c Column) HasDefault() bool {
	return c.Default != nil
}

// Origin records how a foreign key was discovered.
type Origin string

const (
	OriginDeclared Origin = "declared"
	OriginMined    Origin = "mined"
)

// ForeignKey is a single-column reference from a child column to a parent
// primary key column.
type ForeignKey struct {
	FromTable  string
	FromColumn string
	ToTable    string
	ToColumn   string
	Origin     Origin
}

func (fk ForeignKey) String() string {
	return fmt.Sprintf("%s.%s -> %s.%s (%s)", fk.FromTable, fk.FromColumn, fk.ToTable, fk.ToColumn, fk.Origin)
}
