package statement

import (
	"strings"

	"github.com/dbsmedya/modlens/internal/sqlutil"
	"github.com/dbsmedya/modlens/internal/types"
)

// MutationShape is the structure of an UPDATE or DELETE needed to
// simulate it.
type MutationShape struct {
	Kind  MutationKind
	Table string
	// Where is the WHERE condition exactly as written, or "" when absent.
	Where string
	// SetColumns lists assigned columns in statement order (UPDATE only).
	SetColumns []string
	Conflict   string
}

// ParseMutation extracts the target table, WHERE condition and assigned
// columns of an UPDATE or DELETE. Any other statement is an
// UnsupportedStatementShape error.
func ParseMutation(sql string) (*MutationShape, error) {
	return parseMutation(strings.TrimSpace(Normalize(sql)))
}

func parseMutation(src string) (*MutationShape, error) {
	switch leadingKeyword(src) {
	case "UPDATE", "DELETE":
	default:
		return nil, &types.ParseError{
			Kind:    types.UnsupportedStatementShape,
			Message: "expected UPDATE or DELETE",
		}
	}

	stmt, err := parseDML(src)
	if err != nil {
		return nil, err
	}

	switch {
	case stmt.Update != nil:
		u := stmt.Update
		shape := &MutationShape{
			Kind:     MutationUpdate,
			Table:    u.Table.name(),
			Where:    whereText(src, u.Where),
			Conflict: strings.ToUpper(u.Conflict),
		}
		for _, a := range u.Set {
			for _, c := range a.Columns {
				shape.SetColumns = append(shape.SetColumns, sqlutil.UnquoteIdentifier(c.Name))
			}
		}
		return shape, nil
	case stmt.Delete != nil:
		return &MutationShape{
			Kind:  MutationDelete,
			Table: stmt.Delete.Table.name(),
			Where: whereText(src, stmt.Delete.Where),
		}, nil
	}
	return nil, &types.ParseError{Kind: types.UnsupportedStatementShape, Message: "expected UPDATE or DELETE"}
}

func whereText(src string, w *whereClause) string {
	if w == nil {
		return ""
	}
	return sourceSpan(src, w.Tokens)
}
