// Package statement parses third-party SQL fragments and classifies them
// against the relational model.
package statement

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dbsmedya/modlens/internal/schema"
	"github.com/dbsmedya/modlens/internal/sqlutil"
	"github.com/dbsmedya/modlens/internal/types"
)

// MutationKind is the verb of a mutation.
type MutationKind int

const (
	MutationUpdate MutationKind = iota + 1
	MutationDelete
)

func (k MutationKind) String() string {
	switch k {
	case MutationUpdate:
		return "UPDATE"
	case MutationDelete:
		return "DELETE"
	default:
		return "MUTATION"
	}
}

// Classification is the outcome of interpreting one statement:
// *Insert, *Mutation or *Unsupported.
type Classification interface {
	classification()
}

// Insert is a fully materialised INSERT or REPLACE.
type Insert struct {
	SQL      string
	Table    string
	Conflict string // REPLACE, IGNORE, ... or "" for a plain INSERT
	Records  []types.Record
}

// Mutation is an UPDATE or DELETE whose effect has to be simulated.
type Mutation struct {
	SQL     string
	Variant string
	Kind    MutationKind
}

// Unsupported is a statement outside the supported DML subset. It is kept
// for audit and is not an error.
type Unsupported struct {
	Text   string
	Reason string
}

func (*Insert) classification()      {}
func (*Mutation) classification()    {}
func (*Unsupported) classification() {}

// Interpreter classifies statements against a model.
type Interpreter struct {
	model *schema.Model
}

// NewInterpreter creates an Interpreter.
func NewInterpreter(model *schema.Model) *Interpreter {
	return &Interpreter{model: model}
}

// Interpret classifies one statement. Statements that do not start with
// INSERT, REPLACE, UPDATE or DELETE, and INSERT ... SELECT, are Unsupported.
// A DML statement that does not parse is a MalformedStatement ParseError;
// unknown tables and columns of an INSERT are SchemaErrors.
func (in *Interpreter) Interpret(sql, variant string) (Classification, error) {
	src := strings.TrimSpace(Normalize(sql))

	switch lead := leadingKeyword(src); lead {
	case "INSERT", "REPLACE":
		return in.interpretInsert(src)
	case "UPDATE", "DELETE":
		shape, err := parseMutation(src)
		if err != nil {
			return nil, err
		}
		return &Mutation{SQL: src, Variant: variant, Kind: shape.Kind}, nil
	case "":
		if src == "" {
			return &Unsupported{Text: sql, Reason: "empty statement"}, nil
		}
		return &Unsupported{Text: sql, Reason: "statement does not start with a keyword"}, nil
	default:
		return &Unsupported{Text: sql, Reason: lead + " statements are not interpreted"}, nil
	}
}

func (in *Interpreter) interpretInsert(src string) (Classification, error) {
	stmt, err := parseDML(src)
	if err != nil {
		return nil, err
	}
	ins := stmt.Insert
	if ins == nil {
		return nil, &types.ParseError{Kind: types.MalformedStatement, Message: "expected INSERT statement"}
	}
	if ins.Select != "" {
		return &Unsupported{Text: src, Reason: "INSERT ... SELECT is not materialised"}, nil
	}

	table, err := in.model.Table(ins.Table.name())
	if err != nil {
		return nil, err
	}

	columns := table.ColumnNames()
	if len(ins.Columns) > 0 {
		columns = make([]string, len(ins.Columns))
		for i, c := range ins.Columns {
			name, err := in.model.ResolveColumn(table.Name, c.unquoted())
			if err != nil {
				return nil, err
			}
			columns[i] = name
		}
	}

	conflict := strings.ToUpper(ins.Conflict)
	if ins.Replace {
		conflict = "REPLACE"
	}
	result := &Insert{SQL: src, Table: table.Name, Conflict: conflict}

	if ins.Defaults {
		result.Records = append(result.Records, types.NewRecord(table.Name))
		return result, nil
	}

	for _, row := range ins.Rows {
		if len(row.Values) != len(columns) {
			return nil, &types.ParseError{
				Kind:    types.MalformedStatement,
				Message: fmt.Sprintf("%d values for %d columns", len(row.Values), len(columns)),
				Line:    row.Pos.Line,
				Column:  row.Pos.Column,
			}
		}
		rec := types.NewRecord(table.Name)
		for i, v := range row.Values {
			rec.Set(columns[i], coerce(src, v))
		}
		result.Records = append(result.Records, rec)
	}
	return result, nil
}

func (c *columnName) unquoted() string {
	return sqlutil.UnquoteIdentifier(c.Name)
}

// coerce turns a parsed value expression into a typed Value. Literals are
// typed; everything else keeps its source text as a Raw value.
func coerce(src string, v *valueExpr) types.Value {
	switch len(v.Terms) {
	case 1:
		t := v.Terms[0]
		switch {
		case t.Str != nil:
			return types.Text(sqlutil.UnquoteString(*t.Str))
		case t.Num != nil:
			return numeric(*t.Num)
		case t.Other != nil && strings.EqualFold(*t.Other, "NULL"):
			return types.Null()
		}
	case 2:
		sign, num := v.Terms[0], v.Terms[1]
		if sign.Other != nil && (*sign.Other == "-" || *sign.Other == "+") && num.Num != nil {
			return numeric(*sign.Other + *num.Num)
		}
	}
	return types.Raw(sourceSpan(src, v.Tokens))
}

// numeric parses a numeric literal: integers have no decimal point or
// exponent, everything else is real.
func numeric(lit string) types.Value {
	body := strings.TrimLeft(lit, "+-")
	if strings.HasPrefix(body, "0x") || strings.HasPrefix(body, "0X") {
		if i, err := strconv.ParseInt(lit, 0, 64); err == nil {
			return types.Integer(i)
		}
		return types.Raw(lit)
	}
	if !strings.ContainsAny(body, ".eE") {
		if i, err := strconv.ParseInt(lit, 10, 64); err == nil {
			return types.Integer(i)
		}
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return types.Raw(lit)
	}
	return types.Real(f)
}
