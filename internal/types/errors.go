package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is checks against the typed errors below.
var (
	ErrTableNotFound        = errors.New("table not found")
	ErrColumnNotFound       = errors.New("column not found")
	ErrDatabaseUnavailable  = errors.New("database unavailable")
	ErrMalformedStatement   = errors.New("malformed statement")
	ErrUnsupportedStatement = errors.New("unsupported statement shape")
	ErrMutationFailed       = errors.New("mutation failed")
)

// SchemaErrorKind classifies a SchemaError.
type SchemaErrorKind int

const (
	TableNotFound SchemaErrorKind = iota + 1
	ColumnNotFound
	DatabaseUnavailable
)

func (k SchemaErrorKind) String() string {
	switch k {
	case TableNotFound:
		return "TableNotFound"
	case ColumnNotFound:
		return "ColumnNotFound"
	case DatabaseUnavailable:
		return "DatabaseUnavailable"
	default:
		return "SchemaError"
	}
}

// SchemaError reports a lookup against the schema that failed, or a
// database that could not be read.
type SchemaError struct {
	Kind   SchemaErrorKind
	Table  string
	Column string
	Err    error
}

func (e *SchemaError) Error() string {
	switch e.Kind {
	case TableNotFound:
		return fmt.Sprintf("table not found: %s", e.Table)
	case ColumnNotFound:
		return fmt.Sprintf("column not found: %s.%s", e.Table, e.Column)
	case DatabaseUnavailable:
		if e.Table != "" {
			return fmt.Sprintf("database unavailable while reading %s: %v", e.Table, e.Err)
		}
		return fmt.Sprintf("database unavailable: %v", e.Err)
	default:
		return "schema error"
	}
}

func (e *SchemaError) Unwrap() error { return e.Err }

// Is matches the kind sentinels.
func (e *SchemaError) Is(target error) bool {
	switch target {
	case ErrTableNotFound:
		return e.Kind == TableNotFound
	case ErrColumnNotFound:
		return e.Kind == ColumnNotFound
	case ErrDatabaseUnavailable:
		return e.Kind == DatabaseUnavailable
	}
	return false
}

// NewTableNotFound builds a TableNotFound error.
func NewTableNotFound(table string) *SchemaError {
	return &SchemaError{Kind: TableNotFound, Table: table}
}

// NewColumnNotFound builds a ColumnNotFound error.
func NewColumnNotFound(table, column string) *SchemaError {
	return &SchemaError{Kind: ColumnNotFound, Table: table, Column: column}
}

// ParseErrorKind classifies a ParseError.
type ParseErrorKind int

const (
	MalformedStatement ParseErrorKind = iota + 1
	UnsupportedStatementShape
)

func (k ParseErrorKind) String() string {
	switch k {
	case MalformedStatement:
		return "MalformedStatement"
	case UnsupportedStatementShape:
		return "UnsupportedStatementShape"
	default:
		return "ParseError"
	}
}

// ParseError reports a statement that could not be interpreted.
type ParseError struct {
	Kind    ParseErrorKind
	Message string
	Line    int
	Column  int
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s at %d:%d: %s", e.Kind, e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is matches the kind sentinels.
func (e *ParseError) Is(target error) bool {
	switch target {
	case ErrMalformedStatement:
		return e.Kind == MalformedStatement
	case ErrUnsupportedStatement:
		return e.Kind == UnsupportedStatementShape
	}
	return false
}

// MutationError reports a backend failure while simulating a statement.
// It is only returned after the simulation transaction was rolled back.
type MutationError struct {
	Message string
	Err     error
}

func (e *MutationError) Error() string {
	return "mutation failed: " + e.Message
}

func (e *MutationError) Unwrap() error { return e.Err }

// Is matches ErrMutationFailed.
func (e *MutationError) Is(target error) bool {
	return target == ErrMutationFailed
}
