// Package sqlutil provides SQLite identifier helpers for modlens.
package sqlutil

import (
	"regexp"
	"strings"
)

// QuoteIdentifier quotes a SQLite identifier (table name, column name) with double quotes.
// It escapes any existing double quotes by doubling them.
// Example: "Units" -> "\"Units\""
// Example: `my"table` -> `"my""table"`
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteIdentifiers quotes every name in order.
func QuoteIdentifiers(names []string) []string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = QuoteIdentifier(n)
	}
	return quoted
}

// QualifiedColumn renders alias."column".
func QualifiedColumn(alias, column string) string {
	return alias + "." + QuoteIdentifier(column)
}

// UnquoteIdentifier strips SQLite identifier quoting: "x", [x] and `x`.
// Unquoted names are returned unchanged.
func UnquoteIdentifier(name string) string {
	if len(name) < 2 {
		return name
	}
	switch first, last := name[0], name[len(name)-1]; {
	case first == '"' && last == '"':
		return strings.ReplaceAll(name[1:len(name)-1], `""`, `"`)
	case first == '`' && last == '`':
		return strings.ReplaceAll(name[1:len(name)-1], "``", "`")
	case first == '[' && last == ']':
		return name[1 : len(name)-1]
	}
	return name
}

// UnquoteString strips single quotes from a SQL string literal and
// collapses doubled quotes.
func UnquoteString(lit string) string {
	if len(lit) >= 2 && lit[0] == '\'' && lit[len(lit)-1] == '\'' {
		return strings.ReplaceAll(lit[1:len(lit)-1], "''", "'")
	}
	return lit
}

// validIdentifierRegex matches plain identifier characters.
var validIdentifierRegex = regexp.MustCompile("^[a-zA-Z_][a-zA-Z0-9_]*$")

// IsValidIdentifier checks that a name only contains alphanumeric
// characters and underscores and does not start with a digit.
func IsValidIdentifier(name string) bool {
	return validIdentifierRegex.MatchString(name)
}

// ValidateIdentifier rejects names that are not plain identifiers.
// Use this when identifiers come from user input (CLI flags, config).
func ValidateIdentifier(name string) error {
	if !IsValidIdentifier(name) {
		return &InvalidIdentifierError{Name: name}
	}
	return nil
}

// InvalidIdentifierError is returned when an identifier contains invalid characters.
type InvalidIdentifierError struct {
	Name string
}

func (e *InvalidIdentifierError) Error() string {
	return "invalid identifier: " + e.Name + " (must contain only alphanumeric characters and underscores)"
}
