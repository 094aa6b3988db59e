package statement

import (
	"errors"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"

	"github.com/dbsmedya/modlens/internal/types"
)

// positioned is implemented by participle parse errors and lexer errors.
type positioned interface {
	error
	Message() string
	Position() lexer.Position
}

func toParseError(err error) *types.ParseError {
	var perr *types.ParseError
	if errors.As(err, &perr) {
		return perr
	}
	var pos positioned
	if errors.As(err, &pos) {
		return &types.ParseError{
			Kind:    types.MalformedStatement,
			Message: pos.Message(),
			Line:    pos.Position().Line,
			Column:  pos.Position().Column,
		}
	}
	return &types.ParseError{Kind: types.MalformedStatement, Message: err.Error()}
}

// Split cuts a SQL script into statements on top-level semicolons. String
// literals, quoted identifiers and comments are respected, and trigger
// bodies (BEGIN ... END) are kept whole. Returned statements are
// normalized, have leading comments removed and carry no trailing ';'.
func Split(script string) ([]string, error) {
	src := Normalize(script)
	lex, err := dmlLexer.LexString("", src)
	if err != nil {
		return nil, toParseError(err)
	}

	var (
		out     []string
		start   = -1
		depth   int
		trigger bool
	)
	flush := func(end int) {
		if start >= 0 {
			if stmt := strings.TrimSpace(src[start:end]); stmt != "" {
				out = append(out, stmt)
			}
		}
		start, depth, trigger = -1, 0, false
	}

	for {
		tok, err := lex.Next()
		if err != nil {
			return nil, toParseError(err)
		}
		if tok.EOF() {
			break
		}
		if tok.Type == whitespaceType || tok.Type == commentType {
			continue
		}

		if tok.Type == punctType && tok.Value == ";" && depth == 0 {
			flush(tok.Pos.Offset)
			continue
		}
		if start < 0 {
			start = tok.Pos.Offset
		}

		if tok.Type != identType {
			continue
		}
		switch strings.ToUpper(tok.Value) {
		case "TRIGGER":
			trigger = true
		case "BEGIN":
			if trigger {
				depth++
			}
		case "CASE":
			if depth > 0 {
				depth++
			}
		case "END":
			if depth > 0 {
				depth--
			}
		}
	}
	flush(len(src))

	return out, nil
}

// leadingKeyword returns the upper-cased first word of a statement.
func leadingKeyword(src string) string {
	lex, err := dmlLexer.LexString("", src)
	if err != nil {
		return ""
	}
	for {
		tok, err := lex.Next()
		if err != nil || tok.EOF() {
			return ""
		}
		switch tok.Type {
		case whitespaceType, commentType:
			continue
		case keywordType, identType:
			return strings.ToUpper(tok.Value)
		default:
			return ""
		}
	}
}
