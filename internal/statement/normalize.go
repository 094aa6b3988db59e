package statement

import (
	"strings"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// spaceMapper turns exotic whitespace into an ASCII space.
var spaceMapper = runes.Map(func(r rune) rune {
	switch {
	case r == '\u00A0', r == '\u202F', r == '\u3000', r == '\uFEFF':
		return ' '
	case r >= '\u2000' && r <= '\u200B':
		return ' '
	}
	return r
})

func isSmartSingle(r rune) bool {
	return r == '\u2018' || r == '\u2019' || r == '\u201A' || r == '\u201B'
}

func isSmartDouble(r rune) bool {
	return r == '\u201C' || r == '\u201D' || r == '\u201E' || r == '\u201F'
}

// Normalize prepares SQL copied from documents for lexing. Exotic
// whitespace (no-break, thin, figure, ideographic and zero-width spaces,
// byte order marks) becomes an ASCII space and typographic quotes used as
// delimiters become ASCII quotes. Typographic quotes inside a literal that
// was opened with an ASCII quote are text and are kept.
func Normalize(sql string) string {
	spaced, _, err := transform.String(spaceMapper, sql)
	if err != nil {
		spaced = sql
	}
	return normalizeQuotes(spaced)
}

type quoteState int

const (
	outside quoteState = iota
	inSingle
	inDouble
	inLineComment
	inBlockComment
)

func normalizeQuotes(s string) string {
	if !strings.ContainsAny(s, "\u2018\u2019\u201A\u201B\u201C\u201D\u201E\u201F") {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))

	rs := []rune(s)
	state := outside
	smart := false

	for i := 0; i < len(rs); i++ {
		r := rs[i]
		switch state {
		case outside:
			switch {
			case r == '-' && i+1 < len(rs) && rs[i+1] == '-':
				state = inLineComment
			case r == '/' && i+1 < len(rs) && rs[i+1] == '*':
				state = inBlockComment
				b.WriteRune(r)
				i++
				r = rs[i]
			case r == '\'' || isSmartSingle(r):
				state, smart = inSingle, r != '\''
				r = '\''
			case r == '"' || isSmartDouble(r):
				state, smart = inDouble, r != '"'
				r = '"'
			}
		case inSingle:
			if r == '\'' || (smart && isSmartSingle(r)) {
				state = outside
				r = '\''
			}
		case inDouble:
			if r == '"' || (smart && isSmartDouble(r)) {
				state = outside
				r = '"'
			}
		case inLineComment:
			if r == '\n' {
				state = outside
			}
		case inBlockComment:
			if r == '*' && i+1 < len(rs) && rs[i+1] == '/' {
				b.WriteRune(r)
				i++
				r = rs[i]
				state = outside
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}
