package statement

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/dbsmedya/modlens/internal/sqlutil"
	"github.com/dbsmedya/modlens/internal/types"
)

// dmlLexer tokenises the SQLite DML subset. Order matters: keywords must
// be tried before identifiers. Other catches any stray character so that
// lexing a script never fails; statements holding one are rejected later.
var dmlLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `--[^\n]*|/\*[\s\S]*?\*/`},
	{Name: "Whitespace", Pattern: `\s+`},
	{Name: "Keyword", Pattern: `(?i)(?:INSERT|REPLACE|INTO|VALUES|UPDATE|SET|DELETE|FROM|WHERE|OR|IGNORE|ABORT|FAIL|ROLLBACK|SELECT|DEFAULT|WITH|ON|RETURNING)\b`},
	{Name: "String", Pattern: `'(?:[^']|'')*'`},
	{Name: "QuotedIdent", Pattern: `"(?:[^"]|"")*"|\[[^\]]*\]|` + "`(?:[^`]|``)*`"},
	{Name: "Number", Pattern: `0[xX][0-9A-Fa-f]+|(?:\d+\.\d*|\.\d+|\d+)(?:[eE][-+]?\d+)?`},
	{Name: "Ident", Pattern: `[\p{L}_][\p{L}\p{N}_$]*`},
	{Name: "Punct", Pattern: `<=|>=|<>|!=|==|\|\||<<|>>|[(),;=*.<>+\-/%&|~?:@$!]`},
	{Name: "Other", Pattern: `.`},
})

var (
	whitespaceType = dmlLexer.Symbols()["Whitespace"]
	commentType    = dmlLexer.Symbols()["Comment"]
	keywordType    = dmlLexer.Symbols()["Keyword"]
	identType      = dmlLexer.Symbols()["Ident"]
	punctType      = dmlLexer.Symbols()["Punct"]
	otherType      = dmlLexer.Symbols()["Other"]
)

//nolint:govet // participle grammar tags are not standard struct tags
type dmlStatement struct {
	Insert *insertStmt `(  @@`
	Update *updateStmt ` | @@`
	Delete *deleteStmt ` | @@ )`
	Semi   bool        `@";"?`
}

//nolint:govet // participle grammar tags are not standard struct tags
type insertStmt struct {
	Replace  bool             `(  @"REPLACE"`
	Conflict string           ` | "INSERT" ( "OR" @( "REPLACE" | "IGNORE" | "ABORT" | "FAIL" | "ROLLBACK" ) )? )`
	Table    *qualifiedName   `"INTO" @@`
	Columns  []*columnName    `( "(" @@ ( "," @@ )* ")" )?`
	Rows     []*tuple         `(  "VALUES" @@ ( "," @@ )*`
	Select   string           ` | @( "SELECT" | "WITH" ) ~";"*`
	Defaults bool             ` | @"DEFAULT" "VALUES" )`
	Tail     []string         `( @( "ON" | "RETURNING" ) @~";"* )?`
}

//nolint:govet // participle grammar tags are not standard struct tags
type updateStmt struct {
	Conflict string         `"UPDATE" ( "OR" @( "REPLACE" | "IGNORE" | "ABORT" | "FAIL" | "ROLLBACK" ) )?`
	Table    *qualifiedName `@@`
	Set      []*assignment  `"SET" @@ ( "," @@ )*`
	Where    *whereClause   `( "WHERE" @@ )?`
}

//nolint:govet // participle grammar tags are not standard struct tags
type deleteStmt struct {
	Table *qualifiedName `"DELETE" "FROM" @@`
	Where *whereClause   `( "WHERE" @@ )?`
}

//nolint:govet // participle grammar tags are not standard struct tags
type qualifiedName struct {
	Parts []string `@( Ident | QuotedIdent | Keyword ) ( "." @( Ident | QuotedIdent | Keyword ) )?`
}

// name returns the table part without schema qualifier or quoting.
func (q *qualifiedName) name() string {
	return sqlutil.UnquoteIdentifier(q.Parts[len(q.Parts)-1])
}

//nolint:govet // participle grammar tags are not standard struct tags
type columnName struct {
	Name string `@( Ident | QuotedIdent | Keyword )`
}

//nolint:govet // participle grammar tags are not standard struct tags
type tuple struct {
	Pos    lexer.Position
	Values []*valueExpr `"(" @@ ( "," @@ )* ")"`
}

//nolint:govet // participle grammar tags are not standard struct tags
type valueExpr struct {
	Tokens []lexer.Token
	Terms  []*term `@@+`
}

//nolint:govet // participle grammar tags are not standard struct tags
type term struct {
	Str   *string  `  @String`
	Num   *string  `| @Number`
	Group []*inner `| "(" @@* ")"`
	Other *string  `| @~( "," | "(" | ")" )`
}

//nolint:govet // participle grammar tags are not standard struct tags
type inner struct {
	Term  *term `  @@`
	Comma bool  `| @","`
}

//nolint:govet // participle grammar tags are not standard struct tags
type assignment struct {
	Columns []*columnName `( @@ | "(" @@ ( "," @@ )* ")" )`
	Expr    *setExpr      `"=" @@`
}

//nolint:govet // participle grammar tags are not standard struct tags
type setExpr struct {
	Terms []*setTerm `@@+`
}

//nolint:govet // participle grammar tags are not standard struct tags
type setTerm struct {
	Group []*inner `  "(" @@* ")"`
	Other *string  `| @~( "," | "(" | ")" | "WHERE" | ";" )`
}

//nolint:govet // participle grammar tags are not standard struct tags
type whereClause struct {
	Tokens []lexer.Token
	Parts  []string `@~";"+`
}

var dmlParser = participle.MustBuild[dmlStatement](
	participle.Lexer(dmlLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.CaseInsensitive("Keyword"),
)

// parseDML parses one statement. Characters outside the SQLite token set
// are reported with their position before the grammar is tried.
func parseDML(src string) (*dmlStatement, error) {
	lex, err := dmlLexer.LexString("", src)
	if err != nil {
		return nil, toParseError(err)
	}
	for {
		tok, err := lex.Next()
		if err != nil {
			return nil, toParseError(err)
		}
		if tok.EOF() {
			break
		}
		if tok.Type == otherType {
			return nil, &types.ParseError{
				Kind:    types.MalformedStatement,
				Message: fmt.Sprintf("unexpected character %q", tok.Value),
				Line:    tok.Pos.Line,
				Column:  tok.Pos.Column,
			}
		}
	}

	stmt, err := dmlParser.ParseString("", src)
	if err != nil {
		return nil, toParseError(err)
	}
	return stmt, nil
}

// sourceSpan returns the exact source text covered by tokens, without
// surrounding whitespace or comments.
func sourceSpan(src string, tokens []lexer.Token) string {
	first, last := -1, -1
	for i, tok := range tokens {
		if tok.Type == whitespaceType || tok.Type == commentType || tok.EOF() {
			continue
		}
		if first < 0 {
			first = i
		}
		last = i
	}
	if first < 0 {
		return ""
	}
	start := tokens[first].Pos.Offset
	end := tokens[last].Pos.Offset + len(tokens[last].Value)
	if start < 0 || end > len(src) || start > end {
		return ""
	}
	return strings.TrimSpace(src[start:end])
}
