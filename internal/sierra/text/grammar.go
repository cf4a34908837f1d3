package text

import (
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

var sierraLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{"Comment", `//[^\n]*`, nil},
		{"Arrow", `->`, nil},
		{"Int", `-?[0-9]+`, nil},
		{"Ident", `[a-zA-Z_][a-zA-Z0-9_]*`, nil},
		{"PathSep", `::`, nil},
		{"Punct", `[@<>(){}\[\],;:=]`, nil},
		{"Whitespace", `[ \t\r\n]+`, nil},
	},
})

type file struct {
	Lines []*line `@@*`
}

type line struct {
	Type    *typeDecl    `  @@`
	Libfunc *libfuncDecl `| @@`
	Return  *returnStmt  `| @@`
	Entry   *entry       `| @@`
}

type typeDecl struct {
	Pos     lexer.Position
	Name    *name   `"type" @@ "="`
	Generic *name   `@@`
	Attrs   []*attr `[ "[" @@ { "," @@ } "]" ] ";"`
}

type attr struct {
	Key   string `@Ident ":"`
	Value string `@Ident`
}

type libfuncDecl struct {
	Pos     lexer.Position
	Name    *name `"libfunc" @@ "="`
	Generic *name `@@ ";"`
}

type returnStmt struct {
	Pos  lexer.Position
	Vars *varList `"return" @@ ";"`
}

type entry struct {
	Pos    lexer.Position
	Head   *name       `@@`
	Func   *funcTail   `( @@`
	Invoke *invokeTail `| @@ ) ";"`
}

type funcTail struct {
	Entry  string   `"@" @Int`
	Params []*param `"(" [ @@ { "," @@ } ] ")"`
	Rets   []*name  `"->" "(" [ @@ { "," @@ } ] ")"`
}

type param struct {
	Var  string `"[" @Int "]" ":"`
	Type *name  `@@`
}

type invokeTail struct {
	Args     *varList  `@@`
	Results  *varList  `( "->" @@`
	Branches []*branch `| "{" @@* "}" )`
}

type branch struct {
	Fallthrough bool     `( @"fallthrough"`
	Target      string   `| @Int )`
	Vars        *varList `@@`
}

type varList struct {
	Vars []string `"(" [ "[" @Int "]" { "," "[" @Int "]" } ] ")"`
}

type name struct {
	Pos     lexer.Position
	Numeric string   `(  "[" @Int "]"`
	Path    []string ` | @Ident { "::" @Ident } )`
	Args    []*arg   `[ "<" @@ { "," @@ } ">" ]`
}

type arg struct {
	UserType *name  `  "ut" "@" @@`
	UserFunc *name  `| "user" "@" @@`
	Value    string `| @Int`
	Type     *name  `| @@`
}

// String is the canonical spelling used as the declaration's debug name.
func (n *name) String() string {
	var sb strings.Builder
	if n.Numeric != "" {
		sb.WriteString("[" + n.Numeric + "]")
	} else {
		sb.WriteString(strings.Join(n.Path, "::"))
	}
	if len(n.Args) > 0 {
		sb.WriteByte('<')
		for i, a := range n.Args {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(a.String())
		}
		sb.WriteByte('>')
	}
	return sb.String()
}

// Base is the name without generic arguments.
func (n *name) Base() string {
	if n.Numeric != "" {
		return "[" + n.Numeric + "]"
	}
	return strings.Join(n.Path, "::")
}

func (a *arg) String() string {
	switch {
	case a.UserType != nil:
		return "ut@" + a.UserType.String()
	case a.UserFunc != nil:
		return "user@" + a.UserFunc.String()
	case a.Type != nil:
		return a.Type.String()
	default:
		return a.Value
	}
}
