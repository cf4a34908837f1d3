package main

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"sierranative/internal/abi"
	"sierranative/internal/felt"
)

// Run arguments are written in a small value language:
//
//	42  -7  0x2a  'abc'  [1, 2]  {1, 'x'}  1:5  null
//
// Integers are decimal or 0x-prefixed; 'abc' is a short string felt.
// Arrays are written [a, b], structs {a, b}, enum variants tag:payload
// (a bare tag for a unit payload) and an empty nullable is null.
var argLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Short", Pattern: `'[^']*'`},
	{Name: "Int", Pattern: `-?(0[xX][0-9a-fA-F]+|[0-9]+)`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Punct", Pattern: `[\[\]{}:,]`},
	{Name: "Whitespace", Pattern: `[ \t\r\n]+`},
})

type argValue struct {
	Pos     lexer.Position
	List    *argList    `  @@`
	Fields  *argFields  `| @@`
	Null    bool        `| @"null"`
	Short   *string     `| @Short`
	Variant *argVariant `| @@`
}

type argList struct {
	Items []*argValue `"[" [ @@ { "," @@ } ] "]"`
}

type argFields struct {
	Items []*argValue `"{" [ @@ { "," @@ } ] "}"`
}

// argVariant is an integer, or an enum tag when a payload follows.
type argVariant struct {
	Int     string    `@Int`
	Payload *argValue `[ ":" @@ ]`
}

var argParser = participle.MustBuild[argValue](
	participle.Lexer(argLexer),
	participle.Elide("Whitespace"),
	participle.Map(func(t lexer.Token) (lexer.Token, error) {
		t.Value = t.Value[1 : len(t.Value)-1]
		return t, nil
	}, "Short"),
)

func (v *argValue) kind() string {
	switch {
	case v.List != nil:
		return "list"
	case v.Fields != nil:
		return "struct"
	case v.Null:
		return "null"
	case v.Short != nil:
		return "short string"
	case v.Variant.Payload != nil:
		return "variant"
	default:
		return "integer"
	}
}

// integer returns the text of a bare integer.
func (v *argValue) integer() (string, bool) {
	if v.Variant == nil || v.Variant.Payload != nil {
		return "", false
	}
	return v.Variant.Int, true
}

func parseValue(s string) (*argValue, error) {
	v, err := argParser.ParseString("", s)
	if err != nil {
		return nil, fmt.Errorf("invalid argument %q: %w", s, err)
	}
	return v, nil
}

// parseArg reads a command-line argument as a value of type id. A struct
// with one member also accepts the member alone, so a Span<felt252> can be
// passed as [1, 2].
func parseArg(types abi.Types, id uint64, s string) (abi.Value, error) {
	v, err := parseValue(s)
	if err != nil {
		return abi.Value{}, err
	}
	return convertArg(types, id, v)
}

// parseFelt reads one felt252: an integer or a short string.
func parseFelt(s string) (felt.Felt, error) {
	v, err := parseValue(s)
	if err != nil {
		return felt.Felt{}, err
	}
	return feltOf("felt252", v)
}

func feltOf(name string, v *argValue) (felt.Felt, error) {
	if v.Short != nil {
		return felt.FromShortString(*v.Short)
	}
	if n, ok := v.integer(); ok {
		return felt.Parse(n)
	}
	return felt.Felt{}, mismatch(name, "an integer or a short string", v)
}

func mismatch(name, want string, v *argValue) error {
	return fmt.Errorf("%s: expected %s, got %s at column %d", name, want, v.kind(), v.Pos.Column)
}

func convertArg(types abi.Types, id uint64, v *argValue) (abi.Value, error) {
	d, err := types.Get(id)
	if err != nil {
		return abi.Value{}, err
	}
	switch d.Kind {
	case abi.DescFelt:
		f, err := feltOf(d.Name, v)
		if err != nil {
			return abi.Value{}, err
		}
		return abi.FeltFrom(f), nil
	case abi.DescUint, abi.DescSint, abi.DescBounded:
		text, ok := v.integer()
		if !ok {
			return abi.Value{}, mismatch(d.Name, "an integer", v)
		}
		n, ok := new(big.Int).SetString(text, 0)
		if !ok {
			return abi.Value{}, fmt.Errorf("%s: invalid integer %q", d.Name, text)
		}
		switch d.Kind {
		case abi.DescUint:
			return abi.UintBig(n), nil
		case abi.DescSint:
			return abi.SintBig(n), nil
		default:
			return abi.Bounded(n), nil
		}
	case abi.DescArray:
		if v.List == nil {
			return abi.Value{}, mismatch(d.Name, "a list", v)
		}
		elems, err := convertAll(types, func(int) uint64 { return d.Elem }, v.List.Items)
		if err != nil {
			return abi.Value{}, err
		}
		return abi.Array(elems...), nil
	case abi.DescStruct:
		if v.Fields == nil {
			if len(d.Members) != 1 {
				return abi.Value{}, mismatch(d.Name, "a struct", v)
			}
			inner, err := convertArg(types, d.Members[0], v)
			if err != nil {
				return abi.Value{}, err
			}
			return abi.Struct(inner), nil
		}
		if len(v.Fields.Items) != len(d.Members) {
			return abi.Value{}, fmt.Errorf("%s has %d fields, got %d", d.Name, len(d.Members), len(v.Fields.Items))
		}
		fields, err := convertAll(types, func(i int) uint64 { return d.Members[i] }, v.Fields.Items)
		if err != nil {
			return abi.Value{}, err
		}
		return abi.Struct(fields...), nil
	case abi.DescEnum:
		if v.Variant == nil {
			return abi.Value{}, mismatch(d.Name, "a variant", v)
		}
		tag, err := strconv.Atoi(v.Variant.Int)
		if err != nil || tag < 0 || tag >= len(d.Members) {
			return abi.Value{}, fmt.Errorf("%s: invalid variant %q", d.Name, v.Variant.Int)
		}
		payload := v.Variant.Payload
		if payload == nil {
			payload = &argValue{Pos: v.Pos, Fields: &argFields{}}
		}
		inner, err := convertArg(types, d.Members[tag], payload)
		if err != nil {
			return abi.Value{}, err
		}
		return abi.Enum(tag, inner), nil
	case abi.DescBox:
		inner, err := convertArg(types, d.Elem, v)
		if err != nil {
			return abi.Value{}, err
		}
		return abi.Box(inner), nil
	case abi.DescNullable:
		if v.Null {
			return abi.Null(), nil
		}
		inner, err := convertArg(types, d.Elem, v)
		if err != nil {
			return abi.Value{}, err
		}
		return abi.NullableOf(inner), nil
	default:
		return abi.Value{}, fmt.Errorf("%s cannot be passed on the command line", d.Name)
	}
}

func convertAll(types abi.Types, idOf func(int) uint64, items []*argValue) ([]abi.Value, error) {
	var out []abi.Value
	for i, item := range items {
		v, err := convertArg(types, idOf(i), item)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// userParams returns the parameters of an entry point the caller supplies;
// builtins are supplied by the executor.
func userParams(types abi.Types, params []uint64) ([]uint64, error) {
	out := make([]uint64, 0, len(params))
	for _, id := range params {
		d, err := types.Get(id)
		if err != nil {
			return nil, err
		}
		if d.Kind != abi.DescBuiltin {
			out = append(out, id)
		}
	}
	return out, nil
}
