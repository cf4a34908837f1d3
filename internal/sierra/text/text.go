// Package text reads the textual Sierra form:
//
//	type felt252 = felt252;
//	libfunc felt252_add = felt252_add;
//	felt252_add([0], [1]) -> ([2]);
//	return([2]);
//	main@0([0]: felt252, [1]: felt252) -> (felt252);
//
// Declarations are numbered in order of appearance; names written as [N]
// keep the numeric id N and carry no debug name.
package text

import (
	"fmt"
	"math/big"
	"os"
	"strconv"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"sierranative/internal/errs"
	"sierranative/internal/sierra"
)

// ParseError reports a syntax or resolution problem with its position.
type ParseError struct {
	Pos lexer.Position
	Msg string
}

func (e *ParseError) Error() string {
	if e.Pos.Line == 0 {
		return e.Msg
	}
	return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename, e.Pos.Line, e.Pos.Column, e.Msg)
}

func (e *ParseError) ErrorKind() errs.Kind { return errs.KindParseAttribute }

var parser = participle.MustBuild[file](
	participle.Lexer(sierraLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.UseLookahead(3),
)

// ParseFile reads and parses path.
func ParseFile(path string) (*sierra.Program, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(path, string(src))
}

// Parse parses src; filename is used in positions only.
func Parse(filename, src string) (*sierra.Program, error) {
	f, err := parser.ParseString(filename, src)
	if err != nil {
		if pe, ok := err.(participle.Error); ok {
			return nil, &ParseError{Pos: pe.Position(), Msg: pe.Message()}
		}
		return nil, &ParseError{Msg: err.Error()}
	}
	return newResolver().resolve(f)
}

// MustParse is for fixtures.
func MustParse(src string) *sierra.Program {
	p, err := Parse("<fixture>", src)
	if err != nil {
		panic(err)
	}
	return p
}

type namespace struct {
	ids  map[string]sierra.ID
	next uint64
}

func newNamespace() *namespace {
	return &namespace{ids: make(map[string]sierra.ID)}
}

// declare assigns an id on first sight; later sightings reuse it.
func (ns *namespace) declare(n *name) (sierra.ID, error) {
	key := n.String()
	if id, ok := ns.ids[key]; ok {
		return id, nil
	}
	var id sierra.ID
	if n.Numeric != "" && len(n.Args) == 0 {
		v, err := strconv.ParseUint(n.Numeric, 10, 64)
		if err != nil {
			return sierra.ID{}, &ParseError{Pos: n.Pos, Msg: fmt.Sprintf("invalid id %s", key)}
		}
		id = sierra.ID{ID: v}
	} else {
		id = sierra.ID{ID: ns.next, DebugName: key}
	}
	if id.ID >= ns.next {
		ns.next = id.ID + 1
	}
	ns.ids[key] = id
	return id, nil
}

func (ns *namespace) lookup(n *name) (sierra.ID, error) {
	return ns.declare(n)
}

type resolver struct {
	types     *namespace
	libfuncs  *namespace
	funcs     *namespace
	userTypes *namespace
}

func newResolver() *resolver {
	return &resolver{
		types:     newNamespace(),
		libfuncs:  newNamespace(),
		funcs:     newNamespace(),
		userTypes: newNamespace(),
	}
}

func (r *resolver) resolve(f *file) (*sierra.Program, error) {
	p := &sierra.Program{}

	// Declarations first so that ids follow declaration order even with
	// forward references.
	for _, ln := range f.Lines {
		var err error
		switch {
		case ln.Type != nil:
			_, err = r.types.declare(ln.Type.Name)
		case ln.Libfunc != nil:
			_, err = r.libfuncs.declare(ln.Libfunc.Name)
		case ln.Entry != nil && ln.Entry.Func != nil:
			_, err = r.funcs.declare(ln.Entry.Head)
		}
		if err != nil {
			return nil, err
		}
	}

	for _, ln := range f.Lines {
		switch {
		case ln.Type != nil:
			decl, err := r.typeDecl(ln.Type)
			if err != nil {
				return nil, err
			}
			p.TypeDeclarations = append(p.TypeDeclarations, decl)
		case ln.Libfunc != nil:
			decl, err := r.libfuncDecl(ln.Libfunc)
			if err != nil {
				return nil, err
			}
			p.LibfuncDeclarations = append(p.LibfuncDeclarations, decl)
		case ln.Return != nil:
			vars, err := varIDs(ln.Return.Pos, ln.Return.Vars)
			if err != nil {
				return nil, err
			}
			p.Statements = append(p.Statements, sierra.Statement{Kind: sierra.StmtReturn, Return: vars})
		case ln.Entry != nil && ln.Entry.Func != nil:
			fn, err := r.function(ln.Entry)
			if err != nil {
				return nil, err
			}
			p.Funcs = append(p.Funcs, fn)
		case ln.Entry != nil:
			st, err := r.invocation(ln.Entry)
			if err != nil {
				return nil, err
			}
			p.Statements = append(p.Statements, st)
		}
	}
	return p, nil
}

func (r *resolver) typeDecl(d *typeDecl) (sierra.TypeDeclaration, error) {
	id, err := r.types.lookup(d.Name)
	if err != nil {
		return sierra.TypeDeclaration{}, err
	}
	args, err := r.args(d.Generic.Args)
	if err != nil {
		return sierra.TypeDeclaration{}, err
	}
	return sierra.TypeDeclaration{ID: sierra.TypeID(id), GenericID: d.Generic.Base(), Args: args}, nil
}

func (r *resolver) libfuncDecl(d *libfuncDecl) (sierra.LibfuncDeclaration, error) {
	id, err := r.libfuncs.lookup(d.Name)
	if err != nil {
		return sierra.LibfuncDeclaration{}, err
	}
	args, err := r.args(d.Generic.Args)
	if err != nil {
		return sierra.LibfuncDeclaration{}, err
	}
	return sierra.LibfuncDeclaration{ID: sierra.LibfuncID(id), GenericID: d.Generic.Base(), Args: args}, nil
}

func (r *resolver) args(in []*arg) ([]sierra.GenericArg, error) {
	out := make([]sierra.GenericArg, 0, len(in))
	for _, a := range in {
		switch {
		case a.UserType != nil:
			id, err := r.userTypes.lookup(a.UserType)
			if err != nil {
				return nil, err
			}
			out = append(out, sierra.UserTypeArg(sierra.UserTypeID(id)))
		case a.UserFunc != nil:
			id, err := r.funcs.lookup(a.UserFunc)
			if err != nil {
				return nil, err
			}
			out = append(out, sierra.UserFuncArg(sierra.FunctionID(id)))
		case a.Type != nil:
			id, err := r.types.lookup(a.Type)
			if err != nil {
				return nil, err
			}
			out = append(out, sierra.TypeArg(sierra.TypeID(id)))
		default:
			v, ok := new(big.Int).SetString(a.Value, 10)
			if !ok {
				return nil, &ParseError{Msg: fmt.Sprintf("invalid integer %q", a.Value)}
			}
			out = append(out, sierra.ValueArg(v))
		}
	}
	return out, nil
}

func (r *resolver) function(e *entry) (sierra.Function, error) {
	id, err := r.funcs.lookup(e.Head)
	if err != nil {
		return sierra.Function{}, err
	}
	entryIdx, err := strconv.Atoi(e.Func.Entry)
	if err != nil {
		return sierra.Function{}, &ParseError{Pos: e.Pos, Msg: fmt.Sprintf("invalid entry %q", e.Func.Entry)}
	}
	fn := sierra.Function{ID: sierra.FunctionID(id), Entry: sierra.StatementIdx(entryIdx)}
	for _, prm := range e.Func.Params {
		v, err := strconv.ParseUint(prm.Var, 10, 64)
		if err != nil {
			return sierra.Function{}, &ParseError{Pos: e.Pos, Msg: fmt.Sprintf("invalid variable [%s]", prm.Var)}
		}
		tid, err := r.types.lookup(prm.Type)
		if err != nil {
			return sierra.Function{}, err
		}
		fn.Params = append(fn.Params, sierra.Param{ID: sierra.VarID(v), Type: sierra.TypeID(tid)})
		fn.Signature.ParamTypes = append(fn.Signature.ParamTypes, sierra.TypeID(tid))
	}
	for _, ret := range e.Func.Rets {
		tid, err := r.types.lookup(ret)
		if err != nil {
			return sierra.Function{}, err
		}
		fn.Signature.RetTypes = append(fn.Signature.RetTypes, sierra.TypeID(tid))
	}
	return fn, nil
}

func (r *resolver) invocation(e *entry) (sierra.Statement, error) {
	id, err := r.libfuncs.lookup(e.Head)
	if err != nil {
		return sierra.Statement{}, err
	}
	args, err := varIDs(e.Pos, e.Invoke.Args)
	if err != nil {
		return sierra.Statement{}, err
	}
	inv := sierra.Invocation{Libfunc: sierra.LibfuncID(id), Args: args}
	if e.Invoke.Results != nil {
		res, err := varIDs(e.Pos, e.Invoke.Results)
		if err != nil {
			return sierra.Statement{}, err
		}
		inv.Branches = []sierra.BranchInfo{{Target: sierra.BranchTarget{Fallthrough: true}, Results: res}}
	}
	for _, b := range e.Invoke.Branches {
		res, err := varIDs(e.Pos, b.Vars)
		if err != nil {
			return sierra.Statement{}, err
		}
		target := sierra.BranchTarget{Fallthrough: b.Fallthrough}
		if !b.Fallthrough {
			idx, err := strconv.Atoi(b.Target)
			if err != nil {
				return sierra.Statement{}, &ParseError{Pos: e.Pos, Msg: fmt.Sprintf("invalid branch target %q", b.Target)}
			}
			target.Statement = sierra.StatementIdx(idx)
		}
		inv.Branches = append(inv.Branches, sierra.BranchInfo{Target: target, Results: res})
	}
	return sierra.Statement{Kind: sierra.StmtInvocation, Invocation: inv}, nil
}

func varIDs(pos lexer.Position, vl *varList) ([]sierra.VarID, error) {
	if vl == nil {
		return nil, nil
	}
	out := make([]sierra.VarID, 0, len(vl.Vars))
	for _, s := range vl.Vars {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, &ParseError{Pos: pos, Msg: fmt.Sprintf("invalid variable [%s]", s)}
		}
		out = append(out, sierra.VarID(v))
	}
	return out, nil
}
