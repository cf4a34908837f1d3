// Package jit executes target modules in-process. Compile turns every
// function into blocks of Go closures over byte registers; Call runs them
// against an Env that owns the heap and the runtime bindings.
package jit

import (
	"context"
	"fmt"

	"sierranative/internal/errs"
	"sierranative/internal/target"
)

// DefaultMaxDepth bounds call nesting when the Env leaves MaxDepth unset.
const DefaultMaxDepth = 10_000

// RuntimeFunc implements a runtime function declared by the module.
type RuntimeFunc func(env *Env, args []Value) ([]Value, error)

// Runtime resolves runtime functions by name.
type Runtime map[string]RuntimeFunc

// Env is the mutable state of one execution. An Env is used by one
// goroutine at a time.
type Env struct {
	Ctx     context.Context
	Mem     *Memory
	Runtime Runtime
	// Host is handed to runtime functions; the executor stores the syscall
	// handler here.
	Host     any
	MaxDepth int

	steps uint64
}

// NewEnv returns an Env with a fresh heap.
func NewEnv(ctx context.Context, rt Runtime, host any) *Env {
	return &Env{Ctx: ctx, Mem: NewMemory(0), Runtime: rt, Host: host}
}

// Steps is the number of blocks executed so far.
func (e *Env) Steps() uint64 { return e.steps }

func (e *Env) maxDepth() int {
	if e.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return e.MaxDepth
}

// Program is a compiled module. It is immutable and safe for concurrent
// calls with distinct Envs.
type Program struct {
	module *target.Module
	funcs  map[string]*function
}

type function struct {
	name    string
	src     *target.Func
	entry   target.BlockID
	nvalues int
	blocks  []block
}

type block struct {
	params []target.ValueID
	ops    []opFn
	term   termFn
}

type opFn func(fr *frame) error

// termFn picks the next edge; a nil edge returns from the function.
type termFn func(fr *frame) (*target.Edge, error)

type frame struct {
	prog  *Program
	env   *Env
	fn    *function
	regs  []Value
	depth int
	ret   []Value
}

// Compile checks m and builds its closures.
func Compile(m *target.Module) (*Program, error) {
	if err := target.Verify(m); err != nil {
		return nil, &errs.Error{Kind: errs.KindTarget, Msg: "jit: module " + m.Name, Cause: err}
	}
	p := &Program{module: m, funcs: make(map[string]*function, len(m.Funcs))}
	for _, f := range m.Funcs {
		p.funcs[f.Name] = &function{name: f.Name, src: f, entry: f.Entry, nvalues: len(f.Values)}
	}
	for _, fn := range p.funcs {
		if err := p.compileFunc(fn); err != nil {
			return nil, &errs.Error{Kind: errs.KindBackendCompile, Cause: err}
		}
	}
	return p, nil
}

// Module is the compiled module.
func (p *Program) Module() *target.Module { return p.module }

// Has reports whether the module defines name.
func (p *Program) Has(name string) bool {
	_, ok := p.funcs[name]
	return ok
}

// Unresolved lists the runtime functions the module declares that rt does
// not provide.
func (p *Program) Unresolved(rt Runtime) []string {
	var out []string
	for _, d := range p.module.Runtime {
		if _, ok := rt[d.Name]; !ok {
			out = append(out, d.Name)
		}
	}
	return out
}

// Call runs the function name with args.
func (p *Program) Call(env *Env, name string, args []Value) ([]Value, error) {
	fn, ok := p.funcs[name]
	if !ok {
		return nil, errs.New(errs.KindUnexpectedValue, "jit: no function %q", name)
	}
	if env.Mem == nil {
		env.Mem = NewMemory(0)
	}
	if len(args) != len(fn.src.Params) {
		return nil, errs.New(errs.KindUnexpectedValue, "jit: %s takes %d arguments, got %d", name, len(fn.src.Params), len(args))
	}
	in := make([]Value, len(args))
	for i, a := range args {
		t := fn.src.Params[i]
		if len(a) != t.StoreSize() {
			return nil, errs.New(errs.KindUnexpectedValue, "jit: %s argument %d is %d bytes, want %s", name, i, len(a), t)
		}
		in[i] = normalize(t, a)
	}
	return p.run(env, fn, in, 0)
}

func (p *Program) run(env *Env, fn *function, args []Value, depth int) ([]Value, error) {
	if depth >= env.maxDepth() {
		return nil, trapf(target.TrapAssert, fn.name, "call depth limit %d exceeded", env.maxDepth())
	}
	fr := &frame{prog: p, env: env, fn: fn, regs: make([]Value, fn.nvalues), depth: depth}
	cur := fn.entry
	for i, v := range fn.blocks[cur].params {
		fr.regs[v] = args[i]
	}
	for {
		b := &fn.blocks[cur]
		for _, op := range b.ops {
			if err := op(fr); err != nil {
				return nil, err
			}
		}
		e, err := b.term(fr)
		if err != nil {
			return nil, err
		}
		if e == nil {
			return fr.ret, nil
		}
		env.steps++
		if env.steps%1024 == 0 && env.Ctx != nil {
			if err := env.Ctx.Err(); err != nil {
				return nil, err
			}
		}
		next := fn.blocks[e.Target].params
		vals := make([]Value, len(e.Args))
		for i, a := range e.Args {
			vals[i] = fr.regs[a]
		}
		for i, v := range next {
			fr.regs[v] = vals[i]
		}
		cur = e.Target
	}
}

func (p *Program) compileFunc(fn *function) error {
	f := fn.src
	fn.blocks = make([]block, len(f.Blocks))
	for i := range f.Blocks {
		src := &f.Blocks[i]
		b := &fn.blocks[i]
		b.params = src.Params
		b.ops = make([]opFn, 0, len(src.Ops))
		for j := range src.Ops {
			op, err := p.compileOp(fn, &src.Ops[j])
			if err != nil {
				return fmt.Errorf("jit: %s block %d op %d: %w", f.Name, i, j, err)
			}
			b.ops = append(b.ops, op)
		}
		term, err := compileTerm(fn, &src.Term)
		if err != nil {
			return fmt.Errorf("jit: %s block %d: %w", f.Name, i, err)
		}
		b.term = term
	}
	return nil
}

func compileTerm(fn *function, t *target.Terminator) (termFn, error) {
	switch t.Kind {
	case target.TermBr:
		e := t.Br
		return func(*frame) (*target.Edge, error) { return &e, nil }, nil
	case target.TermCondBr:
		c := t.CondBr
		return func(fr *frame) (*target.Edge, error) {
			if fr.regs[c.Cond].Bool() {
				return &c.Then, nil
			}
			return &c.Else, nil
		}, nil
	case target.TermSwitch:
		s := t.Switch
		return func(fr *frame) (*target.Edge, error) {
			z := fr.regs[s.Value].Uint256()
			if z.IsUint64() {
				v := z.Uint64()
				for i := range s.Cases {
					if s.Cases[i].Value == v {
						return &s.Cases[i].Edge, nil
					}
				}
			}
			return &s.Default, nil
		}, nil
	case target.TermReturn:
		vals := t.Return.Values
		return func(fr *frame) (*target.Edge, error) {
			fr.ret = make([]Value, len(vals))
			for i, v := range vals {
				fr.ret[i] = fr.regs[v]
			}
			return nil, nil
		}, nil
	case target.TermTrap:
		code, msg, name := t.Trap.Code, t.Trap.Msg, fn.name
		return func(*frame) (*target.Edge, error) {
			return nil, &Trap{Code: code, Msg: msg, Func: name}
		}, nil
	default:
		return nil, fmt.Errorf("unterminated block")
	}
}
