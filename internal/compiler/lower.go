package compiler

import (
	"fmt"

	"sierranative/internal/cfg"
	"sierranative/internal/errs"
	"sierranative/internal/registry"
	"sierranative/internal/sierra"
	"sierranative/internal/target"
	"sierranative/internal/trace"
)

// lowering is the state of one function being lowered. Every reachable
// statement owns a block whose parameters are the live variables before it,
// in ascending id order.
type lowering struct {
	c      *Compiler
	tracer trace.Tracer
	span   uint64
	fn     *sierra.Function
	g      *cfg.Graph
	f      *target.Func
	b      *target.Builder
	blocks map[sierra.StatementIdx]target.BlockID
	vars   map[sierra.StatementIdx][]sierra.VarID
}

func (c *Compiler) lowerFunction(tracer trace.Tracer, span uint64, fn *sierra.Function) error {
	g, ok := c.graphs[fn.ID.ID]
	if !ok {
		return errs.NativeAssertf("no statement graph for %s", fn.ID)
	}
	params, err := c.targetTypes(fn.Signature.ParamTypes)
	if err != nil {
		return err
	}
	results, err := c.targetTypes(fn.Signature.RetTypes)
	if err != nil {
		return err
	}
	f, err := c.module.AddFunc(fn.ID.Symbol(), params, results)
	if err != nil {
		return &errs.CompilerError{Kind: errs.CompilerDuplicateFunction, ID: fn.ID.Symbol(), Err: err}
	}
	f.Public = true

	l := &lowering{
		c:      c,
		tracer: tracer,
		span:   span,
		fn:     fn,
		g:      g,
		f:      f,
		b:      target.NewBuilder(f),
		blocks: make(map[sierra.StatementIdx]target.BlockID, len(g.Order)),
		vars:   make(map[sierra.StatementIdx][]sierra.VarID, len(g.Order)),
	}
	for _, idx := range g.Order {
		vars := g.Node(idx).State.Vars()
		types := make([]target.Type, len(vars))
		for i, v := range vars {
			if types[i], err = c.registry.TargetType(g.Node(idx).State[v]); err != nil {
				return err
			}
		}
		l.vars[idx] = vars
		l.blocks[idx] = l.b.NewBlock(types...)
	}

	l.b.SetBlock(f.Entry)
	entry := make(map[sierra.VarID]target.ValueID, len(fn.Params))
	for i, p := range fn.Params {
		entry[p.ID] = l.b.Params(f.Entry)[i]
	}
	args, err := l.arrange(fn.Entry, entry)
	if err != nil {
		return err
	}
	l.b.Br(l.blocks[fn.Entry], args...)

	for _, idx := range g.Order {
		if err := l.statement(idx); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) targetTypes(ids []sierra.TypeID) ([]target.Type, error) {
	out := make([]target.Type, len(ids))
	for i, id := range ids {
		t, err := c.registry.TargetType(id)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

// arrange orders the values of the variables live at stmt as its block
// expects them.
func (l *lowering) arrange(stmt sierra.StatementIdx, values map[sierra.VarID]target.ValueID) ([]target.ValueID, error) {
	vars, ok := l.vars[stmt]
	if !ok {
		return nil, errs.NativeAssertf("%s: statement %d is not reachable", l.fn.ID, stmt)
	}
	out := make([]target.ValueID, len(vars))
	for i, v := range vars {
		val, ok := values[v]
		if !ok {
			return nil, errs.NativeAssertf("%s: variable %s has no value on the way to statement %d", l.fn.ID, v, stmt)
		}
		out[i] = val
	}
	return out, nil
}

func (l *lowering) statement(idx sierra.StatementIdx) error {
	node := l.g.Node(idx)
	block := l.blocks[idx]
	l.b.SetBlock(block)

	env := make(map[sierra.VarID]target.ValueID, len(l.vars[idx]))
	for i, v := range l.vars[idx] {
		env[v] = l.b.Params(block)[i]
	}

	if amount, ok := l.c.gas.InjectedAt(l.fn.ID, idx); ok && amount > 0 {
		if err := l.injectGasCheck(node, env, idx, amount); err != nil {
			return err
		}
	}

	if node.IsReturn() {
		vals := make([]target.ValueID, len(node.Stmt.Return))
		for i, v := range node.Stmt.Return {
			vals[i] = env[v]
		}
		l.b.Return(vals...)
		return nil
	}

	inv := &node.Stmt.Invocation
	args := make([]target.ValueID, len(inv.Args))
	for i, v := range inv.Args {
		args[i] = env[v]
	}
	landings := make([]registry.Landing, len(node.Edges))
	for bi := range node.Edges {
		e := node.Edges[bi]
		landings[bi] = registry.Landing{
			Block: l.blocks[e.Target],
			Args: func(outs []target.ValueID) ([]target.ValueID, error) {
				if len(outs) != len(e.Results) {
					return nil, errs.NativeAssertf("%s: statement %d branch %d produced %d values, want %d",
						l.fn.ID, idx, bi, len(outs), len(e.Results))
				}
				next := make(map[sierra.VarID]target.ValueID, len(node.Remaining)+len(outs))
				for v := range node.Remaining {
					next[v] = env[v]
				}
				for i, v := range e.Results {
					next[v] = outs[i]
				}
				return l.arrange(e.Target, next)
			},
		}
	}

	ctx := &registry.LibfuncContext{
		Registry:  l.c.registry,
		Metadata:  l.c.md,
		Module:    l.c.module,
		B:         l.b,
		Function:  l.fn,
		Statement: idx,
		Args:      args,
		ArgTypes:  node.Libfunc.Signature().Params,
		Landings:  landings,
	}
	if err := node.Libfunc.Build(ctx); err != nil {
		return errs.Wrapf(err, "%s: statement %d (%s)", l.fn.ID, idx, inv.Libfunc)
	}
	if !l.b.Terminated() {
		return errs.NativeAssertf("%s: statement %d (%s) left its block open", l.fn.ID, idx, inv.Libfunc)
	}
	return nil
}

// injectGasCheck deducts amount from the gas counter live at the statement
// and traps when the counter cannot cover it.
func (l *lowering) injectGasCheck(node *cfg.Node, env map[sierra.VarID]target.ValueID, idx sierra.StatementIdx, amount uint64) error {
	gasVar, ok := l.gasVar(node)
	if !ok {
		return errs.NativeAssertf("%s: statement %d needs a gas check but holds no gas counter", l.fn.ID, idx)
	}
	counter := env[gasVar]
	cost := l.b.ConstU64(target.I64, amount)
	enough := l.b.ICmp(target.PredUGE, counter, cost)
	left := l.b.Sub(counter, cost)

	cont := l.b.NewBlock()
	trap := l.b.NewBlock()
	l.b.CondBr(enough, target.Edge{Target: cont}, target.Edge{Target: trap})

	l.b.SetBlock(trap)
	l.b.Trap(target.TrapOutOfGas, fmt.Sprintf("out of gas in %s at statement %d", l.fn.ID, idx))

	l.b.SetBlock(cont)
	env[gasVar] = left
	trace.Point(l.tracer, trace.ScopeStatement, "gas-check", fmt.Sprintf("statement %d amount %d", idx, amount), l.span)
	return nil
}

func (l *lowering) gasVar(node *cfg.Node) (sierra.VarID, bool) {
	for _, v := range node.State.Vars() {
		info, err := l.c.registry.TypeInfo(node.State[v])
		if err == nil && info.Kind == registry.TypeGasBuiltin {
			return v, true
		}
	}
	return 0, false
}
