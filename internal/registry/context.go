package registry

import (
	"fmt"

	"sierranative/internal/errs"
	"sierranative/internal/layout"
	"sierranative/internal/metadata"
	"sierranative/internal/sierra"
	"sierranative/internal/target"
)

// Landing is where one branch of an invocation continues. Args maps the
// values produced on that branch to the arguments of Block.
type Landing struct {
	Block target.BlockID
	Args  func(outputs []target.ValueID) ([]target.ValueID, error)
}

// LibfuncContext is what a libfunc builder sees while it is lowered. B is
// positioned in the block of the invoking statement; Build must terminate
// it, jumping to Landings through Br, CondBr or Switch.
type LibfuncContext struct {
	Registry  *Registry
	Metadata  *metadata.Storage
	Module    *target.Module
	B         *target.Builder
	Function  *sierra.Function
	Statement sierra.StatementIdx
	Args      []target.ValueID
	ArgTypes  []sierra.TypeID
	Landings  []Landing
}

// Edge builds the jump to branch i carrying outputs.
func (c *LibfuncContext) Edge(branch int, outputs ...target.ValueID) (target.Edge, error) {
	if branch < 0 || branch >= len(c.Landings) {
		return target.Edge{}, errs.NativeAssertf("statement %d has no branch %d", c.Statement, branch)
	}
	l := c.Landings[branch]
	args, err := l.Args(outputs)
	if err != nil {
		return target.Edge{}, err
	}
	return target.Edge{Target: l.Block, Args: args}, nil
}

// Br ends the block with a jump to branch i.
func (c *LibfuncContext) Br(branch int, outputs ...target.ValueID) error {
	e, err := c.Edge(branch, outputs...)
	if err != nil {
		return err
	}
	c.B.Br(e.Target, e.Args...)
	return nil
}

// CondBr ends the block with a two-way branch on an i1.
func (c *LibfuncContext) CondBr(cond target.ValueID, thenBranch int, thenOut []target.ValueID, elseBranch int, elseOut []target.ValueID) error {
	then, err := c.Edge(thenBranch, thenOut...)
	if err != nil {
		return err
	}
	els, err := c.Edge(elseBranch, elseOut...)
	if err != nil {
		return err
	}
	c.B.CondBr(cond, then, els)
	return nil
}

// Switch ends the block dispatching on v: value i goes to branch i, the
// last branch also takes every out of range value.
func (c *LibfuncContext) Switch(v target.ValueID, outputs [][]target.ValueID) error {
	if len(outputs) == 0 || len(outputs) != len(c.Landings) {
		return errs.NativeAssertf("switch with %d outputs for %d branches", len(outputs), len(c.Landings))
	}
	edges := make([]target.Edge, len(outputs))
	for i, outs := range outputs {
		e, err := c.Edge(i, outs...)
		if err != nil {
			return err
		}
		edges[i] = e
	}
	if len(edges) == 1 {
		c.B.Br(edges[0].Target, edges[0].Args...)
		return nil
	}
	cases := make([]target.SwitchCase, 0, len(edges)-1)
	for i, e := range edges[:len(edges)-1] {
		cases = append(cases, target.SwitchCase{Value: uint64(i), Edge: e}) //nolint:gosec // non-negative index
	}
	c.B.Switch(v, cases, edges[len(edges)-1])
	return nil
}

// Runtime declares a runtime function in the module and returns it.
func (c *LibfuncContext) Runtime(name string) (target.RuntimeDecl, error) {
	rb := metadata.GetOrInsertWith(c.Metadata, metadata.NewRuntimeBindings)
	return rb.Declare(c.Module, name)
}

// TargetType is the register type of a Sierra type.
func (c *LibfuncContext) TargetType(id sierra.TypeID) (target.Type, error) {
	return c.Registry.TargetType(id)
}

// Layout is the memory layout of a Sierra type.
func (c *LibfuncContext) Layout(id sierra.TypeID) (layout.TypeLayout, error) {
	return c.Registry.LayoutOf(id)
}

// Charge is the gas withdrawn at the current statement.
func (c *LibfuncContext) Charge() uint64 {
	g, ok := metadata.Gas(c.Metadata)
	if !ok {
		return 0
	}
	return g.Charge(c.Function.ID, c.Statement)
}

// Refund is the gas returned at the current statement.
func (c *LibfuncContext) Refund() uint64 {
	g, ok := metadata.Gas(c.Metadata)
	if !ok {
		return 0
	}
	return g.Refund(c.Function.ID, c.Statement)
}

// Assert reports a broken Sierra-level invariant at the current statement.
func (c *LibfuncContext) Assert(kind errs.SierraAssertKind, format string, args ...any) error {
	return &errs.SierraAssertError{
		Kind:   kind,
		Detail: fmt.Sprintf("statement %d: %s", c.Statement, fmt.Sprintf(format, args...)),
	}
}
