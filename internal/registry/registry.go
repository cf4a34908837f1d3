package registry

import (
	"errors"
	"fmt"
	"sync"

	"sierranative/internal/dag"
	"sierranative/internal/errs"
	"sierranative/internal/layout"
	"sierranative/internal/sierra"
	"sierranative/internal/target"
)

type typeEntry struct {
	decl     *sierra.TypeDeclaration
	concrete ConcreteType
}

type libfuncEntry struct {
	decl     *sierra.LibfuncDeclaration
	concrete ConcreteLibfunc
}

// Registry maps every declaration id of a program to its concrete object.
// It is read-only after Build returns.
type Registry struct {
	program  *sierra.Program
	catalog  *Catalog
	types    map[uint64]*typeEntry
	order    []sierra.TypeID
	libfuncs map[uint64]*libfuncEntry
	funcs    map[uint64]*sierra.Function
	layouts  *layout.Engine

	mu      sync.Mutex
	targets map[uint64]target.Type
}

// Build specializes every declaration of p with catalog. Types are resolved
// in dependency order before libfuncs. Any undeclared, duplicate or cyclic
// declaration, or a missing builder, fails the whole construction.
func Build(p *sierra.Program, catalog *Catalog) (*Registry, error) {
	if p == nil || catalog == nil {
		return nil, errs.NativeAssertf("registry build without program or catalog")
	}
	r := &Registry{
		program:  p,
		catalog:  catalog,
		types:    make(map[uint64]*typeEntry, len(p.TypeDeclarations)),
		libfuncs: make(map[uint64]*libfuncEntry, len(p.LibfuncDeclarations)),
		funcs:    make(map[uint64]*sierra.Function, len(p.Funcs)),
		targets:  make(map[uint64]target.Type),
	}
	r.layouts = layout.New(layout.X86_64LinuxGNU(), r)

	for i := range p.Funcs {
		fn := &p.Funcs[i]
		if _, dup := r.funcs[fn.ID.ID]; dup {
			return nil, &errs.CompilerError{Kind: errs.CompilerDuplicateFunction, ID: fn.ID.String()}
		}
		r.funcs[fn.ID.ID] = fn
	}
	if err := r.buildTypes(); err != nil {
		return nil, err
	}
	if err := r.buildLibfuncs(); err != nil {
		return nil, err
	}
	if err := r.validateReferences(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) buildTypes() error {
	decls := r.program.TypeDeclarations
	index := make(map[uint64]int, len(decls))
	for i := range decls {
		id := decls[i].ID
		if _, dup := index[id.ID]; dup {
			return &errs.CompilerError{Kind: errs.CompilerDuplicateType, ID: id.String()}
		}
		index[id.ID] = i
	}

	g := dag.New(len(decls))
	for i := range decls {
		for _, arg := range decls[i].Args {
			if arg.Kind != sierra.ArgType {
				continue
			}
			dep, ok := index[arg.Type.ID]
			if !ok {
				return &errs.CompilerError{Kind: errs.CompilerUndeclaredType, ID: arg.Type.String()}
			}
			g.AddEdge(nodeID(dep), nodeID(i))
		}
	}
	topo := dag.ToposortKahn(g)
	if topo.Cyclic {
		first := decls[topo.Cycles[0]].ID
		for _, n := range topo.Cycles[1:] {
			if id := decls[n].ID; id.ID < first.ID {
				first = id
			}
		}
		return &errs.CompilerError{Kind: errs.CompilerCyclicType, ID: first.String()}
	}

	ctx := &SpecializationContext{r: r}
	for _, n := range topo.Order {
		decl := &decls[n]
		factory, ok := r.catalog.typeFactory(decl.GenericID)
		if !ok {
			return &errs.CompilerError{Kind: errs.CompilerMissingBuilder, ID: fmt.Sprintf("%s (%s)", decl.ID, decl.GenericID)}
		}
		ctx.declID = decl.ID.String()
		ctx.self = decl.ID
		ct, err := factory(ctx, decl.Args)
		if err != nil {
			return builderError(errs.CompilerTypeBuilder, decl.ID.String(), err)
		}
		r.types[decl.ID.ID] = &typeEntry{decl: decl, concrete: ct}
		r.order = append(r.order, decl.ID)
	}
	return nil
}

func (r *Registry) buildLibfuncs() error {
	ctx := &SpecializationContext{r: r}
	for i := range r.program.LibfuncDeclarations {
		decl := &r.program.LibfuncDeclarations[i]
		if _, dup := r.libfuncs[decl.ID.ID]; dup {
			return &errs.CompilerError{Kind: errs.CompilerDuplicateLibfunc, ID: decl.ID.String()}
		}
		factory, ok := r.catalog.libfuncFactory(decl.GenericID)
		if !ok {
			return &errs.CompilerError{Kind: errs.CompilerMissingBuilder, ID: fmt.Sprintf("%s (%s)", decl.ID, decl.GenericID)}
		}
		ctx.declID = decl.ID.String()
		lf, err := factory(ctx, decl.Args)
		if err != nil {
			return builderError(errs.CompilerLibfuncBuilder, decl.ID.String(), err)
		}
		r.libfuncs[decl.ID.ID] = &libfuncEntry{decl: decl, concrete: lf}
	}
	return nil
}

func (r *Registry) validateReferences() error {
	for i := range r.program.Funcs {
		fn := &r.program.Funcs[i]
		for _, t := range fn.Signature.ParamTypes {
			if _, ok := r.types[t.ID]; !ok {
				return &errs.CompilerError{Kind: errs.CompilerUndeclaredType, ID: t.String()}
			}
		}
		for _, t := range fn.Signature.RetTypes {
			if _, ok := r.types[t.ID]; !ok {
				return &errs.CompilerError{Kind: errs.CompilerUndeclaredType, ID: t.String()}
			}
		}
		if _, ok := r.program.Statement(fn.Entry); !ok {
			return &errs.CompilerError{
				Kind: errs.CompilerUndeclaredFunction,
				ID:   fn.ID.String(),
				Err:  fmt.Errorf("entry statement %d out of range", fn.Entry),
			}
		}
	}
	for i := range r.program.Statements {
		st := &r.program.Statements[i]
		if st.Kind != sierra.StmtInvocation {
			continue
		}
		if _, ok := r.libfuncs[st.Invocation.Libfunc.ID]; !ok {
			return &errs.CompilerError{Kind: errs.CompilerUndeclaredLibfunc, ID: st.Invocation.Libfunc.String()}
		}
	}
	return nil
}

// builderError keeps CompilerErrors raised inside a factory and wraps
// anything else.
func builderError(kind errs.CompilerErrorKind, id string, err error) error {
	var ce *errs.CompilerError
	if errors.As(err, &ce) {
		return err
	}
	return &errs.CompilerError{Kind: kind, ID: id, Err: err}
}

func nodeID(i int) dag.NodeID {
	return dag.NodeID(i) //nolint:gosec // declaration counts fit in uint32
}

// Program returns the program the registry was built for.
func (r *Registry) Program() *sierra.Program { return r.program }

// Catalog returns the catalog used to build the registry.
func (r *Registry) Catalog() *Catalog { return r.catalog }

// Layouts returns the layout engine.
func (r *Registry) Layouts() *layout.Engine { return r.layouts }

// TypeIDs lists the declared types in dependency order.
func (r *Registry) TypeIDs() []sierra.TypeID {
	return append([]sierra.TypeID(nil), r.order...)
}

// Type returns the concrete type of id.
func (r *Registry) Type(id sierra.TypeID) (ConcreteType, error) {
	e, ok := r.types[id.ID]
	if !ok {
		return nil, &errs.CompilerError{Kind: errs.CompilerUndeclaredType, ID: id.String()}
	}
	return e.concrete, nil
}

// TypeInfo returns the description of id.
func (r *Registry) TypeInfo(id sierra.TypeID) (TypeInfo, error) {
	ct, err := r.Type(id)
	if err != nil {
		return TypeInfo{}, err
	}
	return ct.Info(), nil
}

// TypeDeclaration returns the declaration of id.
func (r *Registry) TypeDeclaration(id sierra.TypeID) (*sierra.TypeDeclaration, bool) {
	e, ok := r.types[id.ID]
	if !ok {
		return nil, false
	}
	return e.decl, true
}

// Libfunc returns the concrete libfunc of id.
func (r *Registry) Libfunc(id sierra.LibfuncID) (ConcreteLibfunc, error) {
	e, ok := r.libfuncs[id.ID]
	if !ok {
		return nil, &errs.CompilerError{Kind: errs.CompilerUndeclaredLibfunc, ID: id.String()}
	}
	return e.concrete, nil
}

// Function returns the user function of id.
func (r *Registry) Function(id sierra.FunctionID) (*sierra.Function, error) {
	fn, ok := r.funcs[id.ID]
	if !ok {
		return nil, &errs.CompilerError{Kind: errs.CompilerUndeclaredFunction, ID: id.String()}
	}
	return fn, nil
}

// LayoutOf returns the cached memory layout of id.
func (r *Registry) LayoutOf(id sierra.TypeID) (layout.TypeLayout, error) {
	return r.layouts.LayoutOf(id)
}

// ComputeLayout implements layout.Resolver.
func (r *Registry) ComputeLayout(c *layout.Context, id sierra.TypeID) (layout.TypeLayout, error) {
	e, ok := r.types[id.ID]
	if !ok {
		return layout.TypeLayout{}, &layout.LayoutError{Kind: layout.LayoutErrUnknownType, Type: id}
	}
	return e.concrete.Layout(c)
}

// TargetType returns the register type of id.
func (r *Registry) TargetType(id sierra.TypeID) (target.Type, error) {
	r.mu.Lock()
	if t, ok := r.targets[id.ID]; ok {
		r.mu.Unlock()
		return t, nil
	}
	r.mu.Unlock()

	ct, err := r.Type(id)
	if err != nil {
		return target.Type{}, err
	}
	t, err := ct.TargetType(r)
	if err != nil {
		return target.Type{}, err
	}
	r.mu.Lock()
	r.targets[id.ID] = t
	r.mu.Unlock()
	return t, nil
}

// BlobOf is the target type of an aggregate: its layout as a blob.
func (r *Registry) BlobOf(id sierra.TypeID) (target.Type, error) {
	l, err := r.LayoutOf(id)
	if err != nil {
		return target.Type{}, err
	}
	return target.FromLayout(l), nil
}

// FindType returns the declared type with the given generic id and args.
func (r *Registry) FindType(genericID string, args ...sierra.GenericArg) (sierra.TypeID, bool) {
	for i := range r.program.TypeDeclarations {
		d := &r.program.TypeDeclarations[i]
		if d.GenericID != genericID || len(d.Args) != len(args) {
			continue
		}
		match := true
		for ai := range args {
			if !d.Args[ai].Equal(args[ai]) {
				match = false
				break
			}
		}
		if match {
			return d.ID, true
		}
	}
	return sierra.TypeID{}, false
}
