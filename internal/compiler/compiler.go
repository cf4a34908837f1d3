// Package compiler drives a Sierra program through its stages: the
// registry is built, gas and runtime metadata are computed, every function
// is lowered into the target module and the module is optimized and
// verified.
//
// A Compiler moves forward only. A failed stage leaves it failed and it
// never compiles a second program.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"sierranative/internal/builders"
	"sierranative/internal/cfg"
	"sierranative/internal/config"
	"sierranative/internal/errs"
	"sierranative/internal/gas"
	"sierranative/internal/metadata"
	"sierranative/internal/observ"
	"sierranative/internal/registry"
	"sierranative/internal/sierra"
	"sierranative/internal/target"
	"sierranative/internal/trace"
)

// Options configures one compilation.
type Options struct {
	config.CompileOptions
	// ModuleName names the target module; empty selects "program".
	ModuleName string
	// Catalog resolves generic ids; nil selects builders.Core.
	Catalog  *registry.Catalog
	Observer PhaseObserver
}

// Result is a finalized module with everything computed on the way.
type Result struct {
	Program  *sierra.Program
	Registry *registry.Registry
	Metadata *metadata.Storage
	Gas      *gas.Metadata
	Graphs   map[uint64]*cfg.Graph
	Module   *target.Module
	Timings  observ.Report
}

// Compiler holds the state of one compilation.
type Compiler struct {
	opts  Options
	stage Stage
	err   error
	timer *observ.Timer

	program  *sierra.Program
	registry *registry.Registry
	graphs   map[uint64]*cfg.Graph
	md       *metadata.Storage
	gas      *gas.Metadata
	module   *target.Module
}

// New returns a compiler in StageUninitialized.
func New(opts Options) *Compiler {
	if opts.ModuleName == "" {
		opts.ModuleName = "program"
	}
	if opts.Catalog == nil {
		opts.Catalog = builders.Core()
	}
	return &Compiler{opts: opts, timer: observ.NewTimer()}
}

// Compile is New(opts).Compile(ctx, p).
func Compile(ctx context.Context, p *sierra.Program, opts Options) (*Result, error) {
	return New(opts).Compile(ctx, p)
}

// Stage reports how far the compiler got.
func (c *Compiler) Stage() Stage { return c.stage }

// Err is the error that stopped the compiler, if any.
func (c *Compiler) Err() error { return c.err }

type step struct {
	stage Stage
	run   func(ctx context.Context, span uint64) error
}

// Compile runs every stage on p.
func (c *Compiler) Compile(ctx context.Context, p *sierra.Program) (*Result, error) {
	if c.err != nil || c.stage != StageUninitialized {
		return nil, errs.Wrap(&errs.CompilerError{
			Kind: errs.CompilerStageMisuse,
			Err:  fmt.Errorf("compiler is at stage %s and cannot compile again", c.describe()),
		})
	}
	if p == nil {
		return nil, c.fail(errs.New(errs.KindUnexpectedValue, "nil program"))
	}
	c.program = p

	tracer := trace.FromContext(ctx)
	root := trace.Begin(tracer, trace.ScopeDriver, "compile", trace.ParentSpan(ctx))
	root.WithExtra("module", c.opts.ModuleName)

	steps := []step{
		{StageRegistryBuilt, c.buildRegistry},
		{StageMetadataComputed, c.computeMetadata},
		{StageFunctionsLowered, c.lowerFunctions},
		{StageModuleFinalized, c.finalize},
	}
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			root.End("canceled")
			return nil, c.fail(err)
		}
		if err := c.runStep(ctx, tracer, root.ID(), s); err != nil {
			root.End("failed")
			return nil, c.fail(err)
		}
	}
	root.End("")

	return &Result{
		Program:  c.program,
		Registry: c.registry,
		Metadata: c.md,
		Gas:      c.gas,
		Graphs:   c.graphs,
		Module:   c.module,
		Timings:  c.timer.Report(),
	}, nil
}

func (c *Compiler) runStep(ctx context.Context, tracer trace.Tracer, parent uint64, s step) error {
	c.notify(PhaseEvent{Stage: s.stage, Status: PhaseStart})
	idx := c.timer.Begin(s.stage.String())
	span := trace.Begin(tracer, trace.ScopePass, s.stage.String(), parent)
	start := time.Now()

	err := s.run(ctx, span.ID())

	note := ""
	if err != nil {
		note = "failed"
	}
	c.timer.End(idx, note)
	span.End(note)
	c.notify(PhaseEvent{Stage: s.stage, Status: PhaseEnd, Elapsed: time.Since(start), Err: err})
	if err != nil {
		return err
	}
	c.stage = s.stage
	return nil
}

func (c *Compiler) notify(ev PhaseEvent) {
	if c.opts.Observer != nil {
		c.opts.Observer(ev)
	}
}

// fail records err and drops every partial artifact.
func (c *Compiler) fail(err error) error {
	c.err = errs.Wrap(err)
	c.registry = nil
	c.graphs = nil
	c.md = nil
	c.gas = nil
	c.module = nil
	return c.err
}

func (c *Compiler) describe() string {
	if c.err != nil {
		return "failed after " + c.stage.String()
	}
	return c.stage.String()
}

func (c *Compiler) buildRegistry(context.Context, uint64) error {
	r, err := registry.Build(c.program, c.opts.Catalog)
	if err != nil {
		return err
	}
	c.registry = r
	return nil
}

func (c *Compiler) computeMetadata(ctx context.Context, _ uint64) error {
	graphs := make(map[uint64]*cfg.Graph, len(c.program.Funcs))
	for i := range c.program.Funcs {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn := &c.program.Funcs[i]
		g, err := cfg.Build(c.registry, fn)
		if err != nil {
			return errs.Wrapf(err, "function %s", fn.ID)
		}
		graphs[fn.ID.ID] = g
	}

	table := c.opts.Gas.Table()
	gm, err := gas.ComputeGraphs(c.registry, graphs, gas.Options{
		Table:        table,
		Disabled:     c.opts.Gas.Disabled,
		DynamicCosts: c.opts.Gas.DynamicCosts,
	})
	if err != nil {
		return err
	}

	md := metadata.New()
	md.Insert(gm)
	metadata.GetOrInsertWith(md, metadata.NewPrimeModulo)
	md.Insert(metadata.NewBuiltinCosts(table.Weights))

	c.graphs = graphs
	c.gas = gm
	c.md = md
	return nil
}

func (c *Compiler) lowerFunctions(ctx context.Context, span uint64) error {
	c.module = target.NewModule(c.opts.ModuleName)
	fns := make([]*sierra.Function, 0, len(c.program.Funcs))
	for i := range c.program.Funcs {
		fns = append(fns, &c.program.Funcs[i])
	}
	slices.SortFunc(fns, func(a, b *sierra.Function) int {
		switch {
		case a.ID.ID < b.ID.ID:
			return -1
		case a.ID.ID > b.ID.ID:
			return 1
		}
		return 0
	})

	tracer := trace.FromContext(ctx)
	for _, fn := range fns {
		if err := ctx.Err(); err != nil {
			return err
		}
		fs := trace.Begin(tracer, trace.ScopeFunction, fn.ID.Symbol(), span)
		err := c.lowerFunction(tracer, fs.ID(), fn)
		if err != nil {
			fs.End("failed")
			return err
		}
		fs.End("")
	}
	for _, f := range c.module.Funcs {
		target.MergeLinear(f)
	}
	return nil
}

func (c *Compiler) finalize(context.Context, uint64) error {
	target.Optimize(c.module, c.opts.Passes())
	if err := target.Verify(c.module); err != nil {
		var e *errs.Error
		if errors.As(err, &e) {
			return err
		}
		return &errs.Error{Kind: errs.KindTarget, Msg: "module " + c.module.Name, Cause: err}
	}
	return nil
}
