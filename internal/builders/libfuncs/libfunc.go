// Package libfuncs holds the LibfuncBuilders of the core catalog. Every
// factory checks its generic arguments, resolves the types its signature
// mentions and returns a libfunc whose Build lowers one invocation.
package libfuncs

import (
	"math/big"

	"sierranative/internal/errs"
	"sierranative/internal/felt"
	"sierranative/internal/metadata"
	"sierranative/internal/registry"
	"sierranative/internal/sierra"
	"sierranative/internal/target"
)

type buildFunc func(ctx *registry.LibfuncContext) error

// libfunc is the shared implementation of registry.ConcreteLibfunc.
type libfunc struct {
	generic string
	sig     registry.LibfuncSignature
	class   registry.Class
	build   buildFunc
}

func (l *libfunc) GenericID() string                    { return l.generic }
func (l *libfunc) Signature() registry.LibfuncSignature { return l.sig }
func (l *libfunc) Class() registry.Class                { return l.class }

func (l *libfunc) Build(ctx *registry.LibfuncContext) error {
	if len(ctx.Args) != len(l.sig.Params) {
		return errs.NativeAssertf("%s built with %d arguments, signature has %d", l.generic, len(ctx.Args), len(l.sig.Params))
	}
	return l.build(ctx)
}

// callLibfunc calls a user function.
type callLibfunc struct {
	libfunc
	callee sierra.FunctionID
}

func (c *callLibfunc) Callee() sierra.FunctionID { return c.callee }

var noAp = registry.Known(0)

func types(ts ...sierra.TypeID) []sierra.TypeID { return ts }

func branch(vars ...sierra.TypeID) registry.BranchSignature {
	return registry.BranchSignature{Vars: vars, ApChange: noAp}
}

func simple(generic string, params, outs []sierra.TypeID, build buildFunc) *libfunc {
	return &libfunc{generic: generic, sig: registry.Simple(params, outs, noAp), build: build}
}

func branching(generic string, params []sierra.TypeID, branches []registry.BranchSignature, build buildFunc) *libfunc {
	return &libfunc{generic: generic, sig: registry.Branching(params, branches...), build: build}
}

// forward passes the arguments through unchanged.
func forward(ctx *registry.LibfuncContext) error { return ctx.Br(0, ctx.Args...) }

// nothing continues without outputs.
func nothing(ctx *registry.LibfuncContext) error { return ctx.Br(0) }

func typeArg(ctx *registry.SpecializationContext, args []sierra.GenericArg) (sierra.TypeID, registry.TypeInfo, error) {
	if err := ctx.ExpectArgs(args, 1); err != nil {
		return sierra.TypeID{}, registry.TypeInfo{}, err
	}
	t, err := ctx.TypeArg(args, 0)
	if err != nil {
		return sierra.TypeID{}, registry.TypeInfo{}, err
	}
	info, err := ctx.TypeInfo(t)
	return t, info, err
}

func twoTypeArgs(ctx *registry.SpecializationContext, args []sierra.GenericArg) (a, b sierra.TypeID, ai, bi registry.TypeInfo, err error) {
	if err = ctx.ExpectArgs(args, 2); err != nil {
		return
	}
	if a, err = ctx.TypeArg(args, 0); err != nil {
		return
	}
	if b, err = ctx.TypeArg(args, 1); err != nil {
		return
	}
	if ai, err = ctx.TypeInfo(a); err != nil {
		return
	}
	bi, err = ctx.TypeInfo(b)
	return
}

func wrap(ctx *registry.SpecializationContext, generic string, t sierra.TypeID) (sierra.TypeID, error) {
	return ctx.FindType(generic, sierra.TypeArg(t))
}

// snapshotOf is Snapshot<t>, or t itself when t already is a snapshot.
func snapshotOf(ctx *registry.SpecializationContext, t sierra.TypeID) (sierra.TypeID, error) {
	info, err := ctx.TypeInfo(t)
	if err != nil {
		return sierra.TypeID{}, err
	}
	if info.Kind == registry.TypeSnapshot {
		return t, nil
	}
	return wrap(ctx, "Snapshot", t)
}

// unwrapSnapshot strips one Snapshot level.
func unwrapSnapshot(ctx *registry.SpecializationContext, t sierra.TypeID) (sierra.TypeID, registry.TypeInfo, error) {
	info, err := ctx.TypeInfo(t)
	if err != nil || info.Kind != registry.TypeSnapshot {
		return t, info, err
	}
	inner, err := ctx.TypeInfo(info.Inner)
	return info.Inner, inner, err
}

// findUserType looks up a Struct or Enum declaration by its user type name.
func findUserType(ctx *registry.SpecializationContext, kind registry.TypeKind, name string) (sierra.TypeID, error) {
	p := ctx.Program()
	for i := range p.TypeDeclarations {
		d := &p.TypeDeclarations[i]
		if len(d.Args) == 0 || d.Args[0].Kind != sierra.ArgUserType || d.Args[0].UserType.DebugName != name {
			continue
		}
		info, err := ctx.TypeInfo(d.ID)
		if err == nil && info.Kind == kind {
			return d.ID, nil
		}
	}
	return sierra.TypeID{}, &errs.CompilerError{Kind: errs.CompilerUndeclaredType, ID: name}
}

// findOption looks up an Enum whose first variant is t and which has two
// variants.
func findOption(ctx *registry.SpecializationContext, t sierra.TypeID) (sierra.TypeID, error) {
	p := ctx.Program()
	for i := range p.TypeDeclarations {
		d := &p.TypeDeclarations[i]
		if d.GenericID != "Enum" {
			continue
		}
		info, err := ctx.TypeInfo(d.ID)
		if err != nil || len(info.Members) != 2 || info.Members[0].ID != t.ID {
			continue
		}
		return d.ID, nil
	}
	return sierra.TypeID{}, &errs.CompilerError{Kind: errs.CompilerUndeclaredType, ID: "Option<" + t.String() + ">"}
}

// prime materializes the felt modulus.
func prime(ctx *registry.LibfuncContext) target.ValueID {
	pm := metadata.GetOrInsertWith(ctx.Metadata, metadata.NewPrimeModulo)
	return ctx.B.Const(target.I252, pm.Prime)
}

func feltConst(ctx *registry.LibfuncContext, v *big.Int) target.ValueID {
	return ctx.B.Const(target.I252, felt.FromBigInt(v).BigInt())
}

func i64(ctx *registry.LibfuncContext, v uint64) target.ValueID {
	return ctx.B.ConstU64(target.I64, v)
}

// bump advances a builtin counter by n uses.
func bump(ctx *registry.LibfuncContext, counter target.ValueID, n uint64) target.ValueID {
	return ctx.B.Add(counter, i64(ctx, n))
}

func zeroOf(ctx *registry.LibfuncContext, v target.ValueID) target.ValueID {
	return ctx.B.ConstU64(ctx.B.TypeOf(v), 0)
}

// widen returns the mathematical value of v as a signed i256.
func widen(ctx *registry.LibfuncContext, v target.ValueID, info registry.TypeInfo) target.ValueID {
	b := ctx.B
	var w target.ValueID
	if info.Kind == registry.TypeSint {
		w = b.SExt(v, target.I256)
	} else {
		w = b.ZExt(v, target.I256)
	}
	if info.Kind == registry.TypeBoundedInt && info.Lo.Sign() != 0 {
		w = b.Add(w, b.Const(target.I256, info.Lo))
	}
	return w
}

// narrow stores a signed i256 value in the representation of info.
func narrow(ctx *registry.LibfuncContext, w target.ValueID, info registry.TypeInfo) target.ValueID {
	b := ctx.B
	if info.Kind == registry.TypeBoundedInt && info.Lo.Sign() != 0 {
		w = b.Sub(w, b.Const(target.I256, info.Lo))
	}
	return b.Trunc(w, target.Int(info.Bits))
}

// inRange tests lo <= w <= hi on a widened value.
func inRange(ctx *registry.LibfuncContext, w target.ValueID, lo, hi *big.Int) target.ValueID {
	b := ctx.B
	ge := b.ICmp(target.PredSGE, w, b.Const(target.I256, lo))
	le := b.ICmp(target.PredSLE, w, b.Const(target.I256, hi))
	return b.And(ge, le)
}

func requireInteger(ctx *registry.SpecializationContext, t sierra.TypeID, info registry.TypeInfo) error {
	if !info.IsIntegerLike() {
		return &errs.SierraAssertError{Kind: errs.SierraAssertCast, Type: t.String(), Detail: ctx.DeclID()}
	}
	return nil
}
