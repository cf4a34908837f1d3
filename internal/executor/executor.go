// Package executor invokes compiled programs. An Artifact carries the
// finalized module and the host descriptors of its entry points; an
// Executor marshals abi.Values in, runs the entry point with a gas budget
// and decodes what comes back.
package executor

import (
	"context"
	"errors"
	"io"
	"math"
	"strings"

	"github.com/tliron/commonlog"

	"sierranative/internal/abi"
	"sierranative/internal/backend/jit"
	"sierranative/internal/errs"
	"sierranative/internal/felt"
	"sierranative/internal/rtlib"
	"sierranative/internal/starknet"
	"sierranative/internal/target"
)

var log = commonlog.GetLogger("sierranative.executor")

// Generic ids of the builtins the executor supplies itself.
const (
	gasBuiltin   = "GasBuiltin"
	systemType   = "System"
	builtinCosts = "BuiltinCosts"
)

const panicResultName = "core::panics::PanicResult"

// InvokeOptions configures one invocation.
type InvokeOptions struct {
	// Gas is the initial budget; nil means unlimited.
	Gas *uint64
	// Syscalls serves the syscalls of contracts; nil fails any syscall.
	Syscalls starknet.SyscallHandler
	// Debug receives print output; nil writes to stderr.
	Debug    io.Writer
	MaxDepth int
}

func (o InvokeOptions) initialGas() uint64 {
	if o.Gas == nil {
		return math.MaxUint64
	}
	return *o.Gas
}

// ExecutionResult is the outcome of Invoke.
type ExecutionResult struct {
	// RemainingGas is nil when the entry point does not take gas.
	RemainingGas *uint64
	GasConsumed  uint64
	// BuiltinStats holds the final counter of every builtin the entry point
	// returns, by generic id.
	BuiltinStats map[string]uint64
	// ReturnValue is the single return value, the Ok payload of a panic
	// result, or a struct of all values when there are several.
	ReturnValue abi.Value
	Failed      bool
	PanicData   []felt.Felt
}

// ErrorMsg renders the panic data of a failed execution.
func (r *ExecutionResult) ErrorMsg() string {
	if !r.Failed {
		return ""
	}
	return starknet.DescribeData(r.PanicData)
}

// ContractExecutionResult is the outcome of InvokeContract.
type ContractExecutionResult struct {
	RemainingGas uint64
	Failed       bool
	// ReturnValues are the returned felts, or the panic data on failure.
	ReturnValues []felt.Felt
	ErrorMsg     string
	Events       []starknet.Event
}

// Executor runs the entry points of one artifact. Implementations are safe
// for concurrent invocations.
type Executor interface {
	Invoke(ctx context.Context, entry string, args []abi.Value, opts InvokeOptions) (*ExecutionResult, error)
	InvokeContract(ctx context.Context, entry string, calldata []felt.Felt, opts InvokeOptions) (*ContractExecutionResult, error)
	EntryPoints() []EntryPoint
	RequiredInitialGas(entry string) (uint64, error)
	Artifact() *Artifact
}

// JITExecutor runs an artifact in-process.
type JITExecutor struct {
	art  *Artifact
	prog *jit.Program
	rt   jit.Runtime
}

var _ Executor = (*JITExecutor)(nil)

// NewJIT compiles the module of art and binds the runtime library.
func NewJIT(art *Artifact) (*JITExecutor, error) {
	if art == nil || art.Module == nil {
		return nil, errs.New(errs.KindLibraryLoad, "artifact has no module")
	}
	prog, err := jit.Compile(art.Module)
	if err != nil {
		return nil, err
	}
	rt := rtlib.Table()
	if missing := prog.Unresolved(rt); len(missing) > 0 {
		return nil, &errs.Error{
			Kind:  errs.KindLink,
			Msg:   "module " + art.Module.Name,
			Cause: &jit.UnresolvedError{Name: missing[0]},
		}
	}
	for _, ep := range art.Entries {
		if !prog.Has(ep.Name) {
			return nil, errs.NativeAssertf("entry point %s has no compiled function", ep.Name)
		}
	}
	log.Debugf("loaded %s: %d entry points, %d types", art.Module.Name, len(art.Entries), len(art.Types))
	return &JITExecutor{art: art, prog: prog, rt: rt}, nil
}

func (e *JITExecutor) Artifact() *Artifact { return e.art }

func (e *JITExecutor) EntryPoints() []EntryPoint {
	return append([]EntryPoint(nil), e.art.Entries...)
}

func (e *JITExecutor) RequiredInitialGas(entry string) (uint64, error) {
	ep, err := e.art.Entry(entry)
	if err != nil {
		return 0, err
	}
	return ep.RequiredGas, nil
}

func outOfGas() []felt.Felt {
	return []felt.Felt{felt.MustShortString(starknet.ReasonOutOfGas)}
}

// Invoke runs entry with args. Builtin parameters are supplied by the
// executor; args are the remaining parameters in order. A program that
// panics or runs out of gas yields a failed result, not an error.
func (e *JITExecutor) Invoke(ctx context.Context, entry string, args []abi.Value, opts InvokeOptions) (*ExecutionResult, error) {
	ep, err := e.art.Entry(entry)
	if err != nil {
		return nil, err
	}
	descs, err := e.descs(ep.Params)
	if err != nil {
		return nil, err
	}
	if n := userParams(descs); n != len(args) {
		return nil, errs.New(errs.KindUnexpectedValue, "%s takes %d arguments, got %d", entry, n, len(args))
	}

	initial := opts.initialGas()
	available := initial
	if takesGas(descs) {
		if initial < ep.RequiredGas {
			log.Infof("%s: initial gas %d below required %d", entry, initial, ep.RequiredGas)
			left := initial
			return &ExecutionResult{RemainingGas: &left, Failed: true, PanicData: outOfGas()}, nil
		}
		available = initial - ep.RequiredGas
	}

	env := jit.NewEnv(ctx, e.rt, &rtlib.Host{Syscalls: opts.Syscalls, Debug: opts.Debug})
	env.MaxDepth = opts.MaxDepth
	codec := &abi.Codec{Types: e.art.Types, Heap: env.Mem}

	in := make([]jit.Value, len(descs))
	next := 0
	for i, d := range descs {
		var v abi.Value
		if d.Kind == abi.DescBuiltin {
			v = abi.Builtin(0)
			if d.Generic == gasBuiltin {
				v = abi.Builtin(available)
			}
		} else {
			v = args[next]
			next++
		}
		img, err := codec.Encode(d.ID, v)
		if err != nil {
			return nil, errs.Wrapf(err, "%s: argument %d", entry, i)
		}
		in[i] = jit.Value(img)
	}

	log.Debugf("invoke %s with gas %d", entry, initial)
	out, err := e.prog.Call(env, ep.Name, in)
	if err != nil {
		return e.fault(entry, initial, err)
	}
	res, err := e.decode(ep, codec, out)
	if err != nil {
		return nil, errs.Wrapf(err, "%s: results", entry)
	}
	if res.RemainingGas != nil && *res.RemainingGas <= initial {
		res.GasConsumed = initial - *res.RemainingGas
	}
	log.Debugf("%s returned after %d steps, consumed %d gas, failed=%t", entry, env.Steps(), res.GasConsumed, res.Failed)
	return res, nil
}

// fault classifies an error raised while running.
func (e *JITExecutor) fault(entry string, initial uint64, err error) (*ExecutionResult, error) {
	var trap *jit.Trap
	if !errors.As(err, &trap) {
		return nil, errs.Wrapf(err, "invoke %s", entry)
	}
	if trap.IsOutOfGas() {
		log.Infof("%s: %s", entry, trap.Msg)
		zero := uint64(0)
		return &ExecutionResult{RemainingGas: &zero, GasConsumed: initial, Failed: true, PanicData: outOfGas()}, nil
	}
	kind := errs.KindSierraAssert
	if trap.Code == target.TrapUnreachable {
		kind = errs.KindNativeAssert
	}
	return nil, &errs.Error{Kind: kind, Msg: "invoke " + entry, Cause: trap}
}

func (e *JITExecutor) decode(ep *EntryPoint, codec *abi.Codec, out []jit.Value) (*ExecutionResult, error) {
	if len(out) != len(ep.Returns) {
		return nil, errs.NativeAssertf("%s returned %d values, want %d", ep.Name, len(out), len(ep.Returns))
	}
	res := &ExecutionResult{BuiltinStats: make(map[string]uint64)}
	var values []abi.Value
	for i, id := range ep.Returns {
		d, err := e.art.Types.Get(id)
		if err != nil {
			return nil, err
		}
		if d.Kind == abi.DescBuiltin {
			n := out[i].U64()
			switch d.Generic {
			case gasBuiltin:
				res.RemainingGas = &n
			case systemType, builtinCosts:
			default:
				res.BuiltinStats[d.Generic] = n
			}
			continue
		}
		v, err := codec.Decode(id, out[i])
		if err != nil {
			return nil, err
		}
		if isPanicResult(d) {
			if v, err = unwrapPanic(res, v); err != nil {
				return nil, err
			}
		}
		values = append(values, v)
	}
	if len(values) == 1 {
		res.ReturnValue = values[0]
	} else {
		res.ReturnValue = abi.Struct(values...)
	}
	return res, nil
}

func isPanicResult(d *abi.TypeDesc) bool {
	return d.Kind == abi.DescEnum && len(d.Members) == 2 && strings.HasPrefix(d.Name, panicResultName)
}

// unwrapPanic returns the Ok payload of a panic result, or records the
// panic data of the Err variant on res.
func unwrapPanic(res *ExecutionResult, v abi.Value) (abi.Value, error) {
	if v.Kind != abi.ValEnum || v.Inner == nil {
		return v, errs.NativeAssertf("panic result decoded as %s", v.Kind)
	}
	if v.Tag == 0 {
		return *v.Inner, nil
	}
	payload := *v.Inner
	if payload.Kind != abi.ValStruct || len(payload.Fields) != 2 {
		return v, errs.NativeAssertf("panic payload decoded as %s", payload)
	}
	data, ok := payload.Fields[1].Felts()
	if !ok {
		return v, errs.NativeAssertf("panic data is not an array of felts: %s", payload.Fields[1])
	}
	res.Failed = true
	res.PanicData = data
	return abi.Struct(), nil
}

func (e *JITExecutor) descs(ids []uint64) ([]*abi.TypeDesc, error) {
	out := make([]*abi.TypeDesc, len(ids))
	for i, id := range ids {
		d, err := e.art.Types.Get(id)
		if err != nil {
			return nil, err
		}
		out[i] = d
	}
	return out, nil
}

func userParams(descs []*abi.TypeDesc) int {
	n := 0
	for _, d := range descs {
		if d.Kind != abi.DescBuiltin {
			n++
		}
	}
	return n
}

func takesGas(descs []*abi.TypeDesc) bool {
	for _, d := range descs {
		if d.Kind == abi.DescBuiltin && d.Generic == gasBuiltin {
			return true
		}
	}
	return false
}

type eventSource interface {
	Events() []starknet.Event
}

// InvokeContract runs an entry point following the contract calling
// convention: builtins, then a span of felts, returning builtins and a
// panic result over a span of felts.
func (e *JITExecutor) InvokeContract(ctx context.Context, entry string, calldata []felt.Felt, opts InvokeOptions) (*ContractExecutionResult, error) {
	ep, err := e.art.Entry(entry)
	if err != nil {
		return nil, err
	}
	descs, err := e.descs(ep.Params)
	if err != nil {
		return nil, err
	}
	var span *abi.TypeDesc
	for _, d := range descs {
		if d.Kind == abi.DescBuiltin {
			continue
		}
		if span != nil {
			return nil, errs.New(errs.KindUnexpectedValue, "%s takes more than the calldata span", entry)
		}
		span = d
	}
	if span == nil {
		return nil, errs.New(errs.KindUnexpectedValue, "%s takes no calldata span", entry)
	}
	arg := abi.FeltsOf(calldata...)
	switch span.Kind {
	case abi.DescArray:
	case abi.DescStruct:
		if len(span.Members) != 1 {
			return nil, errs.New(errs.KindUnexpectedValue, "%s: calldata type %s is not a span", entry, span.Name)
		}
		arg = abi.Struct(arg)
	default:
		return nil, errs.New(errs.KindUnexpectedValue, "%s: calldata type %s is not a span", entry, span.Name)
	}

	var before int
	events, _ := opts.Syscalls.(eventSource)
	if events != nil {
		before = len(events.Events())
	}

	r, err := e.Invoke(ctx, entry, []abi.Value{arg}, opts)
	if err != nil {
		return nil, err
	}
	out := &ContractExecutionResult{Failed: r.Failed}
	if r.RemainingGas != nil {
		out.RemainingGas = *r.RemainingGas
	}
	if r.Failed {
		out.ReturnValues = r.PanicData
		out.ErrorMsg = r.ErrorMsg()
	} else {
		felts, ok := spanFelts(r.ReturnValue)
		if !ok {
			return nil, errs.NativeAssertf("%s: contract returned %s, want a span of felts", entry, r.ReturnValue)
		}
		out.ReturnValues = felts
	}
	if events != nil {
		if all := events.Events(); len(all) > before {
			out.Events = all[before:]
		}
	}
	return out, nil
}

// spanFelts unwraps single-field structs down to an array of felts.
func spanFelts(v abi.Value) ([]felt.Felt, bool) {
	for v.Kind == abi.ValStruct && len(v.Fields) == 1 {
		v = v.Fields[0]
	}
	return v.Felts()
}
