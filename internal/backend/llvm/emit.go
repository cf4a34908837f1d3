// Package llvm prints target modules as textual LLVM IR. The output is
// accepted by clang and linked into a shared object together with a
// runtime providing the rt_* support functions and the module's runtime
// declarations.
package llvm

import (
	"fmt"
	"strings"

	"sierranative/internal/target"
)

type funcSig struct {
	ret     string
	params  []string
	results []target.Type
}

type Emitter struct {
	mod         *target.Module
	buf         strings.Builder
	funcSigs    map[string]funcSig
	runtimeSigs map[string]funcSig
	messages    []string
}

type pendingEdge struct {
	label string
	edge  target.Edge
}

type funcEmitter struct {
	emitter *Emitter
	f       *target.Func
	body    strings.Builder
	allocas []string
	tmpID   int
	vals    []string // operand text per value id
	slots   map[target.ValueID]string
	traps   map[target.TrapCode]bool
	pending []pendingEdge
}

// EmitModule renders m as LLVM IR.
func EmitModule(m *target.Module) (string, error) {
	if m == nil {
		return "", nil
	}
	e := &Emitter{
		mod:         m,
		funcSigs:    make(map[string]funcSig, len(m.Funcs)),
		runtimeSigs: make(map[string]funcSig, len(m.Runtime)),
	}
	if err := e.prepareSignatures(); err != nil {
		return "", err
	}
	e.emitPreamble()
	e.emitRuntimeDecls()
	for _, f := range m.Funcs {
		if err := e.emitFunction(f); err != nil {
			return "", fmt.Errorf("%s: %w", f.Name, err)
		}
	}
	e.emitMessages()
	return e.buf.String(), nil
}

func (e *Emitter) emitPreamble() {
	fmt.Fprintf(&e.buf, "; ModuleID = '%s'\n", e.mod.Name)
	e.buf.WriteString("target triple = \"x86_64-linux-gnu\"\n\n")
}

func signature(params, results []target.Type) (funcSig, error) {
	sig := funcSig{results: results}
	for _, p := range params {
		ty, err := llvmType(p)
		if err != nil {
			return sig, err
		}
		sig.params = append(sig.params, ty)
	}
	ret, err := resultType(results)
	if err != nil {
		return sig, err
	}
	sig.ret = ret
	return sig, nil
}

func (e *Emitter) prepareSignatures() error {
	for _, f := range e.mod.Funcs {
		sig, err := signature(f.Params, f.Results)
		if err != nil {
			return fmt.Errorf("%s: %w", f.Name, err)
		}
		e.funcSigs[f.Name] = sig
	}
	for _, d := range e.mod.Runtime {
		sig, err := signature(d.Params, d.Results)
		if err != nil {
			return fmt.Errorf("runtime %s: %w", d.Name, err)
		}
		e.runtimeSigs[d.Name] = sig
	}
	return nil
}

func (e *Emitter) emitRuntimeDecls() {
	for _, decl := range runtimeDecls() {
		fmt.Fprintf(&e.buf, "declare %s @%s(%s)\n", decl.ret, decl.name, strings.Join(decl.params, ", "))
	}
	for _, d := range e.mod.Runtime {
		sig := e.runtimeSigs[d.Name]
		fmt.Fprintf(&e.buf, "declare %s %s(%s)\n", sig.ret, globalName(d.Name), strings.Join(sig.params, ", "))
	}
	e.buf.WriteString("\n")
}

func (fe *funcEmitter) nextTemp() string {
	fe.tmpID++
	return fmt.Sprintf("%%t%d", fe.tmpID)
}

func (fe *funcEmitter) nextLabel(prefix string) string {
	fe.tmpID++
	return fmt.Sprintf("%s%d", prefix, fe.tmpID)
}

// message interns a trap message as a private NUL-terminated global.
func (e *Emitter) message(msg string) string {
	for i, m := range e.messages {
		if m == msg {
			return fmt.Sprintf("@.msg%d", i)
		}
	}
	e.messages = append(e.messages, msg)
	return fmt.Sprintf("@.msg%d", len(e.messages)-1)
}

func (e *Emitter) emitMessages() {
	for i, m := range e.messages {
		data := append([]byte(m), 0)
		fmt.Fprintf(&e.buf, "@.msg%d = private unnamed_addr constant [%d x i8] %s\n", i, len(data), formatLLVMBytes(data, len(data)))
	}
}

func (fe *funcEmitter) line(format string, args ...any) {
	fe.body.WriteString("  ")
	fmt.Fprintf(&fe.body, format, args...)
	fe.body.WriteByte('\n')
}

func (fe *funcEmitter) label(name string) {
	fmt.Fprintf(&fe.body, "%s:\n", name)
}
