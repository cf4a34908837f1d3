package llvm

import (
	"fmt"
	"strings"

	"sierranative/internal/target"
)

// emitFunction lowers block parameters to stack slots: the entry block
// stores the arguments, every edge stores its values, and every block loads
// its parameters on entry. Branching back to the first block is therefore
// legal even though LLVM's entry block may have no predecessors.
func (e *Emitter) emitFunction(f *target.Func) error {
	sig := e.funcSigs[f.Name]
	fe := &funcEmitter{
		emitter: e,
		f:       f,
		vals:    make([]string, len(f.Values)),
		slots:   make(map[target.ValueID]string),
		traps:   make(map[target.TrapCode]bool),
	}
	if err := fe.prepareValues(); err != nil {
		return err
	}
	entry := f.Block(f.Entry)
	if entry == nil {
		return fmt.Errorf("missing entry block %d", f.Entry)
	}
	if len(entry.Params) != len(sig.params) {
		return fmt.Errorf("entry block takes %d values, signature has %d", len(entry.Params), len(sig.params))
	}
	for i := range f.Blocks {
		if err := fe.emitBlock(&f.Blocks[i]); err != nil {
			return err
		}
	}
	fe.emitTraps()

	params := make([]string, len(sig.params))
	for i, ty := range sig.params {
		params[i] = fmt.Sprintf("%s %%arg%d", ty, i)
	}
	linkage := "define internal"
	if f.Public {
		linkage = "define"
	}
	fmt.Fprintf(&e.buf, "%s %s %s(%s) {\n", linkage, sig.ret, globalName(f.Name), strings.Join(params, ", "))
	e.buf.WriteString("entry:\n")
	for _, a := range fe.allocas {
		fmt.Fprintf(&e.buf, "  %s\n", a)
	}
	for i, p := range entry.Params {
		t := f.TypeOf(p)
		fmt.Fprintf(&e.buf, "  store %s %%arg%d, ptr %s, align %d\n", sig.params[i], i, fe.slots[p], t.AlignOf())
	}
	fmt.Fprintf(&e.buf, "  br label %%bb%d\n", f.Entry)
	e.buf.WriteString(fe.body.String())
	e.buf.WriteString("}\n\n")
	return nil
}

// prepareValues names every value and folds constants into their uses.
func (fe *funcEmitter) prepareValues() error {
	for i := range fe.vals {
		fe.vals[i] = fmt.Sprintf("%%v%d", i)
	}
	for bi := range fe.f.Blocks {
		b := &fe.f.Blocks[bi]
		for _, p := range b.Params {
			t := fe.f.TypeOf(p)
			ty, err := llvmType(t)
			if err != nil {
				return err
			}
			slot := fmt.Sprintf("%%s%d", p)
			fe.allocas = append(fe.allocas, fmt.Sprintf("%s = alloca %s, align %d", slot, ty, t.AlignOf()))
			fe.slots[p] = slot
		}
		for oi := range b.Ops {
			op := &b.Ops[oi]
			switch op.Code {
			case target.OpConst:
				v, err := constValue(op.Type, op.Imm)
				if err != nil {
					return err
				}
				fe.vals[op.Results[0]] = v
			case target.OpZero:
				fe.vals[op.Results[0]] = zeroValue(op.Type)
			}
		}
	}
	return nil
}

func (fe *funcEmitter) emitBlock(b *target.Block) error {
	fe.label(fmt.Sprintf("bb%d", b.ID))
	for _, p := range b.Params {
		t := fe.f.TypeOf(p)
		ty, err := llvmType(t)
		if err != nil {
			return err
		}
		fe.line("%%v%d = load %s, ptr %s, align %d", p, ty, fe.slots[p], t.AlignOf())
	}
	for i := range b.Ops {
		if err := fe.emitOp(&b.Ops[i]); err != nil {
			return fmt.Errorf("bb%d op %d (%s): %w", b.ID, i, b.Ops[i].Code, err)
		}
	}
	return fe.emitTerminator(&b.Term)
}

// operand returns the value text and its LLVM type.
func (fe *funcEmitter) operand(v target.ValueID) (val, ty string, err error) {
	if v < 0 || int(v) >= len(fe.vals) {
		return "", "", fmt.Errorf("invalid value %d", v)
	}
	ty, err = llvmType(fe.f.TypeOf(v))
	return fe.vals[v], ty, err
}

// typed renders "ty val" for call arguments and stores.
func (fe *funcEmitter) typed(v target.ValueID) (string, error) {
	val, ty, err := fe.operand(v)
	if err != nil {
		return "", err
	}
	return ty + " " + val, nil
}

// i64 converts an integer operand to i64.
func (fe *funcEmitter) i64(v target.ValueID) (string, error) {
	val, ty, err := fe.operand(v)
	if err != nil {
		return "", err
	}
	t := fe.f.TypeOf(v)
	switch {
	case !t.IsInt():
		return "", fmt.Errorf("size operand of type %s", t)
	case t.Bits == 64:
		return val, nil
	case t.Bits < 64:
		tmp := fe.nextTemp()
		fe.line("%s = zext %s %s to i64", tmp, ty, val)
		return tmp, nil
	default:
		tmp := fe.nextTemp()
		fe.line("%s = trunc %s %s to i64", tmp, ty, val)
		return tmp, nil
	}
}

// scratch reserves an entry-block stack buffer.
func (fe *funcEmitter) scratch(size, align int) string {
	name := fe.nextTemp()
	fe.allocas = append(fe.allocas, fmt.Sprintf("%s = alloca [%d x i8], align %d", name, size, align))
	return name
}

func trapLabel(code target.TrapCode) string {
	return "trap." + strings.ReplaceAll(code.String(), "-", "_")
}

func (fe *funcEmitter) trapTo(code target.TrapCode) string {
	fe.traps[code] = true
	return trapLabel(code)
}

func (fe *funcEmitter) emitTraps() {
	for _, code := range []target.TrapCode{target.TrapUnreachable, target.TrapOutOfGas, target.TrapAssert} {
		if !fe.traps[code] {
			continue
		}
		fe.label(trapLabel(code))
		fe.line("call void @%s(i32 %d, ptr null)", rtTrap, code)
		fe.line("unreachable")
	}
}

// checkNonZero branches to the assert trap when val is zero.
func (fe *funcEmitter) checkNonZero(ty, val string) {
	c := fe.nextTemp()
	fe.line("%s = icmp eq %s %s, %s", c, ty, val, zeroLiteral(ty))
	ok := fe.nextLabel("ok")
	fe.line("br i1 %s, label %%%s, label %%%s", c, fe.trapTo(target.TrapAssert), ok)
	fe.label(ok)
}

func zeroLiteral(ty string) string {
	if ty == "i1" {
		return "false"
	}
	return "0"
}
