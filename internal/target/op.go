package target

// Code identifies an operation.
type Code uint8

const (
	OpInvalid Code = iota
	OpConst
	OpZero

	OpAdd
	OpSub
	OpMul
	OpUDiv
	OpURem
	OpSDiv
	OpSRem
	OpAnd
	OpOr
	OpXor
	OpShl
	OpLShr
	OpAShr

	OpAddMod
	OpSubMod
	OpMulMod

	OpICmp
	OpSelect
	OpZExt
	OpSExt
	OpTrunc
	OpBitcast

	OpExtract
	OpInsert

	OpAlloc
	OpRealloc
	OpLoad
	OpStore
	OpMemcpy
	OpPtrAdd

	OpCall
	OpRuntimeCall
)

var codeNames = [...]string{
	OpInvalid:     "invalid",
	OpConst:       "const",
	OpZero:        "zero",
	OpAdd:         "add",
	OpSub:         "sub",
	OpMul:         "mul",
	OpUDiv:        "udiv",
	OpURem:        "urem",
	OpSDiv:        "sdiv",
	OpSRem:        "srem",
	OpAnd:         "and",
	OpOr:          "or",
	OpXor:         "xor",
	OpShl:         "shl",
	OpLShr:        "lshr",
	OpAShr:        "ashr",
	OpAddMod:      "addmod",
	OpSubMod:      "submod",
	OpMulMod:      "mulmod",
	OpICmp:        "icmp",
	OpSelect:      "select",
	OpZExt:        "zext",
	OpSExt:        "sext",
	OpTrunc:       "trunc",
	OpBitcast:     "bitcast",
	OpExtract:     "extract",
	OpInsert:      "insert",
	OpAlloc:       "alloc",
	OpRealloc:     "realloc",
	OpLoad:        "load",
	OpStore:       "store",
	OpMemcpy:      "memcpy",
	OpPtrAdd:      "ptradd",
	OpCall:        "call",
	OpRuntimeCall: "call.runtime",
}

func (c Code) String() string {
	if int(c) < len(codeNames) {
		return codeNames[c]
	}
	return "op?"
}

// IsBinary reports two-operand integer arithmetic.
func (c Code) IsBinary() bool { return c >= OpAdd && c <= OpAShr }

// IsModular reports (x, y, m) field arithmetic.
func (c Code) IsModular() bool { return c >= OpAddMod && c <= OpMulMod }

// IsCast reports single-operand width conversions.
func (c Code) IsCast() bool { return c >= OpZExt && c <= OpBitcast }

// HasSideEffects reports ops that must not be removed when unused.
func (c Code) HasSideEffects() bool {
	switch c {
	case OpStore, OpMemcpy, OpCall, OpRuntimeCall:
		return true
	default:
		return false
	}
}

// Pred is an integer comparison predicate.
type Pred uint8

const (
	PredEQ Pred = iota + 1
	PredNE
	PredULT
	PredULE
	PredUGT
	PredUGE
	PredSLT
	PredSLE
	PredSGT
	PredSGE
)

var predNames = [...]string{"", "eq", "ne", "ult", "ule", "ugt", "uge", "slt", "sle", "sgt", "sge"}

func (p Pred) String() string {
	if int(p) < len(predNames) {
		return predNames[p]
	}
	return "pred?"
}

// Op is one operation. Results and Args are value ids of the enclosing
// function.
type Op struct {
	Code    Code      `msgpack:"c"`
	Results []ValueID `msgpack:"r,omitempty"`
	Args    []ValueID `msgpack:"a,omitempty"`
	Type    Type      `msgpack:"t,omitempty"` // result type of single-result ops
	Imm     []byte    `msgpack:"i,omitempty"` // OpConst, little endian
	Pred    Pred      `msgpack:"p,omitempty"`
	Offset  int       `msgpack:"o,omitempty"` // OpExtract, OpInsert
	Callee  string    `msgpack:"f,omitempty"` // OpCall, OpRuntimeCall
}

// TrapCode classifies a trap.
type TrapCode uint8

const (
	TrapUnreachable TrapCode = iota + 1
	TrapOutOfGas
	TrapAssert
)

func (c TrapCode) String() string {
	switch c {
	case TrapUnreachable:
		return "unreachable"
	case TrapOutOfGas:
		return "out-of-gas"
	case TrapAssert:
		return "assert"
	default:
		return "trap?"
	}
}

// TermKind tags a Terminator.
type TermKind uint8

const (
	TermNone TermKind = iota
	TermBr
	TermCondBr
	TermSwitch
	TermReturn
	TermTrap
)

// Edge is a jump to a block passing values for its parameters.
type Edge struct {
	Target BlockID   `msgpack:"t"`
	Args   []ValueID `msgpack:"a,omitempty"`
}

type CondBrTerm struct {
	Cond ValueID `msgpack:"c"`
	Then Edge    `msgpack:"t"`
	Else Edge    `msgpack:"e"`
}

type SwitchCase struct {
	Value uint64 `msgpack:"v"`
	Edge  Edge   `msgpack:"e"`
}

type SwitchTerm struct {
	Value   ValueID      `msgpack:"v"`
	Cases   []SwitchCase `msgpack:"c"`
	Default Edge         `msgpack:"d"`
}

type ReturnTerm struct {
	Values []ValueID `msgpack:"v,omitempty"`
}

type TrapTerm struct {
	Code TrapCode `msgpack:"c"`
	Msg  string   `msgpack:"m,omitempty"`
}

// Terminator ends a block.
type Terminator struct {
	Kind   TermKind   `msgpack:"k"`
	Br     Edge       `msgpack:"br,omitempty"`
	CondBr CondBrTerm `msgpack:"cbr,omitempty"`
	Switch SwitchTerm `msgpack:"sw,omitempty"`
	Return ReturnTerm `msgpack:"ret,omitempty"`
	Trap   TrapTerm   `msgpack:"trap,omitempty"`
}

// Edges returns pointers to every outgoing edge.
func (t *Terminator) Edges() []*Edge {
	switch t.Kind {
	case TermBr:
		return []*Edge{&t.Br}
	case TermCondBr:
		return []*Edge{&t.CondBr.Then, &t.CondBr.Else}
	case TermSwitch:
		out := make([]*Edge, 0, len(t.Switch.Cases)+1)
		for i := range t.Switch.Cases {
			out = append(out, &t.Switch.Cases[i].Edge)
		}
		return append(out, &t.Switch.Default)
	default:
		return nil
	}
}

// Uses returns pointers to every value the terminator reads.
func (t *Terminator) Uses() []*ValueID {
	var out []*ValueID
	switch t.Kind {
	case TermCondBr:
		out = append(out, &t.CondBr.Cond)
	case TermSwitch:
		out = append(out, &t.Switch.Value)
	case TermReturn:
		for i := range t.Return.Values {
			out = append(out, &t.Return.Values[i])
		}
	}
	for _, e := range t.Edges() {
		for i := range e.Args {
			out = append(out, &e.Args[i])
		}
	}
	return out
}
