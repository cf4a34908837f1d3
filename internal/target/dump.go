package target

import (
	"fmt"
	"io"
	"strings"
)

// Dump writes a readable listing of the module.
func Dump(w io.Writer, m *Module) error {
	var sb strings.Builder
	for _, d := range m.Runtime {
		fmt.Fprintf(&sb, "declare @%s(%s) -> (%s)\n", d.Name, joinTypes(d.Params), joinTypes(d.Results))
	}
	if len(m.Runtime) > 0 {
		sb.WriteByte('\n')
	}
	for i, f := range m.Funcs {
		if i > 0 {
			sb.WriteByte('\n')
		}
		dumpFunc(&sb, f)
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// String renders one function.
func (f *Func) String() string {
	var sb strings.Builder
	dumpFunc(&sb, f)
	return sb.String()
}

func dumpFunc(sb *strings.Builder, f *Func) {
	vis := "func"
	if f.Public {
		vis = "pub func"
	}
	fmt.Fprintf(sb, "%s @%s(%s) -> (%s) {\n", vis, f.Name, joinTypes(f.Params), joinTypes(f.Results))
	for i := range f.Blocks {
		bb := &f.Blocks[i]
		params := make([]string, len(bb.Params))
		for pi, p := range bb.Params {
			params[pi] = fmt.Sprintf("%%%d: %s", p, f.TypeOf(p))
		}
		marker := ""
		if bb.ID == f.Entry {
			marker = " ; entry"
		}
		fmt.Fprintf(sb, "bb%d(%s):%s\n", bb.ID, strings.Join(params, ", "), marker)
		for _, op := range bb.Ops {
			sb.WriteString("  ")
			sb.WriteString(formatOp(f, &op))
			sb.WriteByte('\n')
		}
		sb.WriteString("  ")
		sb.WriteString(formatTerm(&bb.Term))
		sb.WriteByte('\n')
	}
	sb.WriteString("}\n")
}

func formatOp(f *Func, op *Op) string {
	var sb strings.Builder
	if len(op.Results) > 0 {
		sb.WriteString(joinValues(op.Results))
		sb.WriteString(" = ")
	}
	sb.WriteString(op.Code.String())
	switch op.Code {
	case OpConst:
		z := LoadUint256(op.Imm)
		fmt.Fprintf(&sb, " %s %s", op.Type, z.Dec())
		return sb.String()
	case OpICmp:
		fmt.Fprintf(&sb, " %s", op.Pred)
	case OpCall, OpRuntimeCall:
		fmt.Fprintf(&sb, " @%s", op.Callee)
	case OpExtract, OpInsert:
		fmt.Fprintf(&sb, " +%d", op.Offset)
	}
	if op.Type.Kind != TyNone {
		fmt.Fprintf(&sb, " %s", op.Type)
	}
	if len(op.Args) > 0 {
		sb.WriteString(" ")
		sb.WriteString(joinValues(op.Args))
	}
	return sb.String()
}

func formatEdge(e Edge) string {
	return fmt.Sprintf("bb%d(%s)", e.Target, joinValues(e.Args))
}

func formatTerm(t *Terminator) string {
	switch t.Kind {
	case TermBr:
		return "br " + formatEdge(t.Br)
	case TermCondBr:
		return fmt.Sprintf("condbr %%%d, %s, %s", t.CondBr.Cond, formatEdge(t.CondBr.Then), formatEdge(t.CondBr.Else))
	case TermSwitch:
		cases := make([]string, len(t.Switch.Cases))
		for i, c := range t.Switch.Cases {
			cases[i] = fmt.Sprintf("%d: %s", c.Value, formatEdge(c.Edge))
		}
		return fmt.Sprintf("switch %%%d [%s], default %s", t.Switch.Value, strings.Join(cases, ", "), formatEdge(t.Switch.Default))
	case TermReturn:
		return "ret " + joinValues(t.Return.Values)
	case TermTrap:
		if t.Trap.Msg != "" {
			return fmt.Sprintf("trap %s %q", t.Trap.Code, t.Trap.Msg)
		}
		return "trap " + t.Trap.Code.String()
	default:
		return "<unterminated>"
	}
}

func joinTypes(ts []Type) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}

func joinValues(vs []ValueID) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = fmt.Sprintf("%%%d", v)
	}
	return strings.Join(parts, ", ")
}
