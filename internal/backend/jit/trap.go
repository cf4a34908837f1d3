package jit

import (
	"fmt"
	"strings"

	"sierranative/internal/target"
)

// Trap is an abort raised by the program: a trap terminator, a division by
// zero or a call nested deeper than the Env allows.
type Trap struct {
	Code target.TrapCode
	Msg  string
	Func string
	// Backtrace lists the calling functions, innermost first.
	Backtrace []string
}

func (t *Trap) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "trap %s in %s", t.Code, t.Func)
	if t.Msg != "" {
		sb.WriteString(": ")
		sb.WriteString(t.Msg)
	}
	return sb.String()
}

// IsOutOfGas reports an out of gas trap.
func (t *Trap) IsOutOfGas() bool { return t.Code == target.TrapOutOfGas }

func trapf(code target.TrapCode, fn string, format string, args ...any) *Trap {
	return &Trap{Code: code, Func: fn, Msg: fmt.Sprintf(format, args...)}
}
