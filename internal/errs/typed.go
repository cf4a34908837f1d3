package errs

import (
	"fmt"
	"math/big"
	"path/filepath"
	"runtime"
)

// CompilerErrorKind enumerates failures reported while building the registry
// or lowering a program.
type CompilerErrorKind uint8

const (
	CompilerUndeclaredType CompilerErrorKind = iota + 1
	CompilerUndeclaredLibfunc
	CompilerUndeclaredFunction
	CompilerDuplicateType
	CompilerDuplicateLibfunc
	CompilerDuplicateFunction
	CompilerCyclicType
	CompilerMissingBuilder
	CompilerInvalidGenericArgs
	CompilerTypeBuilder
	CompilerLibfuncBuilder
	CompilerBoundedIntOutOfRange
	CompilerStageMisuse
)

// CompilerError names the declaration (by id) that caused the failure.
type CompilerError struct {
	Kind  CompilerErrorKind
	ID    string
	Value *big.Int // BoundedIntOutOfRange
	Lo    *big.Int
	Hi    *big.Int
	Err   error
}

func (e *CompilerError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case CompilerUndeclaredType:
		return fmt.Sprintf("undeclared type %s", e.ID)
	case CompilerUndeclaredLibfunc:
		return fmt.Sprintf("undeclared libfunc %s", e.ID)
	case CompilerUndeclaredFunction:
		return fmt.Sprintf("undeclared function %s", e.ID)
	case CompilerDuplicateType:
		return fmt.Sprintf("type %s declared more than once", e.ID)
	case CompilerDuplicateLibfunc:
		return fmt.Sprintf("libfunc %s declared more than once", e.ID)
	case CompilerDuplicateFunction:
		return fmt.Sprintf("function %s declared more than once", e.ID)
	case CompilerCyclicType:
		return fmt.Sprintf("type %s is part of a declaration cycle", e.ID)
	case CompilerMissingBuilder:
		return fmt.Sprintf("no builder registered for %s", e.ID)
	case CompilerInvalidGenericArgs:
		if e.Err != nil {
			return fmt.Sprintf("invalid generic arguments for %s: %v", e.ID, e.Err)
		}
		return fmt.Sprintf("invalid generic arguments for %s", e.ID)
	case CompilerTypeBuilder:
		return fmt.Sprintf("error building type %s: %v", e.ID, e.Err)
	case CompilerLibfuncBuilder:
		return fmt.Sprintf("error building libfunc %s: %v", e.ID, e.Err)
	case CompilerBoundedIntOutOfRange:
		return fmt.Sprintf("value %s is out of range [%s, %s)", e.Value, e.Lo, e.Hi)
	case CompilerStageMisuse:
		return fmt.Sprintf("compiler misuse: %v", e.Err)
	default:
		return fmt.Sprintf("compiler error kind=%d id=%s", e.Kind, e.ID)
	}
}

func (e *CompilerError) Unwrap() error   { return e.Err }
func (e *CompilerError) ErrorKind() Kind { return KindCompiler }

// GasErrorKind enumerates gas metadata computation failures.
type GasErrorKind uint8

const (
	GasInconsistentApChange GasErrorKind = iota + 1
	GasMissingCostEntry
	GasMalformedCycle
	GasMalformedCostTable
)

// GasMetadataError is reported by the gas analysis.
type GasMetadataError struct {
	Kind      GasErrorKind
	Function  string
	Statement int
	Detail    string
}

func (e *GasMetadataError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case GasInconsistentApChange:
		return fmt.Sprintf("inconsistent ap change at statement #%d in %s: %s", e.Statement, e.Function, e.Detail)
	case GasMissingCostEntry:
		return fmt.Sprintf("missing cost entry for %s", e.Detail)
	case GasMalformedCycle:
		return fmt.Sprintf("malformed cycle in %s at statement #%d: %s", e.Function, e.Statement, e.Detail)
	case GasMalformedCostTable:
		return fmt.Sprintf("malformed cost table: %s", e.Detail)
	default:
		return fmt.Sprintf("gas metadata error kind=%d", e.Kind)
	}
}

func (e *GasMetadataError) ErrorKind() Kind { return KindGasMetadata }

// SierraAssertKind enumerates violations of Sierra-level invariants.
type SierraAssertKind uint8

const (
	SierraAssertCast SierraAssertKind = iota + 1
	SierraAssertRange
	SierraAssertBadTypeInit
	SierraAssertBadTypeInfo
	SierraAssertImpossibleCircuit
)

// SierraAssertError reports an input program that violates a Sierra
// invariant the validator should have caught.
type SierraAssertError struct {
	Kind   SierraAssertKind
	Type   string
	Detail string
}

func (e *SierraAssertError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var what string
	switch e.Kind {
	case SierraAssertCast:
		what = "casts always happen between numerical types"
	case SierraAssertRange:
		what = "range should always intersect"
	case SierraAssertBadTypeInit:
		what = "type should never be initialized"
	case SierraAssertBadTypeInfo:
		what = "expected type information was missing"
	case SierraAssertImpossibleCircuit:
		what = "circuit cannot be evaluated"
	default:
		what = fmt.Sprintf("sierra assert kind=%d", e.Kind)
	}
	if e.Type != "" {
		what += " (" + e.Type + ")"
	}
	if e.Detail != "" {
		what += ": " + e.Detail
	}
	return what
}

func (e *SierraAssertError) ErrorKind() Kind { return KindSierraAssert }

// NativeAssertError is an internal consistency failure of the compiler
// itself. File and Line point at the assertion site.
type NativeAssertError struct {
	Msg  string
	File string
	Line int
}

func (e *NativeAssertError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.File == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s (at %s:%d)", e.Msg, e.File, e.Line)
}

func (e *NativeAssertError) ErrorKind() Kind { return KindNativeAssert }

// NativeAssertf records the caller's location.
func NativeAssertf(format string, args ...any) *NativeAssertError {
	err := &NativeAssertError{Msg: fmt.Sprintf(format, args...)}
	if _, file, line, ok := runtime.Caller(1); ok {
		err.File = filepath.Base(file)
		err.Line = line
	}
	return err
}

// EditStateKind enumerates variable-state violations.
type EditStateKind uint8

const (
	EditMissingVariable EditStateKind = iota + 1
	EditVariableOverride
	EditUnconsumedVariable
	EditInconsistentState
	EditTypeMismatch
)

// EditStateError reports a malformed variable flow at a statement.
type EditStateError struct {
	Kind      EditStateKind
	Function  string
	Statement int
	Var       uint64
	Detail    string
}

func (e *EditStateError) Error() string {
	if e == nil {
		return "<nil>"
	}
	loc := fmt.Sprintf("%s statement #%d", e.Function, e.Statement)
	switch e.Kind {
	case EditMissingVariable:
		return fmt.Sprintf("%s: variable [%d] is not available", loc, e.Var)
	case EditVariableOverride:
		return fmt.Sprintf("%s: variable [%d] is already defined", loc, e.Var)
	case EditUnconsumedVariable:
		return fmt.Sprintf("%s: variable [%d] is not consumed before return", loc, e.Var)
	case EditInconsistentState:
		return fmt.Sprintf("%s: inconsistent variable state at join: %s", loc, e.Detail)
	case EditTypeMismatch:
		return fmt.Sprintf("%s: variable [%d] has the wrong type: %s", loc, e.Var, e.Detail)
	default:
		return fmt.Sprintf("%s: edit state error kind=%d", loc, e.Kind)
	}
}

func (e *EditStateError) ErrorKind() Kind { return KindEditState }
