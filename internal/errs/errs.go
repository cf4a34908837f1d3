// Package errs defines the error taxonomy shared by the compiler, the
// executor and the cache.
//
// Low-level causes are wrapped into mid-level typed errors (CompilerError,
// GasMetadataError, SierraAssertError, NativeAssertError, EditStateError),
// which in turn are wrapped into a single top-level Error carrying a Kind.
// The original cause is always reachable through errors.Unwrap.
package errs

import (
	"errors"
	"fmt"
)

// Kind tags the top-level error.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindLayout
	KindTarget
	KindMissingParameter
	KindUnexpectedValue
	KindMissingSyscallHandler
	KindProgramRegistry
	KindIntegerConversion
	KindParseAttribute
	KindMissingMetadata
	KindSierraAssert
	KindNativeAssert
	KindCompiler
	KindEditState
	KindGasMetadata
	KindBackendCompile
	KindLink
	KindConstDataMismatch
	KindIntegerLikeTypeExpected
	KindMissingBuiltinCostsSymbol
	KindSelectorNotFound
	KindIO
	KindLibraryLoad
	KindSerialization
)

var kindNames = [...]string{
	KindUnknown:                   "unknown",
	KindLayout:                    "layout",
	KindTarget:                    "target",
	KindMissingParameter:          "missing-parameter",
	KindUnexpectedValue:           "unexpected-value",
	KindMissingSyscallHandler:     "missing-syscall-handler",
	KindProgramRegistry:           "program-registry",
	KindIntegerConversion:         "integer-conversion",
	KindParseAttribute:            "parse-attribute",
	KindMissingMetadata:           "missing-metadata",
	KindSierraAssert:              "sierra-assert",
	KindNativeAssert:              "native-assert",
	KindCompiler:                  "compiler",
	KindEditState:                 "edit-state",
	KindGasMetadata:               "gas-metadata",
	KindBackendCompile:            "backend-compile",
	KindLink:                      "link",
	KindConstDataMismatch:         "const-data-mismatch",
	KindIntegerLikeTypeExpected:   "integer-like-type-expected",
	KindMissingBuiltinCostsSymbol: "missing-builtin-costs-symbol",
	KindSelectorNotFound:          "selector-not-found",
	KindIO:                        "io",
	KindLibraryLoad:               "library-load",
	KindSerialization:             "serialization",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Kinded is implemented by typed errors that know their top-level kind.
type Kinded interface {
	ErrorKind() Kind
}

// Error is the top-level error returned by public entry points.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch {
	case e.Msg != "" && e.Cause != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	case e.Cause != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || t == nil {
		return false
	}
	return t.Kind == e.Kind && t.Msg == "" && t.Cause == nil
}

// New builds a top-level error without a cause.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Sentinel returns a bare error of the given kind, usable with errors.Is.
func Sentinel(kind Kind) error {
	return &Error{Kind: kind}
}

// KindOf returns the kind of the outermost *Error in err's chain, or the kind
// the conversion table assigns to it.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return classify(err)
}

// Wrap converts err into a top-level *Error. Wrapping an *Error returns it
// unchanged; nil stays nil.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: classify(err), Cause: err}
}

// Wrapf is Wrap with a message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	kind := KindOf(err)
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Cause: err}
}

// MissingParameter reports a type parameter that a builder required.
func MissingParameter(typeName string) *Error {
	return New(KindMissingParameter, "missing parameter of type %s", typeName)
}
