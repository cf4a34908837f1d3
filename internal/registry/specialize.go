package registry

import (
	"fmt"
	"math/big"

	"sierranative/internal/errs"
	"sierranative/internal/sierra"
)

// SpecializationContext is the view of a partially built registry handed to
// factories. During type specialization only already resolved types are
// visible.
type SpecializationContext struct {
	r      *Registry
	declID string
	self   sierra.TypeID
}

// Self is the id of the type being specialized.
func (c *SpecializationContext) Self() sierra.TypeID { return c.self }

// DeclID is the declaration being specialized.
func (c *SpecializationContext) DeclID() string { return c.declID }

// Program returns the program.
func (c *SpecializationContext) Program() *sierra.Program { return c.r.program }

// TypeInfo returns the description of an already specialized type.
func (c *SpecializationContext) TypeInfo(id sierra.TypeID) (TypeInfo, error) {
	return c.r.TypeInfo(id)
}

// Function returns a user function.
func (c *SpecializationContext) Function(id sierra.FunctionID) (*sierra.Function, error) {
	return c.r.Function(id)
}

// FindType resolves the declared type for a generic id and args, failing
// when the program does not declare it.
func (c *SpecializationContext) FindType(genericID string, args ...sierra.GenericArg) (sierra.TypeID, error) {
	id, ok := c.r.FindType(genericID, args...)
	if !ok {
		name := genericID
		if len(args) > 0 {
			name += "<"
			for i, a := range args {
				if i > 0 {
					name += ", "
				}
				name += a.String()
			}
			name += ">"
		}
		return sierra.TypeID{}, &errs.CompilerError{Kind: errs.CompilerUndeclaredType, ID: name}
	}
	return id, nil
}

// Invalid reports malformed generic arguments of the current declaration.
func (c *SpecializationContext) Invalid(format string, args ...any) error {
	return &errs.CompilerError{
		Kind: errs.CompilerInvalidGenericArgs,
		ID:   c.declID,
		Err:  fmt.Errorf(format, args...),
	}
}

// TypeArg extracts a type argument.
func (c *SpecializationContext) TypeArg(args []sierra.GenericArg, i int) (sierra.TypeID, error) {
	if i >= len(args) || args[i].Kind != sierra.ArgType {
		return sierra.TypeID{}, c.Invalid("argument %d must be a type", i)
	}
	return args[i].Type, nil
}

// ValueArg extracts an integer argument.
func (c *SpecializationContext) ValueArg(args []sierra.GenericArg, i int) (*big.Int, error) {
	if i >= len(args) || args[i].Kind != sierra.ArgValue || args[i].Value == nil {
		return nil, c.Invalid("argument %d must be a value", i)
	}
	return new(big.Int).Set(args[i].Value), nil
}

// ExpectArgs checks the argument count.
func (c *SpecializationContext) ExpectArgs(args []sierra.GenericArg, n int) error {
	if len(args) != n {
		return c.Invalid("expected %d generic arguments, got %d", n, len(args))
	}
	return nil
}
