package libfuncs

import (
	"sierranative/internal/metadata"
	"sierranative/internal/registry"
	"sierranative/internal/sierra"
)

// Print is print: writes an array of felts through the debug hook.
func Print(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
	if err := ctx.ExpectArgs(args, 0); err != nil {
		return nil, err
	}
	f, err := feltType(ctx)
	if err != nil {
		return nil, err
	}
	arr, err := wrap(ctx, "Array", f)
	if err != nil {
		return nil, err
	}
	return simple("print", types(arr), nil, func(c *registry.LibfuncContext) error {
		hook, err := c.Runtime(metadata.RtDebugPrint)
		if err != nil {
			return err
		}
		metadata.GetOrInsertWith(c.Metadata, metadata.NewDebugUtils).Use("print")
		c.B.RuntimeCall(hook, c.Args[0])
		return c.Br(0)
	}), nil
}
