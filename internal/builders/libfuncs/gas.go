package libfuncs

import (
	"sierranative/internal/registry"
	"sierranative/internal/sierra"
	"sierranative/internal/target"
)

func gasTypes(ctx *registry.SpecializationContext) (rc, gas sierra.TypeID, err error) {
	if rc, err = ctx.FindType("RangeCheck"); err != nil {
		return
	}
	gas, err = ctx.FindType("GasBuiltin")
	return
}

// withdraw deducts the statement's charge when enough gas is left. The
// success branch comes first.
func withdraw(c *registry.LibfuncContext) error {
	rc := bump(c, c.Args[0], 1)
	gas := c.Args[1]
	amount := i64(c, c.Charge())
	ok := c.B.ICmp(target.PredUGE, gas, amount)
	left := c.B.Sub(gas, amount)
	return c.CondBr(ok, 0, []target.ValueID{rc, left}, 1, []target.ValueID{rc, gas})
}

// WithdrawGas is withdraw_gas.
func WithdrawGas(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
	if err := ctx.ExpectArgs(args, 0); err != nil {
		return nil, err
	}
	rc, gas, err := gasTypes(ctx)
	if err != nil {
		return nil, err
	}
	l := branching("withdraw_gas", types(rc, gas), []registry.BranchSignature{branch(rc, gas), branch(rc, gas)}, withdraw)
	l.class = registry.ClassWithdrawGas
	return l, nil
}

// WithdrawGasAll is withdraw_gas_all, which also takes the builtin cost
// table.
func WithdrawGasAll(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
	if err := ctx.ExpectArgs(args, 0); err != nil {
		return nil, err
	}
	rc, gas, err := gasTypes(ctx)
	if err != nil {
		return nil, err
	}
	costs, err := ctx.FindType("BuiltinCosts")
	if err != nil {
		return nil, err
	}
	l := branching("withdraw_gas_all", types(rc, gas, costs), []registry.BranchSignature{branch(rc, gas), branch(rc, gas)}, withdraw)
	l.class = registry.ClassWithdrawGasAll
	return l, nil
}

// RedepositGas is redeposit_gas.
func RedepositGas(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
	if err := ctx.ExpectArgs(args, 0); err != nil {
		return nil, err
	}
	gas, err := ctx.FindType("GasBuiltin")
	if err != nil {
		return nil, err
	}
	l := simple("redeposit_gas", types(gas), types(gas), func(c *registry.LibfuncContext) error {
		refund := c.Refund()
		if refund == 0 {
			return c.Br(0, c.Args[0])
		}
		return c.Br(0, c.B.Add(c.Args[0], i64(c, refund)))
	})
	l.class = registry.ClassRedepositGas
	return l, nil
}

// GetAvailableGas is get_available_gas.
func GetAvailableGas(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
	if err := ctx.ExpectArgs(args, 0); err != nil {
		return nil, err
	}
	gas, err := ctx.FindType("GasBuiltin")
	if err != nil {
		return nil, err
	}
	u128, err := ctx.FindType("u128")
	if err != nil {
		return nil, err
	}
	return simple("get_available_gas", types(gas), types(gas, u128), func(c *registry.LibfuncContext) error {
		return c.Br(0, c.Args[0], c.B.ZExt(c.Args[0], target.I128))
	}), nil
}

// GetBuiltinCosts is get_builtin_costs. The handle is opaque; charges are
// computed statically.
func GetBuiltinCosts(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
	if err := ctx.ExpectArgs(args, 0); err != nil {
		return nil, err
	}
	costs, err := ctx.FindType("BuiltinCosts")
	if err != nil {
		return nil, err
	}
	return simple("get_builtin_costs", nil, types(costs), func(c *registry.LibfuncContext) error {
		return c.Br(0, i64(c, 0))
	}), nil
}
