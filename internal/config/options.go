package config

import (
	"fmt"

	"sierranative/internal/gas"
	"sierranative/internal/gas/cost"
	"sierranative/internal/target"
)

// GasOptions configures the gas analysis.
type GasOptions struct {
	Disabled     bool
	DynamicCosts bool
	// Costs overrides entries of the default cost table by generic id.
	Costs map[string][]cost.Vector
}

// CompileOptions are the options of one compilation. They are part of the
// cache key of a compiled program.
type CompileOptions struct {
	OptLevel OptLevel
	Gas      GasOptions
}

// DefaultCompileOptions compiles at OptDefault with metering on.
func DefaultCompileOptions() CompileOptions {
	return CompileOptions{OptLevel: OptDefault}
}

// Table is the default cost table with the overrides applied.
func (g GasOptions) Table() *cost.Table {
	t := cost.DefaultTable()
	for id, vs := range g.Costs {
		t.Set(id, vs...)
	}
	return t
}

// Analysis converts the options for gas.Compute.
func (g GasOptions) Analysis() gas.Options {
	return gas.Options{Table: g.Table(), Disabled: g.Disabled, DynamicCosts: g.DynamicCosts}
}

// Fingerprint is a stable rendering of the options for cache keys.
func (o CompileOptions) Fingerprint() string {
	s := fmt.Sprintf("O%d;gas=%t,%t", o.OptLevel.Index(), o.Gas.Disabled, o.Gas.DynamicCosts)
	for _, id := range sortedKeys(o.Gas.Costs) {
		s += ";" + id + "="
		for _, v := range o.Gas.Costs[id] {
			s += v.String()
		}
	}
	return s
}

// Passes maps the level to target optimizations.
func (o CompileOptions) Passes() target.Passes {
	return target.Passes{
		SimplifyCFG: o.OptLevel >= OptLess,
		DCE:         o.OptLevel >= OptDefault,
		ConstFold:   o.OptLevel >= OptAggressive,
	}
}
