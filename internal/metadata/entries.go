package metadata

import (
	"math/big"
	"slices"

	"sierranative/internal/felt"
	"sierranative/internal/gas/cost"
	"sierranative/internal/sierra"
)

// GasInfo is the view of the gas analysis that libfunc builders need. The
// gas package stores its result under KindGasMetadata.
type GasInfo interface {
	Entry
	// Charge is the amount withdrawn at a checkpoint statement.
	Charge(fn sierra.FunctionID, stmt sierra.StatementIdx) uint64
	// Refund is the amount returned by redeposit_gas at stmt.
	Refund(fn sierra.FunctionID, stmt sierra.StatementIdx) uint64
	// Injected reports statements that get a runtime check before execution.
	InjectedAt(fn sierra.FunctionID, stmt sierra.StatementIdx) (uint64, bool)
}

// Gas returns the stored gas analysis.
func Gas(s *Storage) (GasInfo, bool) {
	e, ok := s.entries[KindGasMetadata]
	if !ok {
		return nil, false
	}
	return mustCast[GasInfo](KindGasMetadata, e), true
}

// SnapshotClones maps types that need generated clone code to the name of
// their clone function.
type SnapshotClones struct {
	funcs map[uint64]string
}

func (*SnapshotClones) MetadataKind() Kind { return KindSnapshotClones }

func NewSnapshotClones() *SnapshotClones {
	return &SnapshotClones{funcs: make(map[uint64]string)}
}

// Lookup returns the clone function registered for t.
func (c *SnapshotClones) Lookup(t sierra.TypeID) (string, bool) {
	name, ok := c.funcs[t.ID]
	return name, ok
}

// Register records the clone function of t. The first registration wins.
func (c *SnapshotClones) Register(t sierra.TypeID, name string) string {
	if prev, ok := c.funcs[t.ID]; ok {
		return prev
	}
	c.funcs[t.ID] = name
	return name
}

func (c *SnapshotClones) Len() int { return len(c.funcs) }

// DebugUtils records the debug hooks a program uses.
type DebugUtils struct {
	hooks map[string]bool
}

func (*DebugUtils) MetadataKind() Kind { return KindDebugUtils }

func NewDebugUtils() *DebugUtils { return &DebugUtils{hooks: make(map[string]bool)} }

// Use marks a hook as used.
func (d *DebugUtils) Use(hook string) { d.hooks[hook] = true }

// Used lists the hooks in order.
func (d *DebugUtils) Used() []string {
	out := make([]string, 0, len(d.hooks))
	for h := range d.hooks {
		out = append(out, h)
	}
	slices.Sort(out)
	return out
}

// PrimeModulo holds the field prime used by felt252 arithmetic.
type PrimeModulo struct {
	Prime *big.Int
}

func (*PrimeModulo) MetadataKind() Kind { return KindPrimeModulo }

func NewPrimeModulo() *PrimeModulo { return &PrimeModulo{Prime: felt.Prime()} }

// BuiltinCosts holds the token weights charged by withdraw_gas_all.
type BuiltinCosts struct {
	Weights cost.Vector
}

func (*BuiltinCosts) MetadataKind() Kind { return KindBuiltinCosts }

// NewBuiltinCosts copies the weights of a cost table.
func NewBuiltinCosts(w cost.Vector) *BuiltinCosts { return &BuiltinCosts{Weights: w} }
