// Package gas computes the gas metadata of a program: what every
// checkpoint withdraws, where runtime checks are injected, the entry cost
// and worst case of every function, and the ap change of every function.
package gas

import (
	"fmt"
	"slices"

	"sierranative/internal/gas/cost"
	"sierranative/internal/metadata"
	"sierranative/internal/registry"
	"sierranative/internal/sierra"
)

// Options configures the analysis.
type Options struct {
	// Table prices generic libfuncs; nil selects cost.DefaultTable.
	Table *cost.Table
	// Disabled skips pricing: every charge is zero.
	Disabled bool
	// DynamicCosts enables refunds at redeposit_gas of gas charged for the
	// worst branch but not spent on the branch taken.
	DynamicCosts bool
}

// Metadata is the result of the analysis. It is immutable once computed.
type Metadata struct {
	Weights cost.Vector

	// Costs holds the weighted cost of every branch of every reachable
	// statement.
	Costs map[sierra.StatementIdx][]int64
	// Need is the prepaid amount required before a statement runs.
	Need map[sierra.StatementIdx]int64
	// Charges are withdrawn at checkpoints on success.
	Charges map[sierra.StatementIdx]uint64
	// Injected statements get a runtime check-and-deduct of the amount.
	Injected map[sierra.StatementIdx]uint64
	// Refunds are returned at redeposit_gas statements.
	Refunds map[sierra.StatementIdx]uint64

	// Statements lists the reachable statements of every function.
	Statements map[uint64][]sierra.StatementIdx

	EntryCost map[uint64]uint64
	WorstCase map[uint64]uint64
	Unbounded map[uint64]bool
	ApChange  map[uint64]registry.ApChange
	UsesGas   bool
}

func (*Metadata) MetadataKind() metadata.Kind { return metadata.KindGasMetadata }

func (m *Metadata) Charge(_ sierra.FunctionID, stmt sierra.StatementIdx) uint64 {
	return m.Charges[stmt]
}

func (m *Metadata) Refund(_ sierra.FunctionID, stmt sierra.StatementIdx) uint64 {
	return m.Refunds[stmt]
}

func (m *Metadata) InjectedAt(_ sierra.FunctionID, stmt sierra.StatementIdx) (uint64, bool) {
	v, ok := m.Injected[stmt]
	return v, ok
}

// RequiredInitialGas is the gas an invocation of fn must bring.
func (m *Metadata) RequiredInitialGas(fn sierra.FunctionID) uint64 {
	return m.EntryCost[fn.ID]
}

// WorstCaseOf returns the worst-case total of fn; ok is false when the
// function loops or recurses.
func (m *Metadata) WorstCaseOf(fn sierra.FunctionID) (uint64, bool) {
	if m.Unbounded[fn.ID] {
		return 0, false
	}
	return m.WorstCase[fn.ID], true
}

// Report is one line of a pre-flight cost report.
type Report struct {
	Function     sierra.FunctionID
	EntryCost    uint64
	WorstCase    uint64
	Unbounded    bool
	Checkpoints  int
	InjectedHere int
	ApChange     registry.ApChange
}

// Reports summarizes every function of p in id order.
func (m *Metadata) Reports(p *sierra.Program) []Report {
	out := make([]Report, 0, len(p.Funcs))
	for i := range p.Funcs {
		fn := &p.Funcs[i]
		r := Report{
			Function:  fn.ID,
			EntryCost: m.EntryCost[fn.ID.ID],
			WorstCase: m.WorstCase[fn.ID.ID],
			Unbounded: m.Unbounded[fn.ID.ID],
			ApChange:  m.ApChange[fn.ID.ID],
		}
		for _, idx := range m.Statements[fn.ID.ID] {
			if _, ok := m.Charges[idx]; ok {
				r.Checkpoints++
			}
			if _, ok := m.Injected[idx]; ok {
				r.InjectedHere++
			}
		}
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b Report) int {
		switch {
		case a.Function.ID < b.Function.ID:
			return -1
		case a.Function.ID > b.Function.ID:
			return 1
		}
		return 0
	})
	return out
}

func (a Report) String() string {
	wc := fmt.Sprint(a.WorstCase)
	if a.Unbounded {
		wc = "unbounded"
	}
	ap := "unknown"
	if a.ApChange.Kind == registry.ApKnown {
		ap = fmt.Sprint(a.ApChange.N)
	}
	return fmt.Sprintf("%s: entry=%d worst=%s checkpoints=%d injected=%d ap=%s",
		a.Function, a.EntryCost, wc, a.Checkpoints, a.InjectedHere, ap)
}
