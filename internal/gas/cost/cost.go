// Package cost defines gas cost tokens and the per-libfunc cost table.
package cost

import (
	"fmt"
	"sort"
	"strings"
)

// Token is a cost dimension. Const is plain gas, the rest count builtin usage.
type Token uint8

const (
	Const Token = iota
	Pedersen
	Bitwise
	EcOp
	Poseidon
	AddMod
	MulMod

	NumTokens = int(MulMod) + 1
)

var tokenNames = [...]string{"const", "pedersen", "bitwise", "ec_op", "poseidon", "add_mod", "mul_mod"}

func (t Token) String() string {
	if int(t) < len(tokenNames) {
		return tokenNames[t]
	}
	return fmt.Sprintf("Token(%d)", t)
}

// ParseToken resolves a token by name.
func ParseToken(s string) (Token, bool) {
	for i, n := range tokenNames {
		if n == s {
			return Token(i), true
		}
	}
	return 0, false
}

// Vector holds an amount per token.
type Vector [NumTokens]int64

// Of builds a const-only vector.
func Of(c int64) Vector {
	var v Vector
	v[Const] = c
	return v
}

func (v Vector) Add(w Vector) Vector {
	for i := range v {
		v[i] += w[i]
	}
	return v
}

func (v Vector) IsZero() bool { return v == Vector{} }

// Total weights every token and sums.
func (v Vector) Total(weights Vector) int64 {
	var sum int64
	for i := range v {
		sum += v[i] * weights[i]
	}
	return sum
}

func (v Vector) String() string {
	var parts []string
	for i, x := range v {
		if x != 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", Token(i), x))
		}
	}
	if len(parts) == 0 {
		return "{}"
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// DefaultWeights are the gas prices of one unit of each token.
var DefaultWeights = Vector{
	Const:    1,
	Pedersen: 4050,
	Bitwise:  583,
	EcOp:     4085,
	Poseidon: 491,
	AddMod:   230,
	MulMod:   604,
}

// Entry is the cost of one generic libfunc. A single vector applies to every
// branch; otherwise there is one vector per branch.
type Entry struct {
	Branches []Vector
}

// Table maps generic libfunc ids to costs.
type Table struct {
	Weights Vector
	entries map[string]Entry
}

// NewTable returns an empty table with default weights.
func NewTable() *Table {
	return &Table{Weights: DefaultWeights, entries: make(map[string]Entry)}
}

// Set replaces the entry for genericID.
func (t *Table) Set(genericID string, branches ...Vector) {
	t.entries[genericID] = Entry{Branches: branches}
}

// SetConst sets a const-only cost applying to every branch.
func (t *Table) SetConst(genericID string, c int64) {
	t.Set(genericID, Of(c))
}

// Has reports whether genericID has an entry.
func (t *Table) Has(genericID string) bool {
	_, ok := t.entries[genericID]
	return ok
}

// Lookup returns one vector per branch.
func (t *Table) Lookup(genericID string, branches int) ([]Vector, bool, error) {
	e, ok := t.entries[genericID]
	if !ok {
		return nil, false, nil
	}
	switch {
	case len(e.Branches) == 1:
		out := make([]Vector, branches)
		for i := range out {
			out[i] = e.Branches[0]
		}
		return out, true, nil
	case len(e.Branches) == branches:
		return append([]Vector(nil), e.Branches...), true, nil
	default:
		return nil, true, fmt.Errorf("%s has %d cost branches, libfunc has %d", genericID, len(e.Branches), branches)
	}
}

// Validate rejects negative costs and empty entries.
func (t *Table) Validate() error {
	for _, id := range t.IDs() {
		e := t.entries[id]
		if len(e.Branches) == 0 {
			return fmt.Errorf("%s has no cost branches", id)
		}
		for bi, v := range e.Branches {
			for ti, x := range v {
				if x < 0 {
					return fmt.Errorf("%s branch %d: negative %s cost %d", id, bi, Token(ti), x)
				}
			}
		}
	}
	for ti, w := range t.Weights {
		if w < 0 {
			return fmt.Errorf("negative weight for %s", Token(ti))
		}
	}
	return nil
}

// IDs returns the sorted generic ids with entries.
func (t *Table) IDs() []string {
	ids := make([]string, 0, len(t.entries))
	for id := range t.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone copies the table.
func (t *Table) Clone() *Table {
	out := &Table{Weights: t.Weights, entries: make(map[string]Entry, len(t.entries))}
	for k, e := range t.entries {
		out.entries[k] = Entry{Branches: append([]Vector(nil), e.Branches...)}
	}
	return out
}
