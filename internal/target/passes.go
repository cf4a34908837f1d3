package target

import "github.com/holiman/uint256"

// Passes selects the optimizations run by Optimize.
type Passes struct {
	SimplifyCFG bool
	DCE         bool
	ConstFold   bool
}

// Optimize runs the selected passes on every function.
func Optimize(m *Module, p Passes) {
	if m == nil {
		return
	}
	for _, f := range m.Funcs {
		if p.ConstFold {
			ConstFold(f)
		}
		if p.SimplifyCFG || p.ConstFold {
			SimplifyCFG(f)
			MergeLinear(f)
		}
		if p.DCE {
			DCE(f)
		}
	}
}

// DCE removes side-effect free ops whose results are never used.
func DCE(f *Func) int {
	uses := make([]int, len(f.Values))
	for i := range f.Blocks {
		bb := &f.Blocks[i]
		for _, op := range bb.Ops {
			for _, a := range op.Args {
				uses[a]++
			}
		}
		for _, u := range bb.Term.Uses() {
			uses[*u]++
		}
	}

	removed := 0
	for changed := true; changed; {
		changed = false
		for i := range f.Blocks {
			bb := &f.Blocks[i]
			kept := bb.Ops[:0]
			for _, op := range bb.Ops {
				if !op.Code.HasSideEffects() && allUnused(op.Results, uses) {
					for _, a := range op.Args {
						uses[a]--
					}
					removed++
					changed = true
					continue
				}
				kept = append(kept, op)
			}
			bb.Ops = kept
		}
	}
	return removed
}

func allUnused(results []ValueID, uses []int) bool {
	for _, r := range results {
		if uses[r] > 0 {
			return false
		}
	}
	return true
}

// ConstFold evaluates integer ops whose operands are constants and resolves
// branches on constant conditions.
func ConstFold(f *Func) int {
	consts := make(map[ValueID]uint256.Int)
	repl := newReplacer()
	folded := 0

	lookup := func(v ValueID) (uint256.Int, bool) {
		c, ok := consts[repl.find(v)]
		return c, ok
	}
	toConst := func(op *Op, z uint256.Int) {
		img := make([]byte, op.Type.StoreSize())
		PutUint256(img, &z)
		*op = Op{Code: OpConst, Results: op.Results, Type: op.Type, Imm: img}
		consts[op.Results[0]] = z
		folded++
	}

	for changed := true; changed; {
		changed = false
		for i := range f.Blocks {
			bb := &f.Blocks[i]
			for oi := range bb.Ops {
				op := &bb.Ops[oi]
				if op.Code == OpConst {
					if _, seen := consts[op.Results[0]]; !seen && op.Type.IsInt() {
						consts[op.Results[0]] = LoadUint256(op.Imm)
					}
					continue
				}
				if !op.Type.IsInt() && op.Code != OpSelect {
					continue
				}
				switch {
				case op.Code.IsBinary():
					x, okx := lookup(op.Args[0])
					y, oky := lookup(op.Args[1])
					if !okx || !oky {
						continue
					}
					if z, ok := EvalBinary(op.Code, op.Type.Bits, &x, &y); ok {
						toConst(op, z)
						changed = true
					}
				case op.Code == OpICmp:
					t := f.TypeOf(op.Args[0])
					x, okx := lookup(op.Args[0])
					y, oky := lookup(op.Args[1])
					if !okx || !oky || !t.IsInt() {
						continue
					}
					var z uint256.Int
					if EvalICmp(op.Pred, t.Bits, &x, &y) {
						z.SetOne()
					}
					toConst(op, z)
					changed = true
				case op.Code == OpZExt || op.Code == OpSExt || op.Code == OpTrunc:
					from := f.TypeOf(op.Args[0])
					x, ok := lookup(op.Args[0])
					if !ok || !from.IsInt() {
						continue
					}
					toConst(op, EvalCast(op.Code, from.Bits, op.Type.Bits, &x))
					changed = true
				case op.Code == OpSelect:
					c, ok := lookup(op.Args[0])
					if !ok {
						continue
					}
					pick := op.Args[2]
					if !c.IsZero() {
						pick = op.Args[1]
					}
					if repl.find(op.Results[0]) != repl.find(pick) {
						repl.set(op.Results[0], pick)
						changed = true
					}
				}
			}
		}
	}
	repl.apply(f)

	for i := range f.Blocks {
		term := &f.Blocks[i].Term
		switch term.Kind {
		case TermCondBr:
			c, ok := consts[term.CondBr.Cond]
			if !ok {
				continue
			}
			edge := term.CondBr.Else
			if !c.IsZero() {
				edge = term.CondBr.Then
			}
			*term = Terminator{Kind: TermBr, Br: edge}
			folded++
		case TermSwitch:
			c, ok := consts[term.Switch.Value]
			if !ok || !c.IsUint64() {
				continue
			}
			edge := term.Switch.Default
			for _, sc := range term.Switch.Cases {
				if sc.Value == c.Uint64() {
					edge = sc.Edge
					break
				}
			}
			*term = Terminator{Kind: TermBr, Br: edge}
			folded++
		}
	}
	return folded
}
