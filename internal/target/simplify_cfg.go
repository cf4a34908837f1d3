package target

// SimplifyCFG performs control flow graph simplification on a function.
// Transformations:
// 1. Forward jumps through trivial blocks (no ops, unconditional br)
// 2. Remove unreachable blocks
// 3. Renumber blocks deterministically
func SimplifyCFG(f *Func) {
	if f == nil || len(f.Blocks) == 0 {
		return
	}

	// Phase 1: Redirect edges that land on trivial blocks
	applyRedirects(f)

	// Phase 2: Compute reachability and remove dead blocks
	reachable := computeReachability(f)

	// Phase 3: Compact and renumber blocks
	compactBlocks(f, reachable)
}

// isTrivialBrBlock checks if a block only forwards to another block.
func isTrivialBrBlock(f *Func, id BlockID) bool {
	bb := f.Block(id)
	if bb == nil || id == f.Entry {
		return false
	}
	return len(bb.Ops) == 0 && bb.Term.Kind == TermBr && bb.Term.Br.Target != id
}

// forward follows trivial blocks from e, substituting block parameters with
// the values passed along the way.
func forward(f *Func, e Edge) Edge {
	visited := make(map[BlockID]bool)
	for isTrivialBrBlock(f, e.Target) && !visited[e.Target] {
		visited[e.Target] = true
		bb := f.Block(e.Target)
		subst := make(map[ValueID]ValueID, len(bb.Params))
		for i, p := range bb.Params {
			if i < len(e.Args) {
				subst[p] = e.Args[i]
			}
		}
		next := Edge{Target: bb.Term.Br.Target, Args: make([]ValueID, len(bb.Term.Br.Args))}
		for i, a := range bb.Term.Br.Args {
			if s, ok := subst[a]; ok {
				a = s
			}
			next.Args[i] = a
		}
		e = next
	}
	return e
}

// applyRedirects rewrites every edge to skip trivial blocks.
func applyRedirects(f *Func) {
	for i := range f.Blocks {
		for _, e := range f.Blocks[i].Term.Edges() {
			*e = forward(f, *e)
		}
	}
}

// computeReachability performs a DFS from the entry block to find
// all reachable blocks.
func computeReachability(f *Func) []bool {
	reachable := make([]bool, len(f.Blocks))

	var visit func(id BlockID)
	visit = func(id BlockID) {
		if id < 0 || int(id) >= len(f.Blocks) || reachable[id] {
			return
		}
		reachable[id] = true
		for _, e := range f.Blocks[id].Term.Edges() {
			visit(e.Target)
		}
	}

	visit(f.Entry)
	return reachable
}

// compactBlocks removes unreachable blocks and renumbers the remaining ones.
func compactBlocks(f *Func, reachable []bool) {
	count := 0
	for _, r := range reachable {
		if r {
			count++
		}
	}

	if count == len(f.Blocks) {
		for i := range f.Blocks {
			f.Blocks[i].ID = BlockID(i) //nolint:gosec // bounded by existing block count
		}
		return
	}

	oldToNew := make(map[BlockID]BlockID, count)
	newBlocks := make([]Block, 0, count)
	for i, keep := range reachable {
		if keep {
			oldToNew[BlockID(i)] = BlockID(len(newBlocks)) //nolint:gosec // bounded by block count
			newBlocks = append(newBlocks, f.Blocks[i])
		}
	}

	for i := range newBlocks {
		newBlocks[i].ID = BlockID(i) //nolint:gosec // bounded by newBlocks length
		for _, e := range newBlocks[i].Term.Edges() {
			if id, ok := oldToNew[e.Target]; ok {
				e.Target = id
			}
		}
	}

	f.Blocks = newBlocks
	f.Entry = oldToNew[f.Entry]
}

// predecessorCounts counts incoming edges per block.
func predecessorCounts(f *Func) []int {
	preds := make([]int, len(f.Blocks))
	for i := range f.Blocks {
		for _, e := range f.Blocks[i].Term.Edges() {
			if int(e.Target) < len(preds) {
				preds[e.Target]++
			}
		}
	}
	return preds
}

// MergeLinear folds every block with a single predecessor that reaches it
// by an unconditional jump into that predecessor, so that straight-line
// code ends up in one block.
func MergeLinear(f *Func) {
	if f == nil || len(f.Blocks) == 0 {
		return
	}
	SimplifyCFG(f)
	preds := predecessorCounts(f)
	repl := newReplacer()
	merged := make([]bool, len(f.Blocks))

	for i := range f.Blocks {
		p := &f.Blocks[i]
		if merged[i] {
			continue
		}
		for p.Term.Kind == TermBr {
			t := p.Term.Br.Target
			if t == p.ID || t == f.Entry || preds[t] != 1 || merged[t] {
				break
			}
			succ := &f.Blocks[t]
			for pi, param := range succ.Params {
				repl.set(param, p.Term.Br.Args[pi])
			}
			p.Ops = append(p.Ops, succ.Ops...)
			p.Term = succ.Term
			succ.Ops = nil
			succ.Term = Terminator{Kind: TermTrap, Trap: TrapTerm{Code: TrapUnreachable}}
			merged[t] = true
		}
	}
	repl.apply(f)
	compactBlocks(f, computeReachability(f))
}

type replacer struct {
	m map[ValueID]ValueID
}

func newReplacer() *replacer { return &replacer{m: make(map[ValueID]ValueID)} }

func (r *replacer) set(from, to ValueID) {
	if from != to {
		r.m[from] = to
	}
}

func (r *replacer) find(v ValueID) ValueID {
	seen := 0
	for {
		next, ok := r.m[v]
		if !ok || seen > len(r.m) {
			return v
		}
		v = next
		seen++
	}
}

func (r *replacer) apply(f *Func) {
	if len(r.m) == 0 {
		return
	}
	for i := range f.Blocks {
		bb := &f.Blocks[i]
		for oi := range bb.Ops {
			args := bb.Ops[oi].Args
			for ai := range args {
				args[ai] = r.find(args[ai])
			}
		}
		for _, u := range bb.Term.Uses() {
			*u = r.find(*u)
		}
	}
}
