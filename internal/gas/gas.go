package gas

import (
	"fmt"
	"math"

	"fortio.org/safecast"

	"sierranative/internal/cfg"
	"sierranative/internal/dag"
	"sierranative/internal/errs"
	"sierranative/internal/gas/cost"
	"sierranative/internal/registry"
	"sierranative/internal/sierra"
)

// Compute builds the statement graph of every function and runs the
// analysis over them.
func Compute(r *registry.Registry, opts Options) (*Metadata, error) {
	p := r.Program()
	graphs := make(map[uint64]*cfg.Graph, len(p.Funcs))
	for i := range p.Funcs {
		g, err := cfg.Build(r, &p.Funcs[i])
		if err != nil {
			return nil, err
		}
		graphs[p.Funcs[i].ID.ID] = g
	}
	return ComputeGraphs(r, graphs, opts)
}

// ComputeGraphs runs the analysis over prebuilt statement graphs, one per
// function of r's program.
func ComputeGraphs(r *registry.Registry, graphs map[uint64]*cfg.Graph, opts Options) (*Metadata, error) {
	table := opts.Table
	if table == nil {
		table = cost.DefaultTable()
	}
	if err := table.Validate(); err != nil {
		return nil, &errs.GasMetadataError{Kind: errs.GasMalformedCostTable, Detail: err.Error()}
	}
	a := &analyzer{
		r:      r,
		opts:   opts,
		table:  table,
		graphs: graphs,
		md: &Metadata{
			Weights:    table.Weights,
			Costs:      make(map[sierra.StatementIdx][]int64),
			Need:       make(map[sierra.StatementIdx]int64),
			Charges:    make(map[sierra.StatementIdx]uint64),
			Injected:   make(map[sierra.StatementIdx]uint64),
			Refunds:    make(map[sierra.StatementIdx]uint64),
			Statements: make(map[uint64][]sierra.StatementIdx),
			EntryCost:  make(map[uint64]uint64),
			WorstCase:  make(map[uint64]uint64),
			Unbounded:  make(map[uint64]bool),
			ApChange:   make(map[uint64]registry.ApChange),
		},
		entryCost: make(map[uint64]int64),
		worst:     make(map[uint64]int64),
		recursive: make(map[uint64]bool),
	}
	p := r.Program()
	for i := range p.Funcs {
		fn := &p.Funcs[i]
		if graphs[fn.ID.ID] == nil {
			return nil, errs.NativeAssertf("no statement graph for %s", fn.ID)
		}
		a.funcs = append(a.funcs, fn)
		a.md.Statements[fn.ID.ID] = graphs[fn.ID.ID].Order
	}

	a.detectUsage()
	a.metering = a.md.UsesGas && !opts.Disabled
	for _, fn := range a.funcs {
		if err := a.price(fn); err != nil {
			return nil, err
		}
	}
	order, err := a.callOrder()
	if err != nil {
		return nil, err
	}
	for _, fn := range order {
		if err := a.function(fn); err != nil {
			return nil, err
		}
		if err := a.apChange(fn); err != nil {
			return nil, err
		}
	}
	return a.md, nil
}

type analyzer struct {
	r        *registry.Registry
	opts     Options
	table    *cost.Table
	graphs   map[uint64]*cfg.Graph
	funcs    []*sierra.Function
	md       *Metadata
	metering bool

	entryCost map[uint64]int64
	worst     map[uint64]int64
	recursive map[uint64]bool
	callees   map[uint64][]uint64
}

func (a *analyzer) isGas(t sierra.TypeID) bool {
	info, err := a.r.TypeInfo(t)
	return err == nil && info.Kind == registry.TypeGasBuiltin
}

func (a *analyzer) liveGas(s cfg.State) bool {
	for _, t := range s {
		if a.isGas(t) {
			return true
		}
	}
	return false
}

func (a *analyzer) detectUsage() {
	for _, fn := range a.funcs {
		for _, prm := range fn.Params {
			if a.isGas(prm.Type) {
				a.md.UsesGas = true
				return
			}
		}
		g := a.graphs[fn.ID.ID]
		for _, idx := range g.Order {
			if n := g.Node(idx); n.Libfunc != nil && n.Libfunc.Class().IsCheckpoint() {
				a.md.UsesGas = true
				return
			}
		}
	}
}

// price weights the table entry of every invocation. Missing entries only
// matter when the program is metered.
func (a *analyzer) price(fn *sierra.Function) error {
	g := a.graphs[fn.ID.ID]
	for _, idx := range g.Order {
		n := g.Node(idx)
		if n.Libfunc == nil {
			continue
		}
		if _, done := a.md.Costs[idx]; done {
			continue
		}
		costs := make([]int64, len(n.Edges))
		gid := n.Libfunc.GenericID()
		vs, found, err := a.table.Lookup(gid, len(n.Edges))
		switch {
		case err != nil:
			return &errs.GasMetadataError{Kind: errs.GasMalformedCostTable, Function: fn.ID.String(), Statement: int(idx), Detail: err.Error()}
		case !found && a.metering:
			return &errs.GasMetadataError{
				Kind:      errs.GasMissingCostEntry,
				Function:  fn.ID.String(),
				Statement: int(idx),
				Detail:    fmt.Sprintf("%s (%s)", gid, n.Stmt.Invocation.Libfunc),
			}
		case found:
			for bi, v := range vs {
				costs[bi] = v.Total(a.table.Weights)
			}
		}
		a.md.Costs[idx] = costs
	}
	return nil
}

func calleeOf(n *cfg.Node) (uint64, bool) {
	if n.Libfunc == nil {
		return 0, false
	}
	c, ok := n.Libfunc.(registry.Caller)
	if !ok {
		return 0, false
	}
	return c.Callee().ID, true
}

// callOrder finds recursive functions and orders the rest callee first.
// Recursive functions are checked at their entry, so callers see an entry
// cost of zero and the call graph edges into them are dropped.
func (a *analyzer) callOrder() ([]*sierra.Function, error) {
	index := make(map[uint64]int, len(a.funcs))
	for i, fn := range a.funcs {
		index[fn.ID.ID] = i
	}
	a.callees = make(map[uint64][]uint64, len(a.funcs))
	for _, fn := range a.funcs {
		g := a.graphs[fn.ID.ID]
		for _, idx := range g.Order {
			if callee, ok := calleeOf(g.Node(idx)); ok {
				if _, known := index[callee]; !known {
					return nil, &errs.CompilerError{Kind: errs.CompilerUndeclaredFunction, ID: fmt.Sprintf("[%d]", callee)}
				}
				a.callees[fn.ID.ID] = append(a.callees[fn.ID.ID], callee)
			}
		}
	}
	for _, fn := range a.funcs {
		if !a.reaches(fn.ID.ID, fn.ID.ID) {
			continue
		}
		a.recursive[fn.ID.ID] = true
		a.md.Unbounded[fn.ID.ID] = true
		if !a.metering {
			continue
		}
		g := a.graphs[fn.ID.ID]
		if !a.liveGas(g.Node(fn.Entry).State) {
			return nil, &errs.GasMetadataError{
				Kind:      errs.GasMalformedCycle,
				Function:  fn.ID.String(),
				Statement: int(fn.Entry),
				Detail:    "recursive function has no gas builtin to check",
			}
		}
	}

	cg := dag.New(len(a.funcs))
	for _, fn := range a.funcs {
		for _, callee := range a.callees[fn.ID.ID] {
			if a.recursive[callee] {
				continue
			}
			cg.AddEdge(nodeID(index[callee]), nodeID(index[fn.ID.ID]))
		}
	}
	topo := dag.ToposortKahn(cg)
	if topo.Cyclic {
		return nil, errs.NativeAssertf("call graph still cyclic after cutting recursion: %v", topo.Cycles)
	}
	out := make([]*sierra.Function, 0, len(topo.Order))
	for _, id := range topo.Order {
		out = append(out, a.funcs[id])
	}
	return out, nil
}

func (a *analyzer) reaches(from, to uint64) bool {
	seen := map[uint64]bool{}
	stack := append([]uint64(nil), a.callees[from]...)
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f == to {
			return true
		}
		if seen[f] {
			continue
		}
		seen[f] = true
		stack = append(stack, a.callees[f]...)
	}
	return false
}

func nodeID(i int) dag.NodeID {
	id, err := safecast.Conv[dag.NodeID](i)
	if err != nil {
		panic(errs.NativeAssertf("statement count overflow: %v", err))
	}
	return id
}

func toUint(v int64) uint64 {
	if v <= 0 {
		return 0
	}
	return uint64(v)
}

// funcView indexes the reachable statements of one function.
type funcView struct {
	fn    *sierra.Function
	g     *cfg.Graph
	idx   []sierra.StatementIdx
	local map[sierra.StatementIdx]int
}

func newView(fn *sierra.Function, g *cfg.Graph) *funcView {
	v := &funcView{fn: fn, g: g, idx: g.Order, local: make(map[sierra.StatementIdx]int, len(g.Order))}
	for i, s := range g.Order {
		v.local[s] = i
	}
	return v
}

func (v *funcView) node(i int) *cfg.Node { return v.g.Node(v.idx[i]) }

// dependsOn reports whether the prepaid amount of a statement includes the
// amount needed at branch b. Checkpoint successes withdraw it instead.
func dependsOn(n *cfg.Node, b int) bool {
	return !(n.Libfunc != nil && n.Libfunc.Class().IsCheckpoint() && b == 0)
}

// branchCost is the weighted cost of branch b including the entry cost of
// a called function.
func (a *analyzer) branchCost(n *cfg.Node, b int) int64 {
	if !a.metering {
		return 0
	}
	c := a.md.Costs[n.Idx][b]
	if callee, ok := calleeOf(n); ok && !a.recursive[callee] {
		c += a.entryCost[callee]
	}
	return c
}

func (a *analyzer) function(fn *sierra.Function) error {
	v := newView(fn, a.graphs[fn.ID.ID])
	n := len(v.idx)

	cut := a.cutLoops(v)
	if a.recursive[fn.ID.ID] && a.metering {
		cut[v.local[fn.Entry]] = true
	}
	for i := range n {
		if !cut[i] {
			continue
		}
		a.md.Unbounded[fn.ID.ID] = true
		if !a.metering {
			continue
		}
		if !a.liveGas(v.node(i).State) {
			return &errs.GasMetadataError{
				Kind:      errs.GasMalformedCycle,
				Function:  fn.ID.String(),
				Statement: int(v.idx[i]),
				Detail:    "loop without a gas builtin cannot be metered",
			}
		}
	}

	// Branch targets are ordered before their sources.
	dg := dag.New(n)
	for i := range n {
		node := v.node(i)
		for b, e := range node.Edges {
			t := v.local[e.Target]
			if dependsOn(node, b) && !cut[t] {
				dg.AddEdge(nodeID(t), nodeID(i))
			}
		}
	}
	topo := dag.ToposortKahn(dg)
	if topo.Cyclic {
		return errs.NativeAssertf("%s: statement graph still cyclic after cutting loops", fn.ID)
	}

	need := make([]int64, n)
	seen := func(i int) int64 {
		if cut[i] {
			return 0
		}
		return need[i]
	}
	for _, id := range topo.Order {
		i := int(id)
		node := v.node(i)
		if node.IsReturn() {
			continue
		}
		var best int64
		for b, e := range node.Edges {
			c := a.branchCost(node, b)
			if dependsOn(node, b) {
				c += seen(v.local[e.Target])
			}
			best = max(best, c)
		}
		need[i] = best
	}

	for i := range n {
		node := v.node(i)
		a.md.Need[v.idx[i]] = need[i]
		if cut[i] {
			a.md.Injected[v.idx[i]] = toUint(need[i])
		}
		if node.Libfunc != nil && node.Libfunc.Class().IsCheckpoint() {
			a.md.Charges[v.idx[i]] = toUint(seen(v.local[node.Edges[0].Target]))
		}
	}
	entry := v.local[fn.Entry]
	a.entryCost[fn.ID.ID] = seen(entry)
	a.md.EntryCost[fn.ID.ID] = toUint(seen(entry))

	if a.opts.DynamicCosts && a.metering {
		a.refunds(v, cut, need, topo.Order)
	}
	a.worstCase(v)
	return nil
}

// cutLoops runs a depth-first search over the dependency edges and marks
// the target of every back edge. Edges into marked statements are dropped,
// which leaves the dependency graph acyclic.
func (a *analyzer) cutLoops(v *funcView) []bool {
	n := len(v.idx)
	deps := make([][]int, n)
	for i := range n {
		node := v.node(i)
		for b, e := range node.Edges {
			if dependsOn(node, b) {
				deps[i] = append(deps[i], v.local[e.Target])
			}
		}
	}
	const (
		white = iota
		grey
		black
	)
	color := make([]uint8, n)
	cut := make([]bool, n)
	type frame struct{ v, next int }
	roots := append([]int{v.local[v.fn.Entry]}, rangeN(n)...)
	for _, root := range roots {
		if color[root] != white {
			continue
		}
		color[root] = grey
		stack := []frame{{v: root}}
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.next < len(deps[top.v]) {
				w := deps[top.v][top.next]
				top.next++
				switch color[w] {
				case white:
					color[w] = grey
					stack = append(stack, frame{v: w})
				case grey:
					cut[w] = true
				}
				continue
			}
			color[top.v] = black
			stack = stack[:len(stack)-1]
		}
	}
	return cut
}

func rangeN(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// refunds propagates the amount known to be prepaid forward and returns the
// excess at redeposit_gas statements.
func (a *analyzer) refunds(v *funcView, cut []bool, need []int64, reverse []dag.NodeID) {
	n := len(v.idx)
	const none = math.MaxInt64
	avail := make([]int64, n)
	for i := range avail {
		avail[i] = none
	}
	offer := func(i int, x int64) {
		avail[i] = min(avail[i], x)
	}
	offer(v.local[v.fn.Entry], need[v.local[v.fn.Entry]])
	for i := range n {
		if cut[i] {
			offer(i, need[i])
		}
		node := v.node(i)
		if node.Libfunc != nil && node.Libfunc.Class().IsCheckpoint() {
			t := v.local[node.Edges[0].Target]
			offer(t, need[t])
		}
	}
	for k := len(reverse) - 1; k >= 0; k-- {
		i := int(reverse[k])
		if avail[i] == none {
			continue
		}
		node := v.node(i)
		if node.IsReturn() {
			continue
		}
		have := avail[i]
		if node.Libfunc.Class() == registry.ClassRedepositGas {
			a.md.Refunds[v.idx[i]] = toUint(have - need[i])
			have = need[i]
		}
		for b, e := range node.Edges {
			t := v.local[e.Target]
			if !dependsOn(node, b) || cut[t] {
				continue
			}
			offer(t, have-a.branchCost(node, b))
		}
	}
}

// worstCase is the longest path through the full statement graph. Loops,
// recursion and unbounded callees make it unbounded.
func (a *analyzer) worstCase(v *funcView) {
	id := v.fn.ID.ID
	if a.md.Unbounded[id] {
		return
	}
	n := len(v.idx)
	full := dag.New(n)
	for i := range n {
		for _, e := range v.node(i).Edges {
			full.AddEdge(nodeID(v.local[e.Target]), nodeID(i))
		}
	}
	topo := dag.ToposortKahn(full)
	if topo.Cyclic {
		a.md.Unbounded[id] = true
		return
	}
	total := make([]int64, n)
	for _, nid := range topo.Order {
		i := int(nid)
		node := v.node(i)
		if node.IsReturn() {
			continue
		}
		var best int64
		for b, e := range node.Edges {
			c := a.md.Costs[node.Idx][b]
			if callee, ok := calleeOf(node); ok {
				if a.md.Unbounded[callee] {
					a.md.Unbounded[id] = true
					return
				}
				c += a.worst[callee]
			}
			best = max(best, c+total[v.local[e.Target]])
		}
		total[i] = best
	}
	a.worst[id] = total[v.local[v.fn.Entry]]
	a.md.WorstCase[id] = toUint(a.worst[id])
}
