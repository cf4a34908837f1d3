package layout

import (
	"errors"
	"sync"

	"sierranative/internal/sierra"
)

// TypeLayout is the ABI layout of a type for a specific Target.
type TypeLayout struct {
	Size  int
	Align int

	// Struct-only:
	FieldOffsets []int

	// Enum-only:
	TagSize       int
	PayloadOffset int
	Variants      int
}

// Stride is the distance between consecutive array elements.
func (l TypeLayout) Stride() int {
	return roundUp(l.Size, maxInt(1, l.Align))
}

// Resolver computes the layout of a single type, asking c for the layouts of
// its components.
type Resolver interface {
	ComputeLayout(c *Context, id sierra.TypeID) (TypeLayout, error)
}

// Engine computes and caches memory layouts.
type Engine struct {
	Target Target

	mu       sync.Mutex
	resolver Resolver
	cache    *cache
}

// New creates a new Engine for the specified target.
func New(target Target, r Resolver) *Engine {
	return &Engine{
		Target:   target,
		resolver: r,
		cache:    newCache(),
	}
}

// Context is handed to the resolver during one LayoutOf call.
type Context struct {
	engine *Engine
	stack  []sierra.TypeID
	index  map[uint64]int
}

// Target returns the engine's target.
func (c *Context) Target() Target { return c.engine.Target }

// LayoutOf computes the layout of a component type.
func (c *Context) LayoutOf(id sierra.TypeID) (TypeLayout, error) {
	l, err := c.engine.layoutOf(id, c)
	if err != nil {
		return l, err
	}
	return l, nil
}

// LayoutOf computes and caches the layout of a type.
func (e *Engine) LayoutOf(id sierra.TypeID) (TypeLayout, error) {
	if e == nil {
		return TypeLayout{Size: 0, Align: 1}, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cache == nil {
		e.cache = newCache()
	}
	state := &Context{engine: e, index: make(map[uint64]int, 32)}
	layout, err := e.layoutOf(id, state)
	if err != nil {
		return layout, err
	}
	return layout, nil
}

// Cached reports how many layouts are cached.
func (e *Engine) Cached() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cache.len()
}

func (e *Engine) layoutOf(id sierra.TypeID, state *Context) (TypeLayout, *LayoutError) {
	if cached, ok := e.cache.get(id); ok {
		return cached.Layout, cached.Err
	}

	if idx, ok := state.index[id.ID]; ok {
		cycle := append([]sierra.TypeID(nil), state.stack[idx:]...)
		cycle = append(cycle, id)
		err := &LayoutError{
			Kind:  LayoutErrRecursiveUnsized,
			Type:  id,
			Cycle: cycle,
		}
		e.cache.put(id, &cacheEntry{Layout: TypeLayout{Size: 0, Align: 1}, Err: err})
		return TypeLayout{Size: 0, Align: 1}, err
	}
	if e.resolver == nil {
		return TypeLayout{Size: 0, Align: 1}, &LayoutError{Kind: LayoutErrUnknownType, Type: id}
	}

	state.index[id.ID] = len(state.stack)
	state.stack = append(state.stack, id)
	layout, rerr := e.resolver.ComputeLayout(state, id)
	state.stack = state.stack[:len(state.stack)-1]
	delete(state.index, id.ID)

	var lerr *LayoutError
	if rerr != nil && !errors.As(rerr, &lerr) {
		lerr = &LayoutError{Kind: LayoutErrResolver, Type: id, Err: rerr}
	}
	if lerr != nil {
		layout = TypeLayout{Size: 0, Align: 1}
	}
	e.cache.put(id, &cacheEntry{Layout: layout, Err: lerr})
	return layout, lerr
}

// SizeOf returns the size of a type in bytes.
func (e *Engine) SizeOf(t sierra.TypeID) (int, error) {
	l, err := e.LayoutOf(t)
	return l.Size, err
}

// AlignOf returns the alignment requirement of a type in bytes.
func (e *Engine) AlignOf(t sierra.TypeID) (int, error) {
	l, err := e.LayoutOf(t)
	return l.Align, err
}

// FieldOffset returns the byte offset of a struct field.
func (e *Engine) FieldOffset(structT sierra.TypeID, fieldIdx int) (int, error) {
	l, err := e.LayoutOf(structT)
	if err != nil {
		return 0, err
	}
	if fieldIdx < 0 || fieldIdx >= len(l.FieldOffsets) {
		return 0, nil
	}
	return l.FieldOffsets[fieldIdx], nil
}
