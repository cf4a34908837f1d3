package target

import "fmt"

type (
	BlockID int32
	ValueID int32
)

// NoValue is the zero ValueID sentinel; value 0 is valid, so -1 marks absence.
const NoValue ValueID = -1

// Block is a basic block with parameters.
type Block struct {
	ID     BlockID    `msgpack:"id"`
	Params []ValueID  `msgpack:"params,omitempty"`
	Ops    []Op       `msgpack:"ops,omitempty"`
	Term   Terminator `msgpack:"term"`
}

func (b *Block) Terminated() bool {
	if b == nil {
		return true
	}
	return b.Term.Kind != TermNone
}

// Func is a function. The entry block's parameters are the arguments.
type Func struct {
	Name    string  `msgpack:"name"`
	Params  []Type  `msgpack:"params,omitempty"`
	Results []Type  `msgpack:"results,omitempty"`
	Values  []Type  `msgpack:"values"`
	Blocks  []Block `msgpack:"blocks"`
	Entry   BlockID `msgpack:"entry"`
	Public  bool    `msgpack:"public,omitempty"`
}

// TypeOf returns the type of v.
func (f *Func) TypeOf(v ValueID) Type {
	if v < 0 || int(v) >= len(f.Values) {
		return Type{}
	}
	return f.Values[v]
}

// Block returns the block with id.
func (f *Func) Block(id BlockID) *Block {
	if id < 0 || int(id) >= len(f.Blocks) {
		return nil
	}
	return &f.Blocks[id]
}

// RuntimeDecl declares a host function the module may call.
type RuntimeDecl struct {
	Name    string `msgpack:"name"`
	Params  []Type `msgpack:"params,omitempty"`
	Results []Type `msgpack:"results,omitempty"`
}

// Module is a compilation unit.
type Module struct {
	Name    string        `msgpack:"name"`
	Funcs   []*Func       `msgpack:"funcs"`
	Runtime []RuntimeDecl `msgpack:"runtime,omitempty"`
}

// NewModule returns an empty module.
func NewModule(name string) *Module {
	return &Module{Name: name}
}

// Func looks a function up by name.
func (m *Module) Func(name string) (*Func, bool) {
	for _, f := range m.Funcs {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// AddFunc creates a function with an entry block holding one parameter per
// argument.
func (m *Module) AddFunc(name string, params, results []Type) (*Func, error) {
	if _, ok := m.Func(name); ok {
		return nil, fmt.Errorf("function %s already defined", name)
	}
	f := &Func{
		Name:    name,
		Params:  append([]Type(nil), params...),
		Results: append([]Type(nil), results...),
	}
	b := NewBuilder(f)
	f.Entry = b.NewBlock(params...)
	m.Funcs = append(m.Funcs, f)
	return f, nil
}

// Declare adds a runtime declaration once.
func (m *Module) Declare(d RuntimeDecl) {
	if _, ok := m.RuntimeDecl(d.Name); ok {
		return
	}
	m.Runtime = append(m.Runtime, d)
}

// RuntimeDecl looks a runtime declaration up.
func (m *Module) RuntimeDecl(name string) (RuntimeDecl, bool) {
	for _, d := range m.Runtime {
		if d.Name == name {
			return d, true
		}
	}
	return RuntimeDecl{}, false
}
