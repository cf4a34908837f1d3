// Package sierra holds the program model consumed by the compiler.
//
// A Program is immutable once handed to the compiler: declarations are
// resolved by id, statements are addressed by index.
package sierra

import (
	"fmt"
	"math/big"
)

// ID is the common shape of every declaration id.
type ID struct {
	ID        uint64 `msgpack:"id"`
	DebugName string `msgpack:"name,omitempty"`
}

func (id ID) String() string {
	if id.DebugName != "" {
		return id.DebugName
	}
	return fmt.Sprintf("[%d]", id.ID)
}

type (
	TypeID     ID
	LibfuncID  ID
	FunctionID ID
	UserTypeID ID
)

func (id TypeID) String() string     { return ID(id).String() }
func (id LibfuncID) String() string  { return ID(id).String() }
func (id FunctionID) String() string { return ID(id).String() }
func (id UserTypeID) String() string { return ID(id).String() }

// Symbol is the name of the compiled function in the target module.
func (id FunctionID) Symbol() string {
	if id.DebugName != "" {
		return id.DebugName
	}
	return fmt.Sprintf("f%d", id.ID)
}

// VarID names a variable within a function.
type VarID uint64

func (v VarID) String() string { return fmt.Sprintf("[%d]", uint64(v)) }

// StatementIdx addresses a statement in Program.Statements.
type StatementIdx int

// ArgKind tags a generic argument.
type ArgKind uint8

const (
	ArgType ArgKind = iota + 1
	ArgValue
	ArgUserType
	ArgUserFunc
	ArgLibfunc
)

// GenericArg is one argument of a generic type or libfunc.
type GenericArg struct {
	Kind     ArgKind    `msgpack:"k"`
	Type     TypeID     `msgpack:"t,omitempty"`
	Value    *big.Int   `msgpack:"-"`
	UserType UserTypeID `msgpack:"u,omitempty"`
	UserFunc FunctionID `msgpack:"f,omitempty"`
	Libfunc  LibfuncID  `msgpack:"l,omitempty"`
}

func TypeArg(id TypeID) GenericArg         { return GenericArg{Kind: ArgType, Type: id} }
func ValueArg(v *big.Int) GenericArg       { return GenericArg{Kind: ArgValue, Value: v} }
func UserTypeArg(id UserTypeID) GenericArg { return GenericArg{Kind: ArgUserType, UserType: id} }
func UserFuncArg(id FunctionID) GenericArg { return GenericArg{Kind: ArgUserFunc, UserFunc: id} }

// Equal compares arguments by kind and id or value.
func (a GenericArg) Equal(b GenericArg) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case ArgType:
		return a.Type.ID == b.Type.ID
	case ArgValue:
		av, bv := a.Value, b.Value
		if av == nil {
			av = new(big.Int)
		}
		if bv == nil {
			bv = new(big.Int)
		}
		return av.Cmp(bv) == 0
	case ArgUserType:
		return a.UserType.ID == b.UserType.ID
	case ArgUserFunc:
		return a.UserFunc.ID == b.UserFunc.ID
	case ArgLibfunc:
		return a.Libfunc.ID == b.Libfunc.ID
	default:
		return true
	}
}

func (a GenericArg) String() string {
	switch a.Kind {
	case ArgType:
		return a.Type.String()
	case ArgValue:
		if a.Value == nil {
			return "0"
		}
		return a.Value.String()
	case ArgUserType:
		return "ut@" + a.UserType.String()
	case ArgUserFunc:
		return "user@" + a.UserFunc.String()
	case ArgLibfunc:
		return "lib@" + a.Libfunc.String()
	default:
		return "?"
	}
}

// TypeDeclaration binds a concrete type id to a generic constructor.
type TypeDeclaration struct {
	ID        TypeID       `msgpack:"id"`
	GenericID string       `msgpack:"generic"`
	Args      []GenericArg `msgpack:"args,omitempty"`
}

// LibfuncDeclaration binds a concrete libfunc id to a generic constructor.
type LibfuncDeclaration struct {
	ID        LibfuncID    `msgpack:"id"`
	GenericID string       `msgpack:"generic"`
	Args      []GenericArg `msgpack:"args,omitempty"`
}

// BranchTarget is either the next statement or an explicit index.
type BranchTarget struct {
	Fallthrough bool         `msgpack:"ft,omitempty"`
	Statement   StatementIdx `msgpack:"st,omitempty"`
}

// Resolve returns the statement index the branch continues at.
func (t BranchTarget) Resolve(from StatementIdx) StatementIdx {
	if t.Fallthrough {
		return from + 1
	}
	return t.Statement
}

// BranchInfo describes one outgoing branch of an invocation.
type BranchInfo struct {
	Target  BranchTarget `msgpack:"target"`
	Results []VarID      `msgpack:"results,omitempty"`
}

// Invocation calls a libfunc.
type Invocation struct {
	Libfunc  LibfuncID    `msgpack:"libfunc"`
	Args     []VarID      `msgpack:"args,omitempty"`
	Branches []BranchInfo `msgpack:"branches"`
}

// StatementKind tags a statement.
type StatementKind uint8

const (
	StmtInvocation StatementKind = iota + 1
	StmtReturn
)

// Statement is either an invocation or a return.
type Statement struct {
	Kind       StatementKind `msgpack:"kind"`
	Invocation Invocation    `msgpack:"inv,omitempty"`
	Return     []VarID       `msgpack:"ret,omitempty"`
}

// Param is a typed function parameter.
type Param struct {
	ID   VarID  `msgpack:"id"`
	Type TypeID `msgpack:"ty"`
}

// Signature lists parameter and return types.
type Signature struct {
	ParamTypes []TypeID `msgpack:"params"`
	RetTypes   []TypeID `msgpack:"rets"`
}

// Function is a user function with an entry statement.
type Function struct {
	ID        FunctionID   `msgpack:"id"`
	Signature Signature    `msgpack:"sig"`
	Params    []Param      `msgpack:"params"`
	Entry     StatementIdx `msgpack:"entry"`
}

// Program is a complete Sierra program.
type Program struct {
	TypeDeclarations    []TypeDeclaration    `msgpack:"types"`
	LibfuncDeclarations []LibfuncDeclaration `msgpack:"libfuncs"`
	Statements          []Statement          `msgpack:"statements"`
	Funcs               []Function           `msgpack:"funcs"`
}

// FindFunction looks a function up by debug name or by "[id]".
func (p *Program) FindFunction(name string) (*Function, bool) {
	if p == nil {
		return nil, false
	}
	for i := range p.Funcs {
		if p.Funcs[i].ID.DebugName == name || p.Funcs[i].ID.String() == name {
			return &p.Funcs[i], true
		}
	}
	return nil, false
}

// Statement returns the statement at idx.
func (p *Program) Statement(idx StatementIdx) (*Statement, bool) {
	if p == nil || idx < 0 || int(idx) >= len(p.Statements) {
		return nil, false
	}
	return &p.Statements[idx], true
}
