package registry

import "sierranative/internal/sierra"

// ApKind classifies the ap change of a branch.
type ApKind uint8

const (
	ApKnown ApKind = iota
	ApUnknown
	// ApFromCallee takes the ap change of the called function.
	ApFromCallee
)

// ApChange is the allocation pointer change of one branch.
type ApChange struct {
	Kind ApKind
	N    int
}

func Known(n int) ApChange { return ApChange{Kind: ApKnown, N: n} }

var UnknownAp = ApChange{Kind: ApUnknown}

// BranchSignature lists the outputs of one branch.
type BranchSignature struct {
	Vars     []sierra.TypeID
	ApChange ApChange
}

// LibfuncSignature is the typed interface of a concrete libfunc.
type LibfuncSignature struct {
	Params   []sierra.TypeID
	Branches []BranchSignature
	// Fallthrough is the index of the branch that continues at the next
	// statement, or -1.
	Fallthrough int
}

// Simple is a single fallthrough branch.
func Simple(params []sierra.TypeID, outs []sierra.TypeID, ap ApChange) LibfuncSignature {
	return LibfuncSignature{
		Params:      params,
		Branches:    []BranchSignature{{Vars: outs, ApChange: ap}},
		Fallthrough: 0,
	}
}

// Branching has a fallthrough first branch followed by the others.
func Branching(params []sierra.TypeID, branches ...BranchSignature) LibfuncSignature {
	return LibfuncSignature{Params: params, Branches: branches, Fallthrough: 0}
}

// Class tells the gas and ap analyses how to treat a libfunc.
type Class uint8

const (
	ClassPlain Class = iota
	ClassFunctionCall
	ClassWithdrawGas
	ClassWithdrawGasAll
	ClassRedepositGas
	ClassDisableApTracking
	ClassEnableApTracking
	ClassStoreTemp
	ClassJump
)

// IsCheckpoint reports gas withdrawal points.
func (c Class) IsCheckpoint() bool {
	return c == ClassWithdrawGas || c == ClassWithdrawGasAll
}

// ConcreteLibfunc is a specialized libfunc.
type ConcreteLibfunc interface {
	GenericID() string
	Signature() LibfuncSignature
	Class() Class
	// Build emits the libfunc into ctx's current block and terminates it.
	Build(ctx *LibfuncContext) error
}

// Caller is implemented by libfuncs that call a user function.
type Caller interface {
	Callee() sierra.FunctionID
}
