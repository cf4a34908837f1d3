package compiler

import "time"

// Stage is the position of a Compiler in its one-way state machine.
type Stage uint8

const (
	StageUninitialized Stage = iota
	StageRegistryBuilt
	StageMetadataComputed
	StageFunctionsLowered
	StageModuleFinalized
)

var stageNames = [...]string{
	StageUninitialized:    "uninitialized",
	StageRegistryBuilt:    "registry-built",
	StageMetadataComputed: "metadata-computed",
	StageFunctionsLowered: "functions-lowered",
	StageModuleFinalized:  "module-finalized",
}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return "stage?"
}

// PhaseStatus reports whether a stage started or finished.
type PhaseStatus int

const (
	PhaseStart PhaseStatus = iota
	PhaseEnd
)

// PhaseEvent describes a stage boundary.
type PhaseEvent struct {
	Stage   Stage
	Status  PhaseStatus
	Elapsed time.Duration
	Err     error
}

// PhaseObserver receives stage events during Compile.
type PhaseObserver func(PhaseEvent)
