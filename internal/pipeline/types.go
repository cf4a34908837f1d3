package pipeline

import (
	"sync"
	"time"
)

// Stage describes a high-level pipeline phase.
type Stage string

const (
	// StageParse reads and parses a program file.
	StageParse Stage = "parse"
	// StageCompile compiles the program through the cache.
	StageCompile Stage = "compile"
	// StageEmit writes LLVM IR.
	StageEmit Stage = "emit"
	// StageLink produces the shared object.
	StageLink Stage = "link"
)

// Status captures progress state within a stage.
type Status string

const (
	// StatusQueued indicates the task is waiting to start.
	StatusQueued Status = "queued"
	// StatusWorking indicates the task is currently working.
	StatusWorking Status = "working"
	// StatusDone indicates the task is done.
	StatusDone Status = "done"
	// StatusError indicates the task encountered an error.
	StatusError Status = "error"
)

// Event reports progress for a file (or for the overall pipeline when File is empty).
type Event struct {
	File    string
	Stage   Stage
	Status  Status
	Err     error
	Elapsed time.Duration
}

// ProgressSink consumes progress events. OnEvent may be called from
// several goroutines.
type ProgressSink interface {
	OnEvent(Event)
}

// Timings accumulates stage durations across files.
type Timings struct {
	mu     sync.Mutex
	stages map[Stage]time.Duration
}

// Add accumulates a duration for the given stage.
func (t *Timings) Add(stage Stage, dur time.Duration) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stages == nil {
		t.stages = make(map[Stage]time.Duration)
	}
	t.stages[stage] += dur
}

// Has reports whether a duration for stage is recorded.
func (t *Timings) Has(stage Stage) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.stages[stage]
	return ok
}

// Duration returns the recorded duration for stage.
func (t *Timings) Duration(stage Stage) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stages[stage]
}

// Sum returns the sum of durations across the provided stages.
func (t *Timings) Sum(stages ...Stage) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	var total time.Duration
	for _, stage := range stages {
		total += t.stages[stage]
	}
	return total
}
