package trace

import "errors"

// MultiTracer fans events out to several tracers.
type MultiTracer struct {
	tracers []Tracer
	level   Level
}

// Tee returns a tracer emitting to every enabled tracer of ts at the
// highest of their levels. With a single enabled tracer it is returned as is.
func Tee(ts ...Tracer) Tracer {
	var live []Tracer
	level := LevelOff
	for _, t := range ts {
		if t == nil || !t.Enabled() {
			continue
		}
		live = append(live, t)
		level = max(level, t.Level())
	}
	switch len(live) {
	case 0:
		return Nop
	case 1:
		return live[0]
	}
	return &MultiTracer{tracers: live, level: level}
}

// Emit forwards ev to the tracers whose level admits its scope.
func (t *MultiTracer) Emit(ev *Event) {
	for _, tr := range t.tracers {
		if tr.Level().ShouldEmit(ev.Scope) {
			tr.Emit(ev)
		}
	}
}

func (t *MultiTracer) Flush() error {
	var errList []error
	for _, tr := range t.tracers {
		errList = append(errList, tr.Flush())
	}
	return errors.Join(errList...)
}

func (t *MultiTracer) Close() error {
	var errList []error
	for _, tr := range t.tracers {
		errList = append(errList, tr.Close())
	}
	return errors.Join(errList...)
}

func (t *MultiTracer) Level() Level  { return t.level }
func (t *MultiTracer) Enabled() bool { return t.level > LevelOff }
