package trace

import (
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

var (
	seq   atomic.Uint64
	spans atomic.Uint64
)

// NextSeq returns the next event sequence number.
func NextSeq() uint64 { return seq.Add(1) }

// NextSpanID returns a fresh span id. Zero is never returned.
func NextSpanID() uint64 { return spans.Add(1) }

// goid parses the id out of the "goroutine N [state]:" stack header.
func goid() uint64 {
	var buf [64]byte
	head := string(buf[:runtime.Stack(buf[:], false)])
	head, ok := strings.CutPrefix(head, "goroutine ")
	if !ok {
		return 0
	}
	n, _, _ := strings.Cut(head, " ")
	id, err := strconv.ParseUint(n, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// Span is an open interval of work. The zero-cost span returned for a
// disabled tracer or a filtered scope ignores every call.
type Span struct {
	tracer  Tracer
	id      uint64
	parent  uint64
	gid     uint64
	scope   Scope
	name    string
	started time.Time
	extra   map[string]string
}

func (s *Span) live() bool { return s != nil && s.tracer != nil && s.id != 0 }

// Begin opens a span under parent (0 for a root span).
func Begin(t Tracer, scope Scope, name string, parent uint64) *Span {
	if t == nil || !t.Enabled() || !t.Level().ShouldEmit(scope) {
		return &Span{tracer: Nop}
	}
	s := &Span{
		tracer:  t,
		id:      NextSpanID(),
		parent:  parent,
		gid:     goid(),
		scope:   scope,
		name:    name,
		started: time.Now(),
	}
	s.emit(KindSpanBegin, s.started, "", 0, nil)
	return s
}

// Child opens a span nested in s on the same tracer.
func (s *Span) Child(scope Scope, name string) *Span {
	if !s.live() {
		return &Span{tracer: Nop}
	}
	return Begin(s.tracer, scope, name, s.id)
}

// End closes the span and returns how long it was open.
func (s *Span) End(detail string) time.Duration {
	if !s.live() {
		return 0
	}
	now := time.Now()
	elapsed := now.Sub(s.started)
	s.emit(KindSpanEnd, now, detail, elapsed, s.extra)
	return elapsed
}

// WithExtra attaches a key to the end event.
func (s *Span) WithExtra(key, value string) *Span {
	if !s.live() {
		return s
	}
	if s.extra == nil {
		s.extra = make(map[string]string, 1)
	}
	s.extra[key] = value
	return s
}

// ID is zero for a span that emits nothing.
func (s *Span) ID() uint64 {
	if !s.live() {
		return 0
	}
	return s.id
}

func (s *Span) emit(kind Kind, at time.Time, detail string, elapsed time.Duration, extra map[string]string) {
	s.tracer.Emit(&Event{
		Time:     at,
		Seq:      NextSeq(),
		Kind:     kind,
		Scope:    s.scope,
		SpanID:   s.id,
		ParentID: s.parent,
		GID:      s.gid,
		Name:     s.name,
		Detail:   detail,
		Elapsed:  elapsed,
		Extra:    extra,
	})
}

// Point emits an instant event under parent.
func Point(t Tracer, scope Scope, name, detail string, parent uint64) {
	if t == nil || !t.Enabled() || !t.Level().ShouldEmit(scope) {
		return
	}
	t.Emit(&Event{
		Time:     time.Now(),
		Seq:      NextSeq(),
		Kind:     KindPoint,
		Scope:    scope,
		ParentID: parent,
		GID:      goid(),
		Name:     name,
		Detail:   detail,
	})
}
