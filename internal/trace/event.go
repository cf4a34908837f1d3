package trace

import "time"

// Kind represents the type of trace event.
type Kind uint8

const (
	KindSpanBegin Kind = iota + 1
	KindSpanEnd
	// KindPoint is an instant event.
	KindPoint
)

func (k Kind) String() string {
	switch k {
	case KindSpanBegin:
		return "begin"
	case KindSpanEnd:
		return "end"
	case KindPoint:
		return "point"
	default:
		return "unknown"
	}
}

// Scope is the granularity of an event. Lower values are coarser.
type Scope uint8

const (
	// ScopeDriver covers a whole compilation.
	ScopeDriver Scope = iota + 1
	// ScopePass covers one driver stage or optimization pass.
	ScopePass
	ScopeFunction
	ScopeStatement
)

func (s Scope) String() string {
	switch s {
	case ScopeDriver:
		return "driver"
	case ScopePass:
		return "pass"
	case ScopeFunction:
		return "function"
	case ScopeStatement:
		return "statement"
	default:
		return "unknown"
	}
}

// Event represents a single trace event.
type Event struct {
	Time     time.Time
	Seq      uint64
	Kind     Kind
	Scope    Scope
	SpanID   uint64
	ParentID uint64
	GID      uint64
	Name     string // e.g. "lower", "function:main"
	Detail   string
	// Elapsed is set on span end events.
	Elapsed time.Duration
	Extra   map[string]string
}
