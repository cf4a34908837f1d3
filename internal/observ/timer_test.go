package observ

import (
	"strings"
	"testing"
)

func TestReportKeepsOrderAndSkipsRunningPhases(t *testing.T) {
	tm := NewTimer()
	a := tm.Begin("parse")
	b := tm.Begin("lower")
	tm.Begin("emit")
	tm.End(b, "3 functions")
	tm.End(a, "")
	tm.End(a, "again")
	tm.End(42, "")

	r := tm.Report()
	if len(r.Phases) != 2 {
		t.Fatalf("got %d phases, want 2", len(r.Phases))
	}
	if r.Phases[0].Name != "parse" || r.Phases[1].Name != "lower" {
		t.Fatalf("unexpected order %+v", r.Phases)
	}
	if r.Phases[0].Note != "" {
		t.Fatalf("second End overwrote the note: %q", r.Phases[0].Note)
	}
	p, ok := r.Phase("lower")
	if !ok || p.Note != "3 functions" {
		t.Fatalf("Phase(lower) = %+v, %v", p, ok)
	}
	if _, ok := r.Phase("emit"); ok {
		t.Fatalf("running phase reported")
	}
	s := r.String()
	if !strings.Contains(s, "3 functions") || !strings.Contains(s, "total") {
		t.Fatalf("unexpected rendering:\n%s", s)
	}
}

func TestEmptyTimer(t *testing.T) {
	r := NewTimer().Report()
	if len(r.Phases) != 0 || r.TotalMS != 0 {
		t.Fatalf("unexpected report %+v", r)
	}
}
