package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestLevelGatesScopes(t *testing.T) {
	cases := []struct {
		level Level
		scope Scope
		want  bool
	}{
		{LevelOff, ScopeDriver, false},
		{LevelError, ScopeDriver, false},
		{LevelPhase, ScopePass, true},
		{LevelPhase, ScopeFunction, false},
		{LevelDetail, ScopeFunction, true},
		{LevelDetail, ScopeStatement, false},
		{LevelDebug, ScopeStatement, true},
	}
	for _, c := range cases {
		if got := c.level.ShouldEmit(c.scope); got != c.want {
			t.Fatalf("%s.ShouldEmit(%s) = %v, want %v", c.level, c.scope, got, c.want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("DETAIL")
	if err != nil || l != LevelDetail {
		t.Fatalf("ParseLevel(DETAIL) = %v, %v", l, err)
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected an error for an unknown level")
	}
}

func TestStreamTracerWritesSpans(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelPhase, FormatText)
	span := Begin(tr, ScopePass, "lower", 0)
	Begin(tr, ScopeFunction, "function:main", span.ID()).End("")
	span.WithExtra("functions", "1").End("ok")

	out := buf.String()
	if !strings.Contains(out, "→ lower") || !strings.Contains(out, "← lower (ok) {functions=1}") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	if strings.Contains(out, "function:main") {
		t.Fatalf("function span leaked at phase level:\n%s", out)
	}
}

func TestNDJSON(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelDebug, FormatNDJSON)
	Point(tr, ScopeStatement, "stmt:3", "injected", 0)

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid json %q: %v", buf.String(), err)
	}
	if got["kind"] != "point" || got["scope"] != "statement" || got["detail"] != "injected" {
		t.Fatalf("unexpected event %v", got)
	}
}

func TestContextDefaultsToNop(t *testing.T) {
	if FromContext(context.Background()) != Nop {
		t.Fatalf("expected the nop tracer")
	}
	tr := NewStreamTracer(&bytes.Buffer{}, LevelPhase, FormatText)
	if FromContext(WithTracer(context.Background(), tr)) != tr {
		t.Fatalf("tracer not carried by the context")
	}
}

func TestSpanParentTravelsInContext(t *testing.T) {
	tr := NewStreamTracer(&bytes.Buffer{}, LevelPhase, FormatText)
	ctx := context.Background()
	if ParentSpan(ctx) != 0 {
		t.Fatalf("background context has a parent span")
	}
	span := Begin(tr, ScopeDriver, "build", 0)
	ctx = WithSpan(ctx, span)
	if got := ParentSpan(ctx); got != span.ID() || got == 0 {
		t.Fatalf("ParentSpan = %d, want %d", got, span.ID())
	}
	off := Begin(Nop, ScopeDriver, "build", 0)
	if WithSpan(context.Background(), off) != context.Background() {
		t.Fatalf("a disabled span changed the context")
	}
}

func TestTeeRespectsEachLevel(t *testing.T) {
	var phase, debug bytes.Buffer
	tee := Tee(NewStreamTracer(&phase, LevelPhase, FormatText), Nop, NewStreamTracer(&debug, LevelDebug, FormatText))
	if tee.Level() != LevelDebug {
		t.Fatalf("level = %v, want debug", tee.Level())
	}
	Point(tee, ScopeStatement, "stmt:1", "", 0)
	if phase.Len() != 0 {
		t.Fatalf("statement event reached the phase tracer: %q", phase.String())
	}
	if !strings.Contains(debug.String(), "stmt:1") {
		t.Fatalf("statement event missing from the debug tracer: %q", debug.String())
	}
	if Tee(Nop) != Nop {
		t.Fatalf("Tee of disabled tracers should be Nop")
	}
}

func TestChildSpansNestAndReportElapsed(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelDetail, FormatNDJSON)
	root := Begin(tr, ScopePass, "emit", 0)
	child := root.Child(ScopeFunction, "function:main")
	child.End("")
	root.End("")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("want 4 events, got %d:\n%s", len(lines), buf.String())
	}
	var ev jsonEvent
	if err := json.Unmarshal([]byte(lines[1]), &ev); err != nil {
		t.Fatalf("invalid json %q: %v", lines[1], err)
	}
	if ev.Name != "function:main" || ev.ParentID != root.ID() {
		t.Fatalf("child event %+v, want parent %d", ev, root.ID())
	}
	if (&Span{tracer: Nop}).Child(ScopeFunction, "x").ID() != 0 {
		t.Fatalf("child of a disabled span emits")
	}
}
