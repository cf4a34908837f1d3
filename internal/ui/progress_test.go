package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"sierranative/internal/pipeline"
)

func TestProgressTracksFiles(t *testing.T) {
	events := make(chan pipeline.Event)
	m := NewProgressModel("build", []string{"a.sierra", "b.sierra"}, events).(*buildModel)

	m.apply(pipeline.Event{File: "a.sierra", Stage: pipeline.StageCompile, Status: pipeline.StatusWorking})
	if got := m.files[0].label(); got != "compiling" {
		t.Fatalf("label = %q, want compiling", got)
	}
	if got := m.fraction(); got != 0.2 {
		t.Fatalf("fraction = %v, want 0.2", got)
	}
	m.apply(pipeline.Event{File: "a.sierra", Stage: pipeline.StageCompile, Status: pipeline.StatusDone, Elapsed: 1500 * time.Microsecond})
	m.apply(pipeline.Event{File: "b.sierra", Stage: pipeline.StageParse, Status: pipeline.StatusError, Err: errors.New("unexpected token\nat line 1")})
	m.apply(pipeline.Event{File: "unknown.sierra", Stage: pipeline.StageParse, Status: pipeline.StatusError})

	if got := m.fraction(); got != 1 {
		t.Fatalf("fraction = %v, want 1", got)
	}
	view := m.View()
	for _, want := range []string{"a.sierra", "done", "2ms", "error", "unexpected token", "2/2 files, 1 failed"} {
		if !strings.Contains(view, want) {
			t.Errorf("view lacks %q:\n%s", want, view)
		}
	}
	if strings.Contains(view, "at line 1") {
		t.Errorf("only the first error line is shown:\n%s", view)
	}
}

func TestClosedChannelEndsTheModel(t *testing.T) {
	events := make(chan pipeline.Event)
	close(events)
	m := NewProgressModel("build", []string{"a.sierra"}, events).(*buildModel)
	msg := m.next()()
	if _, ok := msg.(closedMsg); !ok {
		t.Fatalf("got %T, want closedMsg", msg)
	}
	m.Update(msg)
	if !strings.HasPrefix(stripANSI(m.View()), "done: build") {
		t.Fatalf("unexpected view:\n%s", m.View())
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdefghij", 6); got != "abc..." {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("abc", 6); got != "abc" {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("日本語テキスト", 7); got != "日本..." {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("abcdef", 2); got != "ab" {
		t.Fatalf("truncate = %q", got)
	}
}

func stripANSI(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == 0x1b {
			for i < len(s) && s[i] != 'm' {
				i++
			}
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
