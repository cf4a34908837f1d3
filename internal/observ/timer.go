// Package observ measures the stages of a compilation.
package observ

import (
	"fmt"
	"strings"
	"time"
)

// Phase is one measured stage.
type Phase struct {
	Name  string
	Start time.Time
	Dur   time.Duration
	Note  string
	ended bool
}

// Timer records phases in the order they begin.
type Timer struct {
	phases []Phase
}

func NewTimer() *Timer { return &Timer{phases: make([]Phase, 0, 8)} }

// Begin starts a phase and returns its index for End.
func (t *Timer) Begin(name string) int {
	t.phases = append(t.phases, Phase{Name: name, Start: time.Now()})
	return len(t.phases) - 1
}

// End finishes phase idx. Unknown or already finished phases are ignored.
func (t *Timer) End(idx int, note string) {
	if idx < 0 || idx >= len(t.phases) || t.phases[idx].ended {
		return
	}
	p := &t.phases[idx]
	p.Dur = time.Since(p.Start)
	p.Note = note
	p.ended = true
}

// PhaseReport is the serializable summary of one phase.
type PhaseReport struct {
	Name       string  `json:"name"`
	DurationMS float64 `json:"duration_ms"`
	Note       string  `json:"note,omitempty"`
}

// Report summarizes every finished phase.
type Report struct {
	TotalMS float64       `json:"total_ms"`
	Phases  []PhaseReport `json:"phases"`
}

// Report collects the finished phases; phases still running are left out.
func (t *Timer) Report() Report {
	var report Report
	var total time.Duration
	for _, p := range t.phases {
		if !p.ended {
			continue
		}
		total += p.Dur
		report.Phases = append(report.Phases, PhaseReport{
			Name:       p.Name,
			DurationMS: durationToMillis(p.Dur),
			Note:       p.Note,
		})
	}
	report.TotalMS = durationToMillis(total)
	return report
}

// Phase returns the report of the phase called name.
func (r Report) Phase(name string) (PhaseReport, bool) {
	for _, p := range r.Phases {
		if p.Name == name {
			return p, true
		}
	}
	return PhaseReport{}, false
}

// String renders one line per phase and the total.
func (r Report) String() string {
	var b strings.Builder
	for _, p := range r.Phases {
		fmt.Fprintf(&b, "%-22s %8.2f ms", p.Name, p.DurationMS)
		if p.Note != "" {
			b.WriteString("  " + p.Note)
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "%-22s %8.2f ms\n", "total", r.TotalMS)
	return b.String()
}

func durationToMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
