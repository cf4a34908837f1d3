// Package ui renders build progress in the terminal.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"sierranative/internal/pipeline"
)

// Weight of each stage in the overall bar; a settled file counts as 1.
var stageWeight = map[pipeline.Stage]float64{
	pipeline.StageParse:   0.1,
	pipeline.StageCompile: 0.4,
	pipeline.StageEmit:    0.8,
	pipeline.StageLink:    0.9,
}

var stageVerb = map[pipeline.Stage]string{
	pipeline.StageParse:   "parsing",
	pipeline.StageCompile: "compiling",
	pipeline.StageEmit:    "emitting",
	pipeline.StageLink:    "linking",
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	workingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	queuedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
)

type buildModel struct {
	title   string
	events  <-chan pipeline.Event
	spinner spinner.Model
	bar     progress.Model
	files   []fileState
	byPath  map[string]int
	width   int
	closed  bool
}

type fileState struct {
	path    string
	stage   pipeline.Stage
	status  pipeline.Status
	elapsed time.Duration
	err     string
}

func (f fileState) settled() bool {
	return f.status == pipeline.StatusDone || f.status == pipeline.StatusError
}

func (f fileState) label() string {
	if f.status == pipeline.StatusWorking {
		if verb, ok := stageVerb[f.stage]; ok {
			return verb
		}
	}
	return string(f.status)
}

type eventMsg pipeline.Event
type closedMsg struct{}

// NewProgressModel returns a Bubble Tea model that follows the build of
// files through events until the channel is closed.
func NewProgressModel(title string, files []string, events <-chan pipeline.Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = workingStyle

	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 76

	m := &buildModel{
		title:   title,
		events:  events,
		spinner: sp,
		bar:     bar,
		files:   make([]fileState, len(files)),
		byPath:  make(map[string]int, len(files)),
		width:   80,
	}
	for i, file := range files {
		m.files[i] = fileState{path: file, status: pipeline.StatusQueued}
		m.byPath[file] = i
	}
	return m
}

func (m *buildModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.next())
}

func (m *buildModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		return m, tea.Batch(m.apply(pipeline.Event(msg)), m.next())
	case closedMsg:
		m.closed = true
		return m, tea.Quit
	case spinner.TickMsg:
		if m.closed {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.bar.Width = msg.Width - 4
		}
		return m, nil
	case progress.FrameMsg:
		bar, cmd := m.bar.Update(msg)
		m.bar = bar.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *buildModel) View() string {
	if len(m.files) == 0 {
		return ""
	}
	var b strings.Builder
	header := m.title
	if m.closed {
		header = "done: " + header
	} else {
		header = m.spinner.View() + " " + header
	}
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	nameWidth := max(m.width-16, 20)
	for _, f := range m.files {
		fmt.Fprintf(&b, "  %s %s", statusStyle(f.status).Render(fmt.Sprintf("%12s", f.label())), truncate(f.path, nameWidth))
		if f.elapsed > 0 {
			b.WriteString(dimStyle.Render(" " + f.elapsed.Round(time.Millisecond).String()))
		}
		b.WriteByte('\n')
		if f.err != "" {
			b.WriteString(dimStyle.Render(strings.Repeat(" ", 15) + truncate(f.err, nameWidth)))
			b.WriteByte('\n')
		}
	}

	b.WriteByte('\n')
	if m.closed {
		b.WriteString(m.bar.ViewAs(1.0))
	} else {
		b.WriteString(m.bar.View())
	}
	b.WriteByte('\n')
	b.WriteString(dimStyle.Render(m.tally()))
	b.WriteByte('\n')
	return b.String()
}

// tally summarizes how many files settled and how many failed.
func (m *buildModel) tally() string {
	var settled, failed int
	for _, f := range m.files {
		if f.settled() {
			settled++
		}
		if f.status == pipeline.StatusError {
			failed++
		}
	}
	s := fmt.Sprintf("%d/%d files", settled, len(m.files))
	if failed > 0 {
		s += fmt.Sprintf(", %d failed", failed)
	}
	return s
}

func (m *buildModel) next() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return closedMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *buildModel) apply(ev pipeline.Event) tea.Cmd {
	idx, ok := m.byPath[ev.File]
	if !ok {
		return nil
	}
	f := &m.files[idx]
	f.stage = ev.Stage
	f.status = ev.Status
	if ev.Elapsed > 0 {
		f.elapsed = ev.Elapsed
	}
	if ev.Err != nil {
		f.err = firstLine(ev.Err.Error())
	}
	return m.bar.SetPercent(m.fraction())
}

func (m *buildModel) fraction() float64 {
	var total float64
	for _, f := range m.files {
		if f.settled() {
			total++
		} else if f.status == pipeline.StatusWorking {
			total += stageWeight[f.stage]
		}
	}
	return total / float64(len(m.files))
}

func statusStyle(status pipeline.Status) lipgloss.Style {
	switch status {
	case pipeline.StatusDone:
		return doneStyle
	case pipeline.StatusError:
		return errorStyle
	case pipeline.StatusWorking:
		return workingStyle
	default:
		return queuedStyle
	}
}

func truncate(value string, width int) string {
	if width <= 0 || runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width, "...")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
