package trace

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Format selects how a StreamTracer renders events.
type Format uint8

const (
	// FormatAuto is NDJSON for ".ndjson" paths and text otherwise.
	FormatAuto Format = iota
	FormatText
	FormatNDJSON
)

// ParseFormat accepts auto, text, ndjson and json.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return FormatAuto, nil
	case "text":
		return FormatText, nil
	case "ndjson", "json":
		return FormatNDJSON, nil
	}
	return FormatAuto, fmt.Errorf("invalid trace format %q (want auto, text or ndjson)", s)
}

// FormatEvent renders one event, newline included.
func FormatEvent(ev *Event, format Format) []byte {
	if format == FormatNDJSON {
		return eventJSON(ev)
	}
	return eventText(ev)
}

type jsonEvent struct {
	Time      string            `json:"time"`
	Seq       uint64            `json:"seq"`
	Kind      string            `json:"kind"`
	Scope     string            `json:"scope"`
	SpanID    uint64            `json:"span_id,omitempty"`
	ParentID  uint64            `json:"parent_id,omitempty"`
	GID       uint64            `json:"gid,omitempty"`
	Name      string            `json:"name"`
	Detail    string            `json:"detail,omitempty"`
	ElapsedUS int64             `json:"elapsed_us,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
}

func eventJSON(ev *Event) []byte {
	data, err := json.Marshal(jsonEvent{
		Time:      ev.Time.Format("2006-01-02T15:04:05.000000Z07:00"),
		Seq:       ev.Seq,
		Kind:      ev.Kind.String(),
		Scope:     ev.Scope.String(),
		SpanID:    ev.SpanID,
		ParentID:  ev.ParentID,
		GID:       ev.GID,
		Name:      ev.Name,
		Detail:    ev.Detail,
		ElapsedUS: ev.Elapsed.Microseconds(),
		Extra:     ev.Extra,
	})
	if err != nil {
		return nil
	}
	return append(data, '\n')
}

var kindMarks = map[Kind]string{
	KindSpanBegin: "→",
	KindSpanEnd:   "←",
	KindPoint:     "•",
}

// eventText renders "[clock] scope → name (detail) {k=v} 1.25ms".
func eventText(ev *Event) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "[%s] %-9s ", ev.Time.Format("15:04:05.000000"), ev.Scope)
	if ev.ParentID != 0 {
		b.WriteString("  ")
	}
	fmt.Fprintf(&b, "%s %s", kindMarks[ev.Kind], ev.Name)
	if ev.Detail != "" {
		fmt.Fprintf(&b, " (%s)", ev.Detail)
	}
	if len(ev.Extra) > 0 {
		pairs := make([]string, 0, len(ev.Extra))
		for _, k := range slices.Sorted(maps.Keys(ev.Extra)) {
			pairs = append(pairs, k+"="+ev.Extra[k])
		}
		fmt.Fprintf(&b, " {%s}", strings.Join(pairs, ", "))
	}
	if ev.Kind == KindSpanEnd {
		fmt.Fprintf(&b, " %.2fms", float64(ev.Elapsed.Microseconds())/1000)
	}
	b.WriteByte('\n')
	return b.Bytes()
}
