// Package logbuf maintains the bounded, most-recent-first display buffer of
// accepted events and renders entries for the log pane.
package logbuf

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/eventdeck/eventdeck/internal/model"
)

// Buffer is a bounded, insertion-ordered, most-recent-first event buffer.
// Once full, the oldest entries fall off the tail; the head is never
// touched. Buffer is not safe for concurrent use; all mutation happens on
// the single event-dispatch goroutine.
type Buffer struct {
	capacity int
	entries  []model.LogEntry
}

// New returns a buffer holding at most capacity entries. Non-positive
// capacities fall back to the shared default.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = model.DefaultLogCapacity
	}
	return &Buffer{capacity: capacity}
}

// Append prepends e and trims the tail back to capacity.
func (b *Buffer) Append(e model.LogEntry) {
	b.entries = append(b.entries, model.LogEntry{})
	copy(b.entries[1:], b.entries)
	b.entries[0] = e
	if len(b.entries) > b.capacity {
		b.entries = b.entries[:b.capacity]
	}
}

// Entries returns the buffered entries, most recent first. The returned
// slice is shared; callers must not mutate it.
func (b *Buffer) Entries() []model.LogEntry {
	return b.entries
}

// Len returns the number of buffered entries.
func (b *Buffer) Len() int { return len(b.entries) }

// Clear drops all entries.
func (b *Buffer) Clear() { b.entries = nil }

// Body serializes the entry payload, indented when pretty is set. A payload
// that cannot be pretty-printed falls back to its compact form rather than
// failing.
func Body(e model.LogEntry, pretty bool) string {
	raw := bytes.TrimSpace(e.Body)
	if len(raw) == 0 {
		return ""
	}
	if pretty {
		var out bytes.Buffer
		if err := json.Indent(&out, raw, "", "  "); err == nil {
			return out.String()
		}
	}
	var out bytes.Buffer
	if err := json.Compact(&out, raw); err != nil {
		// Not JSON at all; show it verbatim.
		return string(raw)
	}
	return out.String()
}

// Render produces the display line for one entry: timestamp, kind label,
// and the serialized body with markup characters escaped. Without wrap the
// body is flattened onto a single line.
func Render(e model.LogEntry, pretty, wrap bool) string {
	body := Escape(Body(e, pretty))
	if !wrap {
		body = strings.Join(strings.Fields(body), " ")
	}
	kind := e.Kind
	if kind == "" {
		kind = "(none)"
	}
	return fmt.Sprintf("%s  %s  %s", e.Time.Format("15:04:05"), kind, body)
}

var markupEscaper = strings.NewReplacer("<", "&lt;", ">", "&gt;")

// Escape neutralizes angle brackets so bodies cannot inject markup into a
// rich-text surface.
func Escape(s string) string {
	return markupEscaper.Replace(s)
}
