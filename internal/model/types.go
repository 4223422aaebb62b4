package model

import (
	"encoding/json"
	"time"
)

// Envelope represents a single unit of stream data: a topic kind, the time
// the event was produced (or received, when the producer sent none), and an
// arbitrary structured payload. Envelopes are immutable once received and
// only borrowed by handlers for the duration of a dispatch.
type Envelope struct {
	Kind    string
	Time    time.Time
	ID      string // stream event id, used for resume on reconnect
	Payload json.RawMessage
}

// ConnState is the lifecycle state of the stream connection.
type ConnState int

const (
	StateIdle ConnState = iota
	StateConnecting
	StateOpen
	StateError
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateError:
		return "error"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Label returns the status-indicator text shown in the dashboard header.
func (s ConnState) Label() string {
	switch s {
	case StateOpen:
		return "on"
	case StateConnecting:
		return "connecting"
	case StateError:
		return "retrying"
	}
	return "off"
}

// LogEntry is the rendered projection of one accepted envelope. Entries live
// only in the log buffer; nothing persists them.
type LogEntry struct {
	Time time.Time
	Kind string
	Body json.RawMessage
}

// ResourceSnapshot holds the derived resource aggregates behind the badge
// row. It is overwritten wholesale on each probe event or fetch; no history
// is kept beyond the currently displayed values.
type ResourceSnapshot struct {
	CPUAvg   float64
	MemUsed  int64
	MemTotal int64
	GPUUsed  int64
	GPUTotal int64
}

// MemPercent returns memory usage as a percentage, 0 when the total is
// unknown.
func (s ResourceSnapshot) MemPercent() float64 {
	if s.MemTotal <= 0 {
		return 0
	}
	return float64(s.MemUsed) / float64(s.MemTotal) * 100
}

// GPUPercent returns aggregate GPU memory usage as a percentage, 0 when no
// GPU reported a total.
func (s ResourceSnapshot) GPUPercent() float64 {
	if s.GPUTotal <= 0 {
		return 0
	}
	return float64(s.GPUUsed) / float64(s.GPUTotal) * 100
}
