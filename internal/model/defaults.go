package model

import "time"

// Shared defaults used by both the dashboard and simulator binaries.
const (
	// DefaultLogCapacity is the hard cap of the display log buffer. Entries
	// past the cap are dropped oldest-first.
	DefaultLogCapacity = 300

	DefaultPort    = 8091
	DefaultReplay  = 25
	DefaultBaseURL = "http://127.0.0.1:8091"

	EventsPath       = "/admin/events"
	ProbeMetricsPath = "/admin/probe/metrics"

	// KindProbeMetrics is the envelope kind carrying periodic resource-probe
	// snapshots.
	KindProbeMetrics = "probe.metrics"

	DefaultProbeInterval = 2 * time.Second
)
