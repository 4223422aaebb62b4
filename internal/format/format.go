// Package format holds the pure presentation helpers for the dashboard:
// byte counts, percentages, and the severity classification backing the
// resource badges.
package format

import "fmt"

// Placeholder is rendered when a quantity is absent.
const Placeholder = "n/a"

const (
	kib = int64(1) << 10
	mib = int64(1) << 20
	gib = int64(1) << 30
	tib = int64(1) << 40
)

// Bytes renders a byte count using binary (1024-based) magnitudes, picking
// the largest unit whose threshold n meets or exceeds.
func Bytes(n int64) string {
	switch {
	case n >= tib:
		return fmt.Sprintf("%.2f TiB", float64(n)/float64(tib))
	case n >= gib:
		return fmt.Sprintf("%.2f GiB", float64(n)/float64(gib))
	case n >= mib:
		return fmt.Sprintf("%.1f MiB", float64(n)/float64(mib))
	case n >= kib:
		return fmt.Sprintf("%.1f KiB", float64(n)/float64(kib))
	}
	return fmt.Sprintf("%d B", n)
}

// OptBytes renders n, or the placeholder when the value is absent.
func OptBytes(n *int64) string {
	if n == nil {
		return Placeholder
	}
	return Bytes(*n)
}

// Percent renders a percentage with one decimal place.
func Percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}

// Severity classifies a badge value.
type Severity string

const (
	SeverityNormal   Severity = "normal"
	SeverityWarn     Severity = "warn"
	SeverityCritical Severity = "critical"
)

// Badge thresholds per resource. These are design constants, not
// configuration.
const (
	CPUWarnPct = 75.0
	CPUCritPct = 90.0
	MemWarnPct = 75.0
	MemCritPct = 90.0
	GPUWarnPct = 80.0
	GPUCritPct = 95.0
)

// Classify maps a percentage onto a severity using the given thresholds:
// critical at or above crit, warn at or above warn, normal below.
func Classify(pct, warn, crit float64) Severity {
	switch {
	case pct >= crit:
		return SeverityCritical
	case pct >= warn:
		return SeverityWarn
	}
	return SeverityNormal
}

// CPUSeverity classifies a CPU-average percentage.
func CPUSeverity(pct float64) Severity { return Classify(pct, CPUWarnPct, CPUCritPct) }

// MemSeverity classifies a memory-usage percentage.
func MemSeverity(pct float64) Severity { return Classify(pct, MemWarnPct, MemCritPct) }

// GPUSeverity classifies an aggregate GPU memory-usage percentage.
func GPUSeverity(pct float64) Severity { return Classify(pct, GPUWarnPct, GPUCritPct) }
