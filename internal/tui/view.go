package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/eventdeck/eventdeck/internal/format"
	"github.com/eventdeck/eventdeck/internal/logbuf"
	"github.com/eventdeck/eventdeck/internal/model"
)

var (
	ColorBlue   = lipgloss.Color("39")
	ColorGreen  = lipgloss.Color("42")
	ColorYellow = lipgloss.Color("214")
	ColorRed    = lipgloss.Color("196")
	ColorGray   = lipgloss.Color("243")

	titleStyle = lipgloss.NewStyle().Foreground(ColorBlue).Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(ColorGray)

	statusOnStyle   = lipgloss.NewStyle().Foreground(ColorGreen).Bold(true)
	statusOffStyle  = lipgloss.NewStyle().Foreground(ColorGray)
	statusWarnStyle = lipgloss.NewStyle().Foreground(ColorYellow).Bold(true)

	badgeNormalStyle   = lipgloss.NewStyle().Foreground(ColorGreen)
	badgeWarnStyle     = lipgloss.NewStyle().Foreground(ColorYellow)
	badgeCriticalStyle = lipgloss.NewStyle().Foreground(ColorRed).Bold(true)

	logPaneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorGray).
			Padding(0, 1)
)

func badgeStyle(sev format.Severity) lipgloss.Style {
	switch sev {
	case format.SeverityCritical:
		return badgeCriticalStyle
	case format.SeverityWarn:
		return badgeWarnStyle
	}
	return badgeNormalStyle
}

func statusStyle(s model.ConnState) lipgloss.Style {
	switch s {
	case model.StateOpen:
		return statusOnStyle
	case model.StateConnecting, model.StateError:
		return statusWarnStyle
	}
	return statusOffStyle
}

// View renders the dashboard: header with status indicator, badge row,
// filter bar, event-rate chart, and the bounded log pane.
func (m *DashboardModel) View() string {
	if m.width == 0 {
		return "starting..."
	}

	var sections []string
	sections = append(sections, m.renderHeader())
	sections = append(sections, m.renderBadges())
	sections = append(sections, m.renderFilterBar())
	sections = append(sections, m.renderRateChart())
	sections = append(sections, m.renderLog())
	sections = append(sections, m.renderFooter())
	return strings.Join(sections, "\n")
}

func (m *DashboardModel) renderHeader() string {
	title := titleStyle.Render("eventdeck")
	status := statusStyle(m.connState).Render(m.connState.Label())
	pausedTag := ""
	if m.paused {
		pausedTag = statusWarnStyle.Render("  [paused]")
	}
	return fmt.Sprintf("%s  service: %s%s", title, status, pausedTag)
}

// renderBadges shows the three derived resource indicators. Before the
// first probe arrives they read the absent-value placeholder.
func (m *DashboardModel) renderBadges() string {
	if m.snap == nil {
		none := dimStyle.Render(format.Placeholder)
		return fmt.Sprintf("cpu %s  mem %s  gpu %s", none, none, none)
	}
	snap := *m.snap

	cpu := badgeStyle(format.CPUSeverity(snap.CPUAvg)).Render(format.Percent(snap.CPUAvg))

	memPct := snap.MemPercent()
	mem := badgeStyle(format.MemSeverity(memPct)).Render(fmt.Sprintf(
		"%s (%s / %s)", format.Percent(memPct), format.Bytes(snap.MemUsed), format.Bytes(snap.MemTotal)))

	gpuPct := snap.GPUPercent()
	gpu := badgeStyle(format.GPUSeverity(gpuPct)).Render(fmt.Sprintf(
		"%s (%s / %s)", format.Percent(gpuPct), format.Bytes(snap.GPUUsed), format.Bytes(snap.GPUTotal)))

	return fmt.Sprintf("cpu %s  mem %s  gpu %s", cpu, mem, gpu)
}

func (m *DashboardModel) renderFilterBar() string {
	labels := []string{"prefix", "include", "exclude", "port"}
	parts := make([]string, 0, len(labels))
	for i, label := range labels {
		parts = append(parts, fmt.Sprintf("%s %s", dimStyle.Render(label), m.inputs[i].View()))
	}
	return strings.Join(parts, "  ")
}

func (m *DashboardModel) renderLog() string {
	innerWidth := max(m.width-4, 20)
	height := m.logPaneHeight()

	var lines []string
	for _, e := range m.buffer.Entries() {
		rendered := logbuf.Render(e, m.pretty, m.wrap)
		for _, line := range strings.Split(rendered, "\n") {
			if !m.wrap {
				if runes := []rune(line); len(runes) > innerWidth {
					line = string(runes[:innerWidth])
				}
			}
			lines = append(lines, line)
			if len(lines) >= height {
				break
			}
		}
		if len(lines) >= height {
			break
		}
	}
	if len(lines) == 0 {
		lines = append(lines, dimStyle.Render("waiting for events..."))
	}

	return logPaneStyle.Width(m.width - 2).Render(strings.Join(lines, "\n"))
}

func (m *DashboardModel) renderFooter() string {
	bindings := []string{
		"p pause", "c clear", "r replay", "t pretty", "w wrap", "y copy",
		"tab filter", "q quit",
	}
	footer := strings.Join(bindings, " · ")
	return dimStyle.Render(fmt.Sprintf("%s · %d/%d entries", footer, m.buffer.Len(), model.DefaultLogCapacity))
}

// logPaneHeight leaves room for the fixed header/badge/filter/chart/footer
// rows.
func (m *DashboardModel) logPaneHeight() int {
	return max(m.height-rateChartHeight-7, 3)
}
