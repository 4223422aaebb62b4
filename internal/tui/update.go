package tui

import (
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/eventdeck/eventdeck/internal/logbuf"
	"github.com/eventdeck/eventdeck/internal/model"
)

type (
	envelopeMsg model.Envelope
	stateMsg    model.ConnState
	snapshotMsg model.ResourceSnapshot
	rateTickMsg time.Time

	metricsFetchFailedMsg struct{ err error }
)

// Update handles messages.
func (m *DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case envelopeMsg:
		m.registry.Dispatch(model.Envelope(msg))
		m.eventsTick++
		return m, m.waitEnvelope()

	case stateMsg:
		m.connState = model.ConnState(msg)
		return m, m.waitState()

	case snapshotMsg:
		// The one-shot fetch result. A probe envelope may have delivered
		// fresher data while the fetch was in flight; keep that.
		if m.snap == nil {
			snap := model.ResourceSnapshot(msg)
			m.snap = &snap
		}
		return m, nil

	case metricsFetchFailedMsg:
		// Badges keep their defaults; the probe stream will fill them in.
		m.cfg.Log.Warn().Err(msg.err).Msg("initial metrics fetch failed")
		return m, nil

	case rateTickMsg:
		m.rateCounts = append(m.rateCounts, m.eventsTick)
		if len(m.rateCounts) > rateWindowTicks {
			m.rateCounts = m.rateCounts[len(m.rateCounts)-rateWindowTicks:]
		}
		m.eventsTick = 0
		return m, rateTick()
	}

	return m, nil
}

func (m *DashboardModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Force quit works everywhere.
	if key.Matches(msg, m.keys.ForceQuit) {
		m.client.Close()
		return m, tea.Quit
	}

	// While a text field has focus, keystrokes belong to it; only
	// tab/enter/esc keep their control meaning.
	if m.focus != fieldNone {
		switch {
		case key.Matches(msg, m.keys.NextField):
			m.focusField((m.focus + 1) % fieldCount)
			return m, nil
		case key.Matches(msg, m.keys.Apply):
			m.blurAll()
			m.persistPort()
			m.connect(m.cfg.Replay)
			return m, nil
		case key.Matches(msg, m.keys.Escape):
			m.blurAll()
			return m, nil
		}
		var cmd tea.Cmd
		m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
		return m, cmd
	}

	// Modifier chords are reserved for the terminal.
	if msg.Alt {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.client.Close()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Pause):
		m.paused = !m.paused
	case key.Matches(msg, m.keys.Clear):
		m.buffer.Clear()
	case key.Matches(msg, m.keys.Replay):
		m.connect(m.cfg.Replay)
	case key.Matches(msg, m.keys.Pretty):
		m.pretty = !m.pretty
	case key.Matches(msg, m.keys.Wrap):
		m.wrap = !m.wrap
	case key.Matches(msg, m.keys.Copy):
		m.copyLog()
	case key.Matches(msg, m.keys.NextField):
		m.focusField(fieldPrefix)
	}
	return m, nil
}

func (m *DashboardModel) focusField(idx int) {
	m.blurAll()
	m.focus = idx
	m.inputs[idx].Focus()
}

func (m *DashboardModel) blurAll() {
	for i := range m.inputs {
		m.inputs[i].Blur()
	}
	m.focus = fieldNone
}

// copyLog puts the visible entries on the system clipboard. Best effort;
// a headless environment simply keeps its clipboard.
func (m *DashboardModel) copyLog() {
	var b strings.Builder
	for _, e := range m.buffer.Entries() {
		b.WriteString(logbuf.Render(e, m.pretty, false))
		b.WriteByte('\n')
	}
	if err := clipboard.WriteAll(b.String()); err != nil {
		m.cfg.Log.Debug().Err(err).Msg("clipboard copy failed")
	}
}
