// Package tui is the thin presentation adapter over the event pipeline: it
// renders what the core emits (entries, badge values, connection labels)
// and feeds user input back into it.
package tui

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/eventdeck/eventdeck/internal/dispatch"
	"github.com/eventdeck/eventdeck/internal/eventfilter"
	"github.com/eventdeck/eventdeck/internal/logbuf"
	"github.com/eventdeck/eventdeck/internal/metrics"
	"github.com/eventdeck/eventdeck/internal/model"
	"github.com/eventdeck/eventdeck/internal/prefs"
	"github.com/eventdeck/eventdeck/internal/stream"
)

// Subscription slots; each holds at most one live registration.
const (
	slotLogSink     = "log-sink"
	slotMetricsSink = "metrics-sink"
)

const (
	envelopeQueue   = 256
	rateWindowTicks = 30
)

// Focusable filter-bar fields, in tab order.
const (
	fieldNone = iota - 1
	fieldPrefix
	fieldInclude
	fieldExclude
	fieldPort
	fieldCount
)

// Config carries everything the dashboard needs at construction.
type Config struct {
	Host   string
	Replay int
	Prefs  *prefs.Store
	HTTP   *http.Client
	Log    zerolog.Logger
}

// DashboardModel is the bubbletea model for the dashboard. All core state
// (buffer, registry, snapshot) is touched exclusively from Update, so the
// single-threaded model of the pipeline holds.
type DashboardModel struct {
	cfg  Config
	keys KeyMap

	client    *stream.Client
	registry  *dispatch.Registry
	buffer    *logbuf.Buffer
	projector *metrics.Projector

	envelopes chan model.Envelope
	states    chan model.ConnState

	connState model.ConnState
	snap      *model.ResourceSnapshot

	paused bool
	pretty bool
	wrap   bool

	inputs []textinput.Model
	focus  int

	rateCounts []int
	eventsTick int

	width  int
	height int
}

// NewDashboard wires the event pipeline behind a fresh dashboard instance.
// Nothing is shared between instances; tests construct as many as they
// like.
func NewDashboard(cfg Config) *DashboardModel {
	m := &DashboardModel{
		cfg:       cfg,
		keys:      DefaultKeyMap(),
		registry:  dispatch.New(cfg.Log),
		buffer:    logbuf.New(model.DefaultLogCapacity),
		projector: metrics.NewProjector(cfg.HTTP),
		envelopes: make(chan model.Envelope, envelopeQueue),
		states:    make(chan model.ConnState, 8),
		connState: model.StateIdle,
		focus:     fieldNone,
	}

	m.client = stream.NewClient(cfg.HTTP, cfg.Log)
	m.client.OnEnvelope = func(env model.Envelope) { m.envelopes <- env }
	m.client.OnState = func(s model.ConnState) {
		select {
		case m.states <- s:
		default:
		}
	}

	// The projector callback runs inside Dispatch, which runs inside
	// Update; writing the field directly is safe.
	m.projector.OnSnapshot = func(snap model.ResourceSnapshot) {
		m.snap = &snap
	}

	m.registry.Subscribe(slotLogSink, dispatch.Wildcard, m.appendEntry)
	m.registry.Subscribe(slotMetricsSink, model.KindProbeMetrics, m.projector.HandleEnvelope)

	m.inputs = make([]textinput.Model, fieldCount)
	for i := range m.inputs {
		ti := textinput.New()
		ti.CharLimit = 128
		ti.Width = 18
		m.inputs[i] = ti
	}
	m.inputs[fieldPrefix].Placeholder = "topic prefix"
	m.inputs[fieldInclude].Placeholder = "include tokens"
	m.inputs[fieldExclude].Placeholder = "exclude tokens"
	m.inputs[fieldPort].Placeholder = "port"
	m.inputs[fieldPort].CharLimit = 5
	m.inputs[fieldPort].Width = 6
	if cfg.Prefs != nil {
		m.inputs[fieldPort].SetValue(strconv.Itoa(cfg.Prefs.Port()))
	}

	return m
}

// appendEntry is the log-sink handler: filter, project, buffer. The filter
// sees what the user sees in a log line: the kind label plus the compact
// body, so tokens match either.
func (m *DashboardModel) appendEntry(env model.Envelope) {
	if m.paused {
		return
	}
	entry := model.LogEntry{Time: env.Time, Kind: env.Kind, Body: env.Payload}
	text := entry.Kind + "  " + logbuf.Body(entry, false)
	if !eventfilter.Accepts(text, m.inputs[fieldInclude].Value(), m.inputs[fieldExclude].Value()) {
		return
	}
	m.buffer.Append(entry)
}

// baseURL derives the server address from the port field, falling back to
// the shared default on garbage input.
func (m *DashboardModel) baseURL() string {
	port, err := strconv.Atoi(m.inputs[fieldPort].Value())
	if err != nil || port <= 0 || port > 65535 {
		port = model.DefaultPort
	}
	host := m.cfg.Host
	if host == "" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%d", host, port)
}

// connect supersedes any live connection using the current prefix field.
func (m *DashboardModel) connect(replay int) {
	m.client.Connect(m.baseURL(), stream.Options{
		Replay: replay,
		Prefix: m.inputs[fieldPrefix].Value(),
	})
}

// persistPort writes the edited port back to the preference store when it
// changed. Failures are logged, never surfaced.
func (m *DashboardModel) persistPort() {
	if m.cfg.Prefs == nil {
		return
	}
	port, err := strconv.Atoi(m.inputs[fieldPort].Value())
	if err != nil || port <= 0 || port > 65535 {
		return
	}
	if err := m.cfg.Prefs.SetPort(port); err != nil {
		m.cfg.Log.Warn().Err(err).Msg("persist port preference")
	}
}

// Init starts the stream, the initial metrics fetch, and the pump cmds.
func (m *DashboardModel) Init() tea.Cmd {
	m.connect(m.cfg.Replay)
	return tea.Batch(
		m.waitEnvelope(),
		m.waitState(),
		m.fetchMetricsCmd(),
		rateTick(),
	)
}

func (m *DashboardModel) waitEnvelope() tea.Cmd {
	return func() tea.Msg {
		return envelopeMsg(<-m.envelopes)
	}
}

func (m *DashboardModel) waitState() tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-m.states)
	}
}

func (m *DashboardModel) fetchMetricsCmd() tea.Cmd {
	base := m.baseURL()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		snap, err := m.projector.FetchOnce(ctx, base)
		if err != nil {
			return metricsFetchFailedMsg{err: err}
		}
		return snapshotMsg(snap)
	}
}

func rateTick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return rateTickMsg(t)
	})
}
