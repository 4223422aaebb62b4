// Package httpserver implements the development event source: an HTTP
// server exposing the admin event stream and the probe metrics snapshot
// that the dashboard consumes. It stands in for the production service
// during development and in end-to-end tests.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/eventdeck/eventdeck/internal/model"
)

const (
	historyCap        = 1000
	heartbeatInterval = 15 * time.Second
	subscriberBuffer  = 64
)

// CPUStats, MemoryStats, GPUStats, and ProbeStats mirror the wire shape of
// the probe metrics snapshot.
type CPUStats struct {
	Avg float64 `json:"avg"`
}

type MemoryStats struct {
	Used  int64 `json:"used"`
	Total int64 `json:"total"`
}

type GPUStats struct {
	MemUsed  int64 `json:"mem_used"`
	MemTotal int64 `json:"mem_total"`
}

type ProbeStats struct {
	CPU    CPUStats    `json:"cpu"`
	Memory MemoryStats `json:"memory"`
	GPUs   []GPUStats  `json:"gpus"`
}

type event struct {
	id   uint64
	kind string
	data []byte
}

type subscriber struct {
	ch     chan event
	prefix string
}

// Server serves GET /admin/events (SSE, honoring replay and prefix query
// parameters) and GET /admin/probe/metrics.
type Server struct {
	addr   string
	server *http.Server
	ctx    context.Context
	cancel context.CancelFunc
	log    zerolog.Logger

	mu      sync.Mutex
	subs    map[*subscriber]struct{}
	history []event
	nextID  uint64
	stats   ProbeStats
}

// NewServer creates a server bound to addr.
func NewServer(addr string, log zerolog.Logger) *Server {
	if addr == "" {
		addr = fmt.Sprintf("0.0.0.0:%d", model.DefaultPort)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:   addr,
		ctx:    ctx,
		cancel: cancel,
		log:    log,
		subs:   map[*subscriber]struct{}{},
	}
}

// Addr returns the listen address, resolved after Start.
func (s *Server) Addr() string { return s.addr }

// Start begins serving. It returns once the listener is bound.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET(model.EventsPath, s.handleEvents)
	r.GET(model.ProbeMetricsPath, s.handleProbeMetrics)

	s.server = &http.Server{
		Handler:           r,
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("httpserver: listen: %w", err)
	}
	s.addr = listener.Addr().String()

	go s.server.Serve(listener)
	return nil
}

// Stop disconnects all stream clients and shuts the server down.
func (s *Server) Stop() error {
	s.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// SetStats replaces the snapshot served by the probe endpoint.
func (s *Server) SetStats(stats ProbeStats) {
	s.mu.Lock()
	s.stats = stats
	s.mu.Unlock()
}

// Publish emits one event to the stream: it is recorded for replay and
// fanned out to every connected client whose prefix matches.
func (s *Server) Publish(kind string, payload any) {
	body, err := json.Marshal(map[string]any{
		"kind":    kind,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"payload": payload,
	})
	if err != nil {
		s.log.Error().Err(err).Str("kind", kind).Msg("drop unmarshalable event")
		return
	}

	s.mu.Lock()
	s.nextID++
	ev := event{id: s.nextID, kind: kind, data: body}
	s.history = append(s.history, ev)
	if len(s.history) > historyCap {
		s.history = s.history[len(s.history)-historyCap:]
	}
	for sub := range s.subs {
		if !strings.HasPrefix(kind, sub.prefix) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			// Slow consumer; skip rather than stall the emitter.
		}
	}
	s.mu.Unlock()
}

func (s *Server) subscribe(prefix string) *subscriber {
	sub := &subscriber{ch: make(chan event, subscriberBuffer), prefix: prefix}
	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()
	return sub
}

func (s *Server) unsubscribe(sub *subscriber) {
	s.mu.Lock()
	delete(s.subs, sub)
	s.mu.Unlock()
}

// replayEvents returns up to n recorded events matching prefix, oldest
// first, optionally only those after the given event id.
func (s *Server) replayEvents(n int, prefix string, afterID uint64) []event {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []event
	for _, ev := range s.history {
		if ev.id <= afterID {
			continue
		}
		if strings.HasPrefix(ev.kind, prefix) {
			out = append(out, ev)
		}
	}
	if n >= 0 && len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}

func (s *Server) handleEvents(c *gin.Context) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.String(http.StatusInternalServerError, "streaming unsupported")
		return
	}

	replay, _ := strconv.Atoi(c.DefaultQuery("replay", "0"))
	prefix := c.Query("prefix")
	var afterID uint64
	if last := c.GetHeader("Last-Event-ID"); last != "" {
		afterID, _ = strconv.ParseUint(last, 10, 64)
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	// Subscribe before replaying so no event slips between the two.
	sub := s.subscribe(prefix)
	defer s.unsubscribe(sub)

	var lastSent uint64
	for _, ev := range s.replayEvents(replay, prefix, afterID) {
		if err := writeEvent(c.Writer, ev); err != nil {
			return
		}
		lastSent = ev.id
	}
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(c.Writer, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev := <-sub.ch:
			if ev.id <= lastSent {
				continue
			}
			if err := writeEvent(c.Writer, ev); err != nil {
				return
			}
			lastSent = ev.id
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, ev event) error {
	_, err := fmt.Fprintf(w, "event: %s\nid: %d\ndata: %s\n\n", ev.kind, ev.id, ev.data)
	return err
}

func (s *Server) handleProbeMetrics(c *gin.Context) {
	s.mu.Lock()
	stats := s.stats
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"data": stats})
}
