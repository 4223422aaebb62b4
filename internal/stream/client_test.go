package stream

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/eventdeck/eventdeck/internal/model"
)

func TestEventsURL(t *testing.T) {
	got := EventsURL("http://127.0.0.1:8091/", Options{Replay: 50, Prefix: "probe."})
	want := "http://127.0.0.1:8091/admin/events?prefix=probe.&replay=50"
	if got != want {
		t.Fatalf("EventsURL = %q, want %q", got, want)
	}

	got = EventsURL("http://h", Options{Replay: 0})
	want = "http://h/admin/events?replay=0"
	if got != want {
		t.Fatalf("EventsURL without prefix = %q, want %q", got, want)
	}
}

// streamServer is a controllable SSE endpoint for connection tests.
type streamServer struct {
	srv *httptest.Server

	mu      sync.Mutex
	queries []url.Values
	conns   int
	active  int
}

// newStreamServer serves one event per interval carrying the connection
// ordinal until the client goes away.
func newStreamServer(t *testing.T, interval time.Duration) *streamServer {
	t.Helper()
	s := &streamServer{}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.conns++
		s.active++
		conn := s.conns
		s.queries = append(s.queries, r.URL.Query())
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			s.active--
			s.mu.Unlock()
		}()

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		flusher.Flush()

		seq := 0
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
				seq++
				fmt.Fprintf(w, "event: test.tick\nid: %d\ndata: {\"conn\":%d,\"seq\":%d}\n\n", seq, conn, seq)
				flusher.Flush()
			}
		}
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *streamServer) activeConns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *streamServer) firstQuery() url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queries) == 0 {
		return nil
	}
	return s.queries[0]
}

type connPayload struct {
	Conn int `json:"conn"`
	Seq  int `json:"seq"`
}

func collectEnvelopes(t *testing.T, ch <-chan model.Envelope, d time.Duration) []connPayload {
	t.Helper()
	deadline := time.After(d)
	var out []connPayload
	for {
		select {
		case env := <-ch:
			var p connPayload
			if err := json.Unmarshal(env.Payload, &p); err != nil {
				t.Fatalf("payload %s: %v", env.Payload, err)
			}
			out = append(out, p)
		case <-deadline:
			return out
		}
	}
}

func TestConnectSendsReplayAndPrefixParams(t *testing.T) {
	s := newStreamServer(t, 20*time.Millisecond)

	envs := make(chan model.Envelope, 64)
	c := NewClient(s.srv.Client(), zerolog.Nop())
	c.OnEnvelope = func(env model.Envelope) { envs <- env }
	c.Connect(s.srv.URL, Options{Replay: 50, Prefix: "probe."})
	defer c.Close()

	select {
	case <-envs:
	case <-time.After(2 * time.Second):
		t.Fatal("no envelope delivered")
	}

	q := s.firstQuery()
	if len(q) != 2 {
		t.Fatalf("query = %v, want exactly replay and prefix", q)
	}
	if q.Get("replay") != "50" || q.Get("prefix") != "probe." {
		t.Fatalf("query = %v", q)
	}
}

func TestConnectSupersedesPriorConnection(t *testing.T) {
	s := newStreamServer(t, 10*time.Millisecond)

	envs := make(chan model.Envelope, 256)
	c := NewClient(s.srv.Client(), zerolog.Nop())
	c.OnEnvelope = func(env model.Envelope) { envs <- env }

	c.Connect(s.srv.URL, Options{Replay: 0})
	defer c.Close()

	// Wait until the first connection delivers.
	first := collectEnvelopes(t, envs, 200*time.Millisecond)
	if len(first) == 0 || first[0].Conn != 1 {
		t.Fatalf("first connection never delivered: %v", first)
	}

	// Supersede with different options and let the switch settle.
	c.Connect(s.srv.URL, Options{Replay: 0, Prefix: "task."})
	collectEnvelopes(t, envs, 300*time.Millisecond)

	// Everything delivered from here on comes from the new connection.
	got := collectEnvelopes(t, envs, 300*time.Millisecond)
	if len(got) == 0 {
		t.Fatal("superseding connection delivered nothing")
	}
	for _, p := range got {
		if p.Conn != 2 {
			t.Fatalf("stale connection still delivering: %+v", p)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for s.activeConns() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("active connections = %d, want 1", s.activeConns())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestStateTransitions(t *testing.T) {
	// A server that ends the stream right after one event forces the
	// open -> error path.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"x\":1}\n\n")
	}))
	defer srv.Close()

	states := make(chan model.ConnState, 16)
	c := NewClient(srv.Client(), zerolog.Nop())
	c.OnState = func(s model.ConnState) { states <- s }

	c.Connect(srv.URL, Options{})

	want := []model.ConnState{model.StateConnecting, model.StateOpen, model.StateError}
	for _, w := range want {
		select {
		case got := <-states:
			if got != w {
				t.Fatalf("state = %v, want %v", got, w)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for state %v", w)
		}
	}

	c.Close()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-states:
			if got == model.StateClosed {
				return
			}
		case <-deadline:
			t.Fatal("never reached closed state")
		}
	}
}

func TestCloseStopsDelivery(t *testing.T) {
	s := newStreamServer(t, 10*time.Millisecond)

	envs := make(chan model.Envelope, 256)
	c := NewClient(s.srv.Client(), zerolog.Nop())
	c.OnEnvelope = func(env model.Envelope) { envs <- env }

	c.Connect(s.srv.URL, Options{})
	if got := collectEnvelopes(t, envs, 200*time.Millisecond); len(got) == 0 {
		t.Fatal("no envelopes before close")
	}

	c.Close()
	collectEnvelopes(t, envs, 100*time.Millisecond) // drain in-flight
	if got := collectEnvelopes(t, envs, 200*time.Millisecond); len(got) != 0 {
		t.Fatalf("envelopes after close: %v", got)
	}
	if st := c.State(); st != model.StateClosed {
		t.Fatalf("state = %v, want closed", st)
	}
}
