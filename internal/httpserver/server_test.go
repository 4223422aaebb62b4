package httpserver

import (
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/eventdeck/eventdeck/internal/model"
	"github.com/eventdeck/eventdeck/internal/stream"
)

func startServer(t *testing.T) *Server {
	t.Helper()
	s := NewServer("127.0.0.1:0", zerolog.Nop())
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

func TestProbeMetricsEndpoint(t *testing.T) {
	s := startServer(t)
	s.SetStats(ProbeStats{
		CPU:    CPUStats{Avg: 42},
		Memory: MemoryStats{Used: 512, Total: 1024},
		GPUs:   []GPUStats{{MemUsed: 100, MemTotal: 200}},
	})

	resp, err := http.Get("http://" + s.Addr() + model.ProbeMetricsPath)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var wire struct {
		Data ProbeStats `json:"data"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		t.Fatalf("unmarshal %s: %v", body, err)
	}
	if wire.Data.CPU.Avg != 42 || wire.Data.Memory.Total != 1024 || len(wire.Data.GPUs) != 1 {
		t.Fatalf("payload = %+v", wire.Data)
	}
}

func collect(t *testing.T, ch <-chan model.Envelope, d time.Duration) []model.Envelope {
	t.Helper()
	deadline := time.After(d)
	var out []model.Envelope
	for {
		select {
		case env := <-ch:
			out = append(out, env)
		case <-deadline:
			return out
		}
	}
}

func TestReplayHonorsCountAndPrefix(t *testing.T) {
	s := startServer(t)
	s.Publish("probe.metrics", map[string]any{"seq": 1})
	s.Publish("task.done", map[string]any{"seq": 2})
	s.Publish("probe.metrics", map[string]any{"seq": 3})
	s.Publish("probe.metrics", map[string]any{"seq": 4})

	envs := make(chan model.Envelope, 16)
	c := stream.NewClient(nil, zerolog.Nop())
	c.OnEnvelope = func(env model.Envelope) { envs <- env }
	c.Connect("http://"+s.Addr(), stream.Options{Replay: 2, Prefix: "probe."})
	defer c.Close()

	got := collect(t, envs, 500*time.Millisecond)
	if len(got) != 2 {
		t.Fatalf("replayed %d envelopes, want 2: %+v", len(got), got)
	}
	// The last two matching events, oldest first.
	for i, env := range got {
		if env.Kind != "probe.metrics" {
			t.Fatalf("envelope %d kind = %q", i, env.Kind)
		}
	}
	var first, second struct{ Seq int }
	if err := json.Unmarshal(got[0].Payload, &first); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if err := json.Unmarshal(got[1].Payload, &second); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if first.Seq != 3 || second.Seq != 4 {
		t.Fatalf("replay order = %d,%d, want 3,4", first.Seq, second.Seq)
	}
}

func TestLiveFanOutFiltersByPrefix(t *testing.T) {
	s := startServer(t)

	envs := make(chan model.Envelope, 16)
	c := stream.NewClient(nil, zerolog.Nop())
	c.OnEnvelope = func(env model.Envelope) { envs <- env }

	opened := make(chan struct{}, 1)
	c.OnState = func(st model.ConnState) {
		if st == model.StateOpen {
			select {
			case opened <- struct{}{}:
			default:
			}
		}
	}

	c.Connect("http://"+s.Addr(), stream.Options{Prefix: "task."})
	defer c.Close()

	select {
	case <-opened:
	case <-time.After(2 * time.Second):
		t.Fatal("connection never opened")
	}
	// Give the server a beat to register the subscriber.
	time.Sleep(50 * time.Millisecond)

	s.Publish("probe.metrics", map[string]any{"cpu": map[string]any{"avg": 10}})
	s.Publish("task.done", map[string]any{"id": "t-1"})

	got := collect(t, envs, 500*time.Millisecond)
	if len(got) != 1 {
		t.Fatalf("received %d envelopes, want 1: %+v", len(got), got)
	}
	if got[0].Kind != "task.done" {
		t.Fatalf("kind = %q, want task.done", got[0].Kind)
	}
}

func TestEnvelopeCarriesTimeAndPayload(t *testing.T) {
	s := startServer(t)

	envs := make(chan model.Envelope, 16)
	c := stream.NewClient(nil, zerolog.Nop())
	c.OnEnvelope = func(env model.Envelope) { envs <- env }
	c.Connect("http://"+s.Addr(), stream.Options{Replay: 1})
	defer c.Close()

	s.Publish("svc.note", map[string]any{"msg": "hi"})

	got := collect(t, envs, 500*time.Millisecond)
	if len(got) == 0 {
		t.Fatal("no envelope delivered")
	}
	env := got[len(got)-1]
	if env.Kind != "svc.note" {
		t.Fatalf("kind = %q", env.Kind)
	}
	if time.Since(env.Time) > time.Minute {
		t.Fatalf("time not carried: %v", env.Time)
	}
	var p struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(env.Payload, &p); err != nil || p.Msg != "hi" {
		t.Fatalf("payload = %s (%v)", env.Payload, err)
	}
}
