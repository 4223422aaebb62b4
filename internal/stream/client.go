// Package stream owns the lifecycle of the event-stream connection:
// connect with optional replay and topic-prefix filter, supersede any prior
// connection, and surface state transitions to observers.
package stream

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/eventdeck/eventdeck/internal/model"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// Options selects what the server delivers on a fresh connection.
type Options struct {
	// Replay is the number of historical events to request on open.
	Replay int
	// Prefix is a server-side topic-prefix filter; empty requests all kinds.
	Prefix string
}

// Client manages exactly one live stream connection. Connect supersedes any
// previous connection: the old transport is torn down first and a
// superseded connection delivers nothing further. Envelopes and state
// transitions are handed to the callbacks in transport order.
type Client struct {
	OnEnvelope func(model.Envelope)
	OnState    func(model.ConnState)

	httpc *http.Client
	log   zerolog.Logger

	mu          sync.Mutex
	gen         int
	cancel      context.CancelFunc
	state       model.ConnState
	lastEventID string
}

// NewClient returns an idle client. Callers set OnEnvelope/OnState before
// the first Connect.
func NewClient(httpc *http.Client, log zerolog.Logger) *Client {
	if httpc == nil {
		httpc = http.DefaultClient
	}
	return &Client{httpc: httpc, log: log, state: model.StateIdle}
}

// State returns the current connection state.
func (c *Client) State() model.ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect opens a stream to <base>/admin/events with the given options,
// retiring any previous connection first. It returns immediately; delivery
// happens on a background goroutine feeding the callbacks.
func (c *Client) Connect(base string, opts Options) {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.gen++
	gen := c.gen
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.lastEventID = ""
	c.mu.Unlock()

	c.setState(gen, model.StateConnecting)
	go c.run(ctx, gen, base, opts)
}

// Close tears down the live connection, if any, and moves to closed.
func (c *Client) Close() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.gen++
	gen := c.gen
	c.mu.Unlock()
	c.setState(gen, model.StateClosed)
}

// EventsURL builds the stream URL for base and opts. Replay is always sent;
// prefix only when non-empty.
func EventsURL(base string, opts Options) string {
	q := url.Values{}
	q.Set("replay", strconv.Itoa(opts.Replay))
	if opts.Prefix != "" {
		q.Set("prefix", opts.Prefix)
	}
	return strings.TrimRight(base, "/") + model.EventsPath + "?" + q.Encode()
}

// run is the per-connection loop: stream until the transport fails, then
// back off (doubling, capped) and reconnect, resuming from the last seen
// event id. The loop exits only when its context is cancelled, i.e. when
// the connection is superseded or closed.
func (c *Client) run(ctx context.Context, gen int, base string, opts Options) {
	backoff := initialBackoff
	for {
		opened, err := c.streamOnce(ctx, gen, base, opts)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			c.log.Warn().Err(err).Str("base", base).Msg("stream interrupted")
		}
		if opened {
			backoff = initialBackoff
		}
		c.setState(gen, model.StateError)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
		c.setState(gen, model.StateConnecting)
	}
}

// streamOnce performs one connect/read cycle. It reports whether the
// connection reached the open state.
func (c *Client) streamOnce(ctx context.Context, gen int, base string, opts Options) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, EventsURL(base, opts), nil)
	if err != nil {
		return false, fmt.Errorf("stream: build request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	if last := c.lastSeenID(); last != "" {
		req.Header.Set("Last-Event-ID", last)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return false, fmt.Errorf("stream: connect: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("stream: unexpected status %s", resp.Status)
	}

	c.setState(gen, model.StateOpen)

	scanner := newFrameScanner(resp.Body)
	for {
		f, err := scanner.next()
		if err != nil {
			return true, fmt.Errorf("stream: read: %w", err)
		}
		if f.data == "" {
			continue
		}
		env := decodeEnvelope(f, time.Now())
		if !c.deliver(gen, env) {
			return true, nil
		}
	}
}

// deliver hands env to the envelope callback iff the connection is still
// current. It reports whether delivery went through.
func (c *Client) deliver(gen int, env model.Envelope) bool {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return false
	}
	if env.ID != "" {
		c.lastEventID = env.ID
	}
	fn := c.OnEnvelope
	c.mu.Unlock()

	if fn != nil {
		fn(env)
	}
	return true
}

func (c *Client) lastSeenID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastEventID
}

// setState records a transition and notifies the observer, dropping the
// update when the connection has been superseded in the meantime.
func (c *Client) setState(gen int, s model.ConnState) {
	c.mu.Lock()
	if gen != c.gen || c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	fn := c.OnState
	c.mu.Unlock()

	c.log.Debug().Stringer("state", s).Msg("connection state changed")
	if fn != nil {
		fn(s)
	}
}
