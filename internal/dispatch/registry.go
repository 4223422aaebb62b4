// Package dispatch multiplexes logical topic subscriptions over the single
// event stream: handlers register against a kind pattern and every received
// envelope is routed to all matching handlers.
package dispatch

import (
	"github.com/rs/zerolog"

	"github.com/eventdeck/eventdeck/internal/model"
)

// Wildcard matches every envelope kind.
const Wildcard = "*"

// Handler consumes one envelope. The envelope is only borrowed for the
// duration of the call.
type Handler func(model.Envelope)

// Handle identifies a live subscription. The zero Handle is not valid.
type Handle struct {
	slot string
	id   int
}

// Slot returns the logical slot the handle was issued for.
func (h Handle) Slot() string { return h.slot }

type subscription struct {
	id      int
	slot    string
	pattern string
	fn      Handler
}

// Registry owns the subscription table. Each logical slot (log sink,
// metrics sink, ...) holds at most one live subscription: re-registering a
// held slot is a no-op returning the original handle, so re-initialization
// cannot stack duplicate handlers.
//
// Registry is not safe for concurrent use; subscribe and dispatch both run
// on the event-dispatch goroutine.
type Registry struct {
	subs   []subscription
	held   map[string]Handle
	nextID int
	log    zerolog.Logger
}

// New returns an empty registry logging handler faults to log.
func New(log zerolog.Logger) *Registry {
	return &Registry{held: map[string]Handle{}, log: log}
}

// Subscribe registers fn for envelopes matching pattern under the given
// slot. If the slot already holds a subscription the call registers nothing
// and returns the existing handle.
func (r *Registry) Subscribe(slot, pattern string, fn Handler) Handle {
	if h, ok := r.held[slot]; ok {
		return h
	}
	r.nextID++
	h := Handle{slot: slot, id: r.nextID}
	r.subs = append(r.subs, subscription{id: h.id, slot: slot, pattern: pattern, fn: fn})
	r.held[slot] = h
	return h
}

// Cancel removes the subscription behind h and frees its slot. Cancelling
// an unknown or already-cancelled handle is a no-op.
func (r *Registry) Cancel(h Handle) {
	cur, ok := r.held[h.slot]
	if !ok || cur.id != h.id {
		return
	}
	delete(r.held, h.slot)
	for i, sub := range r.subs {
		if sub.id == h.id {
			r.subs = append(r.subs[:i], r.subs[i+1:]...)
			return
		}
	}
}

// Dispatch routes env to every handler whose pattern matches its kind, each
// exactly once. A panicking handler is isolated: remaining handlers still
// run and the connection is unaffected.
func (r *Registry) Dispatch(env model.Envelope) {
	for _, sub := range r.subs {
		if sub.pattern != Wildcard && sub.pattern != env.Kind {
			continue
		}
		r.invoke(sub, env)
	}
}

func (r *Registry) invoke(sub subscription, env model.Envelope) {
	defer func() {
		if v := recover(); v != nil {
			r.log.Error().
				Str("slot", sub.slot).
				Str("kind", env.Kind).
				Interface("panic", v).
				Msg("handler fault isolated during dispatch")
		}
	}()
	sub.fn(env)
}
