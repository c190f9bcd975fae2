package relay

import (
	"log"

	"roulette/internal/protocol"
	"roulette/internal/registry"
)

// Relay forwards addressed events between sessions without interpreting
// their payloads. Delivery is fire-and-forget: if the target is not a live
// session the event is silently dropped and the sender is never told;
// partner loss surfaces through partner_left, not relay errors.
type Relay struct {
	registry *registry.Registry
}

func NewRelay(reg *registry.Registry) *Relay {
	return &Relay{registry: reg}
}

// Deliver queues a server-originated event for a session. Reports whether
// the session was reachable.
func (r *Relay) Deliver(sessionID string, ev protocol.Event) bool {
	c, ok := r.registry.Lookup(sessionID)
	if !ok {
		return false
	}
	return c.Enqueue(ev)
}

// Forward relays a client's addressed event to its target, stamped with the
// sender's ID. Successive Forward calls from one sender to one target are
// delivered in call order: the sender's events arrive serially from its read
// pump and the target's write pump drains its queue FIFO.
func (r *Relay) Forward(from, to string, ev protocol.Event) {
	ev.From = from
	ev.To = ""
	if !r.Deliver(to, ev) {
		log.Printf("📭 Dropped %s from %s: target %s not reachable", ev.Type, from, to)
	}
}
