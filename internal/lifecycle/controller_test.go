package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"

	"roulette/internal/match"
	"roulette/internal/pool"
	"roulette/internal/protocol"
	"roulette/internal/registry"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events map[string][]protocol.Event
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{events: make(map[string][]protocol.Event)}
}

func (n *recordingNotifier) Deliver(sessionID string, ev protocol.Event) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events[sessionID] = append(n.events[sessionID], ev)
	return true
}

func (n *recordingNotifier) eventsFor(sessionID string) []protocol.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]protocol.Event(nil), n.events[sessionID]...)
}

func (n *recordingNotifier) countType(sessionID string, typ protocol.EventType) int {
	count := 0
	for _, ev := range n.eventsFor(sessionID) {
		if ev.Type == typ {
			count++
		}
	}
	return count
}

func (n *recordingNotifier) lastType(sessionID string) protocol.EventType {
	evs := n.eventsFor(sessionID)
	if len(evs) == 0 {
		return ""
	}
	return evs[len(evs)-1].Type
}

func newTestController() (*Controller, *pool.MemoryStore, *match.Pairs, *recordingNotifier) {
	st := pool.NewMemoryStore()
	pairs := match.NewPairs()
	engine := match.NewEngine(st, pairs)
	reg := registry.NewRegistry()
	notifier := newRecordingNotifier()
	c := NewController(st, pairs, engine, reg, notifier, nil)
	return c, st, pairs, notifier
}

func TestJoinQueue_EmptyPoolWaits(t *testing.T) {
	ctx := context.Background()
	c, st, _, notifier := newTestController()

	c.Connect("x")
	if err := c.JoinQueue(ctx, "x", "US", nil); err != nil {
		t.Fatalf("JoinQueue: %v", err)
	}

	if state, _ := c.StateOf("x"); state != StateWaiting {
		t.Fatalf("state = %v, want waiting", state)
	}
	if got := notifier.lastType("x"); got != protocol.EventWaiting {
		t.Fatalf("last event = %q, want waiting", got)
	}
	if n, _ := st.Count(ctx); n != 1 {
		t.Fatalf("pool Count = %d, want exactly one entry", n)
	}
}

func TestJoinQueue_PairsWithWaitingSession(t *testing.T) {
	ctx := context.Background()
	c, st, pairs, notifier := newTestController()

	c.Connect("y")
	c.Connect("x")
	if err := c.JoinQueue(ctx, "y", "US", []string{"music"}); err != nil {
		t.Fatalf("JoinQueue y: %v", err)
	}
	if err := c.JoinQueue(ctx, "x", "US", []string{"music"}); err != nil {
		t.Fatalf("JoinQueue x: %v", err)
	}

	// Symmetry invariant.
	if partner, _ := pairs.Partner("x"); partner != "y" {
		t.Fatalf("x's partner = %q, want y", partner)
	}
	if partner, _ := pairs.Partner("y"); partner != "x" {
		t.Fatalf("y's partner = %q, want x", partner)
	}

	for _, id := range []string{"x", "y"} {
		if state, _ := c.StateOf(id); state != StatePaired {
			t.Fatalf("%s state = %v, want paired", id, state)
		}
		if notifier.countType(id, protocol.EventPaired) != 1 {
			t.Fatalf("%s paired notifications = %d, want 1", id, notifier.countType(id, protocol.EventPaired))
		}
	}

	if n, _ := st.Count(ctx); n != 0 {
		t.Fatalf("pool Count = %d, want empty", n)
	}
}

func TestJoinQueue_PrefersHighestScore(t *testing.T) {
	ctx := context.Background()
	c, _, pairs, _ := newTestController()

	c.Connect("y")
	c.Connect("z")
	c.Connect("x")
	if err := c.JoinQueue(ctx, "y", "FR", nil); err != nil {
		t.Fatalf("JoinQueue y: %v", err)
	}
	// Any two waiting sessions pair (score 0 qualifies), so z pairs with y;
	// y's skip then leaves both waiting, y ahead of z in the pool.
	if err := c.JoinQueue(ctx, "z", "US", []string{"sports"}); err != nil {
		t.Fatalf("JoinQueue z: %v", err)
	}
	c.Skip(ctx, "y")

	if err := c.JoinQueue(ctx, "x", "US", []string{"sports"}); err != nil {
		t.Fatalf("JoinQueue x: %v", err)
	}

	if partner, _ := pairs.Partner("x"); partner != "z" {
		t.Fatalf("x's partner = %q, want z (score 3 beats 0)", partner)
	}
	if state, _ := c.StateOf("y"); state != StateWaiting {
		t.Fatalf("y state = %v, want still waiting", state)
	}
}

func TestJoinQueue_RejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	c, st, _, _ := newTestController()

	c.Connect("x")
	if err := c.JoinQueue(ctx, "x", "US", nil); err != nil {
		t.Fatalf("first JoinQueue: %v", err)
	}
	if err := c.JoinQueue(ctx, "x", "US", nil); !errors.Is(err, ErrDuplicateState) {
		t.Fatalf("second JoinQueue = %v, want ErrDuplicateState", err)
	}

	if n, _ := st.Count(ctx); n != 1 {
		t.Fatalf("pool Count = %d, a duplicate join must not add entries", n)
	}
}

func TestJoinQueue_UnknownSession(t *testing.T) {
	c, _, _, _ := newTestController()
	if err := c.JoinQueue(context.Background(), "ghost", "", nil); !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("JoinQueue = %v, want ErrUnknownSession", err)
	}
}

func TestSkip_RequeuesBothWithoutInstantRematch(t *testing.T) {
	ctx := context.Background()
	c, st, pairs, notifier := newTestController()

	c.Connect("x")
	c.Connect("y")
	c.JoinQueue(ctx, "x", "US", nil)
	c.JoinQueue(ctx, "y", "US", nil)

	c.Skip(ctx, "x")

	if notifier.countType("y", protocol.EventPartnerLeft) != 1 {
		t.Fatalf("y partner_left notifications = %d, want 1", notifier.countType("y", protocol.EventPartnerLeft))
	}
	if _, ok := pairs.Partner("x"); ok {
		t.Fatal("pairing must be destroyed after skip")
	}

	// With no third party, both must wait; the pair must not re-form.
	for _, id := range []string{"x", "y"} {
		if state, _ := c.StateOf(id); state != StateWaiting {
			t.Fatalf("%s state = %v, want waiting", id, state)
		}
	}
	if n, _ := st.Count(ctx); n != 2 {
		t.Fatalf("pool Count = %d, want 2", n)
	}
}

func TestSkip_InitiatorMatchesThirdParty(t *testing.T) {
	ctx := context.Background()
	c, _, pairs, _ := newTestController()

	c.Connect("x")
	c.Connect("y")
	c.Connect("w")
	c.JoinQueue(ctx, "x", "US", nil)
	c.JoinQueue(ctx, "y", "US", nil) // x and y pair
	c.JoinQueue(ctx, "w", "US", nil) // w waits

	c.Skip(ctx, "x")

	if partner, _ := pairs.Partner("x"); partner != "w" {
		t.Fatalf("x's partner = %q, want w", partner)
	}
	if state, _ := c.StateOf("y"); state != StateWaiting {
		t.Fatalf("y state = %v, want waiting", state)
	}
}

func TestSkip_NoopWhenNotPaired(t *testing.T) {
	ctx := context.Background()
	c, st, _, notifier := newTestController()

	c.Connect("x")
	c.JoinQueue(ctx, "x", "US", nil)

	c.Skip(ctx, "x")

	if state, _ := c.StateOf("x"); state != StateWaiting {
		t.Fatalf("state = %v, skip while waiting must not change it", state)
	}
	if n, _ := st.Count(ctx); n != 1 {
		t.Fatalf("pool Count = %d, want 1 (no duplicate entry)", n)
	}
	if notifier.countType("x", protocol.EventPartnerLeft) != 0 {
		t.Fatal("skip while unpaired must not emit partner_left")
	}
}

func TestDisconnect_PairedNotifiesPartner(t *testing.T) {
	ctx := context.Background()
	c, st, pairs, notifier := newTestController()

	c.Connect("x")
	c.Connect("y")
	c.JoinQueue(ctx, "x", "US", nil)
	c.JoinQueue(ctx, "y", "US", nil)

	c.Disconnect(ctx, "x")

	if notifier.countType("y", protocol.EventPartnerLeft) != 1 {
		t.Fatalf("y partner_left notifications = %d, want 1", notifier.countType("y", protocol.EventPartnerLeft))
	}
	if _, ok := pairs.Partner("y"); ok {
		t.Fatal("pairing must be destroyed")
	}
	if state, _ := c.StateOf("y"); state != StateIdle {
		t.Fatalf("y state = %v, want idle (only skip auto re-queues)", state)
	}
	if _, ok := c.StateOf("x"); ok {
		t.Fatal("x's session record must be removed")
	}
	if n, _ := st.Count(ctx); n != 0 {
		t.Fatalf("pool Count = %d, want 0", n)
	}
}

func TestDisconnect_WaitingRemovesPoolEntry(t *testing.T) {
	ctx := context.Background()
	c, st, _, _ := newTestController()

	c.Connect("x")
	c.JoinQueue(ctx, "x", "US", nil)

	c.Disconnect(ctx, "x")

	if n, _ := st.Count(ctx); n != 0 {
		t.Fatalf("pool Count = %d, want 0", n)
	}
}

func TestDisconnect_Idempotent(t *testing.T) {
	ctx := context.Background()
	c, _, _, notifier := newTestController()

	c.Connect("x")
	c.Connect("y")
	c.JoinQueue(ctx, "x", "US", nil)
	c.JoinQueue(ctx, "y", "US", nil)

	c.Disconnect(ctx, "x")
	c.Disconnect(ctx, "x")

	if got := notifier.countType("y", protocol.EventPartnerLeft); got != 1 {
		t.Fatalf("y partner_left notifications = %d after double disconnect, want 1", got)
	}
}

func TestPartnerCanRejoinAfterDisconnect(t *testing.T) {
	ctx := context.Background()
	c, _, pairs, _ := newTestController()

	c.Connect("x")
	c.Connect("y")
	c.Connect("w")
	c.JoinQueue(ctx, "x", "US", nil)
	c.JoinQueue(ctx, "y", "US", nil)

	c.Disconnect(ctx, "x")

	if err := c.JoinQueue(ctx, "y", "US", nil); err != nil {
		t.Fatalf("rejoin after partner loss: %v", err)
	}
	if err := c.JoinQueue(ctx, "w", "US", nil); err != nil {
		t.Fatalf("JoinQueue w: %v", err)
	}
	if partner, _ := pairs.Partner("y"); partner != "w" {
		t.Fatalf("y's partner = %q, want w", partner)
	}
}
