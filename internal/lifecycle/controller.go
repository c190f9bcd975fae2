package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"roulette/internal/match"
	"roulette/internal/pool"
	"roulette/internal/protocol"
	"roulette/internal/registry"
	"roulette/internal/security"
)

var (
	ErrUnknownSession = errors.New("lifecycle: unknown session")

	// ErrDuplicateState rejects join_queue from a session that is already
	// waiting or paired; accepting it would put the session in two pool
	// entries or two pairings.
	ErrDuplicateState = errors.New("lifecycle: already waiting or paired")

	// ErrStoreUnavailable marks a transient pool backend failure. The join
	// is rejected, local state is untouched, and the client may retry.
	ErrStoreUnavailable = errors.New("lifecycle: waiting pool unavailable")
)

// Notifier delivers a server-to-client event to a session, reporting whether
// the session was reachable.
type Notifier interface {
	Deliver(sessionID string, ev protocol.Event) bool
}

type session struct {
	id        string
	mu        sync.Mutex
	state     State
	country   string
	interests []string
}

func (s *session) entry() pool.Entry {
	return pool.Entry{
		SessionID:  s.id,
		Country:    s.country,
		Interests:  s.interests,
		EnqueuedAt: time.Now(),
	}
}

// Controller owns the per-session state machine and orchestrates the pool,
// pairing engine, registry and notifier. All mutations of a session's state
// happen under that session's mutex; operations touching a pairing take both
// sides' mutexes in session-ID order.
type Controller struct {
	pool     pool.Store
	pairs    *match.Pairs
	engine   *match.Engine
	registry *registry.Registry
	notifier Notifier
	audit    *security.AuditLogger

	mu       sync.Mutex
	sessions map[string]*session
}

func NewController(p pool.Store, pairs *match.Pairs, engine *match.Engine, reg *registry.Registry, notifier Notifier, audit *security.AuditLogger) *Controller {
	return &Controller{
		pool:     p,
		pairs:    pairs,
		engine:   engine,
		registry: reg,
		notifier: notifier,
		audit:    audit,
		sessions: make(map[string]*session),
	}
}

// Connect creates the idle session record for a freshly registered
// connection.
func (c *Controller) Connect(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[sessionID] = &session{id: sessionID, state: StateIdle}
}

func (c *Controller) get(sessionID string) *session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions[sessionID]
}

// StateOf reports a session's current lifecycle state.
func (c *Controller) StateOf(sessionID string) (State, bool) {
	s := c.get(sessionID)
	if s == nil {
		return StateTerminated, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, true
}

// JoinQueue runs the pairing engine for the session: either it is paired
// with the best-scoring waiting entry (both sides are notified) or it enters
// the pool. Rejected with ErrDuplicateState unless the session is idle.
func (c *Controller) JoinQueue(ctx context.Context, sessionID, country string, interests []string) error {
	s := c.get(sessionID)
	if s == nil {
		return ErrUnknownSession
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return ErrDuplicateState
	}
	s.country = country
	s.interests = interests

	return c.matchLocked(ctx, s)
}

// matchLocked runs the engine for s, applies the outcome and notifies.
// Caller holds s.mu and s must be idle with no pairing record.
func (c *Controller) matchLocked(ctx context.Context, s *session) error {
	res, err := c.engine.RequestMatch(ctx, s.entry(), func(partnerID string) bool {
		return c.adopt(s.id, partnerID)
	})
	if err != nil {
		if errors.Is(err, match.ErrAlreadyPaired) {
			return ErrDuplicateState
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if res.Matched {
		if next, ok := Next(s.state, InputMatched); ok {
			s.state = next
		}
		c.notify(s.id, protocol.Event{Type: protocol.EventPaired, PeerID: res.PartnerID})
		c.notify(res.PartnerID, protocol.Event{Type: protocol.EventPaired, PeerID: s.id})
		if c.audit != nil {
			c.audit.LogPaired(s.id, res.PartnerID)
		}
		log.Printf("🤝 Paired: %s <-> %s", s.id, res.PartnerID)
		return nil
	}

	if next, ok := Next(s.state, InputEnqueued); ok {
		s.state = next
	}
	c.notify(s.id, protocol.Event{Type: protocol.EventWaiting})
	if c.audit != nil {
		c.audit.LogEnqueued(s.id)
	}
	log.Printf("🕓 Waiting: %s", s.id)
	return nil
}

// adopt commits the candidate side of a pairing: under the candidate's lock
// it verifies the candidate is still a live waiting session, flips it to
// paired and records the symmetric pairing. Returns false for candidates
// that vanished between their enqueue and this dequeue; their entry is
// already gone from the pool and their own cleanup is an idempotent no-op.
func (c *Controller) adopt(sessionID, partnerID string) bool {
	p := c.get(partnerID)
	if p == nil {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateWaiting {
		return false
	}
	next, ok := Next(p.state, InputMatched)
	if !ok {
		return false
	}
	p.state = next
	c.pairs.Set(sessionID, partnerID)
	return true
}

// Skip handles a "next" request: the partner is told its counterpart left
// and is re-queued, while the initiator immediately seeks a new partner.
// The initiator's search runs before the partner re-enters the pool, so the
// same pair cannot instantly re-form.
func (c *Controller) Skip(ctx context.Context, sessionID string) {
	s := c.get(sessionID)
	if s == nil {
		return
	}

	partnerID, paired := c.pairs.Partner(sessionID)
	if !paired {
		return
	}

	p := c.get(partnerID)
	if p == nil {
		// Partner record already torn down; drop the stale pairing and let
		// the initiator search again on its own.
		c.pairs.Delete(sessionID)
		s.mu.Lock()
		defer s.mu.Unlock()
		if next, ok := Next(s.state, InputSkip); ok {
			s.state = next
		}
		if err := c.matchLocked(ctx, s); err != nil {
			c.notifyError(sessionID, err)
		}
		return
	}

	first, second := s, p
	if second.id < first.id {
		first, second = second, first
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	// Revalidate under both locks; a racing disconnect may have torn the
	// pairing down while we were acquiring them.
	if cur, ok := c.pairs.Partner(sessionID); !ok || cur != partnerID || s.state != StatePaired {
		return
	}

	c.pairs.Delete(sessionID)

	if next, ok := Next(s.state, InputSkip); ok {
		s.state = next
	}
	c.notify(partnerID, protocol.Event{Type: protocol.EventPartnerLeft})
	if c.audit != nil {
		c.audit.LogSkip(sessionID, partnerID)
	}
	log.Printf("🔄 Skip: %s left %s", sessionID, partnerID)

	if err := c.matchLocked(ctx, s); err != nil {
		c.notifyError(sessionID, err)
	}

	// Re-queue the skipped partner after the initiator's search so the
	// initiator could not have drawn it back out.
	if next, ok := Next(p.state, InputPartnerSkipped); ok {
		if err := c.pool.Enqueue(ctx, p.entry()); err != nil {
			log.Printf("⚠️  Failed to re-queue %s: %v", partnerID, err)
			if idle, ok := Next(p.state, InputPartnerLeft); ok {
				p.state = idle
			}
			return
		}
		p.state = next
	}
}

// Disconnect unwinds everything a session holds: the pairing (with a
// partner_left to the other side), its pool entry and its registry slot.
// Every step is best-effort and runs even if a prior one failed, so an
// error during cleanup can never leak a session slot. Calling it twice has
// the same observable effect as calling it once.
func (c *Controller) Disconnect(ctx context.Context, sessionID string) {
	c.mu.Lock()
	s, ok := c.sessions[sessionID]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.sessions, sessionID)
	c.mu.Unlock()

	if partnerID, paired := c.pairs.Partner(sessionID); paired {
		c.releasePartner(s, partnerID)
	}

	if err := c.pool.Remove(ctx, sessionID); err != nil {
		log.Printf("⚠️  Failed to remove %s from pool: %v", sessionID, err)
	}

	c.registry.Unregister(sessionID)

	s.mu.Lock()
	if next, ok := Next(s.state, InputDisconnect); ok {
		s.state = next
	}
	s.mu.Unlock()

	if c.audit != nil {
		c.audit.LogDisconnect(sessionID)
	}
	log.Printf("❌ Disconnected: %s", sessionID)
}

// releasePartner tears down the pairing from the disconnecting side and
// notifies the survivor, which returns to idle and may rejoin on its own.
func (c *Controller) releasePartner(s *session, partnerID string) {
	p := c.get(partnerID)
	if p == nil {
		c.pairs.Delete(s.id)
		return
	}

	first, second := s, p
	if second.id < first.id {
		first, second = second, first
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	cur, ok := c.pairs.Partner(s.id)
	if !ok || cur != partnerID {
		return
	}
	c.pairs.Delete(s.id)

	if next, ok := Next(p.state, InputPartnerLeft); ok {
		p.state = next
	}
	c.notify(partnerID, protocol.Event{Type: protocol.EventPartnerLeft})
}

func (c *Controller) notify(sessionID string, ev protocol.Event) {
	if c.notifier == nil {
		return
	}
	c.notifier.Deliver(sessionID, ev)
}

func (c *Controller) notifyError(sessionID string, err error) {
	c.notify(sessionID, protocol.Event{Type: protocol.EventError, Reason: err.Error()})
}
