package match

import "sync"

// Pairs records active pairings. The relation is always symmetric and a
// session belongs to at most one pairing at a time; Set and Delete maintain
// both directions under one lock so observers never see a half-pairing.
type Pairs struct {
	mu       sync.RWMutex
	partners map[string]string
}

func NewPairs() *Pairs {
	return &Pairs{partners: make(map[string]string)}
}

// Set records a pairing between a and b, replacing any stale record either
// side may still hold.
func (p *Pairs) Set(a, b string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if old, ok := p.partners[a]; ok {
		delete(p.partners, old)
	}
	if old, ok := p.partners[b]; ok {
		delete(p.partners, old)
	}
	p.partners[a] = b
	p.partners[b] = a
}

// Partner returns the session currently paired with sessionID.
func (p *Pairs) Partner(sessionID string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	partner, ok := p.partners[sessionID]
	return partner, ok
}

// Delete destroys the pairing the session belongs to, removing both
// directions. Returns the former partner. Idempotent.
func (p *Pairs) Delete(sessionID string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	partner, ok := p.partners[sessionID]
	if !ok {
		return "", false
	}
	delete(p.partners, sessionID)
	delete(p.partners, partner)
	return partner, true
}

func (p *Pairs) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.partners) / 2
}
