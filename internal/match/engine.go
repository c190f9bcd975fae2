package match

import (
	"context"
	"errors"
	"fmt"

	"roulette/internal/pool"
)

// ErrAlreadyPaired is returned when a requester already belongs to a pairing.
var ErrAlreadyPaired = errors.New("match: session already paired")

// Result reports the outcome of a match request: either a partner was found
// or the requester was enqueued to wait.
type Result struct {
	Matched   bool
	PartnerID string
}

// Engine finds partners for newly waiting sessions. The pool decides who the
// best candidate is; the engine owns the dequeue-or-enqueue protocol and the
// pairing record.
type Engine struct {
	pool  pool.Store
	pairs *Pairs
}

func NewEngine(p pool.Store, pairs *Pairs) *Engine {
	return &Engine{pool: p, pairs: pairs}
}

// RequestMatch dequeues the best-scoring waiting entry for the requester, or
// enqueues the requester when the pool has no one else.
//
// The accept callback commits the pairing on the caller's side: it must
// verify the candidate is still live, flip its state and record the pairing
// record atomically, returning false if the candidate is gone. Rejected
// candidates are discarded (their pool entry was already removed by the
// atomic dequeue; the vanished session's own cleanup is an idempotent no-op)
// and the scan continues.
func (e *Engine) RequestMatch(ctx context.Context, entry pool.Entry, accept func(partnerID string) bool) (Result, error) {
	if _, paired := e.pairs.Partner(entry.SessionID); paired {
		return Result{}, ErrAlreadyPaired
	}

	for {
		candidate, err := e.pool.DequeueBest(ctx, entry)
		if err != nil {
			return Result{}, fmt.Errorf("match: dequeue failed: %w", err)
		}

		if candidate == nil {
			if err := e.pool.Enqueue(ctx, entry); err != nil {
				return Result{}, fmt.Errorf("match: enqueue failed: %w", err)
			}
			return Result{Matched: false}, nil
		}

		if accept != nil && !accept(candidate.SessionID) {
			continue
		}

		return Result{Matched: true, PartnerID: candidate.SessionID}, nil
	}
}
