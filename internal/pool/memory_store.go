package pool

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local waiting pool. It backs tests and
// single-instance deployments where no Redis is configured.
type MemoryStore struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (st *MemoryStore) Enqueue(ctx context.Context, entry Entry) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	for _, e := range st.entries {
		if e.SessionID == entry.SessionID {
			return ErrDuplicateEntry
		}
	}

	if entry.EnqueuedAt.IsZero() {
		entry.EnqueuedAt = time.Now()
	}
	st.entries = append(st.entries, entry)
	return nil
}

func (st *MemoryStore) DequeueBest(ctx context.Context, candidate Entry) (*Entry, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	bestIdx := -1
	bestScore := -1
	for i, e := range st.entries {
		if e.SessionID == candidate.SessionID {
			continue
		}
		// Strict improvement only: earliest-inserted wins score ties.
		if s := Score(candidate, e); s > bestScore {
			bestScore = s
			bestIdx = i
		}
	}

	if bestIdx < 0 {
		return nil, nil
	}

	best := st.entries[bestIdx]
	st.entries = append(st.entries[:bestIdx], st.entries[bestIdx+1:]...)
	return &best, nil
}

func (st *MemoryStore) Remove(ctx context.Context, sessionID string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	for i, e := range st.entries {
		if e.SessionID == sessionID {
			st.entries = append(st.entries[:i], st.entries[i+1:]...)
			return nil
		}
	}
	return nil
}

func (st *MemoryStore) Count(ctx context.Context) (int64, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return int64(len(st.entries)), nil
}

func (st *MemoryStore) Close() error {
	return nil
}
