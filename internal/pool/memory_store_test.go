package pool

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryStore_EnqueueVisible(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	if err := st.Enqueue(ctx, Entry{SessionID: "x", Country: "US"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	n, err := st.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Fatalf("Count = %d, want 1", n)
	}
}

func TestMemoryStore_RejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	if err := st.Enqueue(ctx, Entry{SessionID: "x"}); err != nil {
		t.Fatalf("first Enqueue: %v", err)
	}
	if err := st.Enqueue(ctx, Entry{SessionID: "x", Country: "US"}); !errors.Is(err, ErrDuplicateEntry) {
		t.Fatalf("second Enqueue = %v, want ErrDuplicateEntry", err)
	}

	n, _ := st.Count(ctx)
	if n != 1 {
		t.Fatalf("Count = %d after duplicate enqueue, want 1", n)
	}
}

func TestMemoryStore_DequeueBestEmpty(t *testing.T) {
	st := NewMemoryStore()

	got, err := st.DequeueBest(context.Background(), Entry{SessionID: "x"})
	if err != nil {
		t.Fatalf("DequeueBest: %v", err)
	}
	if got != nil {
		t.Fatalf("DequeueBest on empty pool = %v, want nil", got)
	}
}

func TestMemoryStore_DequeueBestExcludesSelf(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	if err := st.Enqueue(ctx, Entry{SessionID: "x", Country: "US"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	got, err := st.DequeueBest(ctx, Entry{SessionID: "x", Country: "US"})
	if err != nil {
		t.Fatalf("DequeueBest: %v", err)
	}
	if got != nil {
		t.Fatalf("DequeueBest matched the candidate with itself: %v", got)
	}

	n, _ := st.Count(ctx)
	if n != 1 {
		t.Fatalf("own entry must stay in the pool, Count = %d", n)
	}
}

func TestMemoryStore_DequeueBestPicksHighestScore(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	// Pool has Y{FR, []} and Z{US, [sports]}; X{US, [sports]} joins.
	if err := st.Enqueue(ctx, Entry{SessionID: "y", Country: "FR"}); err != nil {
		t.Fatalf("Enqueue y: %v", err)
	}
	if err := st.Enqueue(ctx, Entry{SessionID: "z", Country: "US", Interests: []string{"sports"}}); err != nil {
		t.Fatalf("Enqueue z: %v", err)
	}

	got, err := st.DequeueBest(ctx, Entry{SessionID: "x", Country: "US", Interests: []string{"sports"}})
	if err != nil {
		t.Fatalf("DequeueBest: %v", err)
	}
	if got == nil || got.SessionID != "z" {
		t.Fatalf("DequeueBest = %v, want z", got)
	}

	// Y stays waiting.
	n, _ := st.Count(ctx)
	if n != 1 {
		t.Fatalf("Count = %d, want 1 (y still waiting)", n)
	}
}

func TestMemoryStore_FIFOTieBreak(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	// Identical attributes: the earliest-inserted entry must always win.
	for _, id := range []string{"first", "second", "third"} {
		if err := st.Enqueue(ctx, Entry{SessionID: id, Country: "US"}); err != nil {
			t.Fatalf("Enqueue %s: %v", id, err)
		}
	}

	got, err := st.DequeueBest(ctx, Entry{SessionID: "x", Country: "US"})
	if err != nil {
		t.Fatalf("DequeueBest: %v", err)
	}
	if got == nil || got.SessionID != "first" {
		t.Fatalf("DequeueBest = %v, want first (FIFO tie-break)", got)
	}
}

func TestMemoryStore_RemoveIdempotent(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	if err := st.Enqueue(ctx, Entry{SessionID: "x"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if err := st.Remove(ctx, "x"); err != nil {
		t.Fatalf("first Remove: %v", err)
	}
	if err := st.Remove(ctx, "x"); err != nil {
		t.Fatalf("second Remove must be a no-op: %v", err)
	}
	if err := st.Remove(ctx, "never-enqueued"); err != nil {
		t.Fatalf("Remove of absent entry must be a no-op: %v", err)
	}

	n, _ := st.Count(ctx)
	if n != 0 {
		t.Fatalf("Count = %d, want 0", n)
	}
}
