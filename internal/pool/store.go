package pool

import (
	"context"
	"errors"
	"log"

	"roulette/internal/constants"
	"roulette/internal/utils"
)

// ErrDuplicateEntry is returned by Enqueue when the session already has an
// entry in the pool. The pool never holds two entries for one session.
var ErrDuplicateEntry = errors.New("pool: session already enqueued")

// Store is the shared waiting pool. Implementations must make Enqueue,
// DequeueBest and Remove atomic with respect to concurrent callers, including
// callers on other server instances: no two callers may dequeue the same
// entry, and an entry enqueued is visible to the next DequeueBest issued
// after Enqueue returns.
type Store interface {
	// Enqueue appends an entry at the tail of the pool.
	Enqueue(ctx context.Context, entry Entry) error

	// DequeueBest scans the pool excluding any entry for candidate's own
	// session, scores each remaining entry against candidate, and atomically
	// removes and returns the highest-scoring one. Ties go to the
	// earliest-inserted entry. Returns nil when no entry qualifies.
	DequeueBest(ctx context.Context, candidate Entry) (*Entry, error)

	// Remove deletes any entry for the session. Removing an absent entry is
	// a no-op, not an error.
	Remove(ctx context.Context, sessionID string) error

	// Count reports the number of waiting entries.
	Count(ctx context.Context) (int64, error)

	Close() error
}

// NewStore selects the pool backend from the environment: Redis when
// REDIS_HOST is set, in-memory otherwise. A single-instance deployment works
// fine on the memory pool; sharing the queue across instances requires Redis.
func NewStore() Store {
	redisHost := utils.GetEnv(constants.EnvRedisHost, "")

	if redisHost != "" {
		redisPort := utils.GetEnv(constants.EnvRedisPort, "6379")
		redisUser := utils.GetEnv(constants.EnvRedisUser, "")
		redisPassword := utils.GetEnv(constants.EnvRedisPassword, "")

		store, err := NewRedisStore(redisHost, redisPort, redisUser, redisPassword)
		if err != nil {
			log.Printf("⚠️  Redis connection failed: %v", err)
			log.Println("💾 Falling back to in-memory waiting pool")
			return NewMemoryStore()
		}
		log.Printf("💾 Using Redis waiting pool: %s:%s", redisHost, redisPort)
		return store
	}

	log.Println("💾 Using in-memory waiting pool")
	return NewMemoryStore()
}
