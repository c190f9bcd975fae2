package pool

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"roulette/internal/constants"
)

// RedisStore keeps the waiting pool in Redis so every server instance sees
// the same queue. The queue is a list of session IDs (insertion order, for
// the FIFO tie-break) plus a hash of sessionID -> serialized entry. All
// mutations run as Lua scripts: a scan-and-remove is a single atomic
// read-modify-write, so no two instances can dequeue the same entry.
type RedisStore struct {
	client *redis.Client
}

// enqueueScript appends an entry unless the session already has one.
// KEYS[1] = queue list, KEYS[2] = attrs hash, ARGV[1] = sessionID,
// ARGV[2] = entry JSON. Returns 1 on insert, 0 on duplicate.
var enqueueScript = redis.NewScript(`
if redis.call("HEXISTS", KEYS[2], ARGV[1]) == 1 then
  return 0
end
redis.call("RPUSH", KEYS[1], ARGV[1])
redis.call("HSET", KEYS[2], ARGV[1], ARGV[2])
return 1
`)

// dequeueBestScript scans head-to-tail, scores every entry against the
// candidate (ARGV[2], JSON) excluding the candidate's own ID (ARGV[1]),
// removes and returns the best entry. Strict improvement only, so the
// earliest-inserted entry wins score ties. Returns false when empty.
var dequeueBestScript = redis.NewScript(`
local ids = redis.call("LRANGE", KEYS[1], 0, -1)
if #ids == 0 then
  return false
end

local cand = cjson.decode(ARGV[2])
local want = {}
if type(cand.interests) == "table" then
  for _, tag in ipairs(cand.interests) do
    want[tag] = true
  end
end

local bestID = false
local bestScore = -1
for _, id in ipairs(ids) do
  if id ~= ARGV[1] then
    local raw = redis.call("HGET", KEYS[2], id)
    if raw then
      local entry = cjson.decode(raw)
      local score = 0
      if (entry.country or "") == (cand.country or "") then
        score = score + 2
      end
      if type(entry.interests) == "table" then
        local counted = {}
        for _, tag in ipairs(entry.interests) do
          if want[tag] and not counted[tag] then
            score = score + 1
            counted[tag] = true
          end
        end
      end
      if score > bestScore then
        bestScore = score
        bestID = id
      end
    else
      -- Orphaned ID with no attributes: drop it from the queue.
      redis.call("LREM", KEYS[1], 1, id)
    end
  end
end

if not bestID then
  return false
end

local raw = redis.call("HGET", KEYS[2], bestID)
redis.call("LREM", KEYS[1], 1, bestID)
redis.call("HDEL", KEYS[2], bestID)
return raw
`)

// removeScript deletes any entry for the session; absent entries are a no-op.
var removeScript = redis.NewScript(`
redis.call("LREM", KEYS[1], 0, ARGV[1])
redis.call("HDEL", KEYS[2], ARGV[1])
return 1
`)

func NewRedisStore(host, port, username, password string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     host + ":" + port,
		Username: username,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), constants.StoreOpTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

func (st *RedisStore) keys() []string {
	return []string{constants.RedisQueueKey, constants.RedisAttrsKey}
}

func (st *RedisStore) Enqueue(ctx context.Context, entry Entry) error {
	if entry.EnqueuedAt.IsZero() {
		entry.EnqueuedAt = time.Now()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	inserted, err := enqueueScript.Run(ctx, st.client, st.keys(), entry.SessionID, data).Int()
	if err != nil {
		return fmt.Errorf("failed to enqueue entry: %w", err)
	}
	if inserted == 0 {
		return ErrDuplicateEntry
	}
	return nil
}

func (st *RedisStore) DequeueBest(ctx context.Context, candidate Entry) (*Entry, error) {
	data, err := json.Marshal(candidate)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal candidate: %w", err)
	}

	raw, err := dequeueBestScript.Run(ctx, st.client, st.keys(), candidate.SessionID, data).Text()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue entry: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entry: %w", err)
	}
	return &entry, nil
}

func (st *RedisStore) Remove(ctx context.Context, sessionID string) error {
	if err := removeScript.Run(ctx, st.client, st.keys(), sessionID).Err(); err != nil {
		return fmt.Errorf("failed to remove entry: %w", err)
	}
	return nil
}

func (st *RedisStore) Count(ctx context.Context) (int64, error) {
	n, err := st.client.LLen(ctx, constants.RedisQueueKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return n, nil
}

func (st *RedisStore) Close() error {
	return st.client.Close()
}
