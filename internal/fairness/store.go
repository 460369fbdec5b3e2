package fairness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

const REDIS_KEY_SESSION = "fair:session:"

// SessionStore persists sessions by key. Swap and Create are the only writes
// the Manager uses so that concurrent writers cannot double-advance a nonce.
type SessionStore interface {
	Load(ctx context.Context, key string) (Session, bool, error)
	// Create stores s only if key is absent.
	Create(ctx context.Context, key string, s Session) (bool, error)
	// Swap replaces prev with next only if the stored session still equals prev
	// (same seed hash and nonce).
	Swap(ctx context.Context, key string, prev, next Session) (bool, error)
}

type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session)}
}

func (m *MemoryStore) Load(_ context.Context, key string) (Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[key]
	return s, ok, nil
}

func (m *MemoryStore) Create(_ context.Context, key string, s Session) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[key]; ok {
		return false, nil
	}
	m.sessions[key] = s
	return true, nil
}

func (m *MemoryStore) Swap(_ context.Context, key string, prev, next Session) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.sessions[key]
	if !ok || !sameSession(cur, prev) {
		return false, nil
	}
	m.sessions[key] = next
	return true, nil
}

func sameSession(a, b Session) bool {
	return a.ServerSeedHash == b.ServerSeedHash && a.Nonce == b.Nonce && a.ClientSeed == b.ClientSeed
}

// RedisStore keeps sessions as JSON strings. Sessions carry the unrevealed
// server seed, so keys have no TTL and must live on a private instance.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) Load(ctx context.Context, key string) (Session, bool, error) {
	const op = "fairness.RedisStore.Load"

	raw, err := r.client.Get(ctx, REDIS_KEY_SESSION+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, fmt.Errorf("%s: %w", op, err)
	}

	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return Session{}, false, fmt.Errorf("%s: %w", op, err)
	}
	return s, true, nil
}

func (r *RedisStore) Create(ctx context.Context, key string, s Session) (bool, error) {
	const op = "fairness.RedisStore.Create"

	data, err := json.Marshal(s)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	ok, err := r.client.SetNX(ctx, REDIS_KEY_SESSION+key, data, 0).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return ok, nil
}

func (r *RedisStore) Swap(ctx context.Context, key string, prev, next Session) (bool, error) {
	const op = "fairness.RedisStore.Swap"

	data, err := json.Marshal(next)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	fullKey := REDIS_KEY_SESSION + key
	swapped := false
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, fullKey).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}

		var cur Session
		if err := json.Unmarshal(raw, &cur); err != nil {
			return err
		}
		if !sameSession(cur, prev) {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, fullKey, data, 0)
			return nil
		})
		if err == nil {
			swapped = true
		}
		return err
	}, fullKey)

	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return swapped, nil
}
