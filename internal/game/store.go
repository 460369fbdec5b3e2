package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	REDIS_KEY_ROUND        = "round:"
	REDIS_KEY_ACTIVE_ROUND = "round:active:"
	REDIS_KEY_OPEN_ROUNDS  = "round:open"
	SETTLED_ROUND_TTL      = 24 * time.Hour
)

// RoundStore persists rounds between the calls that drive them. It also
// indexes the one open round per player and game, and every round that is not
// settled yet so Reconcile can find it.
type RoundStore interface {
	Save(ctx context.Context, r *Round) error
	Get(ctx context.Context, id string) (*Round, error)
	Delete(ctx context.Context, r *Round) error
	Active(ctx context.Context, playerID string, game GameType) (*Round, error)
	Open(ctx context.Context) ([]string, error)
}

func activeKey(playerID string, game GameType) string {
	return string(game) + ":" + playerID
}

type MemoryRoundStore struct {
	mu     sync.RWMutex
	rounds map[string][]byte
	active map[string]string
	open   map[string]struct{}
}

func NewMemoryRoundStore() *MemoryRoundStore {
	return &MemoryRoundStore{
		rounds: make(map[string][]byte),
		active: make(map[string]string),
		open:   make(map[string]struct{}),
	}
}

// Save stores a copy, so callers can keep mutating their Round.
func (m *MemoryRoundStore) Save(_ context.Context, r *Round) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("game.MemoryRoundStore.Save: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rounds[r.ID] = data
	key := activeKey(r.PlayerID, r.Game)
	if r.Open() {
		m.active[key] = r.ID
		m.open[r.ID] = struct{}{}
	} else {
		if m.active[key] == r.ID {
			delete(m.active, key)
		}
		delete(m.open, r.ID)
	}
	return nil
}

func (m *MemoryRoundStore) Get(_ context.Context, id string) (*Round, error) {
	m.mu.RLock()
	data, ok := m.rounds[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrRoundNotFound
	}
	var r Round
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("game.MemoryRoundStore.Get: %w", err)
	}
	return &r, nil
}

func (m *MemoryRoundStore) Delete(_ context.Context, r *Round) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rounds, r.ID)
	delete(m.open, r.ID)
	key := activeKey(r.PlayerID, r.Game)
	if m.active[key] == r.ID {
		delete(m.active, key)
	}
	return nil
}

func (m *MemoryRoundStore) Active(ctx context.Context, playerID string, game GameType) (*Round, error) {
	m.mu.RLock()
	id, ok := m.active[activeKey(playerID, game)]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrRoundNotFound
	}
	return m.Get(ctx, id)
}

func (m *MemoryRoundStore) Open(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.open))
	for id := range m.open {
		out = append(out, id)
	}
	return out, nil
}

// RedisRoundStore keeps rounds as JSON. Open rounds never expire; settled
// ones are kept for a day so a repeated cash-out still finds them.
type RedisRoundStore struct {
	client *redis.Client
}

func NewRedisRoundStore(client *redis.Client) *RedisRoundStore {
	return &RedisRoundStore{client: client}
}

func (s *RedisRoundStore) Save(ctx context.Context, r *Round) error {
	const op = "game.RedisRoundStore.Save"

	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	activeRoundKey := REDIS_KEY_ACTIVE_ROUND + activeKey(r.PlayerID, r.Game)

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if r.Open() {
			pipe.Set(ctx, REDIS_KEY_ROUND+r.ID, data, 0)
			pipe.Set(ctx, activeRoundKey, r.ID, 0)
			pipe.SAdd(ctx, REDIS_KEY_OPEN_ROUNDS, r.ID)
			return nil
		}
		pipe.Set(ctx, REDIS_KEY_ROUND+r.ID, data, SETTLED_ROUND_TTL)
		pipe.SRem(ctx, REDIS_KEY_OPEN_ROUNDS, r.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !r.Open() {
		if err := s.clearActive(ctx, activeRoundKey, r.ID); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}

// clearActive removes the active pointer only if it still names id.
var clearActiveScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (s *RedisRoundStore) clearActive(ctx context.Context, key, id string) error {
	return clearActiveScript.Run(ctx, s.client, []string{key}, id).Err()
}

func (s *RedisRoundStore) Get(ctx context.Context, id string) (*Round, error) {
	const op = "game.RedisRoundStore.Get"

	data, err := s.client.Get(ctx, REDIS_KEY_ROUND+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrRoundNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var r Round
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &r, nil
}

func (s *RedisRoundStore) Delete(ctx context.Context, r *Round) error {
	const op = "game.RedisRoundStore.Delete"

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, REDIS_KEY_ROUND+r.ID)
		pipe.SRem(ctx, REDIS_KEY_OPEN_ROUNDS, r.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.clearActive(ctx, REDIS_KEY_ACTIVE_ROUND+activeKey(r.PlayerID, r.Game), r.ID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *RedisRoundStore) Active(ctx context.Context, playerID string, game GameType) (*Round, error) {
	const op = "game.RedisRoundStore.Active"

	id, err := s.client.Get(ctx, REDIS_KEY_ACTIVE_ROUND+activeKey(playerID, game)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrRoundNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s.Get(ctx, id)
}

func (s *RedisRoundStore) Open(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, REDIS_KEY_OPEN_ROUNDS).Result()
	if err != nil {
		return nil, fmt.Errorf("game.RedisRoundStore.Open: %w", err)
	}
	return ids, nil
}
