// Package ledger is the append-only settlement record collaborator.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

const (
	OutcomeWon  = "won"
	OutcomeLost = "lost"
)

var ErrNotFound = errors.New("settlement not found")

// Settlement is the immutable record of one settled round. Raw and adjusted
// outcomes and the bet parameters are game specific JSON; Intensity records the house-edge intensity
// captured at round start so every adjustment can be replayed from the
// revealed seeds.
type Settlement struct {
	RoundID         string          `json:"round_id"`
	PlayerID        string          `json:"player_id"`
	Game            string          `json:"game"`
	Stake           decimal.Decimal `json:"stake"`
	Multiplier      float64         `json:"multiplier"`
	Payout          decimal.Decimal `json:"payout"`
	Outcome         string          `json:"outcome"`
	Params          json.RawMessage `json:"params"`
	RawOutcome      json.RawMessage `json:"raw_outcome"`
	AdjustedOutcome json.RawMessage `json:"adjusted_outcome"`
	Intensity       float64         `json:"intensity"`
	ServerSeedHash  string          `json:"server_seed_hash"`
	ClientSeed      string          `json:"client_seed"`
	Nonce           int             `json:"nonce"`
	SettledAt       time.Time       `json:"settled_at"`
}

type Ledger interface {
	// Record appends s. Recording the same RoundID again is a no-op.
	Record(ctx context.Context, s Settlement) error
	Get(ctx context.Context, roundID string) (Settlement, error)
	List(ctx context.Context, playerID string, limit int) ([]Settlement, error)
}

type Memory struct {
	mu      sync.RWMutex
	records map[string]Settlement
	order   []string
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]Settlement)}
}

func (m *Memory) Record(_ context.Context, s Settlement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[s.RoundID]; ok {
		return nil
	}
	m.records[s.RoundID] = s
	m.order = append(m.order, s.RoundID)
	return nil
}

func (m *Memory) Get(_ context.Context, roundID string) (Settlement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.records[roundID]
	if !ok {
		return Settlement{}, ErrNotFound
	}
	return s, nil
}

// List returns the newest settlements first.
func (m *Memory) List(_ context.Context, playerID string, limit int) ([]Settlement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Settlement, 0)
	for i := len(m.order) - 1; i >= 0; i-- {
		s := m.records[m.order[i]]
		if s.PlayerID != playerID {
			continue
		}
		out = append(out, s)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SettledAt.After(out[j].SettledAt) })
	return out, nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
