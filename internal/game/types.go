package game

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"instantwin/internal/payout"
)

type GameType string

const (
	GameTypeCrash   GameType = "crash"
	GameTypeAviator GameType = "aviator"
	GameTypeLimbo   GameType = "limbo"
	GameTypeDice    GameType = "dice"
	GameTypeSlots   GameType = "slots"
	GameTypeMines   GameType = "mines"
	GameTypePenalty GameType = "penalty"
	GameTypePlinko  GameType = "plinko"
)

type RoundStatus string

const (
	StatusCommitted RoundStatus = "COMMITTED"
	StatusResolving RoundStatus = "RESOLVING"
	StatusActive    RoundStatus = "ACTIVE"
	StatusSettling  RoundStatus = "SETTLING"
	StatusSettled   RoundStatus = "SETTLED"
)

const (
	ACTION_CASHOUT = "cashout"
	ACTION_REVEAL  = "reveal"
	ACTION_SHOOT   = "shoot"
)

// Bet carries the stake and every game specific parameter. Each engine reads
// only the fields it needs.
type Bet struct {
	Stake decimal.Decimal `json:"stake"`

	AutoCashout float64           `json:"auto_cashout,omitempty"` // crash, aviator
	Target      float64           `json:"target,omitempty"`       // limbo
	Threshold   int               `json:"threshold,omitempty"`    // dice
	Over        bool              `json:"over,omitempty"`         // dice
	Mines       int               `json:"mines,omitempty"`        // mines
	Rows        int               `json:"rows,omitempty"`         // plinko
	Risk        payout.PlinkoRisk `json:"risk,omitempty"`         // plinko
}

type Action struct {
	Kind      string `json:"kind"`
	Cell      int    `json:"cell,omitempty"`
	Direction int    `json:"direction,omitempty"`
}

// Round is the full internal record, including hidden outcome state. Use View
// for anything shown to the player.
type Round struct {
	ID        string      `json:"id"`
	PlayerID  string      `json:"player_id"`
	Game      GameType    `json:"game"`
	Status    RoundStatus `json:"status"`
	Bet       Bet         `json:"bet"`
	Intensity float64     `json:"intensity"`

	ServerSeedHash string `json:"server_seed_hash"`
	ClientSeed     string `json:"client_seed"`
	Nonce          int    `json:"nonce"`

	Raw      json.RawMessage `json:"raw,omitempty"`
	Adjusted json.RawMessage `json:"adjusted,omitempty"`

	Crash   *CrashState   `json:"crash,omitempty"`
	Mines   *MinesState   `json:"mines,omitempty"`
	Penalty *PenaltyState `json:"penalty,omitempty"`

	Multiplier float64         `json:"multiplier"`
	Payout     decimal.Decimal `json:"payout"`
	Won        bool            `json:"won"`

	Recorded bool `json:"recorded"`
	Credited bool `json:"credited"`

	StartedAt time.Time `json:"started_at"`
	SettledAt time.Time `json:"settled_at,omitempty"`
}

func (r *Round) Settled() bool { return r.Status == StatusSettled }

// Open reports whether the round still blocks a new one for the same player
// and game.
func (r *Round) Open() bool { return r.Status != StatusSettled }

// finish fixes the final multiplier. The orchestrator settles any round left
// in SETTLING after Resolve or Act.
func (r *Round) finish(multiplier float64) {
	r.Multiplier = payout.Floor2(multiplier)
	r.Status = StatusSettling
}

func (r *Round) setOutcome(raw, adjusted any) {
	r.Raw = mustJSON(raw)
	r.Adjusted = mustJSON(adjusted)
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`null`)
	}
	return b
}

// RoundView is what the API and the websocket feed expose. Hidden outcome
// state only appears once the round is settled.
type RoundView struct {
	ID             string          `json:"id"`
	PlayerID       string          `json:"player_id"`
	Game           GameType        `json:"game"`
	Status         RoundStatus     `json:"status"`
	Stake          decimal.Decimal `json:"stake"`
	Bet            Bet             `json:"bet"`
	ServerSeedHash string          `json:"server_seed_hash"`
	ClientSeed     string          `json:"client_seed"`
	Nonce          int             `json:"nonce"`
	Multiplier     float64         `json:"multiplier"`
	Payout         decimal.Decimal `json:"payout"`
	Won            bool            `json:"won"`
	Outcome        json.RawMessage `json:"outcome,omitempty"`
	Progress       any             `json:"progress,omitempty"`
	StartedAt      time.Time       `json:"started_at"`
	SettledAt      *time.Time      `json:"settled_at,omitempty"`
}

func (r *Round) View(now time.Time) RoundView {
	v := RoundView{
		ID:             r.ID,
		PlayerID:       r.PlayerID,
		Game:           r.Game,
		Status:         r.Status,
		Stake:          r.Bet.Stake,
		Bet:            r.Bet,
		ServerSeedHash: r.ServerSeedHash,
		ClientSeed:     r.ClientSeed,
		Nonce:          r.Nonce,
		Multiplier:     r.Multiplier,
		StartedAt:      r.StartedAt,
	}

	switch {
	case r.Settled():
		v.Payout = r.Payout
		v.Won = r.Won
		v.Outcome = r.Adjusted
		at := r.SettledAt
		v.SettledAt = &at
	case r.Crash != nil:
		v.Progress = r.Crash.progress(r.StartedAt, now)
	case r.Mines != nil:
		v.Progress = r.Mines.progress()
	case r.Penalty != nil:
		v.Progress = r.Penalty.progress()
	}
	return v
}

type WSMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// SettlementMessage is broadcast on the live feed for every settled round.
type SettlementMessage struct {
	RoundID    string          `json:"round_id"`
	PlayerID   string          `json:"player_id"`
	Game       GameType        `json:"game"`
	Stake      decimal.Decimal `json:"stake"`
	Multiplier float64         `json:"multiplier"`
	Payout     decimal.Decimal `json:"payout"`
	Won        bool            `json:"won"`
}
