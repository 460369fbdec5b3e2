package game

import (
	"slices"
	"time"

	"instantwin/internal/edge"
	"instantwin/internal/fairness"
	"instantwin/internal/payout"
)

const (
	MINES_GRID_SIZE = fairness.MINES_GRID_SIZE // 5x5 grid
	MINES_MIN_COUNT = 1
	MINES_MAX_COUNT = 24
)

type MinesState struct {
	Count     int     `json:"count"`
	Positions []int   `json:"positions"`
	HouseEdge float64 `json:"house_edge"`
	Revealed  []int   `json:"revealed"`
	HitMine   int     `json:"hit_mine"`
}

type minesOutcome struct {
	Mines     []int   `json:"mines"`
	HouseEdge float64 `json:"house_edge"`
}

type minesProgress struct {
	Revealed          []int   `json:"revealed"`
	CurrentMultiplier float64 `json:"current_multiplier"`
	NextMultiplier    float64 `json:"next_multiplier"`
}

func (s *MinesState) multiplier(revealed int) float64 {
	return payout.Floor2(payout.MinesMultiplier(revealed, s.Count, s.HouseEdge))
}

func (s *MinesState) progress() minesProgress {
	n := len(s.Revealed)
	next := 0.0
	if n < MINES_GRID_SIZE-s.Count {
		next = s.multiplier(n + 1)
	}
	return minesProgress{
		Revealed:          append([]int{}, s.Revealed...),
		CurrentMultiplier: s.multiplier(n),
		NextMultiplier:    next,
	}
}

// MinesEngine places the mines up front from the seed stream. Intensity only
// scales the payout factor, never the board.
type MinesEngine struct{}

func NewMinesEngine() *MinesEngine { return &MinesEngine{} }

func (m *MinesEngine) GetType() GameType {
	return GameTypeMines
}

func (m *MinesEngine) Validate(bet Bet) error {
	if bet.Mines < MINES_MIN_COUNT || bet.Mines > MINES_MAX_COUNT {
		return invalid("mine count must be between %d and %d", MINES_MIN_COUNT, MINES_MAX_COUNT)
	}
	return nil
}

func (m *MinesEngine) Resolve(r *Round, seeds fairness.Session) error {
	positions := fairness.PlaceMines(seeds.Stream(), r.Bet.Mines, MINES_GRID_SIZE)
	houseEdge := edge.MinesHouseEdge(r.Intensity)

	r.Mines = &MinesState{
		Count:     r.Bet.Mines,
		Positions: positions,
		HouseEdge: houseEdge,
		Revealed:  []int{},
		HitMine:   -1,
	}
	r.setOutcome(
		minesOutcome{Mines: positions, HouseEdge: edge.MINES_BASE_EDGE},
		minesOutcome{Mines: positions, HouseEdge: houseEdge},
	)
	r.Status = StatusActive
	return nil
}

func (m *MinesEngine) Act(r *Round, action Action, _ time.Time) error {
	switch action.Kind {
	case ACTION_REVEAL:
		return m.reveal(r, action.Cell)
	case ACTION_CASHOUT:
		return m.cashout(r)
	default:
		return invalid("unknown mines action %q", action.Kind)
	}
}

func (m *MinesEngine) reveal(r *Round, cell int) error {
	state := r.Mines
	if cell < 0 || cell >= MINES_GRID_SIZE {
		return invalid("cell must be between 0 and %d", MINES_GRID_SIZE-1)
	}
	if slices.Contains(state.Revealed, cell) {
		return invalid("cell %d already revealed", cell)
	}

	if slices.Contains(state.Positions, cell) {
		state.HitMine = cell
		r.finish(0)
		return nil
	}

	state.Revealed = append(state.Revealed, cell)
	if len(state.Revealed) == MINES_GRID_SIZE-state.Count {
		r.finish(state.multiplier(len(state.Revealed)))
	}
	return nil
}

func (m *MinesEngine) cashout(r *Round) error {
	if len(r.Mines.Revealed) == 0 {
		return invalid("reveal at least one cell before cashing out")
	}
	r.finish(r.Mines.multiplier(len(r.Mines.Revealed)))
	return nil
}
