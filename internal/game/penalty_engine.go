package game

import (
	"encoding/json"
	"fmt"
	"time"

	"instantwin/internal/edge"
	"instantwin/internal/fairness"
	"instantwin/internal/payout"
)

const (
	PENALTY_KICKS      = payout.PENALTY_KICKS
	PENALTY_DIRECTIONS = fairness.KEEPER_POSITIONS // 0 left, 1 centre, 2 right
)

// PenaltyState pre-draws the keeper's dive and the override draw for every
// kick so later shots never touch the seeds again.
type PenaltyState struct {
	Dives     []int     `json:"dives"`
	Overrides []float64 `json:"overrides"`
	Shots     []int     `json:"shots"`
	Saves     []int     `json:"saves"` // where the keeper actually went
	Goals     int       `json:"goals"`
	Saved     bool      `json:"saved,omitempty"`
}

type penaltyOutcome struct {
	Dives []int `json:"dives"`
	Shots []int `json:"shots,omitempty"`
}

type penaltyProgress struct {
	Shots             []int   `json:"shots"`
	Keeper            []int   `json:"keeper"`
	Goals             int     `json:"goals"`
	CurrentMultiplier float64 `json:"current_multiplier"`
	NextMultiplier    float64 `json:"next_multiplier"`
}

func (s *PenaltyState) progress() penaltyProgress {
	next := 0.0
	if s.Goals < PENALTY_KICKS {
		next = payout.PenaltyMultiplier(s.Goals + 1)
	}
	return penaltyProgress{
		Shots:             append([]int{}, s.Shots...),
		Keeper:            append([]int{}, s.Saves...),
		Goals:             s.Goals,
		CurrentMultiplier: payout.PenaltyMultiplier(s.Goals),
		NextMultiplier:    next,
	}
}

type PenaltyEngine struct{}

func NewPenaltyEngine() *PenaltyEngine { return &PenaltyEngine{} }

func (e *PenaltyEngine) GetType() GameType { return GameTypePenalty }

func (e *PenaltyEngine) Validate(Bet) error { return nil }

func (e *PenaltyEngine) Resolve(r *Round, seeds fairness.Session) error {
	s := seeds.Stream()
	state := &PenaltyState{
		Dives:     make([]int, PENALTY_KICKS),
		Overrides: make([]float64, PENALTY_KICKS),
		Shots:     []int{},
		Saves:     []int{},
	}
	for k := 0; k < PENALTY_KICKS; k++ {
		state.Dives[k] = fairness.Pick(s.Next(), PENALTY_DIRECTIONS)
		state.Overrides[k] = s.Next()
	}

	r.Penalty = state
	r.setOutcome(penaltyOutcome{Dives: state.Dives}, penaltyOutcome{Dives: state.Saves})
	r.Status = StatusActive
	return nil
}

func (e *PenaltyEngine) Act(r *Round, action Action, _ time.Time) error {
	switch action.Kind {
	case ACTION_SHOOT:
		return e.shoot(r, action.Direction)
	case ACTION_CASHOUT:
		if r.Penalty.Goals == 0 {
			return invalid("score at least one goal before cashing out")
		}
		r.finish(payout.PenaltyMultiplier(r.Penalty.Goals))
		return nil
	default:
		return invalid("unknown penalty action %q", action.Kind)
	}
}

func (e *PenaltyEngine) shoot(r *Round, direction int) error {
	if direction < 0 || direction >= PENALTY_DIRECTIONS {
		return invalid("direction must be between 0 and %d", PENALTY_DIRECTIONS-1)
	}
	state := r.Penalty
	k := len(state.Shots)
	if k >= PENALTY_KICKS {
		return invalid("no kicks left")
	}

	dive := edge.Penalty(direction, state.Dives[k], r.Intensity, state.Overrides[k])
	state.Shots = append(state.Shots, direction)
	state.Saves = append(state.Saves, dive)
	r.Adjusted = mustJSON(penaltyOutcome{Dives: state.Saves, Shots: state.Shots})

	if dive == direction {
		state.Saved = true
		r.finish(0)
		return nil
	}

	state.Goals++
	if state.Goals == PENALTY_KICKS {
		r.finish(payout.PenaltyMultiplier(state.Goals))
	}
	return nil
}

// Replay re-takes the recorded shots against freshly drawn dives.
func (e *PenaltyEngine) Replay(r *Round, adjusted json.RawMessage) error {
	var recorded penaltyOutcome
	if err := json.Unmarshal(adjusted, &recorded); err != nil {
		return fmt.Errorf("game.PenaltyEngine.Replay: %w", err)
	}
	for _, shot := range recorded.Shots {
		if r.Status != StatusActive {
			break
		}
		if err := e.shoot(r, shot); err != nil {
			return err
		}
	}
	return nil
}
