package game

import (
	"time"

	"instantwin/internal/edge"
	"instantwin/internal/fairness"
	"instantwin/internal/payout"
)

type plinkoOutcome struct {
	Path []int `json:"path"`
	Slot int   `json:"slot"`
}

type PlinkoEngine struct{}

func NewPlinkoEngine() *PlinkoEngine { return &PlinkoEngine{} }

func (e *PlinkoEngine) GetType() GameType { return GameTypePlinko }

func (e *PlinkoEngine) Validate(bet Bet) error {
	if !payout.ValidPlinko(bet.Risk, bet.Rows) {
		return invalid("rows must be 8, 12 or 16 and risk low, medium or high")
	}
	return nil
}

// Resolve drops two balls from the stream. The second one only matters when
// the override draw lands under the intensity threshold.
func (e *PlinkoEngine) Resolve(r *Round, seeds fairness.Session) error {
	risk, rows := r.Bet.Risk, r.Bet.Rows
	pays := func(slot int) float64 { return payout.PlinkoMultiplier(risk, rows, slot) }

	s := seeds.Stream()
	path, slot := fairness.PlinkoPath(s, rows)
	altPath, alt := fairness.PlinkoPath(s, rows)
	final := edge.Plinko(slot, alt, r.Intensity, s.Next(), pays)

	adjusted := plinkoOutcome{Path: path, Slot: slot}
	if final != slot {
		adjusted = plinkoOutcome{Path: altPath, Slot: alt}
	}
	r.setOutcome(plinkoOutcome{Path: path, Slot: slot}, adjusted)
	r.finish(pays(final))
	return nil
}

func (e *PlinkoEngine) Act(*Round, Action, time.Time) error {
	return invalid("plinko has no actions")
}
