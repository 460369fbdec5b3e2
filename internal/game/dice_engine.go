package game

import (
	"time"

	"instantwin/internal/edge"
	"instantwin/internal/fairness"
	"instantwin/internal/payout"
)

const (
	DICE_MIN_THRESHOLD = 1
	DICE_MAX_THRESHOLD = 99
	DICE_HOUSE_EDGE    = 0.01
)

type diceOutcome struct {
	Roll int `json:"roll"`
}

// DiceEngine rolls a 0..100 percentile. Over wins above the threshold, under
// wins below it.
type DiceEngine struct{}

func NewDiceEngine() *DiceEngine { return &DiceEngine{} }

func (e *DiceEngine) GetType() GameType { return GameTypeDice }

func (e *DiceEngine) Validate(bet Bet) error {
	if bet.Threshold < DICE_MIN_THRESHOLD || bet.Threshold > DICE_MAX_THRESHOLD {
		return invalid("threshold must be between %d and %d", DICE_MIN_THRESHOLD, DICE_MAX_THRESHOLD)
	}
	return nil
}

func diceBet(b Bet) edge.DiceBet {
	return edge.DiceBet{Target: b.Threshold, Over: b.Over}
}

// DiceMultiplier is the payout for a winning roll at the given threshold.
func DiceMultiplier(threshold int, over bool) float64 {
	return payout.DiceMultiplier(edge.DiceBet{Target: threshold, Over: over}.WinningOutcomes(), DICE_HOUSE_EDGE)
}

func (e *DiceEngine) Resolve(r *Round, seeds fairness.Session) error {
	bet := diceBet(r.Bet)
	raw := fairness.DicePercentile(seeds.Digest())
	s := seeds.Stream()
	roll := edge.Dice(raw, bet, r.Intensity, s.Next(), s.Next())

	r.setOutcome(diceOutcome{Roll: raw}, diceOutcome{Roll: roll})
	if bet.Wins(roll) {
		r.finish(payout.DiceMultiplier(bet.WinningOutcomes(), DICE_HOUSE_EDGE))
	} else {
		r.finish(0)
	}
	return nil
}

func (e *DiceEngine) Act(*Round, Action, time.Time) error {
	return invalid("dice has no actions")
}
