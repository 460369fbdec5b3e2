package edge

import "instantwin/internal/fairness"

// DiceBet is a roll-over / roll-under wager on the 0..100 percentile.
type DiceBet struct {
	Target int  `json:"target"`
	Over   bool `json:"over"`
}

func (b DiceBet) Wins(roll int) bool {
	if b.Over {
		return roll > b.Target
	}
	return roll < b.Target
}

// WinningOutcomes counts the rolls in [0,100] that win.
func (b DiceBet) WinningOutcomes() int {
	if b.Over {
		if b.Target >= 100 {
			return 0
		}
		if b.Target < 0 {
			return 101
		}
		return 100 - b.Target
	}
	if b.Target <= 0 {
		return 0
	}
	if b.Target > 101 {
		return 101
	}
	return b.Target
}

// Dice replaces a winning roll with a uniformly chosen losing roll with
// probability 0.3 * intensity. A bet with no losing roll is left alone.
func Dice(roll int, bet DiceBet, intensity, override, pick float64) int {
	if !bet.Wins(roll) || override >= DICE_OVERRIDE_SCALE*Clamp(intensity) {
		return roll
	}

	losing := make([]int, 0, fairness.DICE_OUTCOMES)
	for r := 0; r < fairness.DICE_OUTCOMES; r++ {
		if !bet.Wins(r) {
			losing = append(losing, r)
		}
	}
	if len(losing) == 0 {
		return roll
	}
	return losing[fairness.Pick(pick, len(losing))]
}
