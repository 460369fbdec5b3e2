// Package payout converts game outcomes into payout multipliers and amounts.
package payout

import (
	"math"

	"github.com/shopspring/decimal"
)

const (
	GRID_SIZE       = 25
	DICE_OUTCOMES   = 101
	PENALTY_KICKS   = 5
	PENALTY_RTP     = 0.97
	PENALTY_PER_WIN = 1.5 // fair odds for one of three goal positions being open
)

// Binomial returns C(n, k) using the iterative product-and-divide form, which
// stays exact for the n <= 25 used here. Out of range k yields 0.
func Binomial(n, k int) float64 {
	if k < 0 || n < 0 || k > n {
		return 0
	}
	if k > n-k {
		k = n - k
	}
	result := 1.0
	for i := 1; i <= k; i++ {
		result = result * float64(n-k+i) / float64(i)
	}
	return math.Round(result)
}

// MinesMultiplier is houseEdge divided by the probability of revealing
// revealed safe cells in a row on a 25-cell grid holding mines mines.
// revealed == 0 and impossible configurations return 0.
func MinesMultiplier(revealed, mines int, houseEdge float64) float64 {
	if revealed <= 0 || mines < 0 || mines >= GRID_SIZE {
		return 0
	}
	total := Binomial(GRID_SIZE, revealed)
	safe := Binomial(GRID_SIZE-mines, revealed)
	if total == 0 || safe == 0 {
		return 0
	}
	return houseEdge / (safe / total)
}

// DiceMultiplier pays winning outcomes out of 101 equally likely rolls.
func DiceMultiplier(winningOutcomes int, edge float64) float64 {
	if winningOutcomes <= 0 || winningOutcomes > DICE_OUTCOMES {
		return 0
	}
	return Floor2((1 - edge) * DICE_OUTCOMES / float64(winningOutcomes))
}

// PenaltyMultiplier is the cash-out value after goals consecutive goals.
func PenaltyMultiplier(goals int) float64 {
	if goals <= 0 {
		return 0
	}
	if goals > PENALTY_KICKS {
		goals = PENALTY_KICKS
	}
	return Floor2(PENALTY_RTP * math.Pow(PENALTY_PER_WIN, float64(goals)))
}

// Floor2 rounds down to two decimals. The epsilon keeps values such as
// 1.15 (stored as 1.1499999...) from losing a cent.
func Floor2(x float64) float64 {
	if math.IsNaN(x) || x <= 0 {
		return 0
	}
	return math.Floor(x*100+1e-9) / 100
}

// Amount returns stake * multiplier rounded down to the cent.
func Amount(stake decimal.Decimal, multiplier float64) decimal.Decimal {
	if multiplier <= 0 || math.IsNaN(multiplier) || math.IsInf(multiplier, 0) {
		return decimal.Zero
	}
	return stake.Mul(decimal.NewFromFloat(multiplier)).RoundFloor(2)
}
