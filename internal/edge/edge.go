// Package edge applies the configurable house-edge intensity to raw fair
// outcomes. Every function is pure: the random draws it needs are passed in by
// the caller (taken from the round's seed stream), it is the identity at
// intensity 0, and raising the intensity never raises the player's payout for
// the same draws.
package edge

import (
	"math"

	"instantwin/internal/payout"
)

const (
	CRASH_BASE_EDGE      = 0.03
	CRASH_MAX_EDGE       = 0.28
	CRASH_CAP_INTENSITY  = 0.7
	CRASH_CAP_THRESHOLD  = 5.0
	CRASH_CAP_FLOOR      = 2.0
	LIMBO_OVERRIDE_SCALE = 0.25
	DICE_OVERRIDE_SCALE  = 0.3
	PENALTY_SAVE_SCALE   = 0.3
	PLINKO_REROLL_SCALE  = 0.25
	MINES_BASE_EDGE      = 0.94
	MINES_MIN_EDGE       = 0.79
	SLOT_PREMIUM_DAMPING = 0.5
)

// Clamp forces an intensity into [0,1]. NaN is treated as 0.
func Clamp(intensity float64) float64 {
	if math.IsNaN(intensity) || intensity < 0 {
		return 0
	}
	if intensity > 1 {
		return 1
	}
	return intensity
}

func lerp(from, to, t float64) float64 {
	return from + (to-from)*Clamp(t)
}

// CrashHouseEdge grows from 3% at intensity 0 to 28% at intensity 1.
func CrashHouseEdge(intensity float64) float64 {
	return lerp(CRASH_BASE_EDGE, CRASH_MAX_EDGE, intensity)
}

// Crash adjusts a raw crash point. With probability CrashHouseEdge - 3% the
// round busts at 1.00; above intensity 0.7 a raw point over 5x is capped to a
// drawn value in [2, 5). override and capDraw are uniform draws in [0,1).
func Crash(raw, intensity, override, capDraw float64) float64 {
	i := Clamp(intensity)
	if override < CrashHouseEdge(i)-CRASH_BASE_EDGE {
		return payout.Floor2(1)
	}
	if i > CRASH_CAP_INTENSITY && raw > CRASH_CAP_THRESHOLD {
		return payout.Floor2(CRASH_CAP_FLOOR + (CRASH_CAP_THRESHOLD-CRASH_CAP_FLOOR)*capDraw)
	}
	return raw
}

// Limbo busts the point to 1.00 with probability 0.25 * intensity.
func Limbo(raw, intensity, override float64) float64 {
	if override < LIMBO_OVERRIDE_SCALE*Clamp(intensity) {
		return 1
	}
	return raw
}

// MinesHouseEdge shrinks the mines payout factor from 0.94 to 0.79.
func MinesHouseEdge(intensity float64) float64 {
	return lerp(MINES_BASE_EDGE, MINES_MIN_EDGE, intensity)
}

// Penalty returns where the keeper dives. With probability 0.3 * intensity
// the keeper is sent to the shot.
func Penalty(shot, dive int, intensity, override float64) int {
	if override < PENALTY_SAVE_SCALE*Clamp(intensity) {
		return shot
	}
	return dive
}

// SlotWeights damps the weight of premium symbols by up to half. Weights never
// drop below 1 so every symbol stays reachable.
func SlotWeights(weights []int, premium []bool, intensity float64) []int {
	i := Clamp(intensity)
	out := make([]int, len(weights))
	for k, w := range weights {
		out[k] = w
		if k < len(premium) && premium[k] && w > 0 {
			scaled := int(math.Round(float64(w) * (1 - SLOT_PREMIUM_DAMPING*i)))
			if scaled < 1 {
				scaled = 1
			}
			out[k] = scaled
		}
	}
	return out
}

// Plinko keeps the lower paying of two independently drawn slots with
// probability 0.25 * intensity.
func Plinko(raw, alt int, intensity, override float64, pays func(slot int) float64) int {
	if override < PLINKO_REROLL_SCALE*Clamp(intensity) && pays(alt) < pays(raw) {
		return alt
	}
	return raw
}
