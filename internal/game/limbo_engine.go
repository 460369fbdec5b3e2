package game

import (
	"math"
	"time"

	"instantwin/internal/edge"
	"instantwin/internal/fairness"
)

const (
	LIMBO_MIN_TARGET = 1.01
	LIMBO_MAX_TARGET = fairness.LIMBO_MAX_POINT
)

type limboOutcome struct {
	Point float64 `json:"point"`
}

type LimboEngine struct{}

func NewLimboEngine() *LimboEngine { return &LimboEngine{} }

func (e *LimboEngine) GetType() GameType { return GameTypeLimbo }

func (e *LimboEngine) Validate(bet Bet) error {
	if math.IsNaN(bet.Target) || bet.Target < LIMBO_MIN_TARGET || bet.Target > LIMBO_MAX_TARGET {
		return invalid("target must be between %.2f and %.0f", LIMBO_MIN_TARGET, LIMBO_MAX_TARGET)
	}
	return nil
}

// Resolve wins at the target multiplier when the adjusted point reaches it.
func (e *LimboEngine) Resolve(r *Round, seeds fairness.Session) error {
	s := seeds.Stream()
	raw := fairness.LimboPoint(s.Next())
	point := edge.Limbo(raw, r.Intensity, s.Next())

	r.setOutcome(limboOutcome{Point: raw}, limboOutcome{Point: point})
	if point >= r.Bet.Target {
		r.finish(r.Bet.Target)
	} else {
		r.finish(0)
	}
	return nil
}

func (e *LimboEngine) Act(*Round, Action, time.Time) error {
	return invalid("limbo has no actions")
}
