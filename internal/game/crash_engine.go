package game

import (
	"math"
	"time"

	"instantwin/internal/edge"
	"instantwin/internal/fairness"
	"instantwin/internal/payout"
)

const (
	CRASH_MIN_CASHOUT = 1.01
	CRASH_MAX_CASHOUT = fairness.LIMBO_MAX_POINT

	// The displayed multiplier follows 1 + t/1.5 + 0.005t^2 (t in seconds).
	CRASH_CURVE_LINEAR    = 1 / 1.5
	CRASH_CURVE_QUADRATIC = 0.005
)

type CrashState struct {
	Point       float64 `json:"point"`
	CashedOutAt float64 `json:"cashed_out_at,omitempty"`
	Crashed     bool    `json:"crashed,omitempty"`
}

type crashOutcome struct {
	Point float64 `json:"point"`
}

type crashProgress struct {
	CurrentMultiplier float64 `json:"current_multiplier"`
	ElapsedMs         int64   `json:"elapsed_ms"`
}

func (s *CrashState) progress(startedAt, now time.Time) crashProgress {
	elapsed := now.Sub(startedAt)
	cur := CurveAt(elapsed)
	if cur > s.Point {
		cur = s.Point
	}
	return crashProgress{CurrentMultiplier: cur, ElapsedMs: elapsed.Milliseconds()}
}

// CurveAt is the multiplier shown after elapsed time. It is presentation only:
// the crash point is fixed when the round starts.
func CurveAt(elapsed time.Duration) float64 {
	t := elapsed.Seconds()
	if t <= 0 {
		return fairness.MIN_MULTIPLIER
	}
	return payout.Floor2(1 + t*CRASH_CURVE_LINEAR + t*t*CRASH_CURVE_QUADRATIC)
}

// TimeToReach inverts CurveAt.
func TimeToReach(multiplier float64) time.Duration {
	if multiplier <= 1 {
		return 0
	}
	a, b, c := CRASH_CURVE_QUADRATIC, CRASH_CURVE_LINEAR, 1-multiplier
	t := (-b + math.Sqrt(b*b-4*a*c)) / (2 * a)
	return time.Duration(t * float64(time.Second))
}

// CrashEngine runs single-player crash rounds. Aviator uses the same rules
// under its own game type, so its sessions and intensity are independent.
type CrashEngine struct {
	gameType GameType
}

func NewCrashEngine(gameType GameType) *CrashEngine {
	return &CrashEngine{gameType: gameType}
}

func (e *CrashEngine) GetType() GameType {
	return e.gameType
}

func (e *CrashEngine) Validate(bet Bet) error {
	if bet.AutoCashout == 0 {
		return nil
	}
	if bet.AutoCashout < CRASH_MIN_CASHOUT || bet.AutoCashout > CRASH_MAX_CASHOUT || math.IsNaN(bet.AutoCashout) {
		return invalid("auto cashout must be between %.2f and %.0f", CRASH_MIN_CASHOUT, CRASH_MAX_CASHOUT)
	}
	return nil
}

// Resolve reads the raw point from the round digest, then draws the override
// and cap values from the seed stream.
func (e *CrashEngine) Resolve(r *Round, seeds fairness.Session) error {
	raw := fairness.CrashPoint(seeds.Digest())
	s := seeds.Stream()
	point := edge.Crash(raw, r.Intensity, s.Next(), s.Next())

	r.Crash = &CrashState{Point: point}
	r.setOutcome(crashOutcome{Point: raw}, crashOutcome{Point: point})

	if auto := r.Bet.AutoCashout; auto > 0 {
		e.settleAt(r, auto)
		return nil
	}
	r.Status = StatusActive
	return nil
}

func (e *CrashEngine) Act(r *Round, action Action, now time.Time) error {
	if action.Kind != ACTION_CASHOUT {
		return invalid("crash only supports %s", ACTION_CASHOUT)
	}
	e.settleAt(r, CurveAt(now.Sub(r.StartedAt)))
	return nil
}

// settleAt cashes out at target if the round is still flying there.
func (e *CrashEngine) settleAt(r *Round, target float64) {
	target = payout.Floor2(target)
	if target < r.Crash.Point {
		r.Crash.CashedOutAt = target
		r.finish(target)
		return
	}
	r.Crash.Crashed = true
	r.finish(0)
}

func (e *CrashEngine) Expire(r *Round, now time.Time) bool {
	if r.Status != StatusActive || r.Crash == nil {
		return false
	}
	if CurveAt(now.Sub(r.StartedAt)) < r.Crash.Point {
		return false
	}
	r.Crash.Crashed = true
	r.finish(0)
	return true
}
