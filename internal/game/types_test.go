package game

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestRound_ViewHidesOutcomeUntilSettled(t *testing.T) {
	r := resolvedMines(t, 3, 0)
	now := r.StartedAt.Add(time.Second)

	v := r.View(now)
	if v.Outcome != nil {
		t.Errorf("open round exposed outcome %s", v.Outcome)
	}
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	var generic map[string]any
	if err := json.Unmarshal(data, &generic); err != nil {
		t.Fatal(err)
	}
	if _, ok := generic["outcome"]; ok {
		t.Error("outcome key should be omitted for an open round")
	}
	if _, ok := generic["progress"]; !ok {
		t.Error("open mines round should show progress")
	}

	r.finish(0)
	r.Status = StatusSettled
	r.Payout = decimal.Zero
	r.SettledAt = now

	v = r.View(now)
	if string(v.Outcome) != string(r.Adjusted) {
		t.Errorf("settled outcome = %s, want %s", v.Outcome, r.Adjusted)
	}
	if v.Progress != nil {
		t.Error("settled round should not show progress")
	}
	if v.SettledAt == nil || !v.SettledAt.Equal(now) {
		t.Errorf("settled_at = %v", v.SettledAt)
	}
}

func TestRound_ViewCrashProgress(t *testing.T) {
	r := testRound(GameTypeCrash, Bet{}, 0)
	r.Crash = &CrashState{Point: 1.5}
	r.Status = StatusActive

	p := r.View(r.StartedAt.Add(time.Minute)).Progress.(crashProgress)
	if p.CurrentMultiplier != 1.5 {
		t.Errorf("progress should stop at the crash point, got %v", p.CurrentMultiplier)
	}
	if p.ElapsedMs != 60000 {
		t.Errorf("elapsed = %d", p.ElapsedMs)
	}
}

func TestRound_Finish(t *testing.T) {
	r := testRound(GameTypeLimbo, Bet{}, 0)
	r.finish(2.3456)
	if r.Multiplier != 2.34 {
		t.Errorf("multiplier = %v, want 2.34", r.Multiplier)
	}
	if r.Status != StatusSettling || !r.Open() || r.Settled() {
		t.Errorf("finish should leave the round SETTLING, got %v", r.Status)
	}
}
