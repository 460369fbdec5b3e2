package game

import (
	"slices"
	"testing"
	"time"

	"instantwin/internal/edge"
)

func resolvedMines(t *testing.T, mines int, intensity float64) *Round {
	t.Helper()
	r := testRound(GameTypeMines, Bet{Mines: mines}, intensity)
	if err := NewMinesEngine().Resolve(r, testSeeds(11)); err != nil {
		t.Fatal(err)
	}
	return r
}

func safeCells(r *Round) []int {
	var out []int
	for c := 0; c < MINES_GRID_SIZE; c++ {
		if !slices.Contains(r.Mines.Positions, c) {
			out = append(out, c)
		}
	}
	return out
}

func TestMinesEngine_Validate(t *testing.T) {
	engine := NewMinesEngine()
	tests := []struct {
		mines   int
		wantErr bool
	}{
		{0, true},
		{1, false},
		{3, false},
		{24, false},
		{25, true},
	}
	for _, tt := range tests {
		if err := engine.Validate(Bet{Mines: tt.mines}); (err != nil) != tt.wantErr {
			t.Errorf("Validate(%d) error = %v, wantErr %v", tt.mines, err, tt.wantErr)
		}
	}
}

func TestMinesEngine_Resolve(t *testing.T) {
	r := resolvedMines(t, 5, 0)

	if r.Status != StatusActive {
		t.Fatalf("status = %v, want ACTIVE", r.Status)
	}
	if len(r.Mines.Positions) != 5 {
		t.Fatalf("placed %d mines, want 5", len(r.Mines.Positions))
	}
	if r.Mines.HouseEdge != edge.MINES_BASE_EDGE {
		t.Errorf("house edge = %v, want %v", r.Mines.HouseEdge, edge.MINES_BASE_EDGE)
	}

	again := resolvedMines(t, 5, 1)
	if !slices.Equal(r.Mines.Positions, again.Mines.Positions) {
		t.Error("intensity must not move the mines")
	}
	if again.Mines.HouseEdge >= r.Mines.HouseEdge {
		t.Errorf("intensity 1 edge %v should be below %v", again.Mines.HouseEdge, r.Mines.HouseEdge)
	}
}

func TestMinesEngine_RevealAndCashout(t *testing.T) {
	engine := NewMinesEngine()
	r := resolvedMines(t, 3, 0)
	safe := safeCells(r)
	now := time.Now()

	t.Run("cashout needs a reveal", func(t *testing.T) {
		if err := engine.Act(r, Action{Kind: ACTION_CASHOUT}, now); err == nil {
			t.Error("expected error cashing out with nothing revealed")
		}
	})

	t.Run("reveal safe cells", func(t *testing.T) {
		for _, c := range safe[:2] {
			if err := engine.Act(r, Action{Kind: ACTION_REVEAL, Cell: c}, now); err != nil {
				t.Fatal(err)
			}
		}
		if r.Status != StatusActive {
			t.Errorf("status = %v, want ACTIVE", r.Status)
		}
		if got := r.View(now).Progress.(minesProgress).CurrentMultiplier; got != r.Mines.multiplier(2) {
			t.Errorf("progress multiplier = %v", got)
		}
	})

	t.Run("rejects repeated and out of range cells", func(t *testing.T) {
		if err := engine.Act(r, Action{Kind: ACTION_REVEAL, Cell: safe[0]}, now); err == nil {
			t.Error("expected error for repeated cell")
		}
		if err := engine.Act(r, Action{Kind: ACTION_REVEAL, Cell: 25}, now); err == nil {
			t.Error("expected error for cell 25")
		}
	})

	t.Run("cashout", func(t *testing.T) {
		want := r.Mines.multiplier(2)
		if err := engine.Act(r, Action{Kind: ACTION_CASHOUT}, now); err != nil {
			t.Fatal(err)
		}
		if r.Status != StatusSettling || r.Multiplier != want {
			t.Errorf("got %v x%v, want SETTLING x%v", r.Status, r.Multiplier, want)
		}
		if want <= 1 {
			t.Errorf("two reveals with three mines should pay over 1x, got %v", want)
		}
	})
}

func TestMinesEngine_HitMine(t *testing.T) {
	r := resolvedMines(t, 3, 0)
	safe := safeCells(r)
	engine := NewMinesEngine()

	_ = engine.Act(r, Action{Kind: ACTION_REVEAL, Cell: safe[0]}, time.Now())
	mine := r.Mines.Positions[0]
	if err := engine.Act(r, Action{Kind: ACTION_REVEAL, Cell: mine}, time.Now()); err != nil {
		t.Fatal(err)
	}
	if r.Status != StatusSettling || r.Multiplier != 0 {
		t.Errorf("hitting a mine should lose, got %v x%v", r.Status, r.Multiplier)
	}
	if r.Mines.HitMine != mine {
		t.Errorf("HitMine = %d, want %d", r.Mines.HitMine, mine)
	}
}

func TestMinesEngine_AllSafeCellsSettle(t *testing.T) {
	r := resolvedMines(t, 24, 0)
	safe := safeCells(r)
	if len(safe) != 1 {
		t.Fatalf("expected one safe cell, got %d", len(safe))
	}

	if err := NewMinesEngine().Act(r, Action{Kind: ACTION_REVEAL, Cell: safe[0]}, time.Now()); err != nil {
		t.Fatal(err)
	}
	if r.Status != StatusSettling {
		t.Fatalf("status = %v, want SETTLING", r.Status)
	}
	if r.Multiplier < 23 {
		t.Errorf("single safe cell of 25 should pay about 23.5x, got %v", r.Multiplier)
	}
}

func TestMinesEngine_IntensityLowersPayout(t *testing.T) {
	fair := resolvedMines(t, 3, 0)
	biased := resolvedMines(t, 3, 1)
	for n := 1; n <= 5; n++ {
		if biased.Mines.multiplier(n) >= fair.Mines.multiplier(n) {
			t.Errorf("%d reveals: biased %v >= fair %v", n, biased.Mines.multiplier(n), fair.Mines.multiplier(n))
		}
	}
	if biased.Mines.HouseEdge != edge.MINES_MIN_EDGE {
		t.Errorf("edge at intensity 1 = %v, want %v", biased.Mines.HouseEdge, edge.MINES_MIN_EDGE)
	}
}
