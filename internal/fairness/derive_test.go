package fairness

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCrashPoint(t *testing.T) {
	tests := []struct {
		name   string
		digest string
		want   float64
	}{
		{"v=0 is the minimum", strings.Repeat("0", 64), 1.00},
		{"v=e/2", "8000000000000" + strings.Repeat("0", 51), 1.99},
		{"known digest", "a7367b47257b6d83ab4e67d86217458038efc17efd50f76096c08b64696c16c4", 2.86},
		{"malformed digest", "zz", 1.00},
		{"non-hex digest", strings.Repeat("g", 64), 1.00},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CrashPoint(tt.digest))
		})
	}
}

func TestCrashPoint_Diverges(t *testing.T) {
	got := CrashPoint("fffffffffffff" + strings.Repeat("0", 51))
	assert.Greater(t, got, 1e12)
}

func TestCrashPoint_Deterministic(t *testing.T) {
	d := RoundDigest("deterministic_test_seed", "deterministic_client_seed", 42)
	assert.Equal(t, CrashPoint(d), CrashPoint(d))

	changed := 0
	for n := 0; n < 20; n++ {
		if CrashPoint(RoundDigest("seed", "client", n)) != CrashPoint(RoundDigest("seed", "client", n+1)) {
			changed++
		}
	}
	assert.Greater(t, changed, 15)
}

func TestCrashPoint_Distribution(t *testing.T) {
	// P(point >= 2) = 99/199 by construction.
	const n = 20000
	over := 0
	for i := 0; i < n; i++ {
		if CrashPoint(RoundDigest("dist", "client", i)) >= 2 {
			over++
		}
	}
	rate := float64(over) / n
	assert.InDelta(t, 99.0/199.0, rate, 0.02)
}

func TestDicePercentile(t *testing.T) {
	assert.Equal(t, 0x00ff00ff%101, DicePercentile("00ff00ff"+strings.Repeat("0", 56)))
	assert.Equal(t, 67, DicePercentile("ffffffff"))
	assert.Equal(t, 79, DicePercentile("a7367b47257b6d83ab4e67d86217458038efc17efd50f76096c08b64696c16c4"))
	assert.Equal(t, 0, DicePercentile("xyz"))

	for i := 0; i < 500; i++ {
		v := DicePercentile(RoundDigest("dice", "client", i))
		assert.GreaterOrEqual(t, v, 0)
		assert.LessOrEqual(t, v, 100)
	}
}

func TestStream_KnownValues(t *testing.T) {
	s := NewStream("server", "client", 1)
	want := []float64{0.5346024099271744, 0.33758197305724025, 0.9821543972939253}
	for i, w := range want {
		assert.InDelta(t, w, s.Next(), 1e-12, "float %d", i)
	}
}

func TestStream_DeterministicAcrossBlocks(t *testing.T) {
	a := NewStream("server", "client", 7).Floats(20)
	b := NewStream("server", "client", 7).Floats(20)
	assert.Equal(t, a, b)

	for _, f := range a {
		assert.GreaterOrEqual(t, f, 0.0)
		assert.Less(t, f, 1.0)
	}

	c := NewStream("server", "client", 8).Floats(20)
	assert.NotEqual(t, a, c)
}

func TestWeightedIndex(t *testing.T) {
	weights := []int{1, 0, 3}

	assert.Equal(t, 0, WeightedIndex(weights, 0.0))
	assert.Equal(t, 0, WeightedIndex(weights, 0.249))
	assert.Equal(t, 2, WeightedIndex(weights, 0.25))
	assert.Equal(t, 2, WeightedIndex(weights, 0.999999))
	assert.Equal(t, -1, WeightedIndex([]int{0, -2}, 0.5))
	assert.Equal(t, -1, WeightedIndex(nil, 0.5))
}

func TestWeightedIndex_ConvergesToWeights(t *testing.T) {
	weights := []int{50, 25, 15, 8, 2}
	total := 100.0
	const n = 100000

	counts := make([]int, len(weights))
	s := NewStream("weights", "client", 0)
	for i := 0; i < n; i++ {
		counts[WeightedIndex(weights, s.Next())]++
	}

	for i, w := range weights {
		got := float64(counts[i]) / n
		assert.InDelta(t, float64(w)/total, got, 0.02, "symbol %d", i)
	}
}

func TestPick(t *testing.T) {
	assert.Equal(t, 0, Pick(0, 3))
	assert.Equal(t, 1, Pick(0.5, 3))
	assert.Equal(t, 2, Pick(0.9999, 3))
	assert.Equal(t, 2, Pick(1.0, 3))
	assert.Equal(t, 0, Pick(0.5, 0))
}

func TestPlaceMines(t *testing.T) {
	t.Run("distinct cells within the grid", func(t *testing.T) {
		for mines := 1; mines <= 24; mines++ {
			cells := PlaceMines(NewStream("mines", "client", mines), mines, MINES_GRID_SIZE)
			assert.Len(t, cells, mines)

			seen := make(map[int]bool)
			for _, c := range cells {
				assert.GreaterOrEqual(t, c, 0)
				assert.Less(t, c, MINES_GRID_SIZE)
				assert.False(t, seen[c], "duplicate cell %d", c)
				seen[c] = true
			}
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		a := PlaceMines(NewStream("s", "c", 1), 5, MINES_GRID_SIZE)
		b := PlaceMines(NewStream("s", "c", 1), 5, MINES_GRID_SIZE)
		assert.Equal(t, a, b)
	})

	t.Run("clamps mine count", func(t *testing.T) {
		assert.Len(t, PlaceMines(NewStream("s", "c", 1), 40, MINES_GRID_SIZE), MINES_GRID_SIZE)
		assert.Empty(t, PlaceMines(NewStream("s", "c", 1), -1, MINES_GRID_SIZE))
	})

	t.Run("uniform over cells", func(t *testing.T) {
		hits := make([]int, MINES_GRID_SIZE)
		const rounds = 20000
		for n := 0; n < rounds; n++ {
			for _, c := range PlaceMines(NewStream("u", "c", n), 3, MINES_GRID_SIZE) {
				hits[c]++
			}
		}
		for c, h := range hits {
			assert.InDelta(t, 3.0/25.0, float64(h)/rounds, 0.015, "cell %d", c)
		}
	})
}

func TestLimboPoint(t *testing.T) {
	assert.Equal(t, LIMBO_MAX_POINT, LimboPoint(0))
	assert.Equal(t, 1.98, LimboPoint(0.5))
	assert.Equal(t, MIN_MULTIPLIER, LimboPoint(0.999))
	assert.Equal(t, LIMBO_MAX_POINT, LimboPoint(1e-12))
	assert.False(t, math.IsInf(LimboPoint(1e-300), 0))
}

func TestPlinkoPath(t *testing.T) {
	for _, rows := range []int{8, 12, 16} {
		path, slot := PlinkoPath(NewStream("p", "c", rows), rows)
		assert.Len(t, path, rows)

		rights := 0
		for _, d := range path {
			assert.Contains(t, []int{0, 1}, d)
			rights += d
		}
		assert.Equal(t, rights, slot)

		for i, f := range NewStream("p", "c", rows).Floats(rows) {
			assert.Equal(t, f >= 0.5, path[i] == 1, "bounce %d follows draw %d", i, i)
		}
	}
}
