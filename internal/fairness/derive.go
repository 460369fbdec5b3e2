package fairness

import (
	"math"
	"sort"
	"strconv"
)

const (
	CRASH_HEX_CHARS = 13 // 52 bits
	DICE_HEX_CHARS  = 8
	DICE_OUTCOMES   = 101

	MIN_MULTIPLIER   = 1.00
	LIMBO_MAX_POINT  = 1000000.00
	LIMBO_RTP        = 0.99
	MINES_GRID_SIZE  = 25
	KEEPER_POSITIONS = 3
)

// CrashPoint maps a round digest to a raw crash multiplier:
//
//	max(1.00, floor((100e - v) / (e - v)) / 100), e = 2^52
//
// where v is the first 52 bits of the digest. The result is unbounded above.
// A malformed digest yields the minimum multiplier.
func CrashPoint(digest string) float64 {
	if len(digest) < CRASH_HEX_CHARS {
		return MIN_MULTIPLIER
	}
	v, err := strconv.ParseUint(digest[:CRASH_HEX_CHARS], 16, 64)
	if err != nil {
		return MIN_MULTIPLIER
	}

	const e = uint64(1) << 52
	hundredths := (100*e - v) / (e - v)

	point := float64(hundredths) / 100
	if point < MIN_MULTIPLIER {
		return MIN_MULTIPLIER
	}
	return point
}

// DicePercentile maps a round digest to an integer roll in [0,100].
func DicePercentile(digest string) int {
	if len(digest) < DICE_HEX_CHARS {
		return 0
	}
	v, err := strconv.ParseUint(digest[:DICE_HEX_CHARS], 16, 32)
	if err != nil {
		return 0
	}
	return int(v % DICE_OUTCOMES)
}

// WeightedIndex picks an index with probability weights[i]/sum(weights) using
// a uniform u in [0,1). Non-positive weights are never picked. Returns -1 when
// no weight is positive.
func WeightedIndex(weights []int, u float64) int {
	total := 0
	last := -1
	for i, w := range weights {
		if w > 0 {
			total += w
			last = i
		}
	}
	if total == 0 {
		return -1
	}

	target := u * float64(total)
	cum := 0.0
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		cum += float64(w)
		if target < cum {
			return i
		}
	}
	return last
}

// Pick maps u in [0,1) to an index in [0,n).
func Pick(u float64, n int) int {
	if n <= 0 {
		return 0
	}
	i := int(u * float64(n))
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

// PlaceMines draws mines distinct cells from [0,gridSize) without replacement
// using a partial Fisher-Yates shuffle. The result is sorted.
func PlaceMines(s *Stream, mines, gridSize int) []int {
	if mines < 0 {
		mines = 0
	}
	if mines > gridSize {
		mines = gridSize
	}

	cells := make([]int, gridSize)
	for i := range cells {
		cells[i] = i
	}
	for i := 0; i < mines; i++ {
		j := i + Pick(s.Next(), gridSize-i)
		cells[i], cells[j] = cells[j], cells[i]
	}

	out := append([]int(nil), cells[:mines]...)
	sort.Ints(out)
	return out
}

// LimboPoint maps a uniform float to a limbo multiplier with a 1% intrinsic edge.
func LimboPoint(f float64) float64 {
	if f <= 0 {
		return LIMBO_MAX_POINT
	}
	point := math.Floor(LIMBO_RTP/f*100) / 100
	if point < MIN_MULTIPLIER {
		return MIN_MULTIPLIER
	}
	if point > LIMBO_MAX_POINT {
		return LIMBO_MAX_POINT
	}
	return point
}

// PlinkoPath drops a ball through rows pegs. 0 = left, 1 = right; the landing
// slot is the number of right bounces.
func PlinkoPath(s *Stream, rows int) ([]int, int) {
	path := make([]int, rows)
	slot := 0
	for i, f := range s.Floats(rows) {
		if f >= 0.5 {
			path[i] = 1
			slot++
		}
	}
	return path, slot
}
