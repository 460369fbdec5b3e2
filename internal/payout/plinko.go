package payout

type PlinkoRisk string

const (
	PlinkoRiskLow    PlinkoRisk = "low"
	PlinkoRiskMedium PlinkoRisk = "medium"
	PlinkoRiskHigh   PlinkoRisk = "high"
)

// Slot tables for 8, 12 and 16 rows. Each row count has rows+1 slots.
var plinkoTables = map[PlinkoRisk]map[int][]float64{
	PlinkoRiskLow: {
		8:  {5.6, 2.1, 1.1, 1.0, 0.5, 1.0, 1.1, 2.1, 5.6},
		12: {10, 3, 1.6, 1.4, 1.1, 1.0, 0.5, 1.0, 1.1, 1.4, 1.6, 3, 10},
		16: {16, 9, 2, 1.4, 1.4, 1.2, 1.1, 1.0, 0.5, 1.0, 1.1, 1.2, 1.4, 1.4, 2, 9, 16},
	},
	PlinkoRiskMedium: {
		8:  {13, 3, 1.3, 0.7, 0.4, 0.7, 1.3, 3, 13},
		12: {33, 11, 4, 2, 1.1, 0.6, 0.3, 0.6, 1.1, 2, 4, 11, 33},
		16: {110, 41, 10, 5, 3, 1.5, 1.0, 0.5, 0.3, 0.5, 1.0, 1.5, 3, 5, 10, 41, 110},
	},
	PlinkoRiskHigh: {
		8:  {29, 4, 1.5, 0.3, 0.2, 0.3, 1.5, 4, 29},
		12: {170, 24, 8.1, 2, 0.7, 0.2, 0.2, 0.2, 0.7, 2, 8.1, 24, 170},
		16: {1000, 130, 26, 9, 4, 2, 0.2, 0.2, 0.2, 0.2, 0.2, 2, 4, 9, 26, 130, 1000},
	},
}

func ValidPlinko(risk PlinkoRisk, rows int) bool {
	tables, ok := plinkoTables[risk]
	if !ok {
		return false
	}
	_, ok = tables[rows]
	return ok
}

// PlinkoMultiplier returns the slot multiplier, or 0 for an unknown table or slot.
func PlinkoMultiplier(risk PlinkoRisk, rows, slot int) float64 {
	table, ok := plinkoTables[risk][rows]
	if !ok || slot < 0 || slot >= len(table) {
		return 0
	}
	return table[slot]
}
