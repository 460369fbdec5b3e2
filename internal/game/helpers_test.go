package game

import (
	"time"

	"github.com/shopspring/decimal"

	"instantwin/internal/fairness"
)

func testSeeds(nonce int) fairness.Session {
	return fairness.Session{
		ServerSeed:     "test-server-seed",
		ServerSeedHash: fairness.HashCommitment("test-server-seed"),
		ClientSeed:     "test-client-seed",
		Nonce:          nonce,
	}
}

func testRound(game GameType, bet Bet, intensity float64) *Round {
	if bet.Stake.IsZero() {
		bet.Stake = decimal.NewFromInt(10)
	}
	return &Round{
		ID:        "round-test",
		PlayerID:  "player-test",
		Game:      game,
		Status:    StatusResolving,
		Bet:       bet,
		Intensity: intensity,
		StartedAt: time.Unix(1700000000, 0),
	}
}
