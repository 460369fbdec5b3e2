package game

import (
	"encoding/json"
	"fmt"
	"reflect"

	"instantwin/internal/fairness"
	"instantwin/internal/ledger"
)

// Verification is the result of replaying a settled round.
type Verification struct {
	RoundID         string          `json:"round_id"`
	CommitmentValid bool            `json:"commitment_valid"`
	RawMatches      bool            `json:"raw_matches"`
	AdjustedMatches bool            `json:"adjusted_matches"`
	Raw             json.RawMessage `json:"raw"`
	Adjusted        json.RawMessage `json:"adjusted"`
	Intensity       float64         `json:"intensity"`
	Valid           bool            `json:"valid"`
}

// replayer is implemented by engines whose adjusted outcome depends on the
// player's recorded choices.
type replayer interface {
	Replay(r *Round, adjusted json.RawMessage) error
}

// VerifySettlement recomputes the raw outcome from the revealed server seed
// and re-applies the bias at the recorded intensity.
func VerifySettlement(engine GameEngine, s ledger.Settlement, serverSeed string) (Verification, error) {
	const op = "game.VerifySettlement"

	v := Verification{
		RoundID:         s.RoundID,
		Intensity:       s.Intensity,
		CommitmentValid: fairness.VerifyCommitment(serverSeed, s.ServerSeedHash),
	}
	if !v.CommitmentValid {
		return v, nil
	}

	var bet Bet
	if len(s.Params) > 0 {
		if err := json.Unmarshal(s.Params, &bet); err != nil {
			return v, fmt.Errorf("%s: %w", op, err)
		}
	}

	r := &Round{
		ID:        s.RoundID,
		PlayerID:  s.PlayerID,
		Game:      GameType(s.Game),
		Bet:       bet,
		Intensity: s.Intensity,
	}
	seeds := fairness.Session{
		ServerSeed:     serverSeed,
		ServerSeedHash: s.ServerSeedHash,
		ClientSeed:     s.ClientSeed,
		Nonce:          s.Nonce,
	}
	if err := engine.Resolve(r, seeds); err != nil {
		return v, fmt.Errorf("%s: %w", op, err)
	}
	if rp, ok := engine.(replayer); ok {
		if err := rp.Replay(r, s.AdjustedOutcome); err != nil {
			return v, fmt.Errorf("%s: %w", op, err)
		}
	}

	v.Raw = r.Raw
	v.Adjusted = r.Adjusted
	v.RawMatches = sameJSON(r.Raw, s.RawOutcome)
	v.AdjustedMatches = sameJSON(r.Adjusted, s.AdjustedOutcome)
	v.Valid = v.RawMatches && v.AdjustedMatches
	return v, nil
}

func sameJSON(a, b json.RawMessage) bool {
	var x, y any
	if json.Unmarshal(a, &x) != nil || json.Unmarshal(b, &y) != nil {
		return false
	}
	return reflect.DeepEqual(x, y)
}
