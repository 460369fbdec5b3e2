package game

import (
	"errors"

	"instantwin/internal/wallet"
)

var (
	// ErrConfiguration means the engine cannot run at all (no randomness,
	// missing collaborator). Players see "game unavailable".
	ErrConfiguration     = errors.New("game unavailable")
	ErrInsufficientFunds = wallet.ErrInsufficientFunds
	// ErrLedgerWrite means the outcome is final but the settlement record has
	// not been persisted yet. The round stays SETTLING until Reconcile
	// succeeds.
	ErrLedgerWrite       = errors.New("settlement could not be recorded")
	ErrInvalidParameters = errors.New("invalid parameters")
	ErrRoundNotFound     = errors.New("round not found")
	ErrRoundInProgress   = errors.New("a round is already in progress")
	ErrRoundSettled      = errors.New("round already settled")
	ErrGameDisabled      = errors.New("game is disabled")
	ErrUnknownGame       = errors.New("unknown game")
)
