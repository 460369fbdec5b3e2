package server

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"instantwin/internal/game"
	"instantwin/internal/payout"
)

// StartRequest opens a round. Only the fields of the chosen game are read.
type StartRequest struct {
	PlayerID    string          `json:"player_id" validate:"required,max=128"`
	Stake       decimal.Decimal `json:"stake"`
	AutoCashout float64         `json:"auto_cashout" validate:"omitempty,gte=1.01"`
	Target      float64         `json:"target" validate:"omitempty,gte=1.01"`
	Threshold   int             `json:"threshold" validate:"omitempty,min=1,max=99"`
	Over        bool            `json:"over"`
	Mines       int             `json:"mines" validate:"omitempty,min=1,max=24"`
	Rows        int             `json:"rows" validate:"omitempty,oneof=8 12 16"`
	Risk        string          `json:"risk" validate:"omitempty,oneof=low medium high"`
}

func (r StartRequest) Bet() game.Bet {
	return game.Bet{
		Stake:       r.Stake,
		AutoCashout: r.AutoCashout,
		Target:      r.Target,
		Threshold:   r.Threshold,
		Over:        r.Over,
		Mines:       r.Mines,
		Rows:        r.Rows,
		Risk:        payout.PlinkoRisk(r.Risk),
	}
}

type ActionRequest struct {
	PlayerID  string `json:"player_id" validate:"required,max=128"`
	Kind      string `json:"kind" validate:"required,oneof=cashout reveal shoot"`
	Cell      int    `json:"cell" validate:"min=0,max=24"`
	Direction int    `json:"direction" validate:"min=0,max=2"`
}

func (r ActionRequest) Action() game.Action {
	return game.Action{Kind: r.Kind, Cell: r.Cell, Direction: r.Direction}
}

type RotateRequest struct {
	ClientSeed string `json:"client_seed" validate:"max=64"`
}

type VerifyRequest struct {
	RoundID    string `json:"round_id" validate:"required"`
	ServerSeed string `json:"server_seed" validate:"required,hexadecimal"`
}

type BalanceRequest struct {
	Balance decimal.Decimal `json:"balance"`
}

// GameSettingsRequest changes a game's house-edge intensity, its enabled
// flag, or both.
type GameSettingsRequest struct {
	Intensity *float64 `json:"intensity" validate:"omitempty,gte=0,lte=1"`
	Enabled   *bool    `json:"enabled"`
}

func validationMessage(err error) string {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}

	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		switch e.ActualTag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("field %s is required", e.Field()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("field %s must be one of [%s]", e.Field(), e.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("field %s is invalid", e.Field()))
		}
	}
	return strings.Join(msgs, ", ")
}
