package wallet

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

const DEMO_CREDIT_REF = "demo:credit"

// Demo credits every player once with a starting balance the first time the
// process sees them. The credit goes through Apply under a fixed reference,
// so a restart never credits the same player twice while the reference is
// still remembered by the backend.
type Demo struct {
	Wallet
	amount decimal.Decimal
	seen   sync.Map
}

func NewDemo(w Wallet, amount decimal.Decimal) *Demo {
	return &Demo{Wallet: w, amount: amount}
}

func (d *Demo) credit(ctx context.Context, playerID string) error {
	if _, done := d.seen.Load(playerID); done || !d.amount.IsPositive() {
		return nil
	}
	if _, err := d.Wallet.Apply(ctx, playerID, DEMO_CREDIT_REF, d.amount); err != nil {
		return err
	}
	d.seen.Store(playerID, struct{}{})
	return nil
}

func (d *Demo) Balance(ctx context.Context, playerID string) (decimal.Decimal, error) {
	if err := d.credit(ctx, playerID); err != nil {
		return decimal.Zero, err
	}
	return d.Wallet.Balance(ctx, playerID)
}

func (d *Demo) Apply(ctx context.Context, playerID, ref string, delta decimal.Decimal) (decimal.Decimal, error) {
	if err := d.credit(ctx, playerID); err != nil {
		return decimal.Zero, err
	}
	return d.Wallet.Apply(ctx, playerID, ref, delta)
}

// Set marks the player as seen so an explicit balance is never topped up.
func (d *Demo) Set(ctx context.Context, playerID string, amount decimal.Decimal) error {
	d.seen.Store(playerID, struct{}{})
	return d.Wallet.Set(ctx, playerID, amount)
}
