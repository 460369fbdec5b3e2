// Package wallet is the balance collaborator. Amounts are decimals with cent
// precision; every mutation carries a reference so retries never apply twice.
package wallet

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("amount must have at most two decimal places")
)

type Wallet interface {
	Balance(ctx context.Context, playerID string) (decimal.Decimal, error)
	// Apply adds delta to the balance. It fails with ErrInsufficientFunds when
	// the result would be negative. A ref that was already applied is a no-op
	// returning the current balance.
	Apply(ctx context.Context, playerID, ref string, delta decimal.Decimal) (decimal.Decimal, error)
	Set(ctx context.Context, playerID string, amount decimal.Decimal) error
}

func toCents(d decimal.Decimal) (int64, error) {
	shifted := d.Shift(2)
	if !shifted.IsInteger() {
		return 0, ErrInvalidAmount
	}
	return shifted.IntPart(), nil
}

func fromCents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}

type Memory struct {
	mu       sync.Mutex
	balances map[string]int64
	refs     map[string]bool
}

func NewMemory() *Memory {
	return &Memory{
		balances: make(map[string]int64),
		refs:     make(map[string]bool),
	}
}

func (m *Memory) Balance(_ context.Context, playerID string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fromCents(m.balances[playerID]), nil
}

func (m *Memory) Apply(_ context.Context, playerID, ref string, delta decimal.Decimal) (decimal.Decimal, error) {
	cents, err := toCents(delta)
	if err != nil {
		return decimal.Zero, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	refKey := playerID + ":" + ref
	if m.refs[refKey] {
		return fromCents(m.balances[playerID]), nil
	}
	next := m.balances[playerID] + cents
	if next < 0 {
		return fromCents(m.balances[playerID]), ErrInsufficientFunds
	}
	m.balances[playerID] = next
	m.refs[refKey] = true
	return fromCents(next), nil
}

func (m *Memory) Set(_ context.Context, playerID string, amount decimal.Decimal) error {
	cents, err := toCents(amount)
	if err != nil {
		return err
	}
	if cents < 0 {
		return ErrInsufficientFunds
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[playerID] = cents
	return nil
}
