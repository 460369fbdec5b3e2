package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func settlement(round, player string, at time.Time) Settlement {
	return Settlement{
		RoundID:         round,
		PlayerID:        player,
		Game:            "dice",
		Stake:           decimal.RequireFromString("10.00"),
		Multiplier:      1.98,
		Payout:          decimal.RequireFromString("19.80"),
		Outcome:         OutcomeWon,
		Params:          json.RawMessage(`{"threshold":50,"over":true}`),
		RawOutcome:      json.RawMessage(`{"roll":72}`),
		AdjustedOutcome: json.RawMessage(`{"roll":72}`),
		Intensity:       0.25,
		ServerSeedHash:  "abc",
		ClientSeed:      "client",
		Nonce:           3,
		SettledAt:       at,
	}
}

func TestMemoryRecordIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Now()

	first := settlement("r1", "p1", now)
	require.NoError(t, m.Record(ctx, first))

	second := first
	second.Payout = decimal.RequireFromString("999.00")
	require.NoError(t, m.Record(ctx, second))

	assert.Equal(t, 1, m.Len())
	got, err := m.Get(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, got.Payout.Equal(first.Payout), "the first record wins")
}

func TestMemoryGetMissing(t *testing.T) {
	_, err := NewMemory().Get(context.Background(), "nope")
	assert.True(t, IsNotFound(err))
}

func TestMemoryListNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Now()

	for i, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, m.Record(ctx, settlement(id, "p1", base.Add(time.Duration(i)*time.Second))))
	}
	require.NoError(t, m.Record(ctx, settlement("other", "p2", base)))

	all, err := m.List(ctx, "p1", 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "d", all[0].RoundID)
	assert.Equal(t, "a", all[3].RoundID)

	limited, err := m.List(ctx, "p1", 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, []string{"d", "c"}, []string{limited[0].RoundID, limited[1].RoundID})

	none, err := m.List(ctx, "ghost", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

// flaky fails the first n Record calls.
type flaky struct {
	*Memory
	failures int32
	calls    atomic.Int32
}

func (f *flaky) Record(ctx context.Context, s Settlement) error {
	if f.calls.Add(1) <= f.failures {
		return errors.New("connection reset")
	}
	return f.Memory.Record(ctx, s)
}

func TestRetryingRecoversFromTransientFailures(t *testing.T) {
	inner := &flaky{Memory: NewMemory(), failures: 2}
	r := NewRetrying(inner, RetryConfig{InitialInterval: time.Millisecond, MaxElapsedTime: time.Second})

	require.NoError(t, r.Record(context.Background(), settlement("r1", "p1", time.Now())))
	assert.Equal(t, int32(3), inner.calls.Load())
	assert.Equal(t, 1, inner.Len())
}

func TestRetryingGivesUp(t *testing.T) {
	inner := &flaky{Memory: NewMemory(), failures: 1000}
	r := NewRetrying(inner, RetryConfig{InitialInterval: time.Millisecond, MaxElapsedTime: time.Second, MaxRetries: 3})

	err := r.Record(context.Background(), settlement("r1", "p1", time.Now()))
	require.Error(t, err)
	assert.Equal(t, int32(4), inner.calls.Load())
	assert.Equal(t, 0, inner.Len())
}

// failingWith rejects every Record with err.
type failingWith struct {
	*Memory
	err   error
	calls atomic.Int32
}

func (f *failingWith) Record(context.Context, Settlement) error {
	f.calls.Add(1)
	return f.err
}

func TestRetryingSkipsPermanentErrors(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		calls int32
	}{
		{"unique violation", &pgconn.PgError{Code: "23505"}, 1},
		{"invalid numeric", &pgconn.PgError{Code: "22003"}, 1},
		{"undefined table", &pgconn.PgError{Code: "42P01"}, 1},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, 3},
		{"connection failure", &pgconn.PgError{Code: "08006"}, 3},
		{"plain error", errors.New("connection reset"), 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := &failingWith{Memory: NewMemory(), err: tt.err}
			r := NewRetrying(inner, RetryConfig{InitialInterval: time.Millisecond, MaxElapsedTime: time.Second, MaxRetries: 2})

			err := r.Record(context.Background(), settlement("r1", "p1", time.Now()))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.calls, inner.calls.Load())
		})
	}
}

func TestIsPermanent(t *testing.T) {
	assert.True(t, IsPermanent(ErrNotFound))
	assert.True(t, IsPermanent(fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "23502"})))
	assert.False(t, IsPermanent(&pgconn.PgError{Code: "53300"}))
	assert.False(t, IsPermanent(context.DeadlineExceeded))
}

func TestRetryingStopsOnCancelledContext(t *testing.T) {
	inner := &flaky{Memory: NewMemory(), failures: 1000}
	r := NewRetrying(inner, RetryConfig{InitialInterval: 10 * time.Millisecond, MaxElapsedTime: time.Minute})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	require.Error(t, r.Record(ctx, settlement("r1", "p1", time.Now())))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "instantwin.settlement.mines", Subject("mines"))
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), settlement("r1", "p1", time.Now())))
	p.Close()
}
