package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"

	"instantwin/internal/logger"
)

const (
	DEFAULT_RETRY_INTERVAL = 50 * time.Millisecond
	DEFAULT_RETRY_ELAPSED  = 2 * time.Second
)

type RetryConfig struct {
	InitialInterval time.Duration
	MaxElapsedTime  time.Duration
	// MaxRetries bounds the attempts after the first one. Zero means only the
	// elapsed time limit applies.
	MaxRetries uint64
}

// Retrying wraps a Ledger and retries Record with exponential backoff. Reads
// pass through untouched. Errors IsPermanent accepts fail on the first attempt.
type Retrying struct {
	next Ledger
	cfg  RetryConfig
	log  *slog.Logger
}

func NewRetrying(next Ledger, cfg RetryConfig) *Retrying {
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = DEFAULT_RETRY_INTERVAL
	}
	if cfg.MaxElapsedTime <= 0 {
		cfg.MaxElapsedTime = DEFAULT_RETRY_ELAPSED
	}
	return &Retrying{next: next, cfg: cfg, log: logger.Component("ledger")}
}

func (r *Retrying) Record(ctx context.Context, s Settlement) error {
	const op = "ledger.Retrying.Record"

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.cfg.InitialInterval
	bo.MaxElapsedTime = r.cfg.MaxElapsedTime

	var b backoff.BackOff = bo
	if r.cfg.MaxRetries > 0 {
		b = backoff.WithMaxRetries(b, r.cfg.MaxRetries)
	}
	b = backoff.WithContext(b, ctx)

	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		err := r.next.Record(ctx, s)
		if err != nil && IsPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b, func(err error, next time.Duration) {
		r.log.Warn("settlement write failed, retrying",
			"round_id", s.RoundID,
			"attempt", attempt,
			"next", next,
			logger.Err(err),
		)
	})
	if err != nil {
		return fmt.Errorf("%s: %d attempts: %w", op, attempt, err)
	}
	return nil
}

func (r *Retrying) Get(ctx context.Context, roundID string) (Settlement, error) {
	return r.next.Get(ctx, roundID)
}

func (r *Retrying) List(ctx context.Context, playerID string, limit int) ([]Settlement, error) {
	return r.next.List(ctx, playerID, limit)
}

// IsNotFound reports whether err is ErrNotFound anywhere in its chain.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Postgres error classes that a retry cannot fix: data exceptions, integrity
// constraint violations, syntax or access rule violations.
var permanentClasses = map[string]bool{
	"22": true,
	"23": true,
	"42": true,
}

// IsPermanent reports whether retrying a write that failed with err is
// pointless. Connection problems, serialization failures and resource
// exhaustion stay retryable.
func IsPermanent(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) >= 2 {
		return permanentClasses[pgErr.Code[:2]]
	}
	return false
}
