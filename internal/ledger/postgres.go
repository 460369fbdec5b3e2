package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const (
	insertSettlement = `
INSERT INTO settlements (
	round_id, player_id, game, stake, multiplier, payout, outcome, params,
	raw_outcome, adjusted_outcome, intensity, server_seed_hash, client_seed, nonce, settled_at
) VALUES ($1, $2, $3, $4::text::numeric, $5, $6::text::numeric, $7, $8, $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT (round_id) DO NOTHING`

	selectColumns = `
SELECT round_id, player_id, game, stake::text, multiplier, payout::text, outcome, params,
	raw_outcome, adjusted_outcome, intensity, server_seed_hash, client_seed, nonce, settled_at
FROM settlements`
)

// Postgres stores settlements in the settlements table created by
// migrations/000001_create_settlements.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Record(ctx context.Context, s Settlement) error {
	const op = "ledger.Postgres.Record"

	_, err := p.pool.Exec(ctx, insertSettlement,
		s.RoundID,
		s.PlayerID,
		s.Game,
		s.Stake.StringFixed(2),
		s.Multiplier,
		s.Payout.StringFixed(2),
		s.Outcome,
		jsonb(s.Params),
		jsonb(s.RawOutcome),
		jsonb(s.AdjustedOutcome),
		s.Intensity,
		s.ServerSeedHash,
		s.ClientSeed,
		s.Nonce,
		s.SettledAt,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, roundID string) (Settlement, error) {
	const op = "ledger.Postgres.Get"

	row := p.pool.QueryRow(ctx, selectColumns+` WHERE round_id = $1`, roundID)
	s, err := scanSettlement(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Settlement{}, ErrNotFound
	}
	if err != nil {
		return Settlement{}, fmt.Errorf("%s: %w", op, err)
	}
	return s, nil
}

func (p *Postgres) List(ctx context.Context, playerID string, limit int) ([]Settlement, error) {
	const op = "ledger.Postgres.List"

	if limit <= 0 {
		limit = 50
	}
	rows, err := p.pool.Query(ctx, selectColumns+` WHERE player_id = $1 ORDER BY settled_at DESC LIMIT $2`, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := make([]Settlement, 0, limit)
	for rows.Next() {
		s, err := scanSettlement(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func scanSettlement(row pgx.Row) (Settlement, error) {
	var (
		s                     Settlement
		stake, payout         string
		raw, adjusted, params []byte
	)
	err := row.Scan(
		&s.RoundID,
		&s.PlayerID,
		&s.Game,
		&stake,
		&s.Multiplier,
		&payout,
		&s.Outcome,
		&params,
		&raw,
		&adjusted,
		&s.Intensity,
		&s.ServerSeedHash,
		&s.ClientSeed,
		&s.Nonce,
		&s.SettledAt,
	)
	if err != nil {
		return Settlement{}, err
	}

	if s.Stake, err = decimal.NewFromString(stake); err != nil {
		return Settlement{}, err
	}
	if s.Payout, err = decimal.NewFromString(payout); err != nil {
		return Settlement{}, err
	}
	s.Params = params
	s.RawOutcome = raw
	s.AdjustedOutcome = adjusted
	return s, nil
}

// jsonb passes raw JSON as text so pgx does not re-encode it; empty means {}.
func jsonb(raw []byte) string {
	if len(raw) == 0 {
		return "{}"
	}
	return string(raw)
}
