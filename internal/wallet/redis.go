package wallet

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const (
	REDIS_KEY_BALANCE = "wallet:balance:"
	REDIS_KEY_REF     = "wallet:ref:"
	REF_TTL           = 7 * 24 * time.Hour
)

// applyScript checks the reference, checks funds and moves the balance in one
// step. Balances are integer cents so INCRBY stays exact.
//
// Returns {status, balance}: 0 applied, 1 replayed ref, -1 insufficient funds.
var applyScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[2]) == 1 then
	return {1, tonumber(redis.call('GET', KEYS[1]) or '0')}
end
local bal = tonumber(redis.call('GET', KEYS[1]) or '0')
if bal + tonumber(ARGV[1]) < 0 then
	return {-1, bal}
end
local nb = redis.call('INCRBY', KEYS[1], ARGV[1])
redis.call('SET', KEYS[2], '1', 'EX', ARGV[2])
return {0, nb}
`)

type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Balance(ctx context.Context, playerID string) (decimal.Decimal, error) {
	const op = "wallet.Redis.Balance"

	cents, err := r.client.Get(ctx, REDIS_KEY_BALANCE+playerID).Int64()
	if errors.Is(err, redis.Nil) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}
	return fromCents(cents), nil
}

func (r *Redis) Apply(ctx context.Context, playerID, ref string, delta decimal.Decimal) (decimal.Decimal, error) {
	const op = "wallet.Redis.Apply"

	cents, err := toCents(delta)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}

	keys := []string{REDIS_KEY_BALANCE + playerID, REDIS_KEY_REF + playerID + ":" + ref}
	res, err := applyScript.Run(ctx, r.client, keys, strconv.FormatInt(cents, 10), int64(REF_TTL.Seconds())).Int64Slice()
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}
	if len(res) != 2 {
		return decimal.Zero, fmt.Errorf("%s: unexpected script reply %v", op, res)
	}

	balance := fromCents(res[1])
	if res[0] < 0 {
		return balance, ErrInsufficientFunds
	}
	return balance, nil
}

func (r *Redis) Set(ctx context.Context, playerID string, amount decimal.Decimal) error {
	const op = "wallet.Redis.Set"

	cents, err := toCents(amount)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if cents < 0 {
		return fmt.Errorf("%s: %w", op, ErrInsufficientFunds)
	}
	if err := r.client.Set(ctx, REDIS_KEY_BALANCE+playerID, cents, 0).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
