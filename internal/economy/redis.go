package economy

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
)

const balanceKeyPrefix = "balance:"

// Redis is a Bank whose balances live in Redis as integer strings. Withdrawals
// use WATCH/MULTI so a concurrent change aborts and retries instead of
// overdrawing.
type Redis struct {
	Formatter

	rdb     *redis.Client
	retries int
}

// NewRedis connects to the Redis server at url.
func NewRedis(ctx context.Context, url, symbol string, retries int) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return NewRedisFromClient(rdb, symbol, retries), nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(rdb *redis.Client, symbol string, retries int) *Redis {
	return &Redis{Formatter: Formatter{Symbol: symbol}, rdb: rdb, retries: retries}
}

// Close releases the client.
func (r *Redis) Close() error { return r.rdb.Close() }

// Ping checks the connection.
func (r *Redis) Ping(ctx context.Context) error { return r.rdb.Ping(ctx).Err() }

func balanceKey(playerID string) string { return balanceKeyPrefix + playerID }

// Balance returns the player's balance; unknown players hold zero.
func (r *Redis) Balance(ctx context.Context, playerID string) (int64, error) {
	b, err := r.rdb.Get(ctx, balanceKey(playerID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading balance: %w", err)
	}
	return b, nil
}

// HasBalance reports whether the player holds at least amount.
func (r *Redis) HasBalance(ctx context.Context, playerID string, amount int64) (bool, error) {
	b, err := r.Balance(ctx, playerID)
	if err != nil {
		return false, err
	}
	return b >= amount, nil
}

// Withdraw removes amount if the balance covers it.
func (r *Redis) Withdraw(ctx context.Context, playerID string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	key := balanceKey(playerID)

	operation := func() error {
		err := r.rdb.Watch(ctx, func(tx *redis.Tx) error {
			b, err := tx.Get(ctx, key).Int64()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}
			if b < amount {
				return ErrInsufficientFunds
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, b-amount, 0)
				return nil
			})
			return err
		}, key)
		if err == nil || errors.Is(err, redis.TxFailedErr) {
			return err
		}
		return backoff.Permanent(err)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(r.retries)), ctx)
	if err := backoff.Retry(operation, b); err != nil {
		if errors.Is(err, ErrInsufficientFunds) {
			return err
		}
		return fmt.Errorf("withdrawing: %w", err)
	}
	return nil
}

// Deposit adds amount atomically.
func (r *Redis) Deposit(ctx context.Context, playerID string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if err := r.rdb.IncrBy(ctx, balanceKey(playerID), amount).Err(); err != nil {
		return fmt.Errorf("depositing: %w", err)
	}
	return nil
}
