// Package redisqueue implements the dispatch channel and cancellation
// registry on Redis: a list carries job IDs from enqueue to the streaming
// workers, and a set records cancelled IDs a worker should skip.
package redisqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultDispatchKey is the Redis list carrying dispatched job IDs.
	DefaultDispatchKey = "cnpj:dispatch"
	// DefaultSuppressedKey is the Redis set of cancelled job IDs.
	DefaultSuppressedKey = "cnpj:suppressed"
)

// consumeBlockTimeout bounds each BRPOP so the consumer loop can observe
// context cancellation between polls.
const consumeBlockTimeout = 5 * time.Second

// Queue provides the dispatch channel and cancellation registry operations.
type Queue struct {
	client        redis.UniversalClient
	dispatchKey   string
	suppressedKey string
}

// Options configures a Queue. Zero-value keys fall back to the defaults.
type Options struct {
	Client        redis.UniversalClient
	DispatchKey   string
	SuppressedKey string
}

// New creates a Queue with the given options.
func New(opts Options) (*Queue, error) {
	if opts.Client == nil {
		return nil, errors.New("redis client is required")
	}
	dispatchKey := opts.DispatchKey
	if dispatchKey == "" {
		dispatchKey = DefaultDispatchKey
	}
	suppressedKey := opts.SuppressedKey
	if suppressedKey == "" {
		suppressedKey = DefaultSuppressedKey
	}
	return &Queue{
		client:        opts.Client,
		dispatchKey:   dispatchKey,
		suppressedKey: suppressedKey,
	}, nil
}

// Publish appends a job ID to the dispatch channel.
func (q *Queue) Publish(ctx context.Context, jobID string) error {
	if jobID == "" {
		return errors.New("job id cannot be empty")
	}
	if err := q.client.LPush(ctx, q.dispatchKey, jobID).Err(); err != nil {
		return fmt.Errorf("redis lpush %s: %w", q.dispatchKey, err)
	}
	return nil
}

// Consume blocks until a job ID is available or ctx is done. Dispatch order
// is FIFO: LPUSH pairs with BRPOP.
func (q *Queue) Consume(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		vals, err := q.client.BRPop(ctx, consumeBlockTimeout, q.dispatchKey).Result()
		if errors.Is(err, redis.Nil) {
			continue // timed out with nothing queued
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			return "", fmt.Errorf("redis brpop %s: %w", q.dispatchKey, err)
		}
		// BRPOP returns [key, value].
		if len(vals) != 2 {
			return "", fmt.Errorf("redis brpop %s: unexpected reply length %d", q.dispatchKey, len(vals))
		}
		return vals[1], nil
	}
}

// Depth returns the number of job IDs waiting in the dispatch channel.
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.dispatchKey).Result()
	if err != nil {
		return 0, fmt.Errorf("redis llen %s: %w", q.dispatchKey, err)
	}
	return n, nil
}

// Suppress registers a job ID for suppression. The entry survives broker
// restarts, so a cancellation issued while no worker is running still takes
// effect when the ID is eventually dispatched.
func (q *Queue) Suppress(ctx context.Context, jobID string) error {
	if jobID == "" {
		return errors.New("job id cannot be empty")
	}
	if err := q.client.SAdd(ctx, q.suppressedKey, jobID).Err(); err != nil {
		return fmt.Errorf("redis sadd %s: %w", q.suppressedKey, err)
	}
	return nil
}

// ConsumeSuppression reports whether the job ID was suppressed, removing the
// entry when it was. SREM is atomic, so two workers checking the same ID cannot both
// observe the suppression.
func (q *Queue) ConsumeSuppression(ctx context.Context, jobID string) (bool, error) {
	if jobID == "" {
		return false, errors.New("job id cannot be empty")
	}
	removed, err := q.client.SRem(ctx, q.suppressedKey, jobID).Result()
	if err != nil {
		return false, fmt.Errorf("redis srem %s: %w", q.suppressedKey, err)
	}
	return removed > 0, nil
}

// Health checks the health of the Redis connection.
func (q *Queue) Health(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}
