// Package ratelimit paces outbound calls to a shared per-second quota.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Limiter errors. Both are fatal to a run.
var (
	// ErrMisconfigured indicates the bucket was built with a non-positive
	// capacity or refill rate.
	ErrMisconfigured = errors.New("rate limiter misconfigured")

	// ErrUnserviceable indicates a request the bucket can never satisfy,
	// such as asking for more tokens than its capacity.
	ErrUnserviceable = errors.New("rate limiter cannot service request")
)

// Limiter is the acquire side of a token bucket.
type Limiter interface {
	// Acquire blocks until n tokens have been debited or ctx is done.
	Acquire(ctx context.Context, n int) error
}

// Config holds configuration for a TokenBucket.
type Config struct {
	// Rate is the refill rate in tokens per second.
	Rate float64 `yaml:"rate"`
	// Capacity is the maximum number of tokens the bucket holds.
	Capacity int `yaml:"capacity"`
	// Clock is the time source (default SystemClock).
	Clock Clock `yaml:"-"`
	// OnWait, if set, is called with the total time every successful Acquire
	// spent waiting.
	OnWait func(time.Duration) `yaml:"-"`
}

// Stats contains statistics about bucket usage.
type Stats struct {
	Acquired  int64
	Waits     int64
	TotalWait time.Duration
	Rate      float64
	Capacity  int
}

// TokenBucket implements Limiter on golang.org/x/time/rate.
//
// Every Acquire takes a reservation from rate.Limiter.ReserveN under the
// limiter's own mutex. Concurrent callers are queued in reservation order and
// each sleeps only as long as its own reservation requires.
//
// Thread Safety: Safe for concurrent use.
type TokenBucket struct {
	limiter  *rate.Limiter
	clock    Clock
	rate     float64
	capacity int
	onWait   func(time.Duration)

	acquired  atomic.Int64
	waits     atomic.Int64
	totalWait atomic.Int64 // nanoseconds
}

// Compile-time check that TokenBucket implements Limiter.
var _ Limiter = (*TokenBucket)(nil)

// New creates a full token bucket.
func New(cfg Config) (*TokenBucket, error) {
	if cfg.Capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity must be positive, got %d", ErrMisconfigured, cfg.Capacity)
	}
	if cfg.Rate <= 0 {
		return nil, fmt.Errorf("%w: rate must be positive, got %g", ErrMisconfigured, cfg.Rate)
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}

	lim := rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Capacity)
	// Anchor the limiter's refill bookkeeping to the injected clock.
	lim.AllowN(cfg.Clock.Now(), 0)

	return &TokenBucket{
		limiter:  lim,
		clock:    cfg.Clock,
		rate:     cfg.Rate,
		capacity: cfg.Capacity,
		onWait:   cfg.OnWait,
	}, nil
}

// Acquire debits n tokens, sleeping on the clock until enough have accrued.
// n == 0 succeeds immediately. n above capacity fails with ErrUnserviceable;
// any other request waits as long as it takes.
// A cancelled or expired ctx interrupts the wait and returns the reserved
// tokens to the bucket.
func (b *TokenBucket) Acquire(ctx context.Context, n int) error {
	if n == 0 {
		return nil
	}
	if n < 0 || n > b.capacity {
		return fmt.Errorf("%w: requested %d tokens, capacity is %d", ErrUnserviceable, n, b.capacity)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("acquire %d tokens: %w", n, err)
	}

	now := b.clock.Now()
	res := b.limiter.ReserveN(now, n)
	if !res.OK() {
		return fmt.Errorf("%w: requested %d tokens, capacity is %d", ErrUnserviceable, n, b.capacity)
	}

	delay := res.DelayFrom(now)
	if delay > 0 {
		select {
		case <-ctx.Done():
			res.CancelAt(b.clock.Now())
			return fmt.Errorf("acquire %d tokens: %w", n, ctx.Err())
		case <-b.clock.After(delay):
		}
		b.waits.Add(1)
		b.totalWait.Add(int64(delay))
		if b.onWait != nil {
			b.onWait(delay)
		}
	}
	b.acquired.Add(1)
	return nil
}

// Available returns the tokens currently in the bucket, in [0, capacity].
func (b *TokenBucket) Available() float64 {
	tokens := b.limiter.TokensAt(b.clock.Now())
	switch {
	case tokens < 0:
		return 0
	case tokens > float64(b.capacity):
		return float64(b.capacity)
	}
	return tokens
}

// Capacity returns the configured bucket size.
func (b *TokenBucket) Capacity() int {
	return b.capacity
}

// Rate returns the configured refill rate in tokens per second.
func (b *TokenBucket) Rate() float64 {
	return b.rate
}

// Stats returns current statistics about the bucket.
func (b *TokenBucket) Stats() Stats {
	return Stats{
		Acquired:  b.acquired.Load(),
		Waits:     b.waits.Load(),
		TotalWait: time.Duration(b.totalWait.Load()),
		Rate:      b.rate,
		Capacity:  b.capacity,
	}
}

// IsLimiterError reports whether err came from limiter misconfiguration or
// an unserviceable request.
func IsLimiterError(err error) bool {
	return errors.Is(err, ErrMisconfigured) || errors.Is(err, ErrUnserviceable)
}
