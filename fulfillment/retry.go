package fulfillment

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// RetryPolicy bounds retries of transient storage errors.
type RetryPolicy struct {
	Attempts  int           // total tries, including the first
	BaseDelay time.Duration // e.g. 200ms
	MaxDelay  time.Duration // e.g. 2s
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:  3,
		BaseDelay: 200 * time.Millisecond,
		MaxDelay:  2 * time.Second,
	}
}

// backoffDelay computes exponential backoff with full jitter.
// retry is 1-based (1 => BaseDelay).
func backoffDelay(retry int, cfg RetryPolicy, rng *rand.Rand) time.Duration {
	if retry < 1 {
		retry = 1
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 200 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 2 * time.Second
	}

	// exponential: base * 2^(retry-1)
	delay := cfg.BaseDelay << (retry - 1)
	if delay > cfg.MaxDelay || delay <= 0 {
		delay = cfg.MaxDelay
	}

	// full jitter: random in [0, delay]
	return time.Duration(rng.Int63n(int64(delay) + 1))
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// lockedRand guards a *rand.Rand shared by concurrent requests.
type lockedRand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newLockedRand(seed int64) *lockedRand {
	return &lockedRand{rng: rand.New(rand.NewSource(seed))}
}

func (l *lockedRand) delay(retry int, cfg RetryPolicy) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return backoffDelay(retry, cfg, l.rng)
}
