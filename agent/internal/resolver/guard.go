package resolver

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"call-tracker/shared/logger"

	"golang.org/x/sync/semaphore"
)

// ConcurrencyGuard bounds how many durable writes run at once and retries
// transient failures. Every path that persists state goes through Write so
// the write pressure on the database stays capped. Writes sharing a key are
// additionally serialized against each other so two updates for the same
// record never interleave.
type ConcurrencyGuard struct {
	sem    *semaphore.Weighted
	policy RetryPolicy

	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewConcurrencyGuard caps concurrent writes at maxWriters.
func NewConcurrencyGuard(maxWriters int64, policy RetryPolicy) *ConcurrencyGuard {
	if maxWriters <= 0 {
		maxWriters = 3
	}
	return &ConcurrencyGuard{
		sem:    semaphore.NewWeighted(maxWriters),
		policy: policy,
		locks:  make(map[string]*keyLock),
	}
}

func (g *ConcurrencyGuard) lockKey(key string) *keyLock {
	g.mu.Lock()
	kl, ok := g.locks[key]
	if !ok {
		kl = &keyLock{}
		g.locks[key] = kl
	}
	kl.refs++
	g.mu.Unlock()

	kl.mu.Lock()
	return kl
}

func (g *ConcurrencyGuard) unlockKey(key string, kl *keyLock) {
	kl.mu.Unlock()

	g.mu.Lock()
	kl.refs--
	if kl.refs == 0 {
		delete(g.locks, key)
	}
	g.mu.Unlock()
}

// Write runs fn under the writer cap, holding key's lock for the duration.
// A short random pre-delay decorrelates bursts of writers arriving together;
// failures retry with backoff and the last error surfaces to the caller.
func (g *ConcurrencyGuard) Write(ctx context.Context, key string, fn func() error) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer g.sem.Release(1)

	kl := g.lockKey(key)
	defer g.unlockKey(key, kl)

	preDelay := time.Duration(10+rand.Intn(41)) * time.Millisecond
	if err := Sleep(ctx, preDelay); err != nil {
		return err
	}

	var lastErr error
	attempts := g.policy.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if attempt < attempts-1 {
			delay := g.policy.Delay(attempt)
			logger.Log.Warnf("Guarded write for %q failed (attempt %d/%d), retrying in %v: %v",
				key, attempt+1, attempts, delay, lastErr)
			if err := Sleep(ctx, delay); err != nil {
				return err
			}
		}
	}
	logger.Log.Errorf("Guarded write for %q failed after %d attempts: %v", key, attempts, lastErr)
	return lastErr
}
