package resolver

import (
	"context"
	"errors"

	"call-tracker/agent/internal/providers"
	"call-tracker/shared/logger"
)

// ErrNotFound means every provider was tried, across every retry attempt,
// without producing usable metadata.
var ErrNotFound = errors.New("token metadata not found on any provider")

// Resolver turns a contract address into token metadata via the cache and
// an ordered provider chain.
type Resolver struct {
	cache     *MetadataCache
	providers []providers.Provider
	policy    RetryPolicy
}

func New(cache *MetadataCache, chain []providers.Provider, policy RetryPolicy) *Resolver {
	return &Resolver{cache: cache, providers: chain, policy: policy}
}

// Resolve returns metadata for a contract. Cache hits return immediately
// with no provider traffic. On a miss each provider in the chain gets up to
// MaxAttempts tries with jittered backoff between them; a definitive "no
// data" answer skips straight to the next provider, since a listing absent
// now will still be absent seconds later. When the whole chain fails the
// UNKNOWN sentinel is cached and ErrNotFound returned.
func (r *Resolver) Resolve(ctx context.Context, contract string) (*providers.TokenMetadata, error) {
	if meta, ok := r.cache.Get(contract); ok {
		logger.Log.Debugf("Cache hit for %s (source=%s)", contract, meta.Source)
		return meta, nil
	}

	attempts := r.policy.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	for _, p := range r.providers {
		for attempt := 0; attempt < attempts; attempt++ {
			meta, err := p.Lookup(ctx, contract)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return nil, err
				}
				if errors.Is(err, providers.ErrNoData) {
					logger.Log.Debugf("Provider %s has no data for %s", p.Name(), contract)
					break
				}
				logger.Log.Warnf("Provider %s lookup failed for %s (attempt %d/%d): %v",
					p.Name(), contract, attempt+1, attempts, err)
			} else if !meta.Valid() {
				logger.Log.Debugf("Provider %s returned unusable metadata for %s", p.Name(), contract)
			} else {
				r.cache.Put(ctx, meta)
				logger.Log.Infof("Resolved %s as %s via %s (market cap %.0f)",
					contract, meta.Symbol, p.Name(), meta.MarketCap)
				return meta, nil
			}

			if attempt < attempts-1 {
				if err := Sleep(ctx, r.policy.Delay(attempt)); err != nil {
					return nil, err
				}
			}
		}
	}

	r.cache.PutUnknown(ctx, contract)
	logger.Log.Warnf("Could not resolve %s on any provider", contract)
	return nil, ErrNotFound
}

// ResolveFresh skips the cache read so refresh cycles see current market
// data. A single pass over the provider chain, no retry backoff: refreshes
// are periodic and the next cycle retries naturally. Successful lookups
// still write through to the cache.
func (r *Resolver) ResolveFresh(ctx context.Context, contract string) (*providers.TokenMetadata, error) {
	for _, p := range r.providers {
		meta, err := p.Lookup(ctx, contract)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			if !errors.Is(err, providers.ErrNoData) {
				logger.Log.Warnf("Provider %s fresh lookup failed for %s: %v", p.Name(), contract, err)
			}
			continue
		}
		if !meta.Valid() {
			continue
		}
		r.cache.Put(ctx, meta)
		return meta, nil
	}
	return nil, ErrNotFound
}
