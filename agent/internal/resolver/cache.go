package resolver

import (
	"context"
	"sync"

	"call-tracker/agent/internal/models"
	"call-tracker/agent/internal/providers"
	"call-tracker/shared/logger"
)

// DurableCache is the persistent tier backing the in-memory cache.
type DurableCache interface {
	Get(contract string) (*models.TokenCacheEntry, error)
	Put(entry *models.TokenCacheEntry) error
}

// MetadataCache layers a process-local map over a durable store. Reads hit
// memory first and fall through to the durable tier, promoting what they
// find. A hit is judged by content: entries carrying the UNKNOWN sentinel
// or a non-positive market cap are kept but reported as misses, so the
// resolver gets another shot at the providers.
type MetadataCache struct {
	mu      sync.RWMutex
	memory  map[string]*models.TokenCacheEntry
	durable DurableCache
	guard   *ConcurrencyGuard
}

func NewMetadataCache(durable DurableCache, guard *ConcurrencyGuard) *MetadataCache {
	return &MetadataCache{
		memory:  make(map[string]*models.TokenCacheEntry),
		durable: durable,
		guard:   guard,
	}
}

func entryUsable(entry *models.TokenCacheEntry) bool {
	if entry == nil {
		return false
	}
	return entry.Symbol != "" && entry.Symbol != providers.UnknownSymbol && entry.MarketCap > 0
}

func entryToMetadata(entry *models.TokenCacheEntry) *providers.TokenMetadata {
	return &providers.TokenMetadata{
		Contract:   entry.Contract,
		Symbol:     entry.Symbol,
		Name:       entry.Name,
		MarketCap:  entry.MarketCap,
		Volume24h:  entry.Volume24h,
		PriceUsd:   entry.PriceUsd,
		DexURL:     entry.DexURL,
		TwitterURL: entry.TwitterURL,
		WebsiteURL: entry.WebsiteURL,
		Source:     entry.Source,
		ResolvedAt: entry.ResolvedAt,
	}
}

func metadataToEntry(meta *providers.TokenMetadata) *models.TokenCacheEntry {
	return &models.TokenCacheEntry{
		Contract:   meta.Contract,
		Symbol:     meta.Symbol,
		Name:       meta.Name,
		MarketCap:  meta.MarketCap,
		Volume24h:  meta.Volume24h,
		PriceUsd:   meta.PriceUsd,
		DexURL:     meta.DexURL,
		TwitterURL: meta.TwitterURL,
		WebsiteURL: meta.WebsiteURL,
		Source:     meta.Source,
		ResolvedAt: meta.ResolvedAt,
	}
}

// Get returns usable metadata for a contract, or (nil, false) on a miss.
func (c *MetadataCache) Get(contract string) (*providers.TokenMetadata, bool) {
	c.mu.RLock()
	entry, ok := c.memory[contract]
	c.mu.RUnlock()
	if ok {
		if entryUsable(entry) {
			return entryToMetadata(entry), true
		}
		return nil, false
	}

	if c.durable == nil {
		return nil, false
	}
	stored, err := c.durable.Get(contract)
	if err != nil || stored == nil {
		return nil, false
	}

	c.mu.Lock()
	c.memory[contract] = stored
	c.mu.Unlock()

	if entryUsable(stored) {
		return entryToMetadata(stored), true
	}
	return nil, false
}

// Put stores metadata in both tiers. The memory tier updates immediately;
// the durable write goes through the guard, and a durable failure never
// evicts the fresh in-memory copy.
func (c *MetadataCache) Put(ctx context.Context, meta *providers.TokenMetadata) {
	entry := metadataToEntry(meta)

	c.mu.Lock()
	c.memory[meta.Contract] = entry
	c.mu.Unlock()

	if c.durable == nil {
		return
	}
	err := c.guard.Write(ctx, "cache:"+meta.Contract, func() error {
		return c.durable.Put(entry)
	})
	if err != nil {
		logger.Log.Warnf("Durable cache write failed for %s, in-memory copy retained: %v", meta.Contract, err)
	}
}

// PutUnknown records the failure sentinel so the miss is durable too.
func (c *MetadataCache) PutUnknown(ctx context.Context, contract string) {
	c.Put(ctx, &providers.TokenMetadata{
		Contract: contract,
		Symbol:   providers.UnknownSymbol,
		Source:   "resolver",
	})
}
