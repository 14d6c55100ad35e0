package providers

import (
	"context"
	"errors"
	"time"
)

// UnknownSymbol is the sentinel stored when every provider fails. Cached
// entries carrying it are treated as misses on read so later lookups retry
// the providers.
const UnknownSymbol = "UNKNOWN"

// ErrNoData means the provider answered but has no usable listing for the
// contract. Distinct from transport errors so callers can tell "not listed
// here" from "provider unreachable".
var ErrNoData = errors.New("provider has no data for contract")

// TokenMetadata is the normalized result of a provider lookup.
type TokenMetadata struct {
	Contract   string
	Symbol     string
	Name       string
	MarketCap  float64
	Volume24h  float64
	PriceUsd   float64
	DexURL     string
	TwitterURL string
	WebsiteURL string
	Source     string
	ResolvedAt time.Time
}

// Valid reports whether the metadata is usable: a real symbol and a
// positive market cap.
func (m *TokenMetadata) Valid() bool {
	if m == nil {
		return false
	}
	return m.Symbol != "" && m.Symbol != UnknownSymbol && m.MarketCap > 0
}

// Provider looks up token metadata from one upstream source.
type Provider interface {
	Name() string
	Lookup(ctx context.Context, contract string) (*TokenMetadata, error)
}
