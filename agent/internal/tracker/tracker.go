package tracker

import (
	"errors"
	"fmt"
	"time"

	"call-tracker/agent/internal/models"
	"call-tracker/agent/internal/providers"
)

// ErrInvariant means an update would corrupt a record's history, e.g.
// rewrite its initial market cap or shrink its all-time high.
var ErrInvariant = errors.New("token record invariant violation")

// NewRecord builds a fresh LIVE record from resolved metadata. The initial
// market cap is fixed here and never rewritten. seedATH lets an externally
// reported high seed the ATH at creation only; it is clamped up to the
// current cap so the ATH is never below what we have already observed.
func NewRecord(meta *providers.TokenMetadata, seedATH float64) *models.TokenRecord {
	ath := meta.MarketCap
	if seedATH > ath {
		ath = seedATH
	}
	return &models.TokenRecord{
		Contract:         meta.Contract,
		Symbol:           meta.Symbol,
		Name:             meta.Name,
		MarketCap:        meta.MarketCap,
		Volume24h:        meta.Volume24h,
		PriceUsd:         meta.PriceUsd,
		InitialMarketCap: meta.MarketCap,
		ATHMarketCap:     ath,
		DexURL:           meta.DexURL,
		TwitterURL:       meta.TwitterURL,
		WebsiteURL:       meta.WebsiteURL,
		Status:           models.StatusLive,
		Source:           meta.Source,
		LastRefreshedAt:  time.Now().UTC(),
	}
}

// Apply folds fresh metadata into an existing record, mutating it in
// place. The initial market cap is untouched; the ATH only ratchets up;
// percent change is measured against the previous refresh and cap change
// against the initial cap, both nil when their baseline is non-positive.
func Apply(record *models.TokenRecord, meta *providers.TokenMetadata) error {
	if record == nil {
		return fmt.Errorf("%w: nil record", ErrInvariant)
	}
	if meta.MarketCap < 0 {
		return fmt.Errorf("%w: negative market cap %.2f for %s", ErrInvariant, meta.MarketCap, record.Contract)
	}

	previousCap := record.MarketCap

	record.MarketCap = meta.MarketCap
	record.Volume24h = meta.Volume24h
	record.PriceUsd = meta.PriceUsd
	if meta.Symbol != "" && meta.Symbol != providers.UnknownSymbol {
		record.Symbol = meta.Symbol
	}
	if meta.Name != "" {
		record.Name = meta.Name
	}
	if meta.DexURL != "" {
		record.DexURL = meta.DexURL
	}
	if meta.TwitterURL != "" {
		record.TwitterURL = meta.TwitterURL
	}
	if meta.WebsiteURL != "" {
		record.WebsiteURL = meta.WebsiteURL
	}

	if meta.MarketCap > record.ATHMarketCap {
		record.ATHMarketCap = meta.MarketCap
	}

	if previousCap > 0 {
		pct := (meta.MarketCap - previousCap) / previousCap * 100
		record.PercentChange = &pct
	} else {
		record.PercentChange = nil
	}

	if record.InitialMarketCap > 0 {
		delta := (meta.MarketCap - record.InitialMarketCap) / record.InitialMarketCap * 100
		record.CapChange = &delta
	} else {
		record.CapChange = nil
	}

	record.LastRefreshedAt = time.Now().UTC()

	return CheckInvariants(record)
}

// CheckInvariants validates a record's internal consistency.
func CheckInvariants(record *models.TokenRecord) error {
	if record.MarketCap < 0 {
		return fmt.Errorf("%w: market cap %.2f is negative (%s)", ErrInvariant, record.MarketCap, record.Contract)
	}
	if record.InitialMarketCap < 0 {
		return fmt.Errorf("%w: initial market cap %.2f is negative (%s)", ErrInvariant, record.InitialMarketCap, record.Contract)
	}
	if record.ATHMarketCap < record.MarketCap {
		return fmt.Errorf("%w: ATH %.2f below current cap %.2f (%s)", ErrInvariant, record.ATHMarketCap, record.MarketCap, record.Contract)
	}
	if record.ATHMarketCap < record.InitialMarketCap {
		return fmt.Errorf("%w: ATH %.2f below initial cap %.2f (%s)", ErrInvariant, record.ATHMarketCap, record.InitialMarketCap, record.Contract)
	}
	if record.Status != models.StatusLive && record.Status != models.StatusRetired {
		return fmt.Errorf("%w: unknown status %q (%s)", ErrInvariant, record.Status, record.Contract)
	}
	return nil
}

// Multiplier returns the whole multiple of the initial cap the current cap
// has reached, or 0 when no baseline exists.
func Multiplier(record *models.TokenRecord) int {
	if record.InitialMarketCap <= 0 {
		return 0
	}
	return int(record.MarketCap / record.InitialMarketCap)
}
