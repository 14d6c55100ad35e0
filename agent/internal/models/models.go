package models

import "time"

// Token lifecycle statuses.
const (
	StatusLive    = "LIVE"
	StatusRetired = "RETIRED"
)

// Caller roles. Shot callers are the higher-trust tier whose calls are
// mirrored to the dedicated shot-caller group.
const (
	RoleCaller     = "CALLERS"
	RoleShotCaller = "SHOT_CALLERS"
)

// TokenRecord is a tracked token call. InitialMarketCap is set once at
// creation and never rewritten; ATHMarketCap only ever grows.
type TokenRecord struct {
	ID               uint    `gorm:"primaryKey"`
	Contract         string  `gorm:"uniqueIndex;not null"`
	Symbol           string  `gorm:"not null"`
	Name             string
	Chain            string
	MarketCap        float64
	Volume24h        float64
	PriceUsd         float64
	InitialMarketCap float64
	ATHMarketCap     float64
	PercentChange    *float64
	CapChange        *float64
	DexURL           string
	TwitterURL       string
	WebsiteURL       string
	Status           string `gorm:"index;default:LIVE"`
	ShotCaller       bool
	Source           string
	CallerUsername   string
	// Highest whole multiplier (2x, 3x, ...) already announced, so each
	// threshold fires exactly one alert.
	NotifiedMultiplier int
	LastRefreshedAt    time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// IsLive reports whether the record still participates in refresh cycles.
func (t *TokenRecord) IsLive() bool {
	return t.Status == StatusLive
}

// TokenCacheEntry is the durable tier of the metadata cache. Entries with
// the UNKNOWN sentinel symbol are stored but treated as misses on read.
type TokenCacheEntry struct {
	ID         uint   `gorm:"primaryKey"`
	Contract   string `gorm:"uniqueIndex;not null"`
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
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TelegramUser is an authorized caller, keyed by handle since admin
// commands name users by @username. The numeric ID is backfilled once the
// user is seen posting. Role is CALLERS or SHOT_CALLERS.
type TelegramUser struct {
	ID             uint   `gorm:"primaryKey"`
	Username       string `gorm:"uniqueIndex;not null"`
	TelegramUserID int64  `gorm:"index"`
	Role           string `gorm:"not null;default:CALLERS"`
	AddedBy        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AuditEvent records irreversible lifecycle transitions (retirements) so
// the status flip is explainable after the fact.
type AuditEvent struct {
	ID        uint   `gorm:"primaryKey"`
	Contract  string `gorm:"index;not null"`
	Event     string `gorm:"not null"`
	Reason    string
	MarketCap float64
	CreatedAt time.Time
}

// Audit event types.
const (
	AuditEventRetired = "RETIRED"
)
