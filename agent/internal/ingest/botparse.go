package ingest

import (
	"regexp"
	"strconv"
	"strings"
)

// CompanionBots are usernames of third-party stat bots whose replies can
// backfill market data when no provider knows the token yet.
var CompanionBots = []string{"RickBurpBot", "PhanesGreenBot", "GetMevBot"}

// IsCompanionBot reports whether a username belongs to a known stat bot.
func IsCompanionBot(username string) bool {
	for _, bot := range CompanionBots {
		if strings.EqualFold(username, bot) {
			return true
		}
	}
	return false
}

// ParseAmount converts human-formatted numbers ("4.5K", "$1.2M", "3B",
// "950") to their numeric value. Returns false for anything it cannot read.
func ParseAmount(raw string) (float64, bool) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if cleaned == "" {
		return 0, false
	}

	multiplier := 1.0
	switch {
	case strings.HasSuffix(cleaned, "K"), strings.HasSuffix(cleaned, "k"):
		multiplier = 1_000
		cleaned = cleaned[:len(cleaned)-1]
	case strings.HasSuffix(cleaned, "M"), strings.HasSuffix(cleaned, "m"):
		multiplier = 1_000_000
		cleaned = cleaned[:len(cleaned)-1]
	case strings.HasSuffix(cleaned, "B"), strings.HasSuffix(cleaned, "b"):
		multiplier = 1_000_000_000
		cleaned = cleaned[:len(cleaned)-1]
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return value * multiplier, true
}

// CompanionStats is what a stat-bot reply yields: market figures for a
// token the providers could not resolve.
type CompanionStats struct {
	Symbol    string
	MarketCap float64
	ATH       float64
	Volume24h float64
}

var (
	companionSymbolRegex = regexp.MustCompile(`\$([A-Za-z][A-Za-z0-9_]{1,14})`)
	companionMCRegex     = regexp.MustCompile(`(?i)(?:MC|FDV|Cap)[:\s]*\$?([\d.,]+[KkMmBb]?)`)
	companionATHRegex    = regexp.MustCompile(`(?i)ATH[:\s]*\$?([\d.,]+[KkMmBb]?)`)
	companionVolRegex    = regexp.MustCompile(`(?i)Vol(?:ume)?[:\s]*\$?([\d.,]+[KkMmBb]?)`)
)

// ParseCompanionMessage extracts market stats from a stat-bot reply. ok is
// false unless at least a market cap was found.
func ParseCompanionMessage(text string) (CompanionStats, bool) {
	var stats CompanionStats

	if m := companionSymbolRegex.FindStringSubmatch(text); m != nil {
		stats.Symbol = m[1]
	}
	if m := companionMCRegex.FindStringSubmatch(text); m != nil {
		if v, ok := ParseAmount(m[1]); ok {
			stats.MarketCap = v
		}
	}
	if m := companionATHRegex.FindStringSubmatch(text); m != nil {
		if v, ok := ParseAmount(m[1]); ok {
			stats.ATH = v
		}
	}
	if m := companionVolRegex.FindStringSubmatch(text); m != nil {
		if v, ok := ParseAmount(m[1]); ok {
			stats.Volume24h = v
		}
	}

	return stats, stats.MarketCap > 0
}
