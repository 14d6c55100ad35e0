package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// GeckoTerminal's free tier allows 30 calls/minute.
var geckoLimiter = rate.NewLimiter(rate.Limit(0.5), 2)

// GeckoTerminal is the secondary provider. Its API returns numeric fields
// as strings, and market_cap_usd is frequently null or non-numeric; those
// responses count as misses rather than errors.
type GeckoTerminal struct {
	baseURL string
	network string
	client  *http.Client
}

func NewGeckoTerminal(baseURL, network string) *GeckoTerminal {
	if baseURL == "" {
		baseURL = "https://api.geckoterminal.com/api/v2"
	}
	if network == "" {
		network = "solana"
	}
	return &GeckoTerminal{
		baseURL: strings.TrimRight(baseURL, "/"),
		network: network,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *GeckoTerminal) Name() string { return "geckoterminal" }

type geckoResponse struct {
	Data struct {
		Attributes struct {
			Name         string  `json:"name"`
			Symbol       string  `json:"symbol"`
			PriceUsd     *string `json:"price_usd"`
			MarketCapUsd *string `json:"market_cap_usd"`
			FdvUsd       *string `json:"fdv_usd"`
			VolumeUsd    struct {
				H24 *string `json:"h24"`
			} `json:"volume_usd"`
		} `json:"attributes"`
	} `json:"data"`
}

func parseNullableNumber(s *string) float64 {
	if s == nil {
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(*s), 64)
	if err != nil {
		return 0
	}
	return v
}

func (g *GeckoTerminal) Lookup(ctx context.Context, contract string) (*TokenMetadata, error) {
	if err := geckoLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("geckoterminal rate limiter wait for %s: %w", contract, err)
	}

	url := fmt.Sprintf("%s/networks/%s/tokens/%s", g.baseURL, g.network, contract)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geckoterminal request failed for %s: %w", contract, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("geckoterminal rate limit exceeded (429) for %s", contract)
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNoData
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("geckoterminal status %s for %s: %s", resp.Status, contract, string(body))
	}

	var parsed geckoResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("geckoterminal decode failed for %s: %w", contract, err)
	}

	attrs := parsed.Data.Attributes
	meta := &TokenMetadata{
		Contract:   contract,
		Symbol:     attrs.Symbol,
		Name:       attrs.Name,
		MarketCap:  parseNullableNumber(attrs.MarketCapUsd),
		PriceUsd:   parseNullableNumber(attrs.PriceUsd),
		Volume24h:  parseNullableNumber(attrs.VolumeUsd.H24),
		Source:     g.Name(),
		ResolvedAt: time.Now().UTC(),
	}
	if meta.MarketCap <= 0 {
		meta.MarketCap = parseNullableNumber(attrs.FdvUsd)
	}

	if !meta.Valid() {
		return nil, ErrNoData
	}
	return meta, nil
}
