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

	"call-tracker/shared/logger"

	"golang.org/x/time/rate"
)

// DexScreener allows roughly 300 requests/minute; 4.66/sec with a small
// burst keeps us under it.
var dexScreenerLimiter = rate.NewLimiter(rate.Limit(4.66), 5)

// DexScreener is the primary metadata provider.
type DexScreener struct {
	baseURL string
	client  *http.Client
}

func NewDexScreener(baseURL string) *DexScreener {
	if baseURL == "" {
		baseURL = "https://api.dexscreener.com"
	}
	return &DexScreener{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *DexScreener) Name() string { return "dexscreener" }

type dexPair struct {
	ChainID   string `json:"chainId"`
	URL       string `json:"url"`
	BaseToken struct {
		Address string `json:"address"`
		Name    string `json:"name"`
		Symbol  string `json:"symbol"`
	} `json:"baseToken"`
	PriceUsd  string             `json:"priceUsd"`
	Volume    map[string]float64 `json:"volume"`
	Liquidity *struct {
		Usd float64 `json:"usd"`
	} `json:"liquidity"`
	FDV       float64 `json:"fdv"`
	MarketCap float64 `json:"marketCap"`
	Info      *struct {
		Websites []struct {
			Label string `json:"label"`
			URL   string `json:"url"`
		} `json:"websites"`
		Socials []struct {
			Type string `json:"type"`
			URL  string `json:"url"`
		} `json:"socials"`
	} `json:"info"`
}

type dexResponse struct {
	Pairs []dexPair `json:"pairs"`
}

func (d *DexScreener) Lookup(ctx context.Context, contract string) (*TokenMetadata, error) {
	if err := dexScreenerLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("dexscreener rate limiter wait for %s: %w", contract, err)
	}

	url := fmt.Sprintf("%s/latest/dex/tokens/%s", d.baseURL, contract)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dexscreener request failed for %s: %w", contract, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("dexscreener rate limit exceeded (429) for %s", contract)
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNoData
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("dexscreener status %s for %s: %s", resp.Status, contract, string(body))
	}

	var parsed dexResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("dexscreener decode failed for %s: %w", contract, err)
	}
	if len(parsed.Pairs) == 0 {
		logger.Log.Debugf("DexScreener returned no pairs for %s", contract)
		return nil, ErrNoData
	}

	// Prefer the deepest pool; that pair carries the most trustworthy
	// price and volume figures.
	best := parsed.Pairs[0]
	for _, p := range parsed.Pairs[1:] {
		if p.Liquidity != nil && (best.Liquidity == nil || p.Liquidity.Usd > best.Liquidity.Usd) {
			best = p
		}
	}

	meta := &TokenMetadata{
		Contract:   contract,
		Symbol:     best.BaseToken.Symbol,
		Name:       best.BaseToken.Name,
		MarketCap:  best.MarketCap,
		Volume24h:  best.Volume["h24"],
		DexURL:     best.URL,
		Source:     d.Name(),
		ResolvedAt: time.Now().UTC(),
	}
	if meta.MarketCap <= 0 && best.FDV > 0 {
		meta.MarketCap = best.FDV
	}
	if price, err := strconv.ParseFloat(best.PriceUsd, 64); err == nil {
		meta.PriceUsd = price
	}
	if best.Info != nil {
		for _, site := range best.Info.Websites {
			if meta.WebsiteURL == "" {
				meta.WebsiteURL = site.URL
			}
		}
		for _, social := range best.Info.Socials {
			if strings.EqualFold(social.Type, "twitter") {
				meta.TwitterURL = social.URL
			}
		}
	}

	if !meta.Valid() {
		return nil, ErrNoData
	}
	return meta, nil
}
