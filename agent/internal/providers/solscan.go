package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

var solscanLimiter = rate.NewLimiter(rate.Limit(1), 2)

// Solscan is the tertiary provider. It only knows Solana tokens and often
// lacks market cap figures, so it mostly rescues symbol and name when the
// market-data providers are down.
type Solscan struct {
	baseURL string
	client  *http.Client
}

func NewSolscan(baseURL string) *Solscan {
	if baseURL == "" {
		baseURL = "https://public-api.solscan.io"
	}
	return &Solscan{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *Solscan) Name() string { return "solscan" }

type solscanResponse struct {
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	MarketCap float64 `json:"marketCapFD"`
	Price     float64 `json:"priceUsdt"`
	Volume24h float64 `json:"volumeUsdt24h"`
	Twitter   string  `json:"twitter"`
	Website   string  `json:"website"`
}

func (s *Solscan) Lookup(ctx context.Context, contract string) (*TokenMetadata, error) {
	if err := solscanLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("solscan rate limiter wait for %s: %w", contract, err)
	}

	url := fmt.Sprintf("%s/token/meta?tokenAddress=%s", s.baseURL, contract)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("solscan request failed for %s: %w", contract, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("solscan rate limit exceeded (429) for %s", contract)
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNoData
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("solscan status %s for %s: %s", resp.Status, contract, string(body))
	}

	var parsed solscanResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("solscan decode failed for %s: %w", contract, err)
	}

	meta := &TokenMetadata{
		Contract:   contract,
		Symbol:     parsed.Symbol,
		Name:       parsed.Name,
		MarketCap:  parsed.MarketCap,
		PriceUsd:   parsed.Price,
		Volume24h:  parsed.Volume24h,
		TwitterURL: parsed.Twitter,
		WebsiteURL: parsed.Website,
		Source:     s.Name(),
		ResolvedAt: time.Now().UTC(),
	}

	if !meta.Valid() {
		return nil, ErrNoData
	}
	return meta, nil
}
