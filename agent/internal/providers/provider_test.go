package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"call-tracker/shared/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	_ = logger.InitLogger(logger.Config{Level: "error", Environment: "test"})
	os.Exit(m.Run())
}

func TestDexScreenerLookupParsesBestPair(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/latest/dex/tokens/abc", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"pairs":[
			{"chainId":"solana","url":"https://dexscreener.com/solana/shallow",
			 "baseToken":{"address":"abc","name":"Shallow","symbol":"SHLW"},
			 "priceUsd":"0.01","volume":{"h24":100},"liquidity":{"usd":500},
			 "marketCap":1000},
			{"chainId":"solana","url":"https://dexscreener.com/solana/deep",
			 "baseToken":{"address":"abc","name":"Deep Token","symbol":"DEEP"},
			 "priceUsd":"0.5","volume":{"h24":250000},"liquidity":{"usd":90000},
			 "marketCap":750000,
			 "info":{"websites":[{"label":"Website","url":"https://deep.example"}],
			         "socials":[{"type":"twitter","url":"https://x.com/deep"}]}}
		]}`))
	}))
	defer server.Close()

	meta, err := NewDexScreener(server.URL).Lookup(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "DEEP", meta.Symbol, "deepest pool wins")
	assert.Equal(t, "Deep Token", meta.Name)
	assert.Equal(t, 750000.0, meta.MarketCap)
	assert.Equal(t, 250000.0, meta.Volume24h)
	assert.Equal(t, 0.5, meta.PriceUsd)
	assert.Equal(t, "https://dexscreener.com/solana/deep", meta.DexURL)
	assert.Equal(t, "https://x.com/deep", meta.TwitterURL)
	assert.Equal(t, "https://deep.example", meta.WebsiteURL)
	assert.Equal(t, "dexscreener", meta.Source)
}

func TestDexScreenerFDVFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"pairs":[{"baseToken":{"symbol":"FDV","name":"Fdv"},"priceUsd":"1","fdv":42000}]}`))
	}))
	defer server.Close()

	meta, err := NewDexScreener(server.URL).Lookup(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, 42000.0, meta.MarketCap, "FDV stands in when marketCap is absent")
}

func TestDexScreenerNotFoundIsNoData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := NewDexScreener(server.URL).Lookup(context.Background(), "abc")
	require.ErrorIs(t, err, ErrNoData)
}

func TestDexScreenerEmptyPairsIsNoData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"pairs":[]}`))
	}))
	defer server.Close()

	_, err := NewDexScreener(server.URL).Lookup(context.Background(), "abc")
	require.ErrorIs(t, err, ErrNoData)
}

func TestDexScreenerServerErrorIsTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewDexScreener(server.URL).Lookup(context.Background(), "abc")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoData)
}

func TestGeckoTerminalParsesStringNumbers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/networks/solana/tokens/abc", r.URL.Path)
		w.Write([]byte(`{"data":{"attributes":{
			"name":"Gecko Token","symbol":"GCK",
			"price_usd":"0.0042","market_cap_usd":"98765.43",
			"volume_usd":{"h24":"1234.5"}}}}`))
	}))
	defer server.Close()

	meta, err := NewGeckoTerminal(server.URL, "solana").Lookup(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "GCK", meta.Symbol)
	assert.InDelta(t, 98765.43, meta.MarketCap, 0.001)
	assert.InDelta(t, 0.0042, meta.PriceUsd, 0.00001)
	assert.InDelta(t, 1234.5, meta.Volume24h, 0.001)
}

func TestGeckoTerminalNullMarketCapFallsBackToFDV(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"attributes":{
			"name":"Gecko","symbol":"GCK",
			"price_usd":"1","market_cap_usd":null,"fdv_usd":"55000",
			"volume_usd":{"h24":null}}}}`))
	}))
	defer server.Close()

	meta, err := NewGeckoTerminal(server.URL, "solana").Lookup(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, 55000.0, meta.MarketCap)
}

func TestGeckoTerminalTextualMarketCapIsNoData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"attributes":{
			"name":"Gecko","symbol":"GCK",
			"market_cap_usd":"unavailable","fdv_usd":null,
			"volume_usd":{"h24":null}}}}`))
	}))
	defer server.Close()

	_, err := NewGeckoTerminal(server.URL, "solana").Lookup(context.Background(), "abc")
	require.ErrorIs(t, err, ErrNoData)
}

func TestSolscanLookup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/token/meta", r.URL.Path)
		assert.Equal(t, "abc", r.URL.Query().Get("tokenAddress"))
		w.Write([]byte(`{"symbol":"SOLS","name":"Sol Token","marketCapFD":320000,
			"priceUsdt":0.32,"volumeUsdt24h":8000,"twitter":"https://x.com/sols"}`))
	}))
	defer server.Close()

	meta, err := NewSolscan(server.URL).Lookup(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "SOLS", meta.Symbol)
	assert.Equal(t, 320000.0, meta.MarketCap)
	assert.Equal(t, "https://x.com/sols", meta.TwitterURL)
}

func TestSolscanMissingCapIsNoData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbol":"SOLS","name":"Sol Token"}`))
	}))
	defer server.Close()

	_, err := NewSolscan(server.URL).Lookup(context.Background(), "abc")
	require.ErrorIs(t, err, ErrNoData)
}

func TestMetadataValid(t *testing.T) {
	assert.False(t, (&TokenMetadata{}).Valid())
	assert.False(t, (&TokenMetadata{Symbol: UnknownSymbol, MarketCap: 100}).Valid())
	assert.False(t, (&TokenMetadata{Symbol: "OK"}).Valid())
	assert.True(t, (&TokenMetadata{Symbol: "OK", MarketCap: 100}).Valid())

	var nilMeta *TokenMetadata
	assert.False(t, nilMeta.Valid())
}
