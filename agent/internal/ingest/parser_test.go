package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	wrappedSOL = "So11111111111111111111111111111111111111112"
	usdcMint   = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	evmAddress = "0x6B175474E89094C44Da98b954EedeAC495271d0F"
)

func TestExtractContractAddressSolana(t *testing.T) {
	text := "new gem just dropped " + wrappedSOL + " don't fade"
	contract, chain, ok := ExtractContractAddress(text)
	require.True(t, ok)
	assert.Equal(t, wrappedSOL, contract)
	assert.Equal(t, ChainSolana, chain)
}

func TestExtractContractAddressEVM(t *testing.T) {
	contract, chain, ok := ExtractContractAddress("aping " + evmAddress + " on base")
	require.True(t, ok)
	assert.Equal(t, evmAddress, contract)
	assert.Equal(t, ChainEVM, chain)
}

func TestExtractContractAddressRejectsLookalikes(t *testing.T) {
	// Right length and alphabet for base58, but not a decodable pubkey.
	_, _, ok := ExtractContractAddress("this is just a loooooong word abcdefghjkmnpqrstuvwxyz123456789ABCDEFGHJ")
	assert.False(t, ok)

	_, _, ok = ExtractContractAddress("no address here at all")
	assert.False(t, ok)

	_, _, ok = ExtractContractAddress("")
	assert.False(t, ok)
}

func TestExtractAllContractAddressesDeduplicates(t *testing.T) {
	text := wrappedSOL + " and again " + wrappedSOL + " plus " + usdcMint
	all := ExtractAllContractAddresses(text)
	require.Len(t, all, 2)
	assert.Equal(t, wrappedSOL, all[0])
	assert.Equal(t, usdcMint, all[1])
}

func TestContainsContract(t *testing.T) {
	assert.True(t, ContainsContract("stats for "+wrappedSOL+" below", wrappedSOL))
	assert.False(t, ContainsContract("different token", wrappedSOL))
	assert.False(t, ContainsContract("anything", ""))
}
