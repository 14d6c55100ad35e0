package ingest

import (
	"regexp"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// Chain identifiers attached to extracted contracts.
const (
	ChainSolana = "solana"
	ChainEVM    = "evm"
)

var (
	evmAddressRegex    = regexp.MustCompile(`0x[a-fA-F0-9]{40}`)
	base58AddressRegex = regexp.MustCompile(`[1-9A-HJ-NP-Za-km-z]{32,44}`)
)

// ExtractContractAddress pulls the first contract address out of free-form
// message text. EVM addresses match on shape alone; base58 candidates must
// decode as a real Solana public key, which filters out look-alike words.
func ExtractContractAddress(text string) (contract, chain string, ok bool) {
	if match := evmAddressRegex.FindString(text); match != "" {
		return match, ChainEVM, true
	}
	for _, candidate := range base58AddressRegex.FindAllString(text, -1) {
		if _, err := solana.PublicKeyFromBase58(candidate); err == nil {
			return candidate, ChainSolana, true
		}
	}
	return "", "", false
}

// ExtractAllContractAddresses returns every distinct contract in the text,
// in order of first appearance.
func ExtractAllContractAddresses(text string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(addr string) {
		if !seen[addr] {
			seen[addr] = true
			out = append(out, addr)
		}
	}
	for _, match := range evmAddressRegex.FindAllString(text, -1) {
		add(match)
	}
	for _, candidate := range base58AddressRegex.FindAllString(text, -1) {
		if _, err := solana.PublicKeyFromBase58(candidate); err == nil {
			add(candidate)
		}
	}
	return out
}

// ContainsContract reports whether the text mentions the given address.
func ContainsContract(text, contract string) bool {
	return contract != "" && strings.Contains(text, contract)
}
