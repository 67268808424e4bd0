package validation

import (
	"fmt"
	"regexp"

	"github.com/ethereum/go-ethereum/common"
)

// EthereumAddressPattern is the regex pattern for Ethereum addresses
var EthereumAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// knownChains names the networks operators most often point a wallet at.
// Unknown chains are still valid.
var knownChains = map[int64]string{
	1:        "Ethereum Mainnet",
	10:       "Optimism",
	56:       "BSC",
	137:      "Polygon",
	8453:     "Base",
	42161:    "Arbitrum One",
	43114:    "Avalanche",
	11155111: "Sepolia",
}

// ValidateRecipient checks that address can receive a token transfer
func ValidateRecipient(address string) error {
	if address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	if !EthereumAddressPattern.MatchString(address) {
		return fmt.Errorf("invalid Ethereum address format: must be 0x followed by 40 hex characters")
	}

	// Tokens sent to the zero address are burned
	if common.HexToAddress(address) == (common.Address{}) {
		return fmt.Errorf("cannot send to zero address")
	}

	return nil
}

// ValidateChainID validates a chain ID
func ValidateChainID(chainID int64) error {
	if chainID <= 0 {
		return fmt.Errorf("chain ID must be positive")
	}
	return nil
}

// ChainName returns a display name for chainID, or "chain <id>" when unknown
func ChainName(chainID int64) string {
	if name, ok := knownChains[chainID]; ok {
		return name
	}
	return fmt.Sprintf("chain %d", chainID)
}
