package tokenomics

import (
	"strings"

	"github.com/gagliardetto/solana-go"
)

// ValidateWalletAddress checks that address is a base58 encoded Solana public key
func ValidateWalletAddress(address string) error {
	if strings.TrimSpace(address) == "" {
		return newError(ErrInvalidAddress, "wallet address is empty")
	}
	if _, err := solana.PublicKeyFromBase58(address); err != nil {
		return newError(ErrInvalidAddress, "wallet address %q is not a valid public key: %v", address, err)
	}
	return nil
}
