package eth

import (
	"github.com/ethereum/go-ethereum/crypto"
)

// Keccak256Hex returns the 0x-prefixed keccak-256 of the concatenated inputs.
func Keccak256Hex(data ...[]byte) string {
	return crypto.Keccak256Hash(data...).Hex()
}

// Keccak256String hashes a UTF-8 string.
func Keccak256String(s string) string {
	return Keccak256Hex([]byte(s))
}
