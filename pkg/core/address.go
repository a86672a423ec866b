package core

import (
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// HexPrefix prefixes every address, hash and byte blob on the wire.
const HexPrefix = "0x"

// NullAddress is the all-zero address used for open taker and sender slots.
const NullAddress = "0x0000000000000000000000000000000000000000"

// GenerateFakeAddress generates a random, lowercase 0x address.
func GenerateFakeAddress() (string, error) {
	bytes := make([]byte, common.AddressLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hexutil.Encode(common.BytesToAddress(bytes).Bytes()), nil
}

// IsAddress checks that s is a 0x-prefixed 20-byte hex string.
func IsAddress(s string) bool {
	return strings.HasPrefix(s, HexPrefix) && common.IsHexAddress(s)
}

// IsOrderHash checks that s is a 0x-prefixed 32-byte hex string.
func IsOrderHash(s string) bool {
	b, err := hexutil.Decode(s)
	return err == nil && len(b) == common.HashLength
}
