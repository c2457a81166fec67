package common

import (
	"crypto/rand"
	"errors"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

var ErrInvalidEthAddress = errors.New("invalid eth address")

func RandEthAddress() ethcommon.Address {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		return ethcommon.Address{}
	}
	return ethcommon.BytesToAddress(b[:])
}

// NormalizeEthAddress returns the lower case 0x form of an account address so
// that checksummed and plain spellings compare equal.
func NormalizeEthAddress(addr string) (string, error) {
	if !ethcommon.IsHexAddress(addr) {
		return "", ErrInvalidEthAddress
	}
	return strings.ToLower(ethcommon.HexToAddress(addr).Hex()), nil
}

// SameEthAddress compares two addresses case-insensitively. Malformed input
// never matches.
func SameEthAddress(a, b string) bool {
	na, err := NormalizeEthAddress(a)
	if err != nil {
		return false
	}
	nb, err := NormalizeEthAddress(b)
	if err != nil {
		return false
	}
	return na == nb
}
