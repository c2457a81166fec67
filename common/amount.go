package common

import (
	"errors"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

var (
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrAmountOverflow = errors.New("amount overflows 256 bits")
)

// ParseAmount reads a non-negative integer written either in decimal or as a
// 0x prefixed hex string.
func ParseAmount(s string) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrInvalidAmount
	}

	base := 10
	digits := s
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		base = 16
		digits = s[2:]
		if digits == "" {
			return nil, ErrInvalidAmount
		}
	}
	if strings.HasPrefix(digits, "-") || strings.HasPrefix(digits, "+") {
		return nil, ErrInvalidAmount
	}

	b, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return nil, ErrInvalidAmount
	}
	v, overflow := uint256.FromBig(b)
	if overflow {
		return nil, ErrAmountOverflow
	}
	return v, nil
}

// MustParseAmount panics on malformed input. Test and constant use only.
func MustParseAmount(s string) *uint256.Int {
	v, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return v
}

// FitsU128 reports whether v can be stored as a CKB u128 token amount.
func FitsU128(v *uint256.Int) bool {
	return v.BitLen() <= 128
}

// U128LE encodes v as 16 little endian bytes. The caller checks FitsU128.
func U128LE(v *uint256.Int) []byte {
	be := v.Bytes32()
	out := make([]byte, 16)
	for i := 0; i < 16; i++ {
		out[i] = be[31-i]
	}
	return out
}

// U128FromLE decodes the first 16 bytes of b as a little endian u128.
func U128FromLE(b []byte) (*uint256.Int, error) {
	if len(b) < 16 {
		return nil, ErrInvalidAmount
	}
	be := make([]byte, 16)
	for i := 0; i < 16; i++ {
		be[i] = b[15-i]
	}
	return new(uint256.Int).SetBytes(be), nil
}

// WithinFeeBand reports whether source - claimed lies in [fee/4, fee*4].
// A zero fee collapses the band so that claimed must equal source.
func WithinFeeBand(source, claimed, fee *uint256.Int) bool {
	if claimed.Gt(source) {
		return false
	}
	diff := new(uint256.Int).Sub(source, claimed)
	lower := new(uint256.Int).Div(fee, uint256.NewInt(4))
	upper, overflow := new(uint256.Int).MulOverflow(fee, uint256.NewInt(4))
	if overflow {
		return !diff.Lt(lower)
	}
	return !diff.Lt(lower) && !diff.Gt(upper)
}
