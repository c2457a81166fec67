package common

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeHex(t *testing.T) {
	b, err := DecodeHex("0x0aFf")
	assert.NoError(t, err)
	assert.Equal(t, []byte{0x0a, 0xff}, b)

	b, err = DecodeHex("0x")
	assert.NoError(t, err)
	assert.Empty(t, b)

	_, err = DecodeHex("0aff")
	assert.Error(t, err)
	_, err = DecodeHex("0x0af")
	assert.Error(t, err)

	assert.True(t, IsHexString("0x00ab"))
	assert.False(t, IsHexString("0x0"))
	assert.False(t, IsHexString("00"))
	assert.False(t, IsHexString("0xzz"))
}

func TestShorten(t *testing.T) {
	assert.Equal(t, "0x0123...cdef", Shorten("0x0123456789abcdef", 4))
	assert.Equal(t, "0x0123", Shorten("0123", 4))
}

func TestUnique(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, Unique([]string{"a", "b", "a", "c", "b"}))
}

func TestNormalizeEthAddress(t *testing.T) {
	addr := RandEthAddress()
	n, err := NormalizeEthAddress(addr.Hex())
	require.NoError(t, err)
	assert.Equal(t, strings.ToLower(addr.Hex()), n)
	assert.True(t, SameEthAddress(addr.Hex(), n))

	_, err = NormalizeEthAddress("0x1234")
	assert.Equal(t, ErrInvalidEthAddress, err)
	assert.False(t, SameEthAddress("0x1234", "0x1234"))
}

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount("1000000000000000")
	require.NoError(t, err)
	assert.Equal(t, uint64(1000000000000000), v.Uint64())

	v, err = ParseAmount("0x0de0b6b3a7640000")
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000", v.Dec())

	for _, bad := range []string{"", "-1", "+1", "1.5", "0x", "abc"} {
		_, err = ParseAmount(bad)
		assert.Error(t, err, bad)
	}

	_, err = ParseAmount("0x1" + "0000000000000000000000000000000000000000000000000000000000000000")
	assert.Equal(t, ErrAmountOverflow, err)
}

func TestU128(t *testing.T) {
	v := MustParseAmount("999000000000000")
	assert.True(t, FitsU128(v))
	le := U128LE(v)
	assert.Len(t, le, 16)
	back, err := U128FromLE(le)
	require.NoError(t, err)
	assert.True(t, v.Eq(back))

	wide := MustParseAmount("0x1" + "00000000000000000000000000000000")
	assert.False(t, FitsU128(wide))
}

func TestWithinFeeBand(t *testing.T) {
	fee := MustParseAmount("1000")
	source := MustParseAmount("100000")

	tests := []struct {
		claimed string
		ok      bool
	}{
		{"99750", true},  // diff = fee/4
		{"96000", true},  // diff = fee*4
		{"99000", true},  // diff = fee
		{"99751", false}, // below the band
		{"95999", false}, // above the band
		{"95000", false},
		{"100001", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ok, WithinFeeBand(source, MustParseAmount(tt.claimed), fee), tt.claimed)
	}

	zero := MustParseAmount("0")
	assert.True(t, WithinFeeBand(source, source, zero))
	assert.False(t, WithinFeeBand(source, MustParseAmount("99999"), zero))
}
