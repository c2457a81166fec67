package cardano

import (
	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/minio/blake2b-simd"
)

const (
	HrpTxHash      = "txhash"
	HrpAddrKeyHash = "addr_vkh"
)

func Blake2b256(data []byte) [32]byte {
	return blake2b.Sum256(data)
}

// Blake2b224 hashes verification keys into key hashes.
func Blake2b224(data []byte) []byte {
	h, err := blake2b.New(&blake2b.Config{Size: 28})
	if err != nil {
		panic(err)
	}
	h.Write(data)
	return h.Sum(nil)
}

func EncodeBech32(hrp string, payload []byte) (string, error) {
	data, err := bech32.ConvertBits(payload, 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.Encode(hrp, data)
}

func DecodeBech32(s string) (string, []byte, error) {
	hrp, data, err := bech32.DecodeNoLimit(s)
	if err != nil {
		return "", nil, err
	}
	payload, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return "", nil, err
	}
	return hrp, payload, nil
}

// KeyHashBech32 is the "addr_vkh" form of the hash of vkey.
func KeyHashBech32(vkey []byte) (string, error) {
	return EncodeBech32(HrpAddrKeyHash, Blake2b224(vkey))
}
