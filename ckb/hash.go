package ckb

import (
	"hash"

	"github.com/minio/blake2b-simd"
)

var personalization = []byte("ckb-default-hash")

// NewHasher returns the blake2b-256 hasher used everywhere on CKB: 32 byte
// digest personalised with "ckb-default-hash".
func NewHasher() hash.Hash {
	h, err := blake2b.New(&blake2b.Config{
		Size:   32,
		Person: personalization,
	})
	if err != nil {
		// only reachable with an invalid static config
		panic(err)
	}
	return h
}

func CkbHash(data ...[]byte) [32]byte {
	h := NewHasher()
	for _, d := range data {
		h.Write(d)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Blake160 is the first 20 bytes of the ckb hash, used as lock args of the
// default lock scripts.
func Blake160(data []byte) []byte {
	h := CkbHash(data)
	return h[:20]
}
