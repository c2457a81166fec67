package multisig

import (
	"crypto/sha512"

	"filippo.io/edwards25519"
	"github.com/TEENet-io/bridge-verifier/cardano"
	"github.com/TEENet-io/bridge-verifier/common"
)

// AdaSigner signs Cardano transaction hashes. The key is either a 32 byte
// ed25519 seed or a 64 byte extended key kL | kR as cardano wallets export
// it. Sign returns the CBOR vkey witness, not the bare signature.
type AdaSigner struct {
	scalar *edwards25519.Scalar
	prefix []byte
	vkey   []byte
	// addr_vkh bech32 of vkey
	keyHash string
}

func NewAdaSigner(privKey string) (*AdaSigner, error) {
	b, err := common.DecodeHex(common.Prepend0xPrefix(privKey))
	if err != nil {
		return nil, ErrInvalidPrivateKey
	}

	var kL, kR []byte
	switch len(b) {
	case 32:
		h := sha512.Sum512(b)
		kL, kR = h[:32], h[32:]
		kL[0] &= 248
		kL[31] &= 127
		kL[31] |= 64
	case 64:
		kL, kR = b[:32], b[32:]
	default:
		return nil, ErrInvalidPrivateKey
	}

	// kL is taken as a little endian integer, reduced mod l
	wide := make([]byte, 64)
	copy(wide, kL)
	scalar, err := edwards25519.NewScalar().SetUniformBytes(wide)
	if err != nil {
		return nil, ErrInvalidPrivateKey
	}
	if scalar.Equal(edwards25519.NewScalar()) == 1 {
		return nil, ErrInvalidPrivateKey
	}

	vkey := new(edwards25519.Point).ScalarBaseMult(scalar).Bytes()
	keyHash, err := cardano.KeyHashBech32(vkey)
	if err != nil {
		return nil, err
	}
	return &AdaSigner{
		scalar:  scalar,
		prefix:  append([]byte(nil), kR...),
		vkey:    vkey,
		keyHash: keyHash,
	}, nil
}

// SignHash is the ed25519 signature of message under the key.
func (s *AdaSigner) SignHash(message []byte) []byte {
	h := sha512.New()
	h.Write(s.prefix)
	h.Write(message)
	r, _ := edwards25519.NewScalar().SetUniformBytes(h.Sum(nil))
	R := new(edwards25519.Point).ScalarBaseMult(r).Bytes()

	h.Reset()
	h.Write(R)
	h.Write(s.vkey)
	h.Write(message)
	k, _ := edwards25519.NewScalar().SetUniformBytes(h.Sum(nil))
	S := edwards25519.NewScalar().MultiplyAdd(k, s.scalar, r)

	return append(R, S.Bytes()...)
}

func (s *AdaSigner) Sign(txHash []byte) ([]byte, error) {
	if len(txHash) != 32 {
		return nil, ErrInvalidMessage
	}
	w := &cardano.VKeyWitness{VKey: s.VKey(), Signature: s.SignHash(txHash)}
	return w.Bytes()
}

func (s *AdaSigner) VKey() []byte {
	return append([]byte(nil), s.vkey...)
}

// PubKey is the addr_vkh bech32 of the verification key.
func (s *AdaSigner) PubKey() string {
	return s.keyHash
}
