package multisig

import (
	"github.com/TEENet-io/bridge-verifier/ckb"
	"github.com/TEENet-io/bridge-verifier/common"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

// CkbSigner signs CKB lock group messages. Signatures are r | s | recid as
// expected by the secp256k1 lock scripts.
type CkbSigner struct {
	sk *btcec.PrivateKey
}

func NewCkbSigner(privKey string) (*CkbSigner, error) {
	b, err := common.DecodeHex(common.Prepend0xPrefix(privKey))
	if err != nil || len(b) != 32 {
		return nil, ErrInvalidPrivateKey
	}
	sk, _ := btcec.PrivKeyFromBytes(b)
	if sk.Key.IsZero() {
		return nil, ErrInvalidPrivateKey
	}
	return &CkbSigner{sk: sk}, nil
}

func NewRandomCkbSigner() (*CkbSigner, error) {
	sk, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, err
	}
	return &CkbSigner{sk: sk}, nil
}

func (s *CkbSigner) Sign(message []byte) ([]byte, error) {
	if len(message) != 32 {
		return nil, ErrInvalidMessage
	}
	compact := ecdsa.SignCompact(s.sk, message, true)
	// compact is [27 + 4 + recid] | r | s
	sig := make([]byte, 65)
	copy(sig, compact[1:])
	sig[64] = (compact[0] - 27) & 0x03
	return sig, nil
}

// PubKey is the 0x prefixed compressed public key.
func (s *CkbSigner) PubKey() string {
	return common.EncodeHex(s.sk.PubKey().SerializeCompressed())
}

// PubKeyHash is the blake160 of the compressed public key.
func (s *CkbSigner) PubKeyHash() []byte {
	return ckb.Blake160(s.sk.PubKey().SerializeCompressed())
}

// Address is the default secp256k1 lock address of the key.
func (s *CkbSigner) Address(network ckb.Network) (string, error) {
	return ckb.EncodeAddress(ckb.Secp256k1Lock(s.PubKeyHash()), network)
}

// RecoverCkbPubKeyHash returns the blake160 of the compressed key that
// produced sig (r | s | recid) over message.
func RecoverCkbPubKeyHash(message, sig []byte) ([]byte, error) {
	if len(message) != 32 {
		return nil, ErrInvalidMessage
	}
	if len(sig) != 65 || sig[64] > 3 {
		return nil, ErrInvalidSignature
	}
	compact := make([]byte, 65)
	compact[0] = 27 + 4 + sig[64]
	copy(compact[1:], sig[:64])
	pub, _, err := ecdsa.RecoverCompact(compact, message)
	if err != nil {
		return nil, err
	}
	return ckb.Blake160(pub.SerializeCompressed()), nil
}
