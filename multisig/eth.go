package multisig

import (
	"crypto/ecdsa"
	"strings"

	"github.com/TEENet-io/bridge-verifier/common"
	"github.com/ethereum/go-ethereum/accounts"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// EthSigner signs ETH typed data digests. Signatures are r | s | v with
// v in {27, 28}.
type EthSigner struct {
	sk *ecdsa.PrivateKey
}

func NewEthSigner(privKey string) (*EthSigner, error) {
	sk, err := crypto.HexToECDSA(common.Trim0xPrefix(privKey))
	if err != nil {
		return nil, ErrInvalidPrivateKey
	}
	return &EthSigner{sk: sk}, nil
}

func NewRandomEthSigner() (*EthSigner, error) {
	sk, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return &EthSigner{sk: sk}, nil
}

func (s *EthSigner) Sign(message []byte) ([]byte, error) {
	if len(message) != 32 {
		return nil, ErrInvalidMessage
	}
	sig, err := crypto.Sign(message, s.sk)
	if err != nil {
		return nil, err
	}
	sig[64] += 27
	return sig, nil
}

// SignSafeTxHash signs a Safe transaction hash the way owners do through
// eth_sign: over the personal message digest of hash, with v in {31, 32}.
func (s *EthSigner) SignSafeTxHash(hash []byte) ([]byte, error) {
	if len(hash) != 32 {
		return nil, ErrInvalidMessage
	}
	sig, err := s.Sign(accounts.TextHash(hash))
	if err != nil {
		return nil, err
	}
	sig[64] += 4
	return sig, nil
}

// PubKey is the lower case account address of the key.
func (s *EthSigner) PubKey() string {
	return strings.ToLower(s.Address().Hex())
}

func (s *EthSigner) Address() ethcommon.Address {
	return crypto.PubkeyToAddress(s.sk.PublicKey)
}

// RecoverEthAddress returns the account that produced sig (v in {27, 28})
// over message.
func RecoverEthAddress(message, sig []byte) (ethcommon.Address, error) {
	if len(message) != 32 {
		return ethcommon.Address{}, ErrInvalidMessage
	}
	if len(sig) != 65 || (sig[64] != 27 && sig[64] != 28) {
		return ethcommon.Address{}, ErrInvalidSignature
	}
	normalized := make([]byte, 65)
	copy(normalized, sig)
	normalized[64] -= 27
	pub, err := crypto.SigToPub(message, normalized)
	if err != nil {
		return ethcommon.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}
