package keystore

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/TEENet-io/bridge-verifier/cardano"
	"github.com/TEENet-io/bridge-verifier/ckb"
	"github.com/TEENet-io/bridge-verifier/common"
	"github.com/TEENet-io/bridge-verifier/multisig"
)

var (
	ErrKeyNotFound      = errors.New("no key for request address")
	ErrUnsupportedChain = errors.New("unsupported key chain")
	ErrAddressMismatch  = errors.New("configured address does not match the private key")
)

// KeyLookup finds the private key a request address stands for.
type KeyLookup interface {
	Key(chain, address string) (string, error)
}

// KeyEntry is one signing key. Address may be left empty, it is then
// derived from the key (secp256k1 lock on ckb, account on eth, addr_vkh on
// ada).
type KeyEntry struct {
	Chain   string `mapstructure:"chain" json:"chain"`
	Address string `mapstructure:"address" json:"address"`
	PrivKey string `mapstructure:"privKey" json:"privKey"`
}

// Store is an in-memory KeyLookup.
type Store struct {
	mu   sync.RWMutex
	keys map[string]string
	// addresses as configured, per chain, for status reports
	addresses map[string][]string
}

func NewStore(entries []KeyEntry) (*Store, error) {
	s := &Store{
		keys:      make(map[string]string),
		addresses: make(map[string][]string),
	}
	for _, e := range entries {
		if err := s.Add(e); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func lookupKey(chain, address string) (string, error) {
	switch chain {
	case "ckb":
		lock, _, err := ckb.ParseAddress(address)
		if err != nil {
			return "", err
		}
		h, err := lock.HashHex()
		if err != nil {
			return "", err
		}
		return "ckb/" + h, nil
	case "eth":
		addr, err := common.NormalizeEthAddress(address)
		if err != nil {
			return "", err
		}
		return "eth/" + addr, nil
	case "ada":
		hrp, _, err := cardano.DecodeBech32(address)
		if err != nil {
			return "", err
		}
		if hrp != cardano.HrpAddrKeyHash {
			return "", fmt.Errorf("not a key hash: %s", address)
		}
		return "ada/" + strings.ToLower(address), nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedChain, chain)
}

func (s *Store) Add(e KeyEntry) error {
	var key, display string
	switch e.Chain {
	case "ckb":
		signer, err := multisig.NewCkbSigner(e.PrivKey)
		if err != nil {
			return err
		}
		if e.Address == "" {
			h, err := ckb.Secp256k1Lock(signer.PubKeyHash()).HashHex()
			if err != nil {
				return err
			}
			key = "ckb/" + h
			display = common.EncodeHex(signer.PubKeyHash())
		} else {
			if key, err = lookupKey(e.Chain, e.Address); err != nil {
				return err
			}
			display = e.Address
		}
	case "eth":
		signer, err := multisig.NewEthSigner(e.PrivKey)
		if err != nil {
			return err
		}
		derived := signer.PubKey()
		if e.Address != "" && !common.SameEthAddress(e.Address, derived) {
			return fmt.Errorf("%w: %s", ErrAddressMismatch, e.Address)
		}
		key = "eth/" + derived
		display = derived
	case "ada":
		signer, err := multisig.NewAdaSigner(e.PrivKey)
		if err != nil {
			return err
		}
		derived := signer.PubKey()
		if e.Address != "" && !strings.EqualFold(e.Address, derived) {
			return fmt.Errorf("%w: %s", ErrAddressMismatch, e.Address)
		}
		key = "ada/" + derived
		display = derived
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedChain, e.Chain)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key]; !ok {
		s.addresses[e.Chain] = append(s.addresses[e.Chain], display)
	}
	s.keys[key] = common.Prepend0xPrefix(strings.ToLower(e.PrivKey))
	return nil
}

// Key finds the key of address on chain. A cardano request may leave the
// address empty when exactly one cardano key is configured.
func (s *Store) Key(chain, address string) (string, error) {
	if chain == "ada" && address == "" {
		s.mu.RLock()
		addrs := s.addresses[chain]
		s.mu.RUnlock()
		if len(addrs) == 1 {
			address = addrs[0]
		}
	}
	key, err := lookupKey(chain, address)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrKeyNotFound, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	priv, ok := s.keys[key]
	if !ok {
		return "", fmt.Errorf("%w: %s %s", ErrKeyNotFound, chain, address)
	}
	return priv, nil
}

// Addresses lists the configured addresses of chain. For ckb keys without
// an address the lock args (blake160 of the pubkey) are listed.
func (s *Store) Addresses(chain string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.addresses[chain]...)
}
