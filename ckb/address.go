package ckb

import (
	"errors"
	"fmt"

	"github.com/TEENet-io/bridge-verifier/common"
	"github.com/btcsuite/btcd/btcutil/bech32"
)

type Network string

const (
	Mainnet Network = "mainnet"
	Testnet Network = "testnet"

	PrefixMainnet = "ckb"
	PrefixTestnet = "ckt"

	formatFull     byte = 0x00
	formatShort    byte = 0x01
	formatFullData byte = 0x02
	formatFullType byte = 0x04

	CodeIndexSecp256k1 byte = 0x00
	CodeIndexMultisig  byte = 0x01
	CodeIndexAcp       byte = 0x02

	Secp256k1Blake160CodeHash = "0x9bd7e06f3ecf4be0f2fcd2188b23f1b9fcc88e5d4b65a8637b17723bbda3cce8"
	MultisigCodeHash          = "0x5c5069eb0857efc65e1bca0c07df34c31663b3622fd3876c876320fc9634e2a8"
	acpCodeHashMainnet        = "0xd369597ff47f29fbc0d47d2e3775370d1250b85140c670e4718af712983a2354"
	acpCodeHashTestnet        = "0x3419a1c09eb2567f6552ee7a8ecffd64155cffe0f1796e6e61ec088d740c1356"
)

var (
	ErrInvalidAddress = errors.New("invalid ckb address")
	ErrUnknownNetwork = errors.New("unknown ckb network")
)

func (n Network) Prefix() (string, error) {
	switch n {
	case Mainnet:
		return PrefixMainnet, nil
	case Testnet:
		return PrefixTestnet, nil
	}
	return "", ErrUnknownNetwork
}

func networkOf(prefix string) (Network, error) {
	switch prefix {
	case PrefixMainnet:
		return Mainnet, nil
	case PrefixTestnet:
		return Testnet, nil
	}
	return "", ErrUnknownNetwork
}

func shortCodeHash(index byte, network Network) (string, error) {
	switch index {
	case CodeIndexSecp256k1:
		return Secp256k1Blake160CodeHash, nil
	case CodeIndexMultisig:
		return MultisigCodeHash, nil
	case CodeIndexAcp:
		if network == Mainnet {
			return acpCodeHashMainnet, nil
		}
		return acpCodeHashTestnet, nil
	}
	return "", fmt.Errorf("%w: unknown code index %d", ErrInvalidAddress, index)
}

// ParseAddress decodes every CKB address format into the lock script it
// stands for.
func ParseAddress(addr string) (*Script, Network, error) {
	hrp, data, err := bech32.DecodeNoLimit(addr)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	network, err := networkOf(hrp)
	if err != nil {
		return nil, "", fmt.Errorf("%w: prefix %s", ErrInvalidAddress, hrp)
	}
	payload, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(payload) == 0 {
		return nil, "", ErrInvalidAddress
	}

	switch payload[0] {
	case formatShort:
		if len(payload) != 22 {
			return nil, "", fmt.Errorf("%w: short payload length %d", ErrInvalidAddress, len(payload))
		}
		codeHash, err := shortCodeHash(payload[1], network)
		if err != nil {
			return nil, "", err
		}
		return &Script{
			CodeHash: codeHash,
			HashType: HashTypeType,
			Args:     common.EncodeHex(payload[2:]),
		}, network, nil

	case formatFull:
		if len(payload) < 34 {
			return nil, "", fmt.Errorf("%w: full payload length %d", ErrInvalidAddress, len(payload))
		}
		ht, err := hashTypeFromByte(payload[33])
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrInvalidAddress, err)
		}
		return &Script{
			CodeHash: common.EncodeHex(payload[1:33]),
			HashType: ht,
			Args:     common.EncodeHex(payload[34:]),
		}, network, nil

	case formatFullData, formatFullType:
		if len(payload) < 33 {
			return nil, "", fmt.Errorf("%w: full payload length %d", ErrInvalidAddress, len(payload))
		}
		ht := HashTypeData
		if payload[0] == formatFullType {
			ht = HashTypeType
		}
		return &Script{
			CodeHash: common.EncodeHex(payload[1:33]),
			HashType: ht,
			Args:     common.EncodeHex(payload[33:]),
		}, network, nil
	}

	return nil, "", fmt.Errorf("%w: unknown format 0x%02x", ErrInvalidAddress, payload[0])
}

// EncodeAddress renders a lock script in the full (bech32m) format.
func EncodeAddress(lock *Script, network Network) (string, error) {
	prefix, err := network.Prefix()
	if err != nil {
		return "", err
	}
	codeHash, err := decodeHash(lock.CodeHash)
	if err != nil {
		return "", err
	}
	ht, err := hashTypeByte(lock.HashType)
	if err != nil {
		return "", err
	}
	args, err := common.DecodeHex(lock.Args)
	if err != nil {
		return "", err
	}

	payload := append([]byte{formatFull}, codeHash...)
	payload = append(payload, ht)
	payload = append(payload, args...)
	data, err := bech32.ConvertBits(payload, 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.EncodeM(prefix, data)
}

// EncodeShortAddress renders the deprecated short (bech32) format for one of
// the default lock scripts.
func EncodeShortAddress(codeIndex byte, args []byte, network Network) (string, error) {
	prefix, err := network.Prefix()
	if err != nil {
		return "", err
	}
	if len(args) != 20 {
		return "", fmt.Errorf("%w: short args length %d", ErrInvalidAddress, len(args))
	}
	if _, err := shortCodeHash(codeIndex, network); err != nil {
		return "", err
	}
	payload := append([]byte{formatShort, codeIndex}, args...)
	data, err := bech32.ConvertBits(payload, 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.Encode(prefix, data)
}

// Secp256k1Lock is the default single key lock for a blake160 pubkey hash.
func Secp256k1Lock(pubKeyHash []byte) *Script {
	return &Script{
		CodeHash: Secp256k1Blake160CodeHash,
		HashType: HashTypeType,
		Args:     common.EncodeHex(pubKeyHash),
	}
}
