package etherman

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrShortCalldata   = errors.New("calldata shorter than a selector")
	ErrUnexpectedInput = errors.New("calldata does not call the expected method")
)

// BuildUnlockRawData computes the EIP-712 digest the bridge contract checks
// the owners' signatures of an unlock against:
//
//	keccak256(0x19 0x01 | domainSeparator | keccak256(abi.encode(typeHash, records, nonce)))
func BuildUnlockRawData(domainSeparator, typeHash [32]byte, records []UnlockRecord, nonce uint64) ([32]byte, error) {
	if records == nil {
		records = []UnlockRecord{}
	}
	encoded, err := abi.Arguments{
		{Type: bytes32Type},
		{Type: unlockRecordsType},
		{Type: uint256Type},
	}.Pack(typeHash, records, new(big.Int).SetUint64(nonce))
	if err != nil {
		return [32]byte{}, fmt.Errorf("abi encode unlock: %w", err)
	}
	return eip712Hash(domainSeparator, crypto.Keccak256Hash(encoded)), nil
}

func eip712Hash(domainSeparator [32]byte, structHash ethcommon.Hash) [32]byte {
	return crypto.Keccak256Hash([]byte{0x19, 0x01}, domainSeparator[:], structHash[:])
}

// DecodeUnlockInput decodes the calldata of a bridge.unlock transaction.
func DecodeUnlockInput(data []byte) (*UnlockInput, error) {
	if len(data) < 4 {
		return nil, ErrShortCalldata
	}
	method := BridgeABI.Methods["unlock"]
	if !bytes.Equal(data[:4], method.ID) {
		return nil, ErrUnexpectedInput
	}
	values, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, err
	}
	var in UnlockInput
	if err := method.Inputs.Copy(&in, values); err != nil {
		return nil, err
	}
	return &in, nil
}

// EncodeUnlockInput builds bridge.unlock calldata.
func EncodeUnlockInput(in *UnlockInput) ([]byte, error) {
	return BridgeABI.Pack("unlock", in.Records, in.Nonce, in.Signatures)
}
