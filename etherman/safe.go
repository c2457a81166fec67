package etherman

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	safeTxTypeHash = crypto.Keccak256Hash([]byte(
		"SafeTx(address to,uint256 value,bytes data,uint8 operation,uint256 safeTxGas,uint256 baseGas,uint256 gasPrice,address gasToken,address refundReceiver,uint256 nonce)"))
	safeDomainTypeHash = crypto.Keccak256Hash([]byte("EIP712Domain(uint256 chainId,address verifyingContract)"))
)

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

// SafeDomainSeparator is the EIP-712 domain of a Safe (>= 1.3.0) deployed at
// safe on chainId.
func SafeDomainSeparator(chainId *big.Int, safe ethcommon.Address) ([32]byte, error) {
	encoded, err := abi.Arguments{
		{Type: bytes32Type},
		{Type: uint256Type},
		{Type: addressType},
	}.Pack([32]byte(safeDomainTypeHash), orZero(chainId), safe)
	if err != nil {
		return [32]byte{}, err
	}
	return crypto.Keccak256Hash(encoded), nil
}

// SafeTxHash is the hash the Safe owners sign to approve tx.
func SafeTxHash(chainId *big.Int, safe ethcommon.Address, tx *SafeTx) ([32]byte, error) {
	domain, err := SafeDomainSeparator(chainId, safe)
	if err != nil {
		return [32]byte{}, err
	}
	encoded, err := abi.Arguments{
		{Type: bytes32Type},
		{Type: addressType},
		{Type: uint256Type},
		{Type: bytes32Type},
		{Type: uint8Type},
		{Type: uint256Type},
		{Type: uint256Type},
		{Type: uint256Type},
		{Type: addressType},
		{Type: addressType},
		{Type: uint256Type},
	}.Pack(
		[32]byte(safeTxTypeHash),
		tx.To,
		orZero(tx.Value),
		[32]byte(crypto.Keccak256Hash(tx.Data)),
		tx.Operation,
		orZero(tx.SafeTxGas),
		orZero(tx.BaseGas),
		orZero(tx.GasPrice),
		tx.GasToken,
		tx.RefundReceiver,
		orZero(tx.Nonce),
	)
	if err != nil {
		return [32]byte{}, fmt.Errorf("abi encode safe tx: %w", err)
	}
	return eip712Hash(domain, crypto.Keccak256Hash(encoded)), nil
}

// DecodeMintInput decodes asset manager mint calldata.
func DecodeMintInput(data []byte) (*MintInput, error) {
	if len(data) < 4 {
		return nil, ErrShortCalldata
	}
	method := AssetManagerABI.Methods["mint"]
	if !bytes.Equal(data[:4], method.ID) {
		return nil, ErrUnexpectedInput
	}
	values, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, err
	}
	var in MintInput
	if err := method.Inputs.Copy(&in, values); err != nil {
		return nil, err
	}
	return &in, nil
}

func EncodeMintInput(records []MintRecord) ([]byte, error) {
	return AssetManagerABI.Pack("mint", records)
}
