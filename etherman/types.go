package etherman

import (
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// UnlockRecord mirrors the bridge contract struct. Field names follow the
// abi component names.
type UnlockRecord struct {
	Token     ethcommon.Address
	Recipient ethcommon.Address
	Amount    *big.Int
	CkbTxHash []byte
}

// UnlockInput is the decoded calldata of bridge.unlock.
type UnlockInput struct {
	Records    []UnlockRecord
	Nonce      *big.Int
	Signatures []byte
}

// MintRecord mirrors the asset manager struct.
type MintRecord struct {
	AssetId [32]byte
	To      ethcommon.Address
	Amount  *big.Int
	LockId  [32]byte
}

type MintInput struct {
	Records []MintRecord
}

// SafeTx is a Gnosis Safe transaction in typed form.
type SafeTx struct {
	To             ethcommon.Address
	Value          *big.Int
	Data           []byte
	Operation      uint8
	SafeTxGas      *big.Int
	BaseGas        *big.Int
	GasPrice       *big.Int
	GasToken       ethcommon.Address
	RefundReceiver ethcommon.Address
	Nonce          *big.Int
}
