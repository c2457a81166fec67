package sigserver

import (
	"math/big"

	"github.com/TEENet-io/bridge-verifier/ckb"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

type Config struct {
	Network ckb.Network

	// MultisigLockscript is the lock of the bridge multisig cells on CKB.
	// rawData of every CKB request is the signing message of its group.
	MultisigLockscript *ckb.Script
	// extra lock groups the collector may prepare signing entries for
	SignableLocks []ckb.ScriptTemplate

	EthChainId          *big.Int
	SafeAddress         ethcommon.Address
	AssetManagerAddress ethcommon.Address
	// When set, eth unlock payloads must use exactly these values.
	DomainSeparator string
	UnlockTypeHash  string

	// blake160 of the collector pubkeys allowed to send requests. Empty
	// accepts any collector.
	CollectorPubKeyHashes []string
}
