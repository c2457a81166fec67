package sigserver

import (
	"context"
	"encoding/json"
	"math/big"

	"github.com/TEENet-io/bridge-verifier/chainsync"
	"github.com/TEENet-io/bridge-verifier/etherman"
	"github.com/TEENet-io/bridge-verifier/signeddb"
	"github.com/TEENet-io/bridge-verifier/state"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

// RecordStore is the read side of the events written by the chain watchers.
type RecordStore interface {
	GetLocksByIds(chain string, ids []string) ([]*state.LockRecord, error)
	GetBurnsByIds(chain string, ids []string) ([]*state.BurnRecord, error)
	GetMintsByIds(chain string, ids []string) ([]*state.MintRecord, error)
	GetUnlocksByIds(chain string, ids []string) ([]*state.UnlockRecord, error)
	GetHandledBlock(chain string) (*state.HandledBlock, bool, error)
}

// SignedStore keeps the signatures issued by this node.
type SignedStore interface {
	GetSignatureByRawData(pubKey, rawData string) (string, bool, error)
	GetSignedByRefTxHashes(pubKey, chain, sigType string, refTxHashes []string) ([]*signeddb.SignedRecord, error)
	GetMaxNonceByRefTxHashes(pubKey, chain string, refTxHashes []string) (uint64, bool, error)
	// SaveSigned must check and insert atomically; it returns the signature
	// already stored for the rawData when another request won.
	SaveSigned(ctx context.Context, records []*signeddb.SignedRecord) (string, bool, error)
}

type SyncGuard interface {
	Check(ctx context.Context, chain string) (*chainsync.SyncStatus, error)
}

// EthChainReader reads the bridge contract state needed to judge unlock
// retries.
type EthChainReader interface {
	GetUnlockTx(ctx context.Context, txHash ethcommon.Hash) (*etherman.UnlockTx, bool, error)
	LatestUnlockNonce(ctx context.Context) (*big.Int, error)
}

type PendingStore interface {
	Set(chain string, req interface{}) error
	Get(chain string) (json.RawMessage, bool)
}
