package state

import (
	"errors"

	"github.com/holiman/uint256"
)

type ConfirmStatus string

const (
	ConfirmPending   ConfirmStatus = "pending"
	ConfirmConfirmed ConfirmStatus = "confirmed"
)

var (
	ErrNilRecord     = errors.New("nil record")
	ErrEmptyId       = errors.New("empty record id")
	ErrNilAmount     = errors.New("nil amount")
	ErrRecordMissing = errors.New("record not found")
)

// LockRecord is a lock event observed on Chain, the origin of a mint.
type LockRecord struct {
	Id            string
	Chain         string
	Asset         string
	Amount        *uint256.Int
	BridgeFee     *uint256.Int
	Sender        string
	Recipient     string
	BlockNumber   uint64
	ConfirmStatus ConfirmStatus
}

// BurnRecord is a burn event observed on Chain, the origin of an unlock on
// XChain.
type BurnRecord struct {
	Id            string
	Chain         string
	XChain        string
	Asset         string
	Amount        *uint256.Int
	BridgeFee     *uint256.Int
	Sender        string
	Recipient     string
	BlockNumber   uint64
	ConfirmStatus ConfirmStatus
}

// MintRecord is a finalized mint on Chain. Id is the id of the lock it
// serves; its existence means the lock is completed.
type MintRecord struct {
	Id        string
	Chain     string
	Asset     string
	Amount    *uint256.Int
	Recipient string
	TxHash    string
}

// UnlockRecord is a finalized unlock on Chain, keyed by the burn id.
type UnlockRecord struct {
	Id        string
	Chain     string
	Asset     string
	Amount    *uint256.Int
	Recipient string
	TxHash    string
}

type HandledBlock struct {
	Height uint64
	Hash   string
}
