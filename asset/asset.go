package asset

import (
	"errors"
	"fmt"
	"strings"

	"github.com/TEENet-io/bridge-verifier/ckb"
	"github.com/TEENet-io/bridge-verifier/common"
	"github.com/holiman/uint256"
)

type Direction string

const (
	// DirectionIn is the lock/mint leg, from the origin chain of the asset.
	DirectionIn Direction = "in"
	// DirectionOut is the burn/unlock leg, back to the origin chain.
	DirectionOut Direction = "out"

	// CkbNativeIdent is the identifier of CKByte itself among nervos assets.
	CkbNativeIdent = "0x0000000000000000000000000000000000000000000000000000000000000000"
)

var (
	ErrNotInWhiteList   = errors.New("asset not in white list")
	ErrNoLockscriptArgs = errors.New("asset has no bridge lockscript args")
	ErrInvalidDirection = errors.New("invalid bridge fee direction")
)

// Asset is a bridged token identified by its origin chain and an identifier
// on that chain (token address, symbol or script hash).
type Asset interface {
	Chain() ChainType
	Ident() string
	// BridgeLockscriptArgs returns the molecule encoded args of the bridge
	// lockscript that owns the mirror token on CKB.
	BridgeLockscriptArgs() ([]byte, error)
	BridgeFee(direction Direction) (*uint256.Int, error)
	MinimalBridgeAmount() *uint256.Int
	InWhiteList(amount *uint256.Int) bool
}

// XChainAsset is an asset native to a chain other than CKB.
type XChainAsset struct {
	chain             ChainType
	ident             string
	ownerCellTypeHash string
	entry             *WhiteListEntry
	openList          bool
}

func (a *XChainAsset) Chain() ChainType { return a.chain }
func (a *XChainAsset) Ident() string    { return a.ident }

func (a *XChainAsset) BridgeLockscriptArgs() ([]byte, error) {
	owner, err := common.DecodeHex(a.ownerCellTypeHash)
	if err != nil || len(owner) != 32 {
		return nil, fmt.Errorf("invalid owner cell type hash %q", a.ownerCellTypeHash)
	}
	return ckb.EncodeBridgeLockscriptArgs(owner, byte(a.chain), []byte(a.ident)), nil
}

func (a *XChainAsset) BridgeFee(direction Direction) (*uint256.Int, error) {
	if a.entry == nil {
		return nil, fmt.Errorf("%w: %s %s", ErrNotInWhiteList, a.chain, a.ident)
	}
	return a.entry.fee(direction)
}

func (a *XChainAsset) MinimalBridgeAmount() *uint256.Int {
	if a.entry == nil {
		return new(uint256.Int)
	}
	return a.entry.minimal.Clone()
}

func (a *XChainAsset) InWhiteList(amount *uint256.Int) bool {
	if a.entry == nil {
		return a.openList
	}
	return !amount.Lt(a.entry.minimal)
}

// NervosAsset is a CKB native asset, identified by its type script hash, or
// CkbNativeIdent for CKByte.
type NervosAsset struct {
	ident    string
	entry    *WhiteListEntry
	openList bool
}

func (a *NervosAsset) Chain() ChainType { return ChainCKB }
func (a *NervosAsset) Ident() string    { return a.ident }

func (a *NervosAsset) IsCkb() bool {
	return strings.EqualFold(a.ident, CkbNativeIdent)
}

func (a *NervosAsset) BridgeLockscriptArgs() ([]byte, error) {
	return nil, ErrNoLockscriptArgs
}

func (a *NervosAsset) BridgeFee(direction Direction) (*uint256.Int, error) {
	if a.entry == nil {
		return nil, fmt.Errorf("%w: nervos %s", ErrNotInWhiteList, a.ident)
	}
	return a.entry.fee(direction)
}

func (a *NervosAsset) MinimalBridgeAmount() *uint256.Int {
	if a.entry == nil {
		return new(uint256.Int)
	}
	return a.entry.minimal.Clone()
}

func (a *NervosAsset) InWhiteList(amount *uint256.Int) bool {
	if a.entry == nil {
		return a.openList
	}
	return !amount.Lt(a.entry.minimal)
}
