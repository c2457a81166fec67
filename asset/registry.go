package asset

import (
	"fmt"
	"strings"

	"github.com/TEENet-io/bridge-verifier/ckb"
	"github.com/TEENet-io/bridge-verifier/common"
	"github.com/holiman/uint256"
)

// WhiteListConfig is the configured form of a white listed asset.
type WhiteListConfig struct {
	Address             string `mapstructure:"address" json:"address"`
	Name                string `mapstructure:"name" json:"name"`
	Symbol              string `mapstructure:"symbol" json:"symbol"`
	Decimal             int    `mapstructure:"decimal" json:"decimal"`
	MinimalBridgeAmount string `mapstructure:"minimalBridgeAmount" json:"minimalBridgeAmount"`
	BridgeFeeIn         string `mapstructure:"bridgeFeeIn" json:"bridgeFeeIn"`
	BridgeFeeOut        string `mapstructure:"bridgeFeeOut" json:"bridgeFeeOut"`
}

type WhiteListEntry struct {
	Symbol  string
	minimal *uint256.Int
	feeIn   *uint256.Int
	feeOut  *uint256.Int
}

func (e *WhiteListEntry) fee(direction Direction) (*uint256.Int, error) {
	switch direction {
	case DirectionIn:
		return e.feeIn.Clone(), nil
	case DirectionOut:
		return e.feeOut.Clone(), nil
	}
	return nil, ErrInvalidDirection
}

func parseOrZero(s string) (*uint256.Int, error) {
	if s == "" {
		return new(uint256.Int), nil
	}
	return common.ParseAmount(s)
}

func newEntry(c *WhiteListConfig) (*WhiteListEntry, error) {
	minimal, err := parseOrZero(c.MinimalBridgeAmount)
	if err != nil {
		return nil, fmt.Errorf("minimalBridgeAmount of %s: %w", c.Address, err)
	}
	feeIn, err := parseOrZero(c.BridgeFeeIn)
	if err != nil {
		return nil, fmt.Errorf("bridgeFeeIn of %s: %w", c.Address, err)
	}
	feeOut, err := parseOrZero(c.BridgeFeeOut)
	if err != nil {
		return nil, fmt.Errorf("bridgeFeeOut of %s: %w", c.Address, err)
	}
	return &WhiteListEntry{Symbol: c.Symbol, minimal: minimal, feeIn: feeIn, feeOut: feeOut}, nil
}

// Registry resolves chain/ident pairs to assets. An empty white list for a
// chain admits every asset of that chain.
type Registry struct {
	ownerCellTypeHash string
	bridgeLock        ckb.ScriptTemplate
	sudtType          ckb.ScriptTemplate
	lists             map[ChainType]map[string]*WhiteListEntry
}

type RegistryConfig struct {
	OwnerCellTypeHash string
	BridgeLock        ckb.ScriptTemplate
	SudtType          ckb.ScriptTemplate
	WhiteLists        map[ChainType][]WhiteListConfig
}

func NewRegistry(cfg *RegistryConfig) (*Registry, error) {
	r := &Registry{
		ownerCellTypeHash: cfg.OwnerCellTypeHash,
		bridgeLock:        cfg.BridgeLock,
		sudtType:          cfg.SudtType,
		lists:             make(map[ChainType]map[string]*WhiteListEntry),
	}
	for chain, list := range cfg.WhiteLists {
		m := make(map[string]*WhiteListEntry, len(list))
		for i := range list {
			entry, err := newEntry(&list[i])
			if err != nil {
				return nil, err
			}
			m[identKey(chain, list[i].Address)] = entry
		}
		r.lists[chain] = m
	}
	return r, nil
}

func identKey(chain ChainType, ident string) string {
	switch chain {
	case ChainETH, ChainCKB:
		return strings.ToLower(ident)
	}
	return ident
}

// Resolve returns the asset identified by ident on chain. The ident string
// is kept verbatim since it is hashed into lockscript args.
func (r *Registry) Resolve(chain ChainType, ident string) (Asset, error) {
	if !chain.Valid() {
		return nil, fmt.Errorf("unknown chain %d", chain)
	}
	list := r.lists[chain]
	entry := list[identKey(chain, ident)]
	open := len(list) == 0
	if chain == ChainCKB {
		return &NervosAsset{ident: ident, entry: entry, openList: open}, nil
	}
	return &XChainAsset{
		chain:             chain,
		ident:             ident,
		ownerCellTypeHash: r.ownerCellTypeHash,
		entry:             entry,
		openList:          open,
	}, nil
}

// BridgeLockscript is the lock owning the mirror token of a on CKB.
func (r *Registry) BridgeLockscript(a Asset) (*ckb.Script, error) {
	args, err := a.BridgeLockscriptArgs()
	if err != nil {
		return nil, err
	}
	return r.bridgeLock.WithArgs(args), nil
}

// SudtTypeScript is the type script of the mirror token of a on CKB. Its
// args are the hash of the bridge lockscript.
func (r *Registry) SudtTypeScript(a Asset) (*ckb.Script, error) {
	lock, err := r.BridgeLockscript(a)
	if err != nil {
		return nil, err
	}
	h, err := lock.Hash()
	if err != nil {
		return nil, err
	}
	return r.sudtType.WithArgs(h[:]), nil
}

func (r *Registry) BridgeLockTemplate() ckb.ScriptTemplate { return r.bridgeLock }
func (r *Registry) SudtTemplate() ckb.ScriptTemplate       { return r.sudtType }
