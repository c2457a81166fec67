package asset

import (
	"fmt"
	"strings"
)

// ChainType is the cross chain identifier written into bridge lockscript
// args. The numbering is part of the on-chain format.
type ChainType uint8

const (
	ChainBTC ChainType = iota
	ChainETH
	ChainEOS
	ChainTRON
	ChainPOLKADOT
	ChainCARDANO

	// ChainCKB identifies CKB itself. It never appears in lockscript args.
	ChainCKB ChainType = 255
)

var chainNames = map[ChainType]string{
	ChainBTC:      "btc",
	ChainETH:      "eth",
	ChainEOS:      "eos",
	ChainTRON:     "tron",
	ChainPOLKADOT: "polkadot",
	ChainCARDANO:  "cardano",
	ChainCKB:      "ckb",
}

func (c ChainType) String() string {
	if name, ok := chainNames[c]; ok {
		return name
	}
	return fmt.Sprintf("chain(%d)", uint8(c))
}

func (c ChainType) Valid() bool {
	_, ok := chainNames[c]
	return ok
}

// ParseChain maps a chain name used on the wire ("ckb", "eth", ...) to its
// ChainType.
func ParseChain(name string) (ChainType, error) {
	name = strings.ToLower(name)
	for c, n := range chainNames {
		if n == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown chain %q", name)
}
