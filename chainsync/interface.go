// Implement following interfaces to plug a chain into the sync guard.
package chainsync

import (
	"context"

	"github.com/TEENet-io/bridge-verifier/state"
)

// TipOracle reports the current tip height of a chain.
type TipOracle interface {
	TipHeight(ctx context.Context) (uint64, error)
}

// HandledBlockReader reads the last block a chain watcher fully handled.
type HandledBlockReader interface {
	GetHandledBlock(chain string) (*state.HandledBlock, bool, error)
}
