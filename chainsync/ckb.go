package chainsync

import (
	"context"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// CkbTipOracle asks a CKB node over JSON-RPC.
type CkbTipOracle struct {
	client *rpc.Client
}

func NewCkbTipOracle(ctx context.Context, url string) (*CkbTipOracle, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	return &CkbTipOracle{client: client}, nil
}

func (o *CkbTipOracle) TipHeight(ctx context.Context) (uint64, error) {
	var tip hexutil.Uint64
	if err := o.client.CallContext(ctx, &tip, "get_tip_block_number"); err != nil {
		return 0, err
	}
	return uint64(tip), nil
}

func (o *CkbTipOracle) Close() {
	o.client.Close()
}
