package etherman

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

var ErrWrongContract = errors.New("transaction does not target the bridge contract")

type ethereumClient interface {
	ethereum.TransactionReader
	ethereum.ContractCaller

	BlockNumber(ctx context.Context) (uint64, error)
}

// Etherman is the read-only view of the ETH chain the signature server
// needs: chain tip, past unlock transactions and the bridge nonce.
type Etherman struct {
	ethClient     ethereumClient
	bridgeAddress ethcommon.Address
}

func NewEtherman(cfg *Config) (*Etherman, error) {
	ethClient, err := ethclient.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}
	return NewEthermanWithClient(ethClient, cfg.BridgeContractAddress), nil
}

// NewEthermanWithClient wraps an existing client, e.g. a simulated backend.
func NewEthermanWithClient(client ethereumClient, bridge ethcommon.Address) *Etherman {
	return &Etherman{
		ethClient:     client,
		bridgeAddress: bridge,
	}
}

func (etherman *Etherman) TipHeight(ctx context.Context) (uint64, error) {
	return etherman.ethClient.BlockNumber(ctx)
}

// UnlockTx is what a past bridge.unlock transaction looked like on chain.
type UnlockTx struct {
	Input  *UnlockInput
	Failed bool
}

// GetUnlockTx fetches the receipt and calldata of txHash. found is false
// when the transaction or its receipt is unknown.
func (etherman *Etherman) GetUnlockTx(ctx context.Context, txHash ethcommon.Hash) (*UnlockTx, bool, error) {
	receipt, err := etherman.ethClient.TransactionReceipt(ctx, txHash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}

	tx, _, err := etherman.ethClient.TransactionByHash(ctx, txHash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if tx.To() == nil || *tx.To() != etherman.bridgeAddress {
		return nil, true, ErrWrongContract
	}

	input, err := DecodeUnlockInput(tx.Data())
	if err != nil {
		return nil, true, fmt.Errorf("decode unlock input of %s: %w", txHash.Hex(), err)
	}
	return &UnlockTx{
		Input:  input,
		Failed: receipt.Status == types.ReceiptStatusFailed,
	}, true, nil
}

// LatestUnlockNonce reads latestUnlockNonce_ from the bridge contract.
func (etherman *Etherman) LatestUnlockNonce(ctx context.Context) (*big.Int, error) {
	data, err := BridgeABI.Pack("latestUnlockNonce_")
	if err != nil {
		return nil, err
	}
	out, err := etherman.ethClient.CallContract(ctx, ethereum.CallMsg{
		To:   &etherman.bridgeAddress,
		Data: data,
	}, nil)
	if err != nil {
		return nil, err
	}
	values, err := BridgeABI.Unpack("latestUnlockNonce_", out)
	if err != nil {
		return nil, err
	}
	nonce, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected nonce type %T", values[0])
	}
	return nonce, nil
}
