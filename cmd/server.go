// Server = record store + signed-record cache + chain sync guard + signing
// engine + JSON-RPC transport. Everything is configured through config.Config.

package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"sync"
	"syscall"

	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"

	"github.com/TEENet-io/bridge-verifier/chainsync"
	"github.com/TEENet-io/bridge-verifier/ckb"
	"github.com/TEENet-io/bridge-verifier/config"
	"github.com/TEENet-io/bridge-verifier/database"
	"github.com/TEENet-io/bridge-verifier/etherman"
	"github.com/TEENet-io/bridge-verifier/keystore"
	"github.com/TEENet-io/bridge-verifier/pendingtx"
	"github.com/TEENet-io/bridge-verifier/rpcserver"
	"github.com/TEENet-io/bridge-verifier/signeddb"
	"github.com/TEENet-io/bridge-verifier/sigserver"
	"github.com/TEENet-io/bridge-verifier/state"
)

// SigServerNode holds the objects that make up a running signature server.
type SigServerNode struct {
	Db        *sql.DB
	StateDb   *state.StateDB
	SignedDb  *signeddb.SignedDB
	Pending   *pendingtx.Tracker
	Keys      *keystore.Store
	Etherman  *etherman.Etherman
	CkbOracle *chainsync.CkbTipOracle
	Sync      *chainsync.SyncChecker
	Server    *sigserver.SigServer
	Rpc       *rpcserver.RpcServer
}

// EngineConfig translates the file config into the engine's.
func EngineConfig(cfg *config.Config) *sigserver.Config {
	ec := &sigserver.Config{
		Network:               ckb.Network(cfg.Common.Network),
		MultisigLockscript:    cfg.Ckb.MultisigLockscript.Script(),
		SignableLocks:         cfg.Ckb.SignableLocks,
		EthChainId:            big.NewInt(cfg.Eth.ChainId),
		DomainSeparator:       cfg.Eth.DomainSeparator,
		UnlockTypeHash:        cfg.Eth.UnlockTypeHash,
		CollectorPubKeyHashes: cfg.Common.CollectorPubKeyHashes,
	}
	if cfg.Eth.SafeAddress != "" {
		ec.SafeAddress = ethcommon.HexToAddress(cfg.Eth.SafeAddress)
	}
	if cfg.Eth.AssetManagerAddress != "" {
		ec.AssetManagerAddress = ethcommon.HexToAddress(cfg.Eth.AssetManagerAddress)
	}
	return ec
}

// NewSigServerNode opens the database and wires every component. Nothing is
// started yet.
func NewSigServerNode(ctx context.Context, cfg *config.Config) (*SigServerNode, error) {
	node := &SigServerNode{}

	db, err := database.OpenSqlite(cfg.SigServer.DbPath)
	if err != nil {
		return nil, fmt.Errorf("open db %s: %w", cfg.SigServer.DbPath, err)
	}
	node.Db = db

	if node.StateDb, err = state.NewStateDB(db); err != nil {
		return nil, fmt.Errorf("create state db: %w", err)
	}
	if node.SignedDb, err = signeddb.NewSignedDB(db); err != nil {
		return nil, fmt.Errorf("create signed db: %w", err)
	}
	if node.Pending, err = pendingtx.NewPersistentTracker(db); err != nil {
		return nil, fmt.Errorf("create pending tracker: %w", err)
	}

	entries, err := cfg.KeyEntries()
	if err != nil {
		return nil, fmt.Errorf("load keys: %w", err)
	}
	if node.Keys, err = keystore.NewStore(entries); err != nil {
		return nil, fmt.Errorf("create key store: %w", err)
	}
	for _, chain := range []string{"ckb", "eth", "ada"} {
		logger.WithFields(logger.Fields{
			"chain":     chain,
			"addresses": node.Keys.Addresses(chain),
		}).Info("signing keys loaded")
	}

	registry, err := cfg.AssetRegistry()
	if err != nil {
		return nil, fmt.Errorf("create asset registry: %w", err)
	}

	chains := make(map[string]*chainsync.ChainConfig)
	if cfg.Ckb.RpcUrl != "" {
		if node.CkbOracle, err = chainsync.NewCkbTipOracle(ctx, cfg.Ckb.RpcUrl); err != nil {
			return nil, fmt.Errorf("dial ckb node: %w", err)
		}
		chains["ckb"] = &chainsync.ChainConfig{Oracle: node.CkbOracle, Threshold: cfg.Ckb.SyncThreshold}
	}
	if cfg.Eth.RpcUrl != "" {
		node.Etherman, err = etherman.NewEtherman(&etherman.Config{
			URL:                   cfg.Eth.RpcUrl,
			BridgeContractAddress: ethcommon.HexToAddress(cfg.Eth.ContractAddress),
		})
		if err != nil {
			return nil, fmt.Errorf("dial eth node: %w", err)
		}
		chains["eth"] = &chainsync.ChainConfig{Oracle: node.Etherman, Threshold: cfg.Eth.SyncThreshold}
	}
	if cfg.Ada.ApiUrl != "" {
		chains["cardano"] = &chainsync.ChainConfig{
			Oracle:    chainsync.NewAdaTipOracle(cfg.Ada.ApiUrl, cfg.Ada.ProjectId),
			Threshold: cfg.Ada.SyncThreshold,
		}
	}
	node.Sync = chainsync.NewSyncChecker(node.StateDb, cfg.SigServer.TipInterval, chains)

	backends := &sigserver.Backends{
		Records: node.StateDb,
		Signed:  node.SignedDb,
		Keys:    node.Keys,
		Pending: node.Pending,
		Sync:    node.Sync,
	}
	// a nil *Etherman must not end up in the interface
	if node.Etherman != nil {
		backends.Eth = node.Etherman
	} else {
		logger.Warn("no eth rpc configured, eth unlock retries will be refused")
	}
	if node.Server, err = sigserver.New(EngineConfig(cfg), registry, backends); err != nil {
		return nil, fmt.Errorf("create sigserver: %w", err)
	}

	node.Rpc = rpcserver.NewRpcServer(cfg.SigServer.ListenAddr, node.Server)
	return node, nil
}

// Start runs the sync loop and the rpc server until ctx is done.
func (node *SigServerNode) Start(ctx context.Context, wg *sync.WaitGroup) <-chan error {
	errCh := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := node.Sync.Loop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("sync loop: %w", err)
		}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := node.Rpc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("rpc server: %w", err)
		}
	}()
	return errCh
}

func (node *SigServerNode) Close() {
	if node.CkbOracle != nil {
		node.CkbOracle.Close()
	}
	if node.Pending != nil {
		node.Pending.Close()
	}
	if node.SignedDb != nil {
		node.SignedDb.Close()
	}
	if node.StateDb != nil {
		node.StateDb.Close()
	}
	if node.Db != nil {
		node.Db.Close()
	}
}

// Create, then start the signature server and wait.
// Press Ctrl-C to stop it.
func StartSigServerAndWait(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up a signal channel to listen for Ctrl-C (SIGINT) or SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	node, err := NewSigServerNode(ctx, cfg)
	if err != nil {
		return err
	}
	defer node.Close()

	var wg sync.WaitGroup
	errCh := node.Start(ctx, &wg)

	select {
	case sig := <-sigCh:
		logger.WithField("signal", sig.String()).Info("shutting down")
	case err = <-errCh:
		logger.WithField("error", err).Error("component failed, shutting down")
	}
	cancel()
	wg.Wait()
	return err
}
