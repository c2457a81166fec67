// SyncChecker decides whether the local record store is recent enough, for a
// chain, to judge signature requests.
package chainsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"
)

var ErrNoHandledBlock = errors.New("no handled block recorded")

type ChainConfig struct {
	Oracle TipOracle
	// Threshold is the largest accepted lag between tip and handled height.
	Threshold uint64
}

type SyncStatus struct {
	Chain   string
	Tip     uint64
	Handled uint64
	Synced  bool
}

type SyncChecker struct {
	IntervalCheckBlockchain time.Duration // how often tips are refreshed by Loop.
	St                      HandledBlockReader
	chains                  map[string]*ChainConfig

	mu   sync.RWMutex
	tips map[string]uint64 // last tip seen by Loop
}

func NewSyncChecker(st HandledBlockReader, interval time.Duration, chains map[string]*ChainConfig) *SyncChecker {
	return &SyncChecker{
		IntervalCheckBlockchain: interval,
		St:                      st,
		chains:                  chains,
		tips:                    make(map[string]uint64),
	}
}

func (sc *SyncChecker) tip(ctx context.Context, chain string, cfg *ChainConfig) (uint64, error) {
	sc.mu.RLock()
	tip, ok := sc.tips[chain]
	sc.mu.RUnlock()
	if ok {
		return tip, nil
	}
	return cfg.Oracle.TipHeight(ctx)
}

// Check reports the sync status of chain. A chain without configured oracle
// is always synced.
func (sc *SyncChecker) Check(ctx context.Context, chain string) (*SyncStatus, error) {
	cfg, ok := sc.chains[chain]
	if !ok || cfg.Oracle == nil {
		return &SyncStatus{Chain: chain, Synced: true}, nil
	}

	tip, err := sc.tip(ctx, chain, cfg)
	if err != nil {
		return nil, fmt.Errorf("tip of %s: %w", chain, err)
	}
	hb, ok, err := sc.St.GetHandledBlock(chain)
	if err != nil {
		return nil, err
	}
	status := &SyncStatus{Chain: chain, Tip: tip}
	if !ok {
		return status, nil
	}
	status.Handled = hb.Height
	status.Synced = tip <= hb.Height || tip-hb.Height <= cfg.Threshold
	return status, nil
}

// Loop refreshes the tips of every chain until ctx is done.
func (sc *SyncChecker) Loop(ctx context.Context) error {
	ticker := time.NewTicker(sc.IntervalCheckBlockchain)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			for chain, cfg := range sc.chains {
				if cfg.Oracle == nil {
					continue
				}
				tip, err := cfg.Oracle.TipHeight(ctx)
				if err != nil {
					logger.WithFields(logger.Fields{
						"chain": chain,
						"error": err,
					}).Warn("failed to fetch chain tip")
					// drop the stale value so Check asks the node itself
					sc.mu.Lock()
					delete(sc.tips, chain)
					sc.mu.Unlock()
					continue
				}
				sc.mu.Lock()
				sc.tips[chain] = tip
				sc.mu.Unlock()
				logger.WithFields(logger.Fields{
					"chain": chain,
					"tip":   tip,
				}).Debug("chain tip refreshed")
			}
		}
	}
}
