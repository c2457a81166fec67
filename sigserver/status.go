package sigserver

import (
	"context"

	"github.com/TEENet-io/bridge-verifier/agreement"
	logger "github.com/sirupsen/logrus"
)

type addressLister interface {
	Addresses(chain string) []string
}

type ChainStatus struct {
	LatestHeight    uint64 `json:"latestHeight"`
	LatestBlockHash string `json:"latestBlockHash"`
	TipHeight       uint64 `json:"tipHeight,omitempty"`
	Synced          bool   `json:"synced"`
}

type ServerStatus struct {
	AddressConfig     map[string][]string     `json:"addressConfig"`
	LatestChainStatus map[string]*ChainStatus `json:"latestChainStatus"`
}

// Status reports the signing addresses of this node and how far its record
// store has followed each chain.
func (s *SigServer) Status(ctx context.Context) *SigResponse {
	status := &ServerStatus{
		AddressConfig:     make(map[string][]string),
		LatestChainStatus: make(map[string]*ChainStatus),
	}
	for _, chain := range []string{agreement.ChainCkb, agreement.ChainEth, agreement.ChainAda} {
		if lister, ok := s.keys.(addressLister); ok {
			status.AddressConfig[chain] = lister.Addresses(chain)
		}
		if chain == agreement.ChainAda {
			chain = cardanoChain
		}

		cs := &ChainStatus{Synced: s.syncGuard == nil}
		hb, ok, err := s.records.GetHandledBlock(chain)
		if err != nil {
			logger.Errorf("failed to get handled block: chain=%s, err=%v", chain, err)
			return FromSigError(NewSigError(CodeUnknownError))
		}
		if ok {
			cs.LatestHeight = hb.Height
			cs.LatestBlockHash = hb.Hash
		}
		if s.syncGuard != nil {
			sync, err := s.syncGuard.Check(ctx, chain)
			if err != nil {
				logger.Warnf("failed to check block sync: chain=%s, err=%v", chain, err)
			} else {
				cs.TipHeight = sync.Tip
				cs.Synced = sync.Synced
			}
		}
		status.LatestChainStatus[chain] = cs
	}
	return FromData(status)
}
