package sigserver

import (
	"fmt"
	"strings"

	"github.com/TEENet-io/bridge-verifier/agreement"
	"github.com/TEENet-io/bridge-verifier/asset"
	"github.com/TEENet-io/bridge-verifier/ckb"
	"github.com/TEENet-io/bridge-verifier/common"
	"github.com/TEENet-io/bridge-verifier/signeddb"
)

var bridgeCellChains = map[asset.ChainType]bool{
	asset.ChainBTC:  true,
	asset.ChainETH:  true,
	asset.ChainEOS:  true,
	asset.ChainTRON: true,
}

// verifyCkbCreateCell judges a transaction creating the bridge cells of new
// mirror assets.
func (s *SigServer) verifyCkbCreateCell(vctx *verifyContext, p *agreement.CkbCreateCellPayload) ([]*signeddb.SignedRecord, error) {
	if len(p.CreateAssets) == 0 {
		return nil, sigErrorf(CodeInvalidParams, "no create assets")
	}
	if err := s.verifySkeleton(p.TxSkeleton, vctx.rawHex); err != nil {
		return nil, err
	}

	bridgeLock := s.registry.BridgeLockTemplate()
	var bridgeCells []*ckb.Cell
	for i := range p.TxSkeleton.Outputs {
		out := &p.TxSkeleton.Outputs[i]
		if strings.EqualFold(out.CellOutput.Lock.CodeHash, bridgeLock.CodeHash) {
			bridgeCells = append(bridgeCells, out)
		}
	}
	if len(bridgeCells) != len(p.CreateAssets) {
		return nil, sigErrorf(CodeInvalidParams, "create bridge record length:%d doesn't match with:%d", len(bridgeCells), len(p.CreateAssets))
	}

	idents := make([]string, len(p.CreateAssets))
	for i, ca := range p.CreateAssets {
		chain := asset.ChainType(ca.Chain)
		if !bridgeCellChains[chain] {
			return nil, sigErrorf(CodeInvalidParams, "chain type:%d doesn't support", ca.Chain)
		}
		a, err := s.registry.Resolve(chain, ca.Asset)
		if err != nil {
			return nil, sigErrorf(CodeInvalidParams, "asset %s: %v", ca.Asset, err)
		}
		args, err := a.BridgeLockscriptArgs()
		if err != nil {
			return nil, fmt.Errorf("bridge lockscript args of %s: %w", ca.Asset, err)
		}

		out := bridgeCells[i]
		data, err := outputData(out)
		if err != nil || len(data) != 0 {
			return nil, sigErrorf(CodeInvalidRecord, "create bridge cell data:%s doesn't match with 0x, asset chain:%d address:%s", out.Data, ca.Chain, ca.Asset)
		}
		lock := &out.CellOutput.Lock
		if !strings.EqualFold(lock.Args, common.EncodeHex(args)) {
			return nil, sigErrorf(CodeInvalidRecord, "create bridge cell lockScript args:%s doesn't match with %s, asset chain:%d address:%s", lock.Args, common.EncodeHex(args), ca.Chain, ca.Asset)
		}
		if lock.HashType != bridgeLock.HashType {
			return nil, sigErrorf(CodeInvalidRecord, "create bridge cell lockScript hash_type:%s doesn't match with %s, asset chain:%d address:%s", lock.HashType, bridgeLock.HashType, ca.Chain, ca.Asset)
		}
		idents[i] = chain.String() + ":" + ca.Asset
	}

	// one summary row, keyed by the message itself
	return []*signeddb.SignedRecord{{
		SigType:        string(agreement.SigTypeCreateCell),
		Chain:          agreement.ChainCkb,
		Amount:         "0",
		Asset:          strings.Join(idents, ","),
		RefTxHash:      vctx.rawHex,
		InputOutPoints: p.TxSkeleton.InputOutPoints(),
	}}, nil
}
