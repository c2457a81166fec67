package sigserver

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/TEENet-io/bridge-verifier/agreement"
	"github.com/TEENet-io/bridge-verifier/asset"
	"github.com/TEENet-io/bridge-verifier/ckb"
	"github.com/TEENet-io/bridge-verifier/common"
	"github.com/TEENet-io/bridge-verifier/signeddb"
	"github.com/TEENet-io/bridge-verifier/state"
	"github.com/holiman/uint256"
)

// structuralOnly lists the origin chains whose mint records are only counted
// against the skeleton; their events are verified outside this node.
var structuralOnly = map[asset.ChainType]bool{
	asset.ChainBTC:  true,
	asset.ChainEOS:  true,
	asset.ChainTRON: true,
}

// verifyCkbMint judges a mint of mirror tokens on CKB for assets locked on
// another chain.
func (s *SigServer) verifyCkbMint(vctx *verifyContext, p *agreement.CkbMintPayload) ([]*signeddb.SignedRecord, error) {
	if len(p.MintRecords) == 0 {
		return nil, sigErrorf(CodeInvalidParams, "no mint records")
	}
	if err := s.verifySkeleton(p.TxSkeleton, vctx.rawHex); err != nil {
		return nil, err
	}

	// outputs running the sUDT code are the minted tokens. Other typed cells
	// may only go back to the multisig.
	sudt := s.registry.SudtTemplate()
	var mintCells []*ckb.Cell
	for i := range p.TxSkeleton.Outputs {
		out := &p.TxSkeleton.Outputs[i]
		if out.CellOutput.Type == nil {
			continue
		}
		if sudt.Matches(out.CellOutput.Type) {
			mintCells = append(mintCells, out)
			continue
		}
		h, err := out.CellOutput.Lock.Hash()
		if err != nil {
			return nil, sigErrorf(CodeInvalidParams, "output %d lock: %v", i, err)
		}
		if h != s.multisigLockHash {
			return nil, sigErrorf(CodeInvalidRecord, "output %d typescript:%s is not a sudt", i, out.CellOutput.Type.CodeHash)
		}
	}
	if len(mintCells) != len(p.MintRecords) {
		return nil, sigErrorf(CodeInvalidParams, "mint record length:%d doesn't match with:%d", len(p.MintRecords), len(mintCells))
	}

	amounts := make([]*uint256.Int, len(p.MintRecords))
	var ethRecords []int
	for i, r := range p.MintRecords {
		chain := asset.ChainType(r.Chain)
		switch {
		case structuralOnly[chain]:
			continue
		case chain == asset.ChainETH:
		default:
			return nil, sigErrorf(CodeInvalidParams, "chain type:%d doesn't support", r.Chain)
		}
		amount, err := s.verifyMintCell(&r, mintCells[i])
		if err != nil {
			return nil, err
		}
		amounts[i] = amount
		ethRecords = append(ethRecords, i)
	}

	if err := s.verifyEthLocks(p.MintRecords, ethRecords, amounts); err != nil {
		return nil, err
	}
	if err := s.verifyDuplicateCkbTx(vctx, agreement.SigTypeMint, p.RefIds(), p.TxSkeleton); err != nil {
		return nil, err
	}

	outPoints := p.TxSkeleton.InputOutPoints()
	records := make([]*signeddb.SignedRecord, len(p.MintRecords))
	for i, r := range p.MintRecords {
		records[i] = &signeddb.SignedRecord{
			SigType:        string(agreement.SigTypeMint),
			Chain:          agreement.ChainCkb,
			Amount:         r.Amount.String(),
			Receiver:       r.RecipientLockscript,
			Asset:          r.Asset,
			RefTxHash:      strings.ToLower(r.Id),
			InputOutPoints: outPoints,
		}
	}
	return records, nil
}

// verifyMintCell checks that out mints amount of the mirror of r.Asset to
// the recipient of r.
func (s *SigServer) verifyMintCell(r *agreement.CkbMintRecord, out *ckb.Cell) (*uint256.Int, error) {
	recipient, _, err := ckb.ParseAddress(r.RecipientLockscript)
	if err != nil {
		return nil, sigErrorf(CodeInvalidRecord, "record:%s invalid recipientLockscript:%s", r.Id, r.RecipientLockscript)
	}
	if err := compareScript("lockScript", &out.CellOutput.Lock, recipient); err != nil {
		return nil, err
	}

	a, err := s.registry.Resolve(asset.ChainType(r.Chain), r.Asset)
	if err != nil {
		return nil, sigErrorf(CodeInvalidRecord, "record:%s asset:%s: %v", r.Id, r.Asset, err)
	}
	sudt, err := s.registry.SudtTypeScript(a)
	if err != nil {
		return nil, fmt.Errorf("sudt type script of %s: %w", r.Asset, err)
	}
	if err := compareScript("typescript", out.CellOutput.Type, sudt); err != nil {
		return nil, err
	}

	amount, err := parseRecordAmount(r.Id, r.Amount)
	if err != nil {
		return nil, err
	}
	if !common.FitsU128(amount) {
		return nil, sigErrorf(CodeInvalidRecord, "record:%s amount %s exceeds u128", r.Id, r.Amount)
	}
	data, err := outputData(out)
	if err != nil {
		return nil, sigErrorf(CodeInvalidRecord, "record:%s invalid output data:%s", r.Id, out.Data)
	}
	want := common.U128LE(amount)
	if r.SudtExtraData != "" {
		extra, err := common.DecodeHex(r.SudtExtraData)
		if err != nil {
			return nil, sigErrorf(CodeInvalidRecord, "record:%s invalid sudtExtraData:%s", r.Id, r.SudtExtraData)
		}
		want = append(want, extra...)
	}
	if !bytes.Equal(data, want) {
		return nil, sigErrorf(CodeInvalidRecord, "data:%s doesn't match with %s", out.Data, common.EncodeHex(want))
	}
	return amount, nil
}

// verifyEthLocks cross-checks the mint records at idx against the confirmed
// lock events of the ETH watcher.
func (s *SigServer) verifyEthLocks(records []agreement.CkbMintRecord, idx []int, amounts []*uint256.Int) error {
	if len(idx) == 0 {
		return nil
	}
	ids := make([]string, len(idx))
	for i, j := range idx {
		ids[i] = records[j].Id
	}
	locks, err := s.records.GetLocksByIds(asset.ChainETH.String(), ids)
	if err != nil {
		return fmt.Errorf("get eth locks: %w", err)
	}
	byId := make(map[string]*state.LockRecord, len(locks))
	for _, l := range locks {
		byId[strings.ToLower(l.Id)] = l
	}

	for _, j := range idx {
		r := &records[j]
		lock, ok := byId[strings.ToLower(r.Id)]
		if !ok {
			return sigErrorf(CodeTxNotFound, "cannot find eth lock tx by id:%s", r.Id)
		}
		if lock.ConfirmStatus != state.ConfirmConfirmed {
			return sigErrorf(CodeTxUnconfirmed, "eth lock tx:%s isn't confirmed", r.Id)
		}
		if !sameCkbRecipient(r.RecipientLockscript, lock.Recipient) {
			return sigErrorf(CodeInvalidRecord, "eth lock tx:%s recipientLockscript:%s != %s", r.Id, r.RecipientLockscript, lock.Recipient)
		}
		if !common.SameEthAddress(r.Asset, lock.Asset) {
			return sigErrorf(CodeInvalidRecord, "eth lock tx:%s asset:%s != %s", r.Id, r.Asset, lock.Asset)
		}
		if amounts[j].Gt(lock.Amount) {
			return sigErrorf(CodeInvalidRecord, "invalid mint amount %s, greater than lock amount %s", amounts[j].Dec(), lock.Amount.Dec())
		}
		a, err := s.registry.Resolve(asset.ChainETH, r.Asset)
		if err != nil {
			return sigErrorf(CodeInvalidRecord, "eth lock tx:%s asset:%s: %v", r.Id, r.Asset, err)
		}
		if !a.InWhiteList(lock.Amount) {
			return sigErrorf(CodeInvalidRecord, "eth lock tx:%s asset:%s amount:%s not in white list", r.Id, r.Asset, lock.Amount.Dec())
		}
	}
	return nil
}
