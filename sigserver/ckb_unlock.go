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

// verifyCkbUnlock judges the release, from the multisig cells, of CKB native
// assets whose mirrors were burnt on ETH.
func (s *SigServer) verifyCkbUnlock(vctx *verifyContext, p *agreement.CkbUnlockPayload) ([]*signeddb.SignedRecord, error) {
	if len(p.UnlockRecords) == 0 {
		return nil, sigErrorf(CodeInvalidParams, "no unlock records")
	}
	if err := s.verifySkeleton(p.TxSkeleton, vctx.rawHex); err != nil {
		return nil, err
	}

	// every output not going back to the multisig pays a record
	var unlockCells []*ckb.Cell
	for i := range p.TxSkeleton.Outputs {
		out := &p.TxSkeleton.Outputs[i]
		h, err := out.CellOutput.Lock.Hash()
		if err != nil {
			return nil, sigErrorf(CodeInvalidParams, "output %d lock: %v", i, err)
		}
		if h != s.multisigLockHash {
			unlockCells = append(unlockCells, out)
		}
	}
	if len(unlockCells) != len(p.UnlockRecords) {
		return nil, sigErrorf(CodeInvalidParams, "unlock record length:%d doesn't match with:%d", len(p.UnlockRecords), len(unlockCells))
	}

	amounts := make([]*uint256.Int, len(p.UnlockRecords))
	for i := range p.UnlockRecords {
		r := &p.UnlockRecords[i]
		if asset.ChainType(r.XChain) != asset.ChainETH {
			return nil, sigErrorf(CodeInvalidParams, "xchain type:%d doesn't support", r.XChain)
		}
		if r.BurnTxHash != "" && !strings.EqualFold(r.BurnTxHash, r.IdTxHash()) {
			return nil, sigErrorf(CodeInvalidParams, "record:%s burnTxHash:%s doesn't match with id", r.Id, r.BurnTxHash)
		}
		amount, err := s.verifyUnlockCell(r, unlockCells[i])
		if err != nil {
			return nil, err
		}
		amounts[i] = amount
	}

	if err := s.verifyEthBurns(p.UnlockRecords, amounts); err != nil {
		return nil, err
	}
	if err := s.verifyDuplicateCkbTx(vctx, agreement.SigTypeUnlock, p.RefIds(), p.TxSkeleton); err != nil {
		return nil, err
	}

	outPoints := p.TxSkeleton.InputOutPoints()
	records := make([]*signeddb.SignedRecord, len(p.UnlockRecords))
	for i, r := range p.UnlockRecords {
		records[i] = &signeddb.SignedRecord{
			SigType:        string(agreement.SigTypeUnlock),
			Chain:          agreement.ChainCkb,
			Amount:         amounts[i].Dec(),
			Receiver:       r.RecipientAddress,
			Asset:          r.AssetIdent,
			RefTxHash:      strings.ToLower(r.Id),
			InputOutPoints: outPoints,
		}
	}
	return records, nil
}

// verifyUnlockCell checks that out pays amount of r.AssetIdent to the
// recipient: as sudt when the asset is a token, as capacity for CKByte.
func (s *SigServer) verifyUnlockCell(r *agreement.CkbUnlockRecord, out *ckb.Cell) (*uint256.Int, error) {
	recipient, _, err := ckb.ParseAddress(r.RecipientAddress)
	if err != nil {
		return nil, sigErrorf(CodeInvalidRecord, "record:%s invalid recipientAddress:%s", r.Id, r.RecipientAddress)
	}
	if err := compareScript("lockScript", &out.CellOutput.Lock, recipient); err != nil {
		return nil, err
	}

	amount, err := parseRecordAmount(r.Id, r.Amount)
	if err != nil {
		return nil, err
	}
	a, err := s.registry.Resolve(asset.ChainCKB, r.AssetIdent)
	if err != nil {
		return nil, sigErrorf(CodeInvalidRecord, "record:%s asset:%s: %v", r.Id, r.AssetIdent, err)
	}
	nervos, ok := a.(*asset.NervosAsset)
	if !ok {
		return nil, fmt.Errorf("unexpected asset %T for ckb", a)
	}

	if out.CellOutput.Type == nil {
		if !nervos.IsCkb() {
			return nil, sigErrorf(CodeInvalidRecord, "record:%s asset:%s output has no typescript", r.Id, r.AssetIdent)
		}
		capacity, err := out.CellOutput.CapacityValue()
		if err != nil {
			return nil, sigErrorf(CodeInvalidRecord, "record:%s invalid capacity:%s", r.Id, out.CellOutput.Capacity)
		}
		if !amount.IsUint64() || capacity != amount.Uint64() {
			return nil, sigErrorf(CodeInvalidRecord, "capacity:%d doesn't match with %s", capacity, amount.Dec())
		}
		return amount, nil
	}

	if nervos.IsCkb() {
		return nil, sigErrorf(CodeInvalidRecord, "record:%s unlocks CKB but output has a typescript", r.Id)
	}
	typeHash, err := out.CellOutput.Type.HashHex()
	if err != nil {
		return nil, sigErrorf(CodeInvalidRecord, "record:%s typescript: %v", r.Id, err)
	}
	if !strings.EqualFold(typeHash, r.AssetIdent) {
		return nil, sigErrorf(CodeInvalidRecord, "typescript hash:%s doesn't match with:%s", typeHash, r.AssetIdent)
	}
	if !common.FitsU128(amount) {
		return nil, sigErrorf(CodeInvalidRecord, "record:%s amount %s exceeds u128", r.Id, r.Amount)
	}
	data, err := outputData(out)
	if err != nil {
		return nil, sigErrorf(CodeInvalidRecord, "record:%s invalid output data:%s", r.Id, out.Data)
	}
	want := common.U128LE(amount)
	if !bytes.Equal(data, want) {
		return nil, sigErrorf(CodeInvalidRecord, "data:%s doesn't match with %s", out.Data, common.EncodeHex(want))
	}
	return amount, nil
}

// verifyEthBurns cross-checks the records against the burns of nervos asset
// mirrors seen on ETH.
func (s *SigServer) verifyEthBurns(records []agreement.CkbUnlockRecord, amounts []*uint256.Int) error {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.Id
	}
	burns, err := s.records.GetBurnsByIds(asset.ChainETH.String(), ids)
	if err != nil {
		return fmt.Errorf("get eth burns: %w", err)
	}
	byId := make(map[string]*state.BurnRecord, len(burns))
	for _, b := range burns {
		byId[strings.ToLower(b.Id)] = b
	}

	for i := range records {
		r := &records[i]
		burn, ok := byId[strings.ToLower(r.Id)]
		if !ok {
			return sigErrorf(CodeTxNotFound, "cannot find eth burn tx by id:%s", r.Id)
		}
		if burn.ConfirmStatus != state.ConfirmConfirmed {
			return sigErrorf(CodeTxUnconfirmed, "eth burn tx:%s isn't confirmed", r.Id)
		}
		if burn.XChain != agreement.ChainCkb {
			return sigErrorf(CodeInvalidRecord, "eth burn tx:%s targets %s", r.Id, burn.XChain)
		}
		if !strings.EqualFold(burn.Asset, r.AssetIdent) {
			return sigErrorf(CodeInvalidRecord, "eth burn tx:%s asset:%s != %s", r.Id, r.AssetIdent, burn.Asset)
		}
		if !sameCkbRecipient(r.RecipientAddress, burn.Recipient) {
			return sigErrorf(CodeInvalidRecord, "eth burn tx:%s recipientAddress:%s != %s", r.Id, r.RecipientAddress, burn.Recipient)
		}

		a, err := s.registry.Resolve(asset.ChainCKB, r.AssetIdent)
		if err != nil {
			return sigErrorf(CodeInvalidRecord, "eth burn tx:%s asset:%s: %v", r.Id, r.AssetIdent, err)
		}
		fee, err := unlockFee(a, burn.Amount)
		if err != nil {
			return err
		}
		if !common.WithinFeeBand(burn.Amount, amounts[i], fee) {
			return sigErrorf(CodeInvalidRecord, "eth burn tx:%s unlock amount %s out of fee band, burn amount %s fee %s", r.Id, amounts[i].Dec(), burn.Amount.Dec(), fee.Dec())
		}
	}
	return nil
}
