package sigserver

import (
	"bytes"
	"fmt"
	"math/big"
	"strings"

	"github.com/TEENet-io/bridge-verifier/agreement"
	"github.com/TEENet-io/bridge-verifier/asset"
	"github.com/TEENet-io/bridge-verifier/common"
	"github.com/TEENet-io/bridge-verifier/etherman"
	"github.com/TEENet-io/bridge-verifier/signeddb"
	"github.com/TEENet-io/bridge-verifier/state"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

func quantityToBig(name string, q agreement.Quantity) (*big.Int, error) {
	if q == "" {
		return new(big.Int), nil
	}
	v, err := common.ParseAmount(q.String())
	if err != nil {
		return nil, sigErrorf(CodeInvalidParams, "invalid %s:%s", name, q)
	}
	return v.ToBig(), nil
}

func optionalEthAddress(name, s string) (ethcommon.Address, error) {
	if s == "" {
		return ethcommon.Address{}, nil
	}
	return decodeEthAddress(name, s)
}

func toSafeTx(t *agreement.SafeTransaction) (*etherman.SafeTx, error) {
	to, err := decodeEthAddress("to", t.To)
	if err != nil {
		return nil, err
	}
	data, err := common.DecodeHex(t.Data)
	if err != nil {
		return nil, sigErrorf(CodeInvalidParams, "invalid data:%s", t.Data)
	}
	tx := &etherman.SafeTx{To: to, Data: data, Operation: t.Operation}
	for _, f := range []struct {
		name string
		q    agreement.Quantity
		dst  **big.Int
	}{
		{"value", t.Value, &tx.Value},
		{"safeTxGas", t.SafeTxGas, &tx.SafeTxGas},
		{"baseGas", t.BaseGas, &tx.BaseGas},
		{"gasPrice", t.GasPrice, &tx.GasPrice},
		{"nonce", t.Nonce, &tx.Nonce},
	} {
		if *f.dst, err = quantityToBig(f.name, f.q); err != nil {
			return nil, err
		}
	}
	if tx.GasToken, err = optionalEthAddress("gasToken", t.GasToken); err != nil {
		return nil, err
	}
	if tx.RefundReceiver, err = optionalEthAddress("refundReceiver", t.RefundReceiver); err != nil {
		return nil, err
	}
	return tx, nil
}

// verifyEthMint judges a Safe transaction minting on ETH the mirrors of CKB
// native assets locked on CKB.
func (s *SigServer) verifyEthMint(vctx *verifyContext, p *agreement.EthMintPayload) ([]*signeddb.SignedRecord, error) {
	if len(p.MintRecords) == 0 {
		return nil, sigErrorf(CodeInvalidParams, "no mint records")
	}
	if p.Tx == nil {
		return nil, sigErrorf(CodeInvalidParams, "missing safe tx")
	}
	tx, err := toSafeTx(p.Tx)
	if err != nil {
		return nil, err
	}
	txHash, err := etherman.SafeTxHash(s.cfg.EthChainId, s.cfg.SafeAddress, tx)
	if err != nil {
		return nil, sigErrorf(CodeInvalidParams, "safe tx hash: %v", err)
	}
	if !bytes.Equal(txHash[:], vctx.rawData) {
		return nil, sigErrorf(CodeInvalidParams, "rawData:%s doesn't match with:%s", vctx.rawHex, common.EncodeHex(txHash[:]))
	}
	if tx.To != s.cfg.AssetManagerAddress {
		return nil, sigErrorf(CodeInvalidParams, "safe tx to:%s isn't the asset manager %s", tx.To.Hex(), s.cfg.AssetManagerAddress.Hex())
	}
	if tx.Operation != 0 || tx.Value.Sign() != 0 {
		return nil, sigErrorf(CodeInvalidParams, "safe tx must be a plain call")
	}

	input, err := etherman.DecodeMintInput(tx.Data)
	if err != nil {
		return nil, sigErrorf(CodeInvalidParams, "decode mint input: %v", err)
	}
	if len(input.Records) != len(p.MintRecords) {
		return nil, sigErrorf(CodeInvalidParams, "mint record length:%d doesn't match with:%d", len(p.MintRecords), len(input.Records))
	}

	amounts := make([]*uint256.Int, len(p.MintRecords))
	for i := range p.MintRecords {
		amount, err := verifyMintCall(&p.MintRecords[i], &input.Records[i])
		if err != nil {
			return nil, err
		}
		amounts[i] = amount
	}

	if err := s.verifyCkbLocks(p.MintRecords, amounts); err != nil {
		return nil, err
	}

	records := make([]*signeddb.SignedRecord, len(p.MintRecords))
	for i, r := range p.MintRecords {
		records[i] = &signeddb.SignedRecord{
			SigType:   string(agreement.SigTypeMint),
			Chain:     agreement.ChainEth,
			Amount:    amounts[i].Dec(),
			Receiver:  r.To,
			Asset:     r.AssetId,
			RefTxHash: strings.ToLower(r.LockId),
		}
	}
	return records, nil
}

// verifyMintCall checks that the decoded mint call argument is the claim.
func verifyMintCall(r *agreement.EthMintRecord, call *etherman.MintRecord) (*uint256.Int, error) {
	amount, err := parseRecordAmount(r.LockId, r.Amount)
	if err != nil {
		return nil, err
	}
	lockId, err := common.DecodeHex(r.LockId)
	if err != nil || !bytes.Equal(lockId, call.LockId[:]) {
		return nil, sigErrorf(CodeInvalidRecord, "lockId:%s doesn't match with %s", r.LockId, common.EncodeHex(call.LockId[:]))
	}
	assetId, err := common.DecodeHex(r.AssetId)
	if err != nil || !bytes.Equal(assetId, call.AssetId[:]) {
		return nil, sigErrorf(CodeInvalidRecord, "record:%s assetId:%s doesn't match with %s", r.LockId, r.AssetId, common.EncodeHex(call.AssetId[:]))
	}
	if !common.SameEthAddress(r.To, call.To.Hex()) {
		return nil, sigErrorf(CodeInvalidRecord, "record:%s to:%s doesn't match with %s", r.LockId, r.To, call.To.Hex())
	}
	if call.Amount == nil || amount.ToBig().Cmp(call.Amount) != 0 {
		return nil, sigErrorf(CodeInvalidRecord, "record:%s amount:%s doesn't match with %v", r.LockId, amount.Dec(), call.Amount)
	}
	return amount, nil
}

// verifyCkbLocks cross-checks the records against the locks of nervos
// assets seen on CKB.
func (s *SigServer) verifyCkbLocks(records []agreement.EthMintRecord, amounts []*uint256.Int) error {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.LockId
	}
	locks, err := s.records.GetLocksByIds(agreement.ChainCkb, ids)
	if err != nil {
		return fmt.Errorf("get ckb locks: %w", err)
	}
	byId := make(map[string]*state.LockRecord, len(locks))
	for _, l := range locks {
		byId[strings.ToLower(l.Id)] = l
	}

	for i := range records {
		r := &records[i]
		lock, ok := byId[strings.ToLower(r.LockId)]
		if !ok {
			return sigErrorf(CodeTxNotFound, "cannot find ckb lock record by ckbTxHash:%s", r.LockId)
		}
		if lock.ConfirmStatus != state.ConfirmConfirmed {
			return sigErrorf(CodeTxUnconfirmed, "ckb lock tx:%s isn't confirmed", r.LockId)
		}
		if !strings.EqualFold(lock.Asset, r.AssetId) {
			return sigErrorf(CodeInvalidRecord, "lockTx:%s asset:%s != %s", r.LockId, r.AssetId, lock.Asset)
		}
		if amounts[i].Gt(lock.Amount) {
			return sigErrorf(CodeInvalidRecord, "invalid mint amount: %s, greater than lock amount: %s", amounts[i].Dec(), lock.Amount.Dec())
		}
		if !common.SameEthAddress(lock.Recipient, r.To) {
			return sigErrorf(CodeInvalidRecord, "lockTx:%s recipientAddress:%s != %s", r.LockId, r.To, lock.Recipient)
		}
		a, err := s.registry.Resolve(asset.ChainCKB, r.AssetId)
		if err != nil {
			return sigErrorf(CodeInvalidRecord, "lockTx:%s asset:%s: %v", r.LockId, r.AssetId, err)
		}
		if !a.InWhiteList(lock.Amount) {
			return sigErrorf(CodeInvalidRecord, "lockTx:%s asset:%s amount:%s not in white list", r.LockId, r.AssetId, lock.Amount.Dec())
		}
	}
	return nil
}
