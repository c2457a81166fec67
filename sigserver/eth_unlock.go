package sigserver

import (
	"bytes"
	"errors"
	"fmt"
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

func decodeHash32(name, s string) ([32]byte, error) {
	var h [32]byte
	b, err := common.DecodeHex(s)
	if err != nil || len(b) != 32 {
		return h, sigErrorf(CodeInvalidParams, "invalid %s:%s", name, s)
	}
	copy(h[:], b)
	return h, nil
}

func decodeEthAddress(name, s string) (ethcommon.Address, error) {
	if !ethcommon.IsHexAddress(s) {
		return ethcommon.Address{}, sigErrorf(CodeInvalidParams, "invalid %s:%s", name, s)
	}
	return ethcommon.HexToAddress(s), nil
}

// toUnlockRecords converts the claimed records to the contract struct.
func toUnlockRecords(records []agreement.EthUnlockRecord) ([]etherman.UnlockRecord, []*uint256.Int, error) {
	out := make([]etherman.UnlockRecord, len(records))
	amounts := make([]*uint256.Int, len(records))
	for i, r := range records {
		token, err := decodeEthAddress("token", r.Token)
		if err != nil {
			return nil, nil, err
		}
		recipient, err := decodeEthAddress("recipient", r.Recipient)
		if err != nil {
			return nil, nil, err
		}
		amount, err := common.ParseAmount(r.Amount.String())
		if err != nil {
			return nil, nil, sigErrorf(CodeInvalidParams, "invalid amount:%s", r.Amount)
		}
		ckbTxHash, err := decodeHash32("ckbTxHash", r.CkbTxHash)
		if err != nil {
			return nil, nil, err
		}
		out[i] = etherman.UnlockRecord{
			Token:     token,
			Recipient: recipient,
			Amount:    amount.ToBig(),
			CkbTxHash: ckbTxHash[:],
		}
		amounts[i] = amount
	}
	return out, amounts, nil
}

// verifyEthUnlock judges an unlock on the ETH bridge contract of assets
// whose mirrors were burnt on CKB.
func (s *SigServer) verifyEthUnlock(vctx *verifyContext, p *agreement.EthUnlockPayload) ([]*signeddb.SignedRecord, error) {
	if len(p.UnlockRecords) == 0 {
		return nil, sigErrorf(CodeInvalidParams, "no unlock records")
	}
	domain, err := decodeHash32("domainSeparator", p.DomainSeparator)
	if err != nil {
		return nil, err
	}
	typeHash, err := decodeHash32("typeHash", p.TypeHash)
	if err != nil {
		return nil, err
	}
	if s.cfg.DomainSeparator != "" && !strings.EqualFold(common.EncodeHex(domain[:]), s.cfg.DomainSeparator) {
		return nil, sigErrorf(CodeInvalidParams, "domainSeparator:%s doesn't match with %s", p.DomainSeparator, s.cfg.DomainSeparator)
	}
	if s.cfg.UnlockTypeHash != "" && !strings.EqualFold(common.EncodeHex(typeHash[:]), s.cfg.UnlockTypeHash) {
		return nil, sigErrorf(CodeInvalidParams, "typeHash:%s doesn't match with %s", p.TypeHash, s.cfg.UnlockTypeHash)
	}

	records, amounts, err := toUnlockRecords(p.UnlockRecords)
	if err != nil {
		return nil, err
	}
	rawData, err := etherman.BuildUnlockRawData(domain, typeHash, records, p.Nonce)
	if err != nil {
		return nil, sigErrorf(CodeInvalidParams, "build unlock rawData: %v", err)
	}
	if !bytes.Equal(rawData[:], vctx.rawData) {
		return nil, sigErrorf(CodeInvalidParams, "rawData:%s doesn't match with:%s", vctx.rawHex, common.EncodeHex(rawData[:]))
	}

	if err := s.verifyCkbBurns(p.UnlockRecords, amounts); err != nil {
		return nil, err
	}
	if err := s.verifyDuplicateEthUnlock(vctx, p, records); err != nil {
		return nil, err
	}

	nonce := p.Nonce
	signed := make([]*signeddb.SignedRecord, len(p.UnlockRecords))
	for i, r := range p.UnlockRecords {
		signed[i] = &signeddb.SignedRecord{
			SigType:   string(agreement.SigTypeUnlock),
			Chain:     agreement.ChainEth,
			Amount:    amounts[i].Dec(),
			Receiver:  r.Recipient,
			Asset:     r.Token,
			RefTxHash: strings.ToLower(r.CkbTxHash),
			Nonce:     &nonce,
		}
	}
	return signed, nil
}

// verifyCkbBurns cross-checks the records against the confirmed burns of
// ETH asset mirrors on CKB.
func (s *SigServer) verifyCkbBurns(records []agreement.EthUnlockRecord, amounts []*uint256.Int) error {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.CkbTxHash
	}
	burns, err := s.records.GetBurnsByIds(agreement.ChainCkb, ids)
	if err != nil {
		return fmt.Errorf("get ckb burns: %w", err)
	}
	byId := make(map[string]*state.BurnRecord, len(burns))
	for _, b := range burns {
		byId[strings.ToLower(b.Id)] = b
	}

	for i := range records {
		r := &records[i]
		burn, ok := byId[strings.ToLower(r.CkbTxHash)]
		if !ok {
			return sigErrorf(CodeTxNotFound, "cannot find ckb burn record by ckbTxHash:%s", r.CkbTxHash)
		}
		if burn.ConfirmStatus != state.ConfirmConfirmed {
			return sigErrorf(CodeTxUnconfirmed, "burn tx:%s isn't confirmed", r.CkbTxHash)
		}
		if burn.XChain != agreement.ChainEth {
			return sigErrorf(CodeInvalidRecord, "burn tx:%s targets %s", r.CkbTxHash, burn.XChain)
		}
		if !common.SameEthAddress(burn.Asset, r.Token) {
			return sigErrorf(CodeInvalidRecord, "burn tx:%s asset:%s != %s", r.CkbTxHash, r.Token, burn.Asset)
		}
		if !common.SameEthAddress(burn.Recipient, r.Recipient) {
			return sigErrorf(CodeInvalidRecord, "burn tx:%s recipientAddress:%s != %s", r.CkbTxHash, r.Recipient, burn.Recipient)
		}

		a, err := s.registry.Resolve(asset.ChainETH, r.Token)
		if err != nil {
			return sigErrorf(CodeInvalidRecord, "burn tx:%s asset:%s: %v", r.CkbTxHash, r.Token, err)
		}
		fee, err := unlockFee(a, burn.Amount)
		if err != nil {
			return err
		}
		if !common.WithinFeeBand(burn.Amount, amounts[i], fee) {
			return sigErrorf(CodeInvalidRecord, "burn tx:%s unlock amount %s out of fee band, burn amount %s fee %s", r.CkbTxHash, amounts[i].Dec(), burn.Amount.Dec(), fee.Dec())
		}
	}
	return nil
}

// verifyDuplicateEthUnlock allows signing the same records again at another
// nonce only after the transaction at the previous nonce provably failed.
func (s *SigServer) verifyDuplicateEthUnlock(vctx *verifyContext, p *agreement.EthUnlockPayload, records []etherman.UnlockRecord) error {
	refIds := p.RefIds()
	lastNonce, ok, err := s.signed.GetMaxNonceByRefTxHashes(vctx.pubKey, agreement.ChainEth, refIds)
	if err != nil {
		return err
	}
	if !ok || lastNonce == p.Nonce {
		// same nonce: only one of the transactions can succeed
		return nil
	}

	failedTxHash := vctx.req.LastFailedTxHash
	if failedTxHash == "" {
		return sigErrorf(CodeDuplicateSign, "miss lastFailedTxHash with duplicate refTxHash")
	}
	if s.eth == nil {
		return sigErrorf(CodeDuplicateSign, "cannot verify lastFailedTxHash:%s without an eth client", failedTxHash)
	}
	hash, err := decodeHash32("lastFailedTxHash", failedTxHash)
	if err != nil {
		return err
	}
	tx, found, err := s.eth.GetUnlockTx(vctx.ctx, hash)
	if err != nil {
		if errors.Is(err, etherman.ErrWrongContract) || errors.Is(err, etherman.ErrUnexpectedInput) || errors.Is(err, etherman.ErrShortCalldata) {
			return sigErrorf(CodeDuplicateSign, "lastFailedTx:%s is not a bridge unlock", failedTxHash)
		}
		return fmt.Errorf("get last failed tx: %w", err)
	}
	if !found {
		return sigErrorf(CodeDuplicateSign, "cannot find tx receipt by lastFailedTxHash:%s", failedTxHash)
	}
	if !tx.Failed {
		return sigErrorf(CodeDuplicateSign, "lastTxHash:%s executed successfully", failedTxHash)
	}
	if !tx.Input.Nonce.IsUint64() || tx.Input.Nonce.Uint64() != lastNonce {
		return sigErrorf(CodeDuplicateSign, "nonce:%s of last failed tx doesn't match with:%d", tx.Input.Nonce, lastNonce)
	}
	if !sameUnlockRecords(tx.Input.Records, records) {
		return sigErrorf(CodeDuplicateSign, "payload doesn't match with lastFailedTx:%s", failedTxHash)
	}
	return nil
}

func sameUnlockRecords(a, b []etherman.UnlockRecord) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Token != b[i].Token ||
			a[i].Recipient != b[i].Recipient ||
			a[i].Amount.Cmp(b[i].Amount) != 0 ||
			!bytes.Equal(a[i].CkbTxHash, b[i].CkbTxHash) {
			return false
		}
	}
	return true
}
