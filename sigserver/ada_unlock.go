package sigserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/TEENet-io/bridge-verifier/agreement"
	"github.com/TEENet-io/bridge-verifier/asset"
	"github.com/TEENet-io/bridge-verifier/cardano"
	"github.com/TEENet-io/bridge-verifier/common"
	"github.com/TEENet-io/bridge-verifier/signeddb"
	"github.com/TEENet-io/bridge-verifier/state"
	"github.com/holiman/uint256"
	logger "github.com/sirupsen/logrus"
)

// AdaTTLLimit is how many slots past the cardano tip an unlock may stay
// valid.
const AdaTTLLimit = 1000

// cardanoChain names cardano in the record store, the sync guard and the
// pending tracker. Requests use agreement.ChainAda.
var cardanoChain = asset.ChainCARDANO.String()

func (s *SigServer) SignAdaTx(ctx context.Context, req *agreement.SignatureRequest) *SigResponse {
	return s.Sign(ctx, agreement.ChainAda, req)
}

// signAda judges a cardano unlock. rawData is the CBOR transaction body and
// the signature is a vkey witness over its hash.
func (s *SigServer) signAda(ctx context.Context, log *logger.Entry, req *agreement.SignatureRequest, p *agreement.AdaUnlockPayload) (interface{}, error) {
	rawData, err := common.DecodeHex(common.Prepend0xPrefix(req.RawData))
	if err != nil || len(rawData) == 0 {
		return nil, sigErrorf(CodeInvalidParams, "invalid rawData")
	}
	body, err := cardano.DecodeTxBody(rawData)
	if err != nil {
		return nil, sigErrorf(CodeInvalidParams, "cannot deserialize txBody: %v", err)
	}
	txHash := body.Hash()
	dbKey, err := body.HashBech32()
	if err != nil {
		return nil, fmt.Errorf("encode tx hash: %w", err)
	}
	log = log.WithField("adaTxHash", dbKey)

	if err := s.verifyCollector(rawData, req.CollectorSig); err != nil {
		return nil, err
	}

	signer, err := s.signer(agreement.ChainAda, req.RequestAddress)
	if err != nil {
		log.Debugf("key lookup failed: err=%v", err)
		return nil, sigErrorf(CodeInvalidParams, "cannot find key by address:%s", req.RequestAddress)
	}

	if err := s.checkBlockSync(ctx, cardanoChain, p); err != nil {
		return nil, err
	}

	refIds := p.RefIds()
	if len(common.Unique(refIds)) != len(refIds) {
		return nil, sigErrorf(CodeInvalidParams, "duplicate ckbTxHash in %s", strings.Join(refIds, ","))
	}
	if err := s.checkCompleted(cardanoChain, p.SigType(), refIds); err != nil {
		return nil, err
	}

	sig, ok, err := s.signed.GetSignatureByRawData(signer.PubKey(), dbKey)
	if err != nil {
		return nil, fmt.Errorf("lookup signed tx: %w", err)
	}
	if ok {
		log.Info("tx already signed, returning the stored signature")
		return sig, nil
	}

	records, err := s.verifyAdaUnlock(ctx, p, body)
	if err != nil {
		return nil, err
	}

	witness, err := signer.Sign(txHash[:])
	if err != nil {
		return nil, fmt.Errorf("sign tx hash: %w", err)
	}
	for _, r := range records {
		r.PubKey = signer.PubKey()
		r.RawData = dbKey
		r.Signature = common.ByteSliceToPureHexStr(witness)
	}
	stored, inserted, err := s.signed.SaveSigned(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("save signed records: %w", err)
	}
	if inserted {
		signaturesTotal.WithLabelValues(agreement.ChainAda).Inc()
		log.Infof("signed %d record(s)", len(records))
	}

	if err := s.pending.Set(cardanoChain, req); err != nil {
		log.Warnf("failed to set pending tx: err=%v", err)
	}
	return stored, nil
}

func (s *SigServer) verifyAdaUnlock(ctx context.Context, p *agreement.AdaUnlockPayload, body *cardano.TxBody) ([]*signeddb.SignedRecord, error) {
	if len(p.UnlockRecords) == 0 {
		return nil, sigErrorf(CodeInvalidParams, "no unlock records")
	}

	amounts := make([]*uint256.Int, len(p.UnlockRecords))
	for i, r := range p.UnlockRecords {
		amount, err := parseRecordAmount(r.CkbTxHash, r.Amount)
		if err != nil {
			return nil, err
		}
		amounts[i] = amount
	}
	if err := s.verifyCkbBurnsToAda(p.UnlockRecords, amounts); err != nil {
		return nil, err
	}

	tip, err := s.cardanoTip(ctx)
	if err != nil {
		return nil, err
	}
	if body.TTL == nil || *body.TTL > tip+AdaTTLLimit {
		return nil, sigErrorf(CodeInvalidParams, "tx ttl must be set and within %d slots of tip %d", AdaTTLLimit, tip)
	}

	records := make([]*signeddb.SignedRecord, len(p.UnlockRecords))
	for i, r := range p.UnlockRecords {
		records[i] = &signeddb.SignedRecord{
			SigType:   string(agreement.SigTypeUnlock),
			Chain:     cardanoChain,
			Amount:    amounts[i].Dec(),
			Receiver:  r.RecipientAddress,
			Asset:     r.Asset,
			RefTxHash: strings.ToLower(r.CkbTxHash),
		}
	}
	return records, nil
}

// verifyCkbBurnsToAda cross-checks the records against the confirmed CKB
// burns targeting cardano. A record may release less than was burnt.
func (s *SigServer) verifyCkbBurnsToAda(records []agreement.AdaUnlockRecord, amounts []*uint256.Int) error {
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

	for i, r := range records {
		burn, ok := byId[strings.ToLower(r.CkbTxHash)]
		if !ok {
			return sigErrorf(CodeTxNotFound, "cannot find ckb burn record by ckbTxHash:%s", r.CkbTxHash)
		}
		if burn.ConfirmStatus != state.ConfirmConfirmed {
			return sigErrorf(CodeTxUnconfirmed, "burn tx:%s isn't confirmed", r.CkbTxHash)
		}
		if burn.XChain != cardanoChain {
			return sigErrorf(CodeInvalidRecord, "burn tx:%s targets %s", r.CkbTxHash, burn.XChain)
		}
		if !strings.EqualFold(burn.Asset, r.Asset) {
			return sigErrorf(CodeInvalidRecord, "burn tx:%s asset:%s != %s", r.CkbTxHash, r.Asset, burn.Asset)
		}
		if amounts[i].Gt(burn.Amount) {
			return sigErrorf(CodeInvalidRecord, "invalid unlock amount: %s, greater than burn amount %s", amounts[i].Dec(), burn.Amount.Dec())
		}
		if burn.Recipient != r.RecipientAddress {
			return sigErrorf(CodeInvalidRecord, "burn tx:%s recipientAddress:%s != %s", r.CkbTxHash, r.RecipientAddress, burn.Recipient)
		}
	}
	return nil
}

// cardanoTip is the slot ttl is judged against: the oracle's tip when one is
// configured, else the last handled block.
func (s *SigServer) cardanoTip(ctx context.Context) (uint64, error) {
	if s.syncGuard != nil {
		status, err := s.syncGuard.Check(ctx, cardanoChain)
		if err != nil {
			return 0, fmt.Errorf("check %s block sync: %w", cardanoChain, err)
		}
		if status.Tip > 0 {
			return status.Tip, nil
		}
	}
	hb, ok, err := s.records.GetHandledBlock(cardanoChain)
	if err != nil {
		return 0, fmt.Errorf("get %s handled block: %w", cardanoChain, err)
	}
	if !ok {
		return 0, nil
	}
	return hb.Height, nil
}
