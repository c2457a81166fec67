package sigserver

import (
	"context"
	"encoding/json"

	"github.com/TEENet-io/bridge-verifier/agreement"
	logger "github.com/sirupsen/logrus"
)

// PendingTx returns the last request this node signed for chain, unless its
// records were completed meanwhile or, on eth, its unlock nonce was consumed.
// Cardano is asked for as "cardano" or "ada".
func (s *SigServer) PendingTx(ctx context.Context, chain string) *SigResponse {
	payloadChain := chain
	switch chain {
	case agreement.ChainCkb, agreement.ChainEth:
	case agreement.ChainAda, cardanoChain:
		chain, payloadChain = cardanoChain, agreement.ChainAda
	default:
		return FromSigError(sigErrorf(CodeInvalidParams, "chain:%s doesn't support", chain))
	}
	raw, ok := s.pending.Get(chain)
	if !ok {
		return FromData(nil)
	}

	var req agreement.SignatureRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		logger.Errorf("failed to decode pending tx: chain=%s, err=%v", chain, err)
		return FromSigError(NewSigError(CodeUnknownError))
	}
	payload, err := agreement.DecodePayload(payloadChain, req.Payload)
	if err != nil {
		logger.Errorf("failed to decode pending payload: chain=%s, err=%v", chain, err)
		return FromSigError(NewSigError(CodeUnknownError))
	}

	if err := s.checkCompleted(chain, payload.SigType(), payload.RefIds()); err != nil {
		se := toSigError(err)
		if se.Code == CodeTxCompleted {
			return FromData(nil)
		}
		logger.Errorf("failed to check pending tx: chain=%s, err=%v", chain, err)
		return FromSigError(se)
	}

	if p, ok := payload.(*agreement.EthUnlockPayload); ok && s.eth != nil {
		nonce, err := s.eth.LatestUnlockNonce(ctx)
		if err != nil {
			logger.Errorf("failed to get latest unlock nonce: err=%v", err)
			return FromSigError(NewSigError(CodeUnknownError))
		}
		if !nonce.IsUint64() || nonce.Uint64() > p.Nonce {
			return FromData(nil)
		}
	}
	return FromData(raw)
}
