package sigserver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/TEENet-io/bridge-verifier/agreement"
	"github.com/TEENet-io/bridge-verifier/asset"
	"github.com/TEENet-io/bridge-verifier/ckb"
	"github.com/TEENet-io/bridge-verifier/common"
	"github.com/TEENet-io/bridge-verifier/keystore"
	"github.com/TEENet-io/bridge-verifier/multisig"
	"github.com/TEENet-io/bridge-verifier/signeddb"
	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"
)

var ErrMissingBackend = errors.New("missing sigserver backend")

// Backends are the collaborators of the SigServer. Sync and Eth are
// optional: without Sync no block sync guard runs, without Eth unlock retries
// at a new nonce cannot be proven and are refused.
type Backends struct {
	Records RecordStore
	Signed  SignedStore
	Keys    keystore.KeyLookup
	Pending PendingStore
	Sync    SyncGuard
	Eth     EthChainReader
}

// SigServer judges the transactions collectors propose and co-signs the
// faithful ones.
type SigServer struct {
	cfg      *Config
	registry *asset.Registry

	records   RecordStore
	signed    SignedStore
	keys      keystore.KeyLookup
	pending   PendingStore
	syncGuard SyncGuard
	eth       EthChainReader

	multisigLockHash [32]byte
	signable         []ckb.ScriptTemplate
	collectors       map[string]struct{}

	// chain/address -> multisig.Signer
	signers sync.Map
}

func New(cfg *Config, registry *asset.Registry, b *Backends) (*SigServer, error) {
	if b == nil || b.Records == nil || b.Signed == nil || b.Keys == nil || b.Pending == nil {
		return nil, ErrMissingBackend
	}
	if cfg.MultisigLockscript == nil {
		return nil, errors.New("no multisig lockscript configured")
	}
	lockHash, err := cfg.MultisigLockscript.Hash()
	if err != nil {
		return nil, fmt.Errorf("multisig lockscript: %w", err)
	}

	signable := []ckb.ScriptTemplate{
		{CodeHash: ckb.Secp256k1Blake160CodeHash, HashType: ckb.HashTypeType},
		{CodeHash: ckb.MultisigCodeHash, HashType: ckb.HashTypeType},
		{CodeHash: cfg.MultisigLockscript.CodeHash, HashType: cfg.MultisigLockscript.HashType},
	}
	signable = append(signable, cfg.SignableLocks...)

	collectors := make(map[string]struct{}, len(cfg.CollectorPubKeyHashes))
	for _, h := range cfg.CollectorPubKeyHashes {
		b, err := common.DecodeHex(h)
		if err != nil || len(b) != 20 {
			return nil, fmt.Errorf("invalid collector pubkey hash %q", h)
		}
		collectors[common.EncodeHex(b)] = struct{}{}
	}

	return &SigServer{
		cfg:              cfg,
		registry:         registry,
		records:          b.Records,
		signed:           b.Signed,
		keys:             b.Keys,
		pending:          b.Pending,
		syncGuard:        b.Sync,
		eth:              b.Eth,
		multisigLockHash: lockHash,
		signable:         signable,
		collectors:       collectors,
	}, nil
}

func (s *SigServer) signableLock(lock *ckb.Script) bool {
	for _, t := range s.signable {
		if t.Matches(lock) {
			return true
		}
	}
	return false
}

func (s *SigServer) SignCkbTx(ctx context.Context, req *agreement.SignatureRequest) *SigResponse {
	return s.Sign(ctx, agreement.ChainCkb, req)
}

func (s *SigServer) SignEthTx(ctx context.Context, req *agreement.SignatureRequest) *SigResponse {
	return s.Sign(ctx, agreement.ChainEth, req)
}

// Sign judges req for the destination chain and returns the signature of
// this node, or the reason it refuses.
func (s *SigServer) Sign(ctx context.Context, chain string, req *agreement.SignatureRequest) *SigResponse {
	start := time.Now()
	if req.Chain == "" {
		req.Chain = chain
	}
	log := logger.WithFields(logger.Fields{
		"reqId":   uuid.NewString(),
		"chain":   chain,
		"rawData": common.Shorten(req.RawData, 8),
	})

	sigType := "unknown"
	data, err := func() (interface{}, error) {
		if req.Chain != chain {
			return nil, sigErrorf(CodeInvalidParams, "chain:%s doesn't match with %s", req.Chain, chain)
		}
		payload, err := agreement.DecodePayload(chain, req.Payload)
		if err != nil {
			return nil, sigErrorf(CodeInvalidParams, "%v", err)
		}
		sigType = string(payload.SigType())
		log = log.WithField("sigType", sigType)
		if p, ok := payload.(*agreement.AdaUnlockPayload); ok {
			return s.signAda(ctx, log, req, p)
		}
		return s.sign(ctx, log, req, payload)
	}()

	se := toSigError(err)
	if se.Code == CodeUnknownError {
		log.Errorf("failed to handle signature request: err=%v", err)
	} else if !se.IsOk() {
		log.Warnf("signature request refused: %v", se)
	}
	requestsTotal.WithLabelValues(chain, sigType, se.Code.String()).Inc()
	requestDuration.WithLabelValues(chain, sigType).Observe(time.Since(start).Seconds())

	if !se.IsOk() {
		return FromSigError(se)
	}
	return FromData(data)
}

func (s *SigServer) sign(ctx context.Context, log *logger.Entry, req *agreement.SignatureRequest, payload agreement.Payload) (interface{}, error) {
	rawData, err := common.DecodeHex(req.RawData)
	if err != nil || len(rawData) != 32 {
		return nil, sigErrorf(CodeInvalidParams, "invalid rawData:%s", req.RawData)
	}
	rawHex := common.EncodeHex(rawData)

	if err := s.verifyCollector(rawData, req.CollectorSig); err != nil {
		return nil, err
	}

	signer, err := s.signer(req.Chain, req.RequestAddress)
	if err != nil {
		log.Debugf("key lookup failed: err=%v", err)
		return nil, sigErrorf(CodeInvalidParams, "cannot find key by address:%s", req.RequestAddress)
	}

	if err := s.checkBlockSync(ctx, req.Chain, payload); err != nil {
		return nil, err
	}

	refIds := payload.RefIds()
	if len(common.Unique(refIds)) != len(refIds) {
		return nil, sigErrorf(CodeInvalidParams, "duplicate record id in %s", strings.Join(refIds, ","))
	}
	if err := s.checkCompleted(req.Chain, payload.SigType(), refIds); err != nil {
		return nil, err
	}

	sig, ok, err := s.signed.GetSignatureByRawData(signer.PubKey(), rawHex)
	if err != nil {
		return nil, fmt.Errorf("lookup signed rawData: %w", err)
	}
	if ok {
		log.Info("rawData already signed, returning the stored signature")
		return s.responseData(payload, signer, sig), nil
	}

	vctx := &verifyContext{
		ctx:     ctx,
		req:     req,
		rawData: rawData,
		rawHex:  rawHex,
		pubKey:  signer.PubKey(),
	}
	var records []*signeddb.SignedRecord
	switch p := payload.(type) {
	case *agreement.CkbMintPayload:
		records, err = s.verifyCkbMint(vctx, p)
	case *agreement.CkbCreateCellPayload:
		records, err = s.verifyCkbCreateCell(vctx, p)
	case *agreement.CkbUnlockPayload:
		records, err = s.verifyCkbUnlock(vctx, p)
	case *agreement.EthUnlockPayload:
		records, err = s.verifyEthUnlock(vctx, p)
	case *agreement.EthMintPayload:
		records, err = s.verifyEthMint(vctx, p)
	default:
		err = sigErrorf(CodeInvalidParams, "invalid sigType:%s", payload.SigType())
	}
	if err != nil {
		return nil, err
	}

	sigBytes, err := s.produceSignature(payload, signer, rawData)
	if err != nil {
		return nil, fmt.Errorf("sign rawData: %w", err)
	}
	for _, r := range records {
		r.PubKey = signer.PubKey()
		r.RawData = rawHex
		r.Signature = common.ByteSliceToPureHexStr(sigBytes)
	}

	stored, inserted, err := s.signed.SaveSigned(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("save signed records: %w", err)
	}
	if inserted {
		signaturesTotal.WithLabelValues(req.Chain).Inc()
		log.Infof("signed %d record(s)", len(records))
	} else {
		log.Info("a concurrent request signed rawData first")
	}

	if payload.SigType() != agreement.SigTypeCreateCell {
		if err := s.pending.Set(req.Chain, req); err != nil {
			log.Warnf("failed to set pending tx: err=%v", err)
		}
	}
	return s.responseData(payload, signer, stored), nil
}

func (s *SigServer) signer(chain, address string) (multisig.Signer, error) {
	cacheKey := chain + "/" + strings.ToLower(address)
	if v, ok := s.signers.Load(cacheKey); ok {
		return v.(multisig.Signer), nil
	}

	privKey, err := s.keys.Key(chain, address)
	if err != nil {
		return nil, err
	}
	var signer multisig.Signer
	switch chain {
	case agreement.ChainCkb:
		signer, err = multisig.NewCkbSigner(privKey)
	case agreement.ChainEth:
		signer, err = multisig.NewEthSigner(privKey)
	case agreement.ChainAda:
		signer, err = multisig.NewAdaSigner(privKey)
	default:
		err = keystore.ErrUnsupportedChain
	}
	if err != nil {
		return nil, err
	}
	s.signers.Store(cacheKey, signer)
	return signer, nil
}

func (s *SigServer) produceSignature(payload agreement.Payload, signer multisig.Signer, rawData []byte) ([]byte, error) {
	if _, ok := payload.(*agreement.EthMintPayload); ok {
		ethSigner, ok := signer.(*multisig.EthSigner)
		if !ok {
			return nil, fmt.Errorf("unexpected signer %T for a safe transaction", signer)
		}
		return ethSigner.SignSafeTxHash(rawData)
	}
	return signer.Sign(rawData)
}

// responseData shapes a stored signature for the collector: a bare hex
// string, or a Safe owner signature for eth mints.
func (s *SigServer) responseData(payload agreement.Payload, signer multisig.Signer, sig string) interface{} {
	if _, ok := payload.(*agreement.EthMintPayload); ok {
		return &agreement.SafeSignature{
			Signer: signer.PubKey(),
			Data:   common.Prepend0xPrefix(sig),
		}
	}
	return sig
}

// checkCompleted refuses requests whose source events were already served on
// the destination chain, whatever their rawData.
func (s *SigServer) checkCompleted(chain string, sigType agreement.SigType, refIds []string) error {
	if len(refIds) == 0 {
		return nil
	}
	var n int
	switch sigType {
	case agreement.SigTypeMint:
		mints, err := s.records.GetMintsByIds(chain, refIds)
		if err != nil {
			return fmt.Errorf("get mints: %w", err)
		}
		n = len(mints)
	case agreement.SigTypeUnlock:
		unlocks, err := s.records.GetUnlocksByIds(chain, refIds)
		if err != nil {
			return fmt.Errorf("get unlocks: %w", err)
		}
		n = len(unlocks)
	}
	if n > 0 {
		return sigErrorf(CodeTxCompleted, "%d of %s already completed on %s", n, strings.Join(refIds, ","), chain)
	}
	return nil
}

// syncChains lists the chains whose observation must be recent: the
// destination and the origins of the records.
func syncChains(chain string, payload agreement.Payload) []string {
	chains := []string{chain}
	switch p := payload.(type) {
	case *agreement.CkbMintPayload:
		for _, r := range p.MintRecords {
			chains = append(chains, asset.ChainType(r.Chain).String())
		}
	case *agreement.CkbUnlockPayload:
		for _, r := range p.UnlockRecords {
			chains = append(chains, asset.ChainType(r.XChain).String())
		}
	case *agreement.EthUnlockPayload, *agreement.EthMintPayload, *agreement.AdaUnlockPayload:
		chains = append(chains, agreement.ChainCkb)
	}
	return common.Unique(chains)
}

func (s *SigServer) checkBlockSync(ctx context.Context, chain string, payload agreement.Payload) error {
	if s.syncGuard == nil {
		return nil
	}
	for _, c := range syncChains(chain, payload) {
		status, err := s.syncGuard.Check(ctx, c)
		if err != nil {
			return fmt.Errorf("check %s block sync: %w", c, err)
		}
		if !status.Synced {
			return sigErrorf(CodeBlockSyncUncompleted, "%s handled height %d lags tip %d", c, status.Handled, status.Tip)
		}
	}
	return nil
}

// verifyCollector checks that collectorSig signs ckbhash(rawData) with one of
// the configured collector keys.
func (s *SigServer) verifyCollector(rawData []byte, collectorSig string) error {
	if len(s.collectors) == 0 {
		return nil
	}
	sig, err := common.DecodeHex(collectorSig)
	if err != nil || len(sig) != 65 {
		return NewSigError(CodeInvalidCollector)
	}
	message := ckb.CkbHash(rawData)
	pkh, err := multisig.RecoverCkbPubKeyHash(message[:], sig)
	if err != nil {
		return NewSigError(CodeInvalidCollector)
	}
	if _, ok := s.collectors[common.EncodeHex(pkh)]; !ok {
		return NewSigError(CodeInvalidCollector)
	}
	return nil
}

type verifyContext struct {
	ctx     context.Context
	req     *agreement.SignatureRequest
	rawData []byte
	rawHex  string
	pubKey  string
}
