package sigserver

import (
	"strings"

	"github.com/TEENet-io/bridge-verifier/agreement"
	"github.com/TEENet-io/bridge-verifier/asset"
	"github.com/TEENet-io/bridge-verifier/ckb"
	"github.com/TEENet-io/bridge-verifier/common"
	"github.com/holiman/uint256"
)

// verifySkeleton recomputes the signing entries of the skeleton and checks
// that rawData is the message of the multisig lock group.
func (s *SigServer) verifySkeleton(sk *ckb.TransactionSkeleton, rawHex string) error {
	if sk == nil {
		return sigErrorf(CodeInvalidParams, "missing txSkeleton")
	}
	entries, err := ckb.ComputeSigningEntries(sk, s.signableLock)
	if err != nil {
		return sigErrorf(CodeInvalidParams, "invalid txSkeleton: %v", err)
	}
	if len(entries) != len(sk.SigningEntries) {
		return sigErrorf(CodeInvalidParams, "invalid signingEntries size:%d", len(sk.SigningEntries))
	}
	if !ckb.SameSigningEntries(entries, sk.SigningEntries) {
		return sigErrorf(CodeInvalidParams, "signingEntries don't match with the skeleton")
	}

	for _, e := range entries {
		h, err := sk.Inputs[e.Index].CellOutput.Lock.Hash()
		if err != nil {
			return sigErrorf(CodeInvalidParams, "input %d lock: %v", e.Index, err)
		}
		if h != s.multisigLockHash {
			continue
		}
		if !strings.EqualFold(e.Message, rawHex) {
			return sigErrorf(CodeInvalidParams, "rawData:%s doesn't match with:%s", rawHex, e.Message)
		}
		return nil
	}
	return sigErrorf(CodeInvalidParams, "no multisig input in txSkeleton")
}

// verifyDuplicateCkbTx accepts an earlier signature for the same records only
// when both transactions spend a common input, so at most one can commit.
func (s *SigServer) verifyDuplicateCkbTx(vctx *verifyContext, sigType agreement.SigType, refIds []string, sk *ckb.TransactionSkeleton) error {
	signed, err := s.signed.GetSignedByRefTxHashes(vctx.pubKey, agreement.ChainCkb, string(sigType), refIds)
	if err != nil {
		return err
	}

	inputs := make(map[string]struct{}, len(sk.Inputs))
	for _, key := range sk.InputOutPoints() {
		inputs[strings.ToLower(key)] = struct{}{}
	}
	for _, r := range signed {
		if strings.EqualFold(r.RawData, vctx.rawHex) {
			continue
		}
		overlap := false
		for _, key := range r.InputOutPoints {
			if _, ok := inputs[strings.ToLower(key)]; ok {
				overlap = true
				break
			}
		}
		if !overlap {
			return sigErrorf(CodeDuplicateSign, "duplicate %s tx in %s", sigType, strings.Join(refIds, ","))
		}
	}
	return nil
}

func outputData(c *ckb.Cell) ([]byte, error) {
	if c.Data == "" {
		return []byte{}, nil
	}
	return common.DecodeHex(c.Data)
}

// compareScript reports the first field of got that differs from want.
func compareScript(what string, got, want *ckb.Script) error {
	if got == nil {
		return sigErrorf(CodeInvalidRecord, "%s is missing", what)
	}
	if !strings.EqualFold(got.CodeHash, want.CodeHash) {
		return sigErrorf(CodeInvalidRecord, "%s code_hash:%s doesn't match with:%s", what, got.CodeHash, want.CodeHash)
	}
	if got.HashType != want.HashType {
		return sigErrorf(CodeInvalidRecord, "%s hash_type:%s doesn't match with:%s", what, got.HashType, want.HashType)
	}
	if !strings.EqualFold(got.Args, want.Args) {
		return sigErrorf(CodeInvalidRecord, "%s args:%s doesn't match with:%s", what, got.Args, want.Args)
	}
	return nil
}

// sameCkbRecipient compares two CKB addresses by the lock they encode, so
// short, full and bech32m forms of one lock are equal.
func sameCkbRecipient(a, b string) bool {
	la, _, errA := ckb.ParseAddress(a)
	lb, _, errB := ckb.ParseAddress(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return la.Equal(lb)
}

func parseRecordAmount(id string, q agreement.Quantity) (*uint256.Int, error) {
	amount, err := common.ParseAmount(q.String())
	if err != nil {
		return nil, sigErrorf(CodeInvalidRecord, "record:%s invalid amount %s", id, q)
	}
	return amount, nil
}

// unlockFee is the configured bridge-out fee of a. Assets of an open white
// list carry no fee.
func unlockFee(a asset.Asset, amount *uint256.Int) (*uint256.Int, error) {
	if !a.InWhiteList(amount) {
		return nil, sigErrorf(CodeInvalidRecord, "asset:%s amount:%s not in white list", a.Ident(), amount.Dec())
	}
	fee, err := a.BridgeFee(asset.DirectionOut)
	if err != nil {
		return new(uint256.Int), nil
	}
	return fee, nil
}
