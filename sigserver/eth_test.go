package sigserver

import (
	"math/big"
	"testing"

	"github.com/TEENet-io/bridge-verifier/agreement"
	"github.com/TEENet-io/bridge-verifier/asset"
	"github.com/TEENet-io/bridge-verifier/common"
	"github.com/TEENet-io/bridge-verifier/etherman"
	"github.com/TEENet-io/bridge-verifier/multisig"
	"github.com/TEENet-io/bridge-verifier/state"
	"github.com/ethereum/go-ethereum/accounts"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ethUnlockCase is one ckb burn of an eth asset mirror and the unlock request
// serving it.
type ethUnlockCase struct {
	payload *agreement.EthUnlockPayload
}

func (e *testEnv) insertCkbBurn(id, token, amount, recipient string) {
	require.NoError(e.t, e.st.InsertBurn(&state.BurnRecord{
		Id:            id,
		Chain:         "ckb",
		XChain:        "eth",
		Asset:         token,
		Amount:        common.MustParseAmount(amount),
		Sender:        randCkbAddress(e.t),
		Recipient:     recipient,
		BlockNumber:   98,
		ConfirmStatus: state.ConfirmConfirmed,
	}))
}

func (e *testEnv) newEthUnlockCase(token, burnAmount, unlockAmount string, nonce uint64) *ethUnlockCase {
	id := common.RandHash32()
	recipient := common.RandEthAddress().Hex()
	e.insertCkbBurn(id, token, burnAmount, recipient)
	return &ethUnlockCase{payload: &agreement.EthUnlockPayload{
		DomainSeparator: common.RandHash32(),
		TypeHash:        common.RandHash32(),
		UnlockRecords: []agreement.EthUnlockRecord{{
			Token:     token,
			Recipient: recipient,
			Amount:    agreement.Quantity(unlockAmount),
			CkbTxHash: id,
		}},
		Nonce: nonce,
	}}
}

func (e *testEnv) unlockRecords(p *agreement.EthUnlockPayload) []etherman.UnlockRecord {
	records, _, err := toUnlockRecords(p.UnlockRecords)
	require.NoError(e.t, err)
	return records
}

func (e *testEnv) ethUnlockRequest(uc *ethUnlockCase) *agreement.SignatureRequest {
	domain, err := decodeHash32("domainSeparator", uc.payload.DomainSeparator)
	require.NoError(e.t, err)
	typeHash, err := decodeHash32("typeHash", uc.payload.TypeHash)
	require.NoError(e.t, err)
	rawData, err := etherman.BuildUnlockRawData(domain, typeHash, e.unlockRecords(uc.payload), uc.payload.Nonce)
	require.NoError(e.t, err)
	return &agreement.SignatureRequest{
		Chain:          agreement.ChainEth,
		RequestAddress: e.ethAddr,
		RawData:        common.EncodeHex(rawData[:]),
		Payload:        payloadJSON(e.t, agreement.SigTypeUnlock, uc.payload),
	}
}

func ethTokenWhiteList(token string) *envOptions {
	return &envOptions{whiteLists: map[asset.ChainType][]asset.WhiteListConfig{
		asset.ChainETH: {{Address: token, Symbol: "TKN", BridgeFeeOut: "1000"}},
	}}
}

func TestEthUnlock(t *testing.T) {
	token := common.RandEthAddress().Hex()
	env := newTestEnv(t, ethTokenWhiteList(token))

	uc := env.newEthUnlockCase(token, "100000", "99750", 0)
	req := env.ethUnlockRequest(uc)
	resp := env.srv.SignEthTx(env.ctx, req)
	env.requireCode(resp, CodeOk)

	sig, err := common.DecodeHex(common.Prepend0xPrefix(resp.Data.(string)))
	require.NoError(t, err)
	rawData, err := common.DecodeHex(req.RawData)
	require.NoError(t, err)
	signer, err := multisig.RecoverEthAddress(rawData, sig)
	require.NoError(t, err)
	assert.Equal(t, env.ethSigner.Address(), signer)

	rows, err := env.sdb.GetSignedByRawData(env.ethAddr, req.RawData)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].Nonce)
	assert.Equal(t, uint64(0), *rows[0].Nonce)

	tests := []struct {
		name   string
		mutate func(uc *ethUnlockCase)
		code   SigErrorCode
	}{
		{"above fee band", func(uc *ethUnlockCase) { uc.payload.UnlockRecords[0].Amount = "95000" }, CodeInvalidRecord},
		{"below fee band", func(uc *ethUnlockCase) { uc.payload.UnlockRecords[0].Amount = "99900" }, CodeInvalidRecord},
		{"other recipient", func(uc *ethUnlockCase) {
			uc.payload.UnlockRecords[0].Recipient = common.RandEthAddress().Hex()
		}, CodeInvalidRecord},
		{"unknown burn", func(uc *ethUnlockCase) { uc.payload.UnlockRecords[0].CkbTxHash = common.RandHash32() }, CodeTxNotFound},
		{"not white listed", func(uc *ethUnlockCase) {
			other := common.RandEthAddress().Hex()
			id := common.RandHash32()
			env.insertCkbBurn(id, other, "100000", uc.payload.UnlockRecords[0].Recipient)
			uc.payload.UnlockRecords[0].Token = other
			uc.payload.UnlockRecords[0].CkbTxHash = id
		}, CodeInvalidRecord},
		{"bad token", func(uc *ethUnlockCase) { uc.payload.UnlockRecords[0].Token = "0x1234" }, CodeInvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := env.newEthUnlockCase(token, "100000", "99000", 0)
			if tt.name == "bad token" {
				// rawData cannot be built from an invalid token
				req := env.ethUnlockRequest(uc)
				tt.mutate(uc)
				req.Payload = payloadJSON(t, agreement.SigTypeUnlock, uc.payload)
				env.requireCode(env.srv.SignEthTx(env.ctx, req), tt.code)
				return
			}
			tt.mutate(uc)
			env.requireCode(env.srv.SignEthTx(env.ctx, env.ethUnlockRequest(uc)), tt.code)
		})
	}

	// rawData of other records
	uc = env.newEthUnlockCase(token, "100000", "99000", 0)
	req = env.ethUnlockRequest(uc)
	uc.payload.UnlockRecords[0].Amount = "99001"
	req.Payload = payloadJSON(t, agreement.SigTypeUnlock, uc.payload)
	env.requireCode(env.srv.SignEthTx(env.ctx, req), CodeInvalidParams)
}

func TestEthUnlockBurnTarget(t *testing.T) {
	token := common.RandEthAddress().Hex()
	env := newTestEnv(t, ethTokenWhiteList(token))

	id := common.RandHash32()
	recipient := common.RandEthAddress().Hex()
	require.NoError(t, env.st.InsertBurn(&state.BurnRecord{
		Id:            id,
		Chain:         "ckb",
		XChain:        "btc",
		Asset:         token,
		Amount:        common.MustParseAmount("100000"),
		Recipient:     recipient,
		ConfirmStatus: state.ConfirmConfirmed,
	}))
	uc := &ethUnlockCase{payload: &agreement.EthUnlockPayload{
		DomainSeparator: common.RandHash32(),
		TypeHash:        common.RandHash32(),
		UnlockRecords: []agreement.EthUnlockRecord{{
			Token: token, Recipient: recipient, Amount: "99000", CkbTxHash: id,
		}},
	}}
	env.requireCode(env.srv.SignEthTx(env.ctx, env.ethUnlockRequest(uc)), CodeInvalidRecord)
}

func TestEthUnlockConfiguredDomain(t *testing.T) {
	token := common.RandEthAddress().Hex()
	env := newTestEnv(t, ethTokenWhiteList(token))
	env.cfg.DomainSeparator = common.RandHash32()

	uc := env.newEthUnlockCase(token, "100000", "99000", 0)
	env.requireCode(env.srv.SignEthTx(env.ctx, env.ethUnlockRequest(uc)), CodeInvalidParams)

	uc = env.newEthUnlockCase(token, "100000", "99000", 0)
	uc.payload.DomainSeparator = env.cfg.DomainSeparator
	env.requireCode(env.srv.SignEthTx(env.ctx, env.ethUnlockRequest(uc)), CodeOk)
}

func TestEthUnlockNonceRetry(t *testing.T) {
	token := common.RandEthAddress().Hex()
	env := newTestEnv(t, ethTokenWhiteList(token))

	uc := env.newEthUnlockCase(token, "100000", "99000", 3)
	first := env.ethUnlockRequest(uc)
	env.requireCode(env.srv.SignEthTx(env.ctx, first), CodeOk)

	// the same records at the same nonce with other wrapping: one tx at most
	same := *uc.payload
	same.DomainSeparator = common.RandHash32()
	env.requireCode(env.srv.SignEthTx(env.ctx, env.ethUnlockRequest(&ethUnlockCase{payload: &same})), CodeOk)

	retry := *uc.payload
	retry.Nonce = 4
	retryCase := &ethUnlockCase{payload: &retry}

	req := env.ethUnlockRequest(retryCase)
	env.requireCode(env.srv.SignEthTx(env.ctx, req), CodeDuplicateSign)

	failedHash := ethcommon.BytesToHash(common.RandBytes(32))
	req = env.ethUnlockRequest(retryCase)
	req.LastFailedTxHash = failedHash.Hex()
	env.requireCode(env.srv.SignEthTx(env.ctx, req), CodeDuplicateSign)

	records := env.unlockRecords(uc.payload)
	env.eth.txs[failedHash] = &etherman.UnlockTx{
		Input:  &etherman.UnlockInput{Records: records, Nonce: big.NewInt(3)},
		Failed: false,
	}
	env.requireCode(env.srv.SignEthTx(env.ctx, req), CodeDuplicateSign)

	// failed, but at another nonce
	env.eth.txs[failedHash] = &etherman.UnlockTx{
		Input:  &etherman.UnlockInput{Records: records, Nonce: big.NewInt(2)},
		Failed: true,
	}
	env.requireCode(env.srv.SignEthTx(env.ctx, req), CodeDuplicateSign)

	// failed, with other records
	otherRecords := env.unlockRecords(uc.payload)
	otherRecords[0].Amount = big.NewInt(1)
	env.eth.txs[failedHash] = &etherman.UnlockTx{
		Input:  &etherman.UnlockInput{Records: otherRecords, Nonce: big.NewInt(3)},
		Failed: true,
	}
	env.requireCode(env.srv.SignEthTx(env.ctx, req), CodeDuplicateSign)

	env.eth.txs[failedHash] = &etherman.UnlockTx{
		Input:  &etherman.UnlockInput{Records: records, Nonce: big.NewInt(3)},
		Failed: true,
	}
	env.requireCode(env.srv.SignEthTx(env.ctx, req), CodeOk)

	// once unlocked on eth nothing is signed any more
	require.NoError(t, env.st.InsertUnlock(&state.UnlockRecord{
		Id:        uc.payload.UnlockRecords[0].CkbTxHash,
		Chain:     "eth",
		Asset:     token,
		Amount:    common.MustParseAmount("99000"),
		Recipient: uc.payload.UnlockRecords[0].Recipient,
		TxHash:    common.RandHash32(),
	}))
	env.requireCode(env.srv.SignEthTx(env.ctx, req), CodeTxCompleted)
}

// ethMintCase is one ckb lock of a nervos asset and the Safe transaction
// minting its mirror on eth.
type ethMintCase struct {
	records []agreement.EthMintRecord
	calls   []etherman.MintRecord
	tx      *agreement.SafeTransaction
}

func (e *testEnv) insertCkbLock(id, assetId, amount, recipient string) {
	require.NoError(e.t, e.st.InsertLock(&state.LockRecord{
		Id:            id,
		Chain:         "ckb",
		Asset:         assetId,
		Amount:        common.MustParseAmount(amount),
		Sender:        randCkbAddress(e.t),
		Recipient:     recipient,
		BlockNumber:   97,
		ConfirmStatus: state.ConfirmConfirmed,
	}))
}

func (e *testEnv) newEthMintCase(lockAmount, mintAmount string) *ethMintCase {
	id := common.RandBytes32()
	to := common.RandEthAddress()
	e.insertCkbLock(common.EncodeHex(id[:]), asset.CkbNativeIdent, lockAmount, to.Hex())

	mc := &ethMintCase{
		records: []agreement.EthMintRecord{{
			LockId:  common.EncodeHex(id[:]),
			AssetId: asset.CkbNativeIdent,
			Amount:  agreement.Quantity(mintAmount),
			To:      to.Hex(),
		}},
		calls: []etherman.MintRecord{{
			To:     to,
			Amount: common.MustParseAmount(mintAmount).ToBig(),
			LockId: id,
		}},
	}
	mc.tx = &agreement.SafeTransaction{
		To:        e.cfg.AssetManagerAddress.Hex(),
		Value:     "0",
		SafeTxGas: "0",
		BaseGas:   "0",
		GasPrice:  "0",
		Nonce:     "7",
	}
	return mc
}

func (e *testEnv) ethMintRequest(mc *ethMintCase) *agreement.SignatureRequest {
	data, err := etherman.EncodeMintInput(mc.calls)
	require.NoError(e.t, err)
	mc.tx.Data = common.EncodeHex(data)
	tx, err := toSafeTx(mc.tx)
	require.NoError(e.t, err)
	hash, err := etherman.SafeTxHash(e.cfg.EthChainId, e.cfg.SafeAddress, tx)
	require.NoError(e.t, err)
	return &agreement.SignatureRequest{
		Chain:          agreement.ChainEth,
		RequestAddress: e.ethAddr,
		RawData:        common.EncodeHex(hash[:]),
		Payload: payloadJSON(e.t, agreement.SigTypeMint, &agreement.EthMintPayload{
			MintRecords: mc.records,
			Tx:          mc.tx,
		}),
	}
}

func TestEthMint(t *testing.T) {
	env := newTestEnv(t, nil)

	mc := env.newEthMintCase("5000", "5000")
	req := env.ethMintRequest(mc)
	resp := env.srv.SignEthTx(env.ctx, req)
	env.requireCode(resp, CodeOk)

	safeSig, ok := resp.Data.(*agreement.SafeSignature)
	require.True(t, ok)
	assert.Equal(t, env.ethAddr, safeSig.Signer)
	sig, err := common.DecodeHex(safeSig.Data)
	require.NoError(t, err)
	require.Len(t, sig, 65)
	require.Contains(t, []byte{31, 32}, sig[64])
	sig[64] -= 4
	hash, err := common.DecodeHex(req.RawData)
	require.NoError(t, err)
	signer, err := multisig.RecoverEthAddress(accounts.TextHash(hash), sig)
	require.NoError(t, err)
	assert.Equal(t, env.ethSigner.Address(), signer)

	// a replay carries the same owner signature
	again := env.srv.SignEthTx(env.ctx, env.ethMintRequest(mc))
	env.requireCode(again, CodeOk)
	assert.Equal(t, safeSig, again.Data)

	tests := []struct {
		name   string
		mutate func(mc *ethMintCase)
		code   SigErrorCode
	}{
		{"amount above lock", func(mc *ethMintCase) {
			mc.records[0].Amount = "5001"
			mc.calls[0].Amount = big.NewInt(5001)
		}, CodeInvalidRecord},
		{"call amount differs", func(mc *ethMintCase) { mc.calls[0].Amount = big.NewInt(4000) }, CodeInvalidRecord},
		{"call recipient differs", func(mc *ethMintCase) { mc.calls[0].To = common.RandEthAddress() }, CodeInvalidRecord},
		{"other lock recipient", func(mc *ethMintCase) {
			to := common.RandEthAddress()
			mc.records[0].To = to.Hex()
			mc.calls[0].To = to
		}, CodeInvalidRecord},
		{"call count differs", func(mc *ethMintCase) { mc.calls = append(mc.calls, mc.calls[0]) }, CodeInvalidParams},
		{"not the asset manager", func(mc *ethMintCase) { mc.tx.To = common.RandEthAddress().Hex() }, CodeInvalidParams},
		{"delegate call", func(mc *ethMintCase) { mc.tx.Operation = 1 }, CodeInvalidParams},
		{"unknown lock", func(mc *ethMintCase) {
			id := common.RandBytes32()
			mc.records[0].LockId = common.EncodeHex(id[:])
			mc.calls[0].LockId = id
		}, CodeTxNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mc := env.newEthMintCase("5000", "5000")
			tt.mutate(mc)
			env.requireCode(env.srv.SignEthTx(env.ctx, env.ethMintRequest(mc)), tt.code)
		})
	}

	// rawData of another safe nonce
	mc = env.newEthMintCase("5000", "5000")
	req = env.ethMintRequest(mc)
	mc.tx.Nonce = "8"
	req.Payload = payloadJSON(t, agreement.SigTypeMint, &agreement.EthMintPayload{MintRecords: mc.records, Tx: mc.tx})
	env.requireCode(env.srv.SignEthTx(env.ctx, req), CodeInvalidParams)

	// minted on eth
	mc = env.newEthMintCase("5000", "5000")
	req = env.ethMintRequest(mc)
	require.NoError(t, env.st.InsertMint(&state.MintRecord{
		Id:        mc.records[0].LockId,
		Chain:     "eth",
		Asset:     asset.CkbNativeIdent,
		Amount:    common.MustParseAmount("5000"),
		Recipient: mc.records[0].To,
		TxHash:    common.RandHash32(),
	}))
	env.requireCode(env.srv.SignEthTx(env.ctx, req), CodeTxCompleted)

	// ckb lagging blocks eth requests as well
	mc = env.newEthMintCase("5000", "5000")
	env.ckbOracle.tip.Store(200)
	env.requireCode(env.srv.SignEthTx(env.ctx, env.ethMintRequest(mc)), CodeBlockSyncUncompleted)
}
