package sigserver

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/TEENet-io/bridge-verifier/agreement"
	"github.com/TEENet-io/bridge-verifier/asset"
	"github.com/TEENet-io/bridge-verifier/chainsync"
	"github.com/TEENet-io/bridge-verifier/ckb"
	"github.com/TEENet-io/bridge-verifier/common"
	"github.com/TEENet-io/bridge-verifier/database"
	"github.com/TEENet-io/bridge-verifier/etherman"
	"github.com/TEENet-io/bridge-verifier/keystore"
	"github.com/TEENet-io/bridge-verifier/logconfig"
	"github.com/TEENet-io/bridge-verifier/multisig"
	"github.com/TEENet-io/bridge-verifier/pendingtx"
	"github.com/TEENet-io/bridge-verifier/signeddb"
	"github.com/TEENet-io/bridge-verifier/state"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

type tipOracle struct {
	tip atomic.Uint64
}

func (o *tipOracle) TipHeight(ctx context.Context) (uint64, error) {
	return o.tip.Load(), nil
}

type fakeEthReader struct {
	mu    sync.Mutex
	txs   map[ethcommon.Hash]*etherman.UnlockTx
	nonce *big.Int
}

func (r *fakeEthReader) GetUnlockTx(ctx context.Context, txHash ethcommon.Hash) (*etherman.UnlockTx, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.txs[txHash]
	return tx, ok, nil
}

func (r *fakeEthReader) LatestUnlockNonce(ctx context.Context) (*big.Int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return new(big.Int).Set(r.nonce), nil
}

type envOptions struct {
	whiteLists map[asset.ChainType][]asset.WhiteListConfig
	collectors []string
}

type testEnv struct {
	t   *testing.T
	ctx context.Context

	srv      *SigServer
	cfg      *Config
	st       *state.StateDB
	sdb      *signeddb.SignedDB
	pending  *pendingtx.Tracker
	registry *asset.Registry
	eth      *fakeEthReader

	ckbOracle *tipOracle
	ethOracle *tipOracle
	adaOracle *tipOracle

	ckbSigner *multisig.CkbSigner
	ckbAddr   string
	ethSigner *multisig.EthSigner
	ethAddr   string
	adaSigner *multisig.AdaSigner
}

func randPrivKey() string {
	return common.RandHash32()
}

func newTestEnv(t *testing.T, opts *envOptions) *testEnv {
	logconfig.ConfigDebugLogger()
	if opts == nil {
		opts = &envOptions{}
	}

	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	st, err := state.NewStateDB(db)
	require.NoError(t, err)
	sdb, err := signeddb.NewSignedDB(db)
	require.NoError(t, err)

	ckbKey, ethKey := randPrivKey(), randPrivKey()
	adaKey := common.EncodeHex(common.RandBytes(64))
	keys, err := keystore.NewStore([]keystore.KeyEntry{
		{Chain: "ckb", PrivKey: ckbKey},
		{Chain: "eth", PrivKey: ethKey},
		{Chain: "ada", PrivKey: adaKey},
	})
	require.NoError(t, err)
	ckbSigner, err := multisig.NewCkbSigner(ckbKey)
	require.NoError(t, err)
	ckbAddr, err := ckbSigner.Address(ckb.Testnet)
	require.NoError(t, err)
	ethSigner, err := multisig.NewEthSigner(ethKey)
	require.NoError(t, err)
	adaSigner, err := multisig.NewAdaSigner(adaKey)
	require.NoError(t, err)

	owner := common.RandBytes32()
	registry, err := asset.NewRegistry(&asset.RegistryConfig{
		OwnerCellTypeHash: common.EncodeHex(owner[:]),
		BridgeLock:        ckb.ScriptTemplate{CodeHash: common.RandHash32(), HashType: ckb.HashTypeType},
		SudtType:          ckb.ScriptTemplate{CodeHash: common.RandHash32(), HashType: ckb.HashTypeType},
		WhiteLists:        opts.whiteLists,
	})
	require.NoError(t, err)

	cfg := &Config{
		Network: ckb.Testnet,
		MultisigLockscript: &ckb.Script{
			CodeHash: ckb.MultisigCodeHash,
			HashType: ckb.HashTypeType,
			Args:     common.EncodeHex(common.RandBytes(20)),
		},
		EthChainId:            big.NewInt(5),
		SafeAddress:           common.RandEthAddress(),
		AssetManagerAddress:   common.RandEthAddress(),
		CollectorPubKeyHashes: opts.collectors,
	}

	// every chain starts fully synced
	ckbOracle, ethOracle, adaOracle := &tipOracle{}, &tipOracle{}, &tipOracle{}
	for chain, o := range map[string]*tipOracle{"ckb": ckbOracle, "eth": ethOracle, "cardano": adaOracle} {
		o.tip.Store(100)
		require.NoError(t, st.SetHandledBlock(chain, 100, common.RandHash32()))
	}
	guard := chainsync.NewSyncChecker(st, time.Second, map[string]*chainsync.ChainConfig{
		"ckb":     {Oracle: ckbOracle, Threshold: 20},
		"eth":     {Oracle: ethOracle, Threshold: 20},
		"cardano": {Oracle: adaOracle, Threshold: 30},
	})

	eth := &fakeEthReader{txs: make(map[ethcommon.Hash]*etherman.UnlockTx), nonce: big.NewInt(0)}
	pending := pendingtx.NewTracker()
	srv, err := New(cfg, registry, &Backends{
		Records: st,
		Signed:  sdb,
		Keys:    keys,
		Pending: pending,
		Sync:    guard,
		Eth:     eth,
	})
	require.NoError(t, err)

	return &testEnv{
		t:         t,
		ctx:       context.Background(),
		srv:       srv,
		cfg:       cfg,
		st:        st,
		sdb:       sdb,
		pending:   pending,
		registry:  registry,
		eth:       eth,
		ckbOracle: ckbOracle,
		ethOracle: ethOracle,
		adaOracle: adaOracle,
		ckbSigner: ckbSigner,
		ckbAddr:   ckbAddr,
		ethSigner: ethSigner,
		ethAddr:   ethSigner.PubKey(),
		adaSigner: adaSigner,
	}
}

func payloadJSON(t *testing.T, sigType agreement.SigType, p interface{}) json.RawMessage {
	b, err := json.Marshal(p)
	require.NoError(t, err)
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &m))
	m["sigType"] = sigType
	b, err = json.Marshal(m)
	require.NoError(t, err)
	return b
}

func randCkbAddress(t *testing.T) string {
	addr, err := ckb.EncodeAddress(ckb.Secp256k1Lock(common.RandBytes(20)), ckb.Testnet)
	require.NoError(t, err)
	return addr
}

func capacity(v uint64) string {
	return fmt.Sprintf("0x%x", v)
}

func randOutPoint() *ckb.OutPoint {
	return &ckb.OutPoint{TxHash: common.RandHash32(), Index: "0x0"}
}

func (e *testEnv) multisigInput() ckb.Cell {
	return ckb.Cell{
		CellOutput: ckb.CellOutput{Capacity: capacity(1000_00000000), Lock: *e.cfg.MultisigLockscript},
		Data:       "0x",
		OutPoint:   randOutPoint(),
	}
}

func (e *testEnv) multisigChange(c uint64) ckb.Cell {
	return ckb.Cell{
		CellOutput: ckb.CellOutput{Capacity: capacity(c), Lock: *e.cfg.MultisigLockscript},
		Data:       "0x",
	}
}

// seal adds one witness per input, fills in the signing entries and returns
// the message of the multisig group.
func (e *testEnv) seal(sk *ckb.TransactionSkeleton) string {
	placeholder := (&ckb.WitnessArgs{Lock: make([]byte, 85)}).Serialize()
	sk.Witnesses = make([]string, len(sk.Inputs))
	for i := range sk.Witnesses {
		sk.Witnesses[i] = common.EncodeHex(placeholder)
	}
	entries, err := ckb.ComputeSigningEntries(sk, e.srv.signableLock)
	require.NoError(e.t, err)
	sk.SigningEntries = entries

	lockHash, err := e.cfg.MultisigLockscript.Hash()
	require.NoError(e.t, err)
	for _, entry := range entries {
		h, err := sk.Inputs[entry.Index].CellOutput.Lock.Hash()
		require.NoError(e.t, err)
		if h == lockHash {
			return entry.Message
		}
	}
	e.t.Fatal("no multisig entry")
	return ""
}

func (e *testEnv) ethAsset(token string) asset.Asset {
	a, err := e.registry.Resolve(asset.ChainETH, token)
	require.NoError(e.t, err)
	return a
}

func (e *testEnv) sudtOutput(token, recipient, amount string) ckb.Cell {
	lock, _, err := ckb.ParseAddress(recipient)
	require.NoError(e.t, err)
	sudt, err := e.registry.SudtTypeScript(e.ethAsset(token))
	require.NoError(e.t, err)
	return ckb.Cell{
		CellOutput: ckb.CellOutput{Capacity: capacity(142_00000000), Lock: *lock, Type: sudt},
		Data:       common.EncodeHex(common.U128LE(common.MustParseAmount(amount))),
	}
}

func (e *testEnv) insertEthLock(id, token, amount, recipient string, status state.ConfirmStatus) {
	require.NoError(e.t, e.st.InsertLock(&state.LockRecord{
		Id:            id,
		Chain:         "eth",
		Asset:         token,
		Amount:        common.MustParseAmount(amount),
		Sender:        common.RandEthAddress().Hex(),
		Recipient:     recipient,
		BlockNumber:   90,
		ConfirmStatus: status,
	}))
}

// mintCase is one eth lock and the CKB mint request serving it.
type mintCase struct {
	id        string
	token     string
	recipient string
	records   []agreement.CkbMintRecord
	sk        *ckb.TransactionSkeleton
}

func (e *testEnv) newMintCase(lockAmount, mintAmount string) *mintCase {
	mc := &mintCase{
		id:        common.RandHash32(),
		token:     common.RandEthAddress().Hex(),
		recipient: randCkbAddress(e.t),
	}
	e.insertEthLock(mc.id, mc.token, lockAmount, mc.recipient, state.ConfirmConfirmed)
	mc.records = []agreement.CkbMintRecord{{
		Id:                  mc.id,
		Chain:               uint8(asset.ChainETH),
		Asset:               mc.token,
		Amount:              agreement.Quantity(mintAmount),
		RecipientLockscript: mc.recipient,
	}}
	mc.sk = &ckb.TransactionSkeleton{
		Inputs:  []ckb.Cell{e.multisigInput()},
		Outputs: []ckb.Cell{e.sudtOutput(mc.token, mc.recipient, mintAmount), e.multisigChange(800_00000000)},
	}
	return mc
}

func (e *testEnv) mintRequest(mc *mintCase) *agreement.SignatureRequest {
	rawData := e.seal(mc.sk)
	return &agreement.SignatureRequest{
		Chain:          agreement.ChainCkb,
		RequestAddress: e.ckbAddr,
		RawData:        rawData,
		Payload: payloadJSON(e.t, agreement.SigTypeMint, &agreement.CkbMintPayload{
			MintRecords: mc.records,
			TxSkeleton:  mc.sk,
		}),
	}
}

func (e *testEnv) requireCode(resp *SigResponse, code SigErrorCode) {
	e.t.Helper()
	require.Equal(e.t, code, resp.Error.Code, resp.Error.Message)
}
