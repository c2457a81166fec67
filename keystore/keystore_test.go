package keystore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/TEENet-io/bridge-verifier/ckb"
	"github.com/TEENet-io/bridge-verifier/common"
	"github.com/TEENet-io/bridge-verifier/multisig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randKey() string {
	k := common.RandBytes32()
	return common.EncodeHex(k[:])
}

func TestStore(t *testing.T) {
	ckbKey, ethKey := randKey(), randKey()
	ckbSigner, err := multisig.NewCkbSigner(ckbKey)
	require.NoError(t, err)
	ethSigner, err := multisig.NewEthSigner(ethKey)
	require.NoError(t, err)

	store, err := NewStore([]KeyEntry{
		{Chain: "ckb", PrivKey: ckbKey},
		{Chain: "eth", PrivKey: ethKey},
	})
	require.NoError(t, err)

	// any address format of the same lock resolves
	short, err := ckb.EncodeShortAddress(ckb.CodeIndexSecp256k1, ckbSigner.PubKeyHash(), ckb.Testnet)
	require.NoError(t, err)
	full, err := ckbSigner.Address(ckb.Mainnet)
	require.NoError(t, err)
	for _, addr := range []string{short, full} {
		got, err := store.Key("ckb", addr)
		require.NoError(t, err)
		assert.Equal(t, ckbKey, got)
	}

	got, err := store.Key("eth", ethSigner.Address().Hex())
	require.NoError(t, err)
	assert.Equal(t, ethKey, got)

	_, err = store.Key("eth", common.RandEthAddress().Hex())
	assert.ErrorIs(t, err, ErrKeyNotFound)
	_, err = store.Key("btc", "whatever")
	assert.ErrorIs(t, err, ErrKeyNotFound)
	_, err = store.Key("ckb", "garbage")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	assert.Len(t, store.Addresses("eth"), 1)

	_, err = NewStore([]KeyEntry{{Chain: "eth", PrivKey: ethKey, Address: common.RandEthAddress().Hex()}})
	assert.ErrorIs(t, err, ErrAddressMismatch)
	_, err = NewStore([]KeyEntry{{Chain: "tron", PrivKey: ethKey}})
	assert.ErrorIs(t, err, ErrUnsupportedChain)
}

func TestStoreAda(t *testing.T) {
	adaKey := common.EncodeHex(common.RandBytes(64))
	signer, err := multisig.NewAdaSigner(adaKey)
	require.NoError(t, err)

	store, err := NewStore([]KeyEntry{{Chain: "ada", PrivKey: adaKey}})
	require.NoError(t, err)
	assert.Equal(t, []string{signer.PubKey()}, store.Addresses("ada"))

	for _, addr := range []string{signer.PubKey(), ""} {
		got, err := store.Key("ada", addr)
		require.NoError(t, err)
		assert.Equal(t, adaKey, got)
	}

	other, err := multisig.NewAdaSigner(common.EncodeHex(common.RandBytes(32)))
	require.NoError(t, err)
	_, err = store.Key("ada", other.PubKey())
	assert.ErrorIs(t, err, ErrKeyNotFound)
	_, err = store.Key("ada", "addr_test1vrandom")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	// an empty address is ambiguous with two keys
	require.NoError(t, store.Add(KeyEntry{Chain: "ada", PrivKey: common.EncodeHex(common.RandBytes(32))}))
	_, err = store.Key("ada", "")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	_, err = NewStore([]KeyEntry{{Chain: "ada", PrivKey: adaKey, Address: other.PubKey()}})
	assert.ErrorIs(t, err, ErrAddressMismatch)
}

func TestEncryptedKeystore(t *testing.T) {
	entries := []KeyEntry{
		{Chain: "ckb", PrivKey: randKey()},
		{Chain: "eth", PrivKey: randKey(), Address: ""},
	}
	// cheap scrypt cost for tests
	data, err := Encrypt(entries, "secret", 1<<10)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "keystore.json")
	require.NoError(t, os.WriteFile(path, data, 0600))

	got, err := LoadFile(path, "secret")
	require.NoError(t, err)
	assert.Equal(t, entries, got)

	_, err = LoadFile(path, "wrong")
	assert.Equal(t, ErrWrongPassword, err)

	_, err = Decrypt([]byte(`{"version":7}`), "secret")
	assert.Equal(t, ErrFileVersion, err)
}
