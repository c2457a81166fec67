package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/TEENet-io/bridge-verifier/asset"
	"github.com/TEENet-io/bridge-verifier/common"
	"github.com/TEENet-io/bridge-verifier/keystore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
common:
  network: testnet
  log:
    level: debug
  ownerCellTypeHash: "0x1111111111111111111111111111111111111111111111111111111111111111"
ckb:
  rpcUrl: http://127.0.0.1:8114
  deps:
    bridgeLock:
      codeHash: "0x2222222222222222222222222222222222222222222222222222222222222222"
      hashType: type
    sudtType:
      codeHash: "0x3333333333333333333333333333333333333333333333333333333333333333"
      hashType: type
  multisigLockscript:
    codeHash: "0x5c5069eb0857efc65e1bca0c07df34c31663b3622fd3876c876320fc9634e2a8"
    hashType: type
    args: "0x4444444444444444444444444444444444444444"
  multiSignKeys:
    - privKey: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
eth:
  rpcUrl: http://127.0.0.1:8545
  chainId: 5
  contractAddress: "0x5555555555555555555555555555555555555555"
  assetWhiteList:
    - address: "0x6666666666666666666666666666666666666666"
      symbol: DAI
      minimalBridgeAmount: "1000"
      bridgeFeeOut: "100"
  multiSignKeys:
    - privKey: "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
ada:
  apiUrl: https://cardano-preprod.blockfrost.io/api/v0
  multiSignKeys:
    - privKey: "0xcccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccc"
sigServer:
  tipInterval: 2s
`

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, testConfig))
	require.NoError(t, err)

	assert.Equal(t, "testnet", cfg.Common.Network)
	assert.Equal(t, "debug", cfg.Common.Log.Level)
	assert.Equal(t, "type", cfg.Ckb.Deps.BridgeLock.HashType)
	assert.Equal(t, int64(5), cfg.Eth.ChainId)
	assert.Equal(t, 2*time.Second, cfg.SigServer.TipInterval)

	// defaults
	assert.Equal(t, DefaultListenAddr, cfg.SigServer.ListenAddr)
	assert.Equal(t, DefaultDbPath, cfg.SigServer.DbPath)
	assert.Equal(t, uint64(DefaultSyncThreshold), cfg.Ckb.SyncThreshold)
	assert.Equal(t, uint64(DefaultAdaSyncThreshold), cfg.Ada.SyncThreshold)

	require.Len(t, cfg.Ckb.MultiSignKeys, 1)
	assert.Equal(t, "ckb", cfg.Ckb.MultiSignKeys[0].Chain)
	require.Len(t, cfg.Eth.MultiSignKeys, 1)
	assert.Equal(t, "eth", cfg.Eth.MultiSignKeys[0].Chain)

	entries, err := cfg.KeyEntries()
	require.NoError(t, err)
	store, err := keystore.NewStore(entries)
	require.NoError(t, err)
	assert.Len(t, store.Addresses("ckb"), 1)
	assert.Len(t, store.Addresses("eth"), 1)
	assert.Len(t, store.Addresses("ada"), 1)

	registry, err := cfg.AssetRegistry()
	require.NoError(t, err)
	dai, err := registry.Resolve(asset.ChainETH, "0x6666666666666666666666666666666666666666")
	require.NoError(t, err)
	assert.True(t, dai.InWhiteList(common.MustParseAmount("1000")))
	assert.False(t, dai.InWhiteList(common.MustParseAmount("999")))
	fee, err := dai.BridgeFee(asset.DirectionOut)
	require.NoError(t, err)
	assert.Equal(t, "100", fee.Dec())
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SIGSVR_SIGSERVER_LISTENADDR", "127.0.0.1:9999")
	cfg, err := Load(writeConfig(t, testConfig))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9999", cfg.SigServer.ListenAddr)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := Load(writeConfig(t, testConfig))
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"network", func(c *Config) { c.Common.Network = "devnet" }},
		{"owner", func(c *Config) { c.Common.OwnerCellTypeHash = "0x1234" }},
		{"collector", func(c *Config) { c.Common.CollectorPubKeyHashes = []string{"0xzz"} }},
		{"deps", func(c *Config) { c.Ckb.Deps.SudtType.CodeHash = "" }},
		{"multisig", func(c *Config) { c.Ckb.MultisigLockscript.HashType = "bogus" }},
		{"safe", func(c *Config) { c.Eth.SafeAddress = "0x12" }},
		{"domain", func(c *Config) { c.Eth.DomainSeparator = "0x12" }},
		{"db", func(c *Config) { c.SigServer.DbPath = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := *cfg
			tt.mutate(&c)
			assert.ErrorIs(t, c.Validate(), ErrInvalidConfig)
		})
	}
	assert.NoError(t, cfg.Validate())
}
