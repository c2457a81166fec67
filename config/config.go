package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/TEENet-io/bridge-verifier/asset"
	"github.com/TEENet-io/bridge-verifier/ckb"
	"github.com/TEENet-io/bridge-verifier/common"
	"github.com/TEENet-io/bridge-verifier/keystore"
	"github.com/spf13/viper"
)

const (
	EnvPrefix = "SIGSVR"

	DefaultListenAddr    = "0.0.0.0:8090"
	DefaultDbPath        = "./sigserver.db"
	DefaultSyncThreshold = 20
	DefaultTipInterval   = 5 * time.Second
)

// cardano blocks are faster, its watcher may lag more
const DefaultAdaSyncThreshold = 30

var ErrInvalidConfig = errors.New("invalid config")

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

type CommonConfig struct {
	Network           string    `mapstructure:"network"`
	Log               LogConfig `mapstructure:"log"`
	OwnerCellTypeHash string    `mapstructure:"ownerCellTypeHash"`
	// blake160 of the collectors' pubkeys; empty disables collector checks
	CollectorPubKeyHashes []string `mapstructure:"collectorPubKeyHashes"`
}

type ScriptConfig struct {
	CodeHash string `mapstructure:"codeHash"`
	HashType string `mapstructure:"hashType"`
	Args     string `mapstructure:"args"`
}

func (s ScriptConfig) Script() *ckb.Script {
	return &ckb.Script{CodeHash: s.CodeHash, HashType: s.HashType, Args: s.Args}
}

type CkbDeps struct {
	BridgeLock ckb.ScriptTemplate `mapstructure:"bridgeLock"`
	SudtType   ckb.ScriptTemplate `mapstructure:"sudtType"`
}

type CkbConfig struct {
	RpcUrl             string       `mapstructure:"rpcUrl"`
	Deps               CkbDeps      `mapstructure:"deps"`
	MultisigLockscript ScriptConfig `mapstructure:"multisigLockscript"`
	// lock groups the collector prepares signing entries for, besides the
	// default secp256k1 and multisig locks
	SignableLocks []ckb.ScriptTemplate `mapstructure:"signableLocks"`
	MultiSignKeys []keystore.KeyEntry  `mapstructure:"multiSignKeys"`
	SyncThreshold uint64               `mapstructure:"syncThreshold"`
}

type EthConfig struct {
	RpcUrl               string                  `mapstructure:"rpcUrl"`
	ChainId              int64                   `mapstructure:"chainId"`
	ContractAddress      string                  `mapstructure:"contractAddress"`
	AssetManagerAddress  string                  `mapstructure:"assetManagerAddress"`
	SafeAddress          string                  `mapstructure:"safeAddress"`
	DomainSeparator      string                  `mapstructure:"domainSeparator"`
	UnlockTypeHash       string                  `mapstructure:"unlockTypeHash"`
	AssetWhiteList       []asset.WhiteListConfig `mapstructure:"assetWhiteList"`
	NervosAssetWhiteList []asset.WhiteListConfig `mapstructure:"nervosAssetWhiteList"`
	MultiSignKeys        []keystore.KeyEntry     `mapstructure:"multiSignKeys"`
	SyncThreshold        uint64                  `mapstructure:"syncThreshold"`
}

type AdaConfig struct {
	// blockfrost compatible API, used for the tip height
	ApiUrl        string              `mapstructure:"apiUrl"`
	ProjectId     string              `mapstructure:"projectId"`
	MultiSignKeys []keystore.KeyEntry `mapstructure:"multiSignKeys"`
	SyncThreshold uint64              `mapstructure:"syncThreshold"`
}

type SigServerConfig struct {
	ListenAddr       string        `mapstructure:"listenAddr"`
	DbPath           string        `mapstructure:"dbPath"`
	KeystorePath     string        `mapstructure:"keystorePath"`
	KeystorePassword string        `mapstructure:"keystorePassword"`
	TipInterval      time.Duration `mapstructure:"tipInterval"`
}

type Config struct {
	Common    CommonConfig    `mapstructure:"common"`
	Ckb       CkbConfig       `mapstructure:"ckb"`
	Eth       EthConfig       `mapstructure:"eth"`
	Ada       AdaConfig       `mapstructure:"ada"`
	SigServer SigServerConfig `mapstructure:"sigServer"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("common.network", string(ckb.Testnet))
	v.SetDefault("common.log.level", "info")
	v.SetDefault("ckb.syncThreshold", DefaultSyncThreshold)
	v.SetDefault("eth.syncThreshold", DefaultSyncThreshold)
	v.SetDefault("ada.syncThreshold", DefaultAdaSyncThreshold)
	v.SetDefault("sigServer.listenAddr", DefaultListenAddr)
	v.SetDefault("sigServer.dbPath", DefaultDbPath)
	v.SetDefault("sigServer.tipInterval", DefaultTipInterval)
}

// Load reads the config file at path (yaml, json or toml). Every key can be
// overridden from the environment, e.g. SIGSVR_SIGSERVER_LISTENADDR.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	// keys are listed per chain section
	for i := range cfg.Ckb.MultiSignKeys {
		cfg.Ckb.MultiSignKeys[i].Chain = "ckb"
	}
	for i := range cfg.Eth.MultiSignKeys {
		cfg.Eth.MultiSignKeys[i].Chain = "eth"
	}
	for i := range cfg.Ada.MultiSignKeys {
		cfg.Ada.MultiSignKeys[i].Chain = "ada"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

func (c *Config) Validate() error {
	switch ckb.Network(c.Common.Network) {
	case ckb.Mainnet, ckb.Testnet:
	default:
		return invalid("common.network %q", c.Common.Network)
	}
	if b, err := common.DecodeHex(c.Common.OwnerCellTypeHash); err != nil || len(b) != 32 {
		return invalid("common.ownerCellTypeHash %q", c.Common.OwnerCellTypeHash)
	}
	for _, h := range c.Common.CollectorPubKeyHashes {
		if b, err := common.DecodeHex(h); err != nil || len(b) != 20 {
			return invalid("collector pubkey hash %q", h)
		}
	}
	if c.Ckb.Deps.BridgeLock.CodeHash == "" || c.Ckb.Deps.SudtType.CodeHash == "" {
		return invalid("ckb.deps.bridgeLock and ckb.deps.sudtType are required")
	}
	if _, err := c.Ckb.MultisigLockscript.Script().Hash(); err != nil {
		return invalid("ckb.multisigLockscript: %v", err)
	}
	for _, addr := range []struct{ name, value string }{
		{"eth.contractAddress", c.Eth.ContractAddress},
		{"eth.assetManagerAddress", c.Eth.AssetManagerAddress},
		{"eth.safeAddress", c.Eth.SafeAddress},
	} {
		if addr.value == "" {
			continue
		}
		if _, err := common.NormalizeEthAddress(addr.value); err != nil {
			return invalid("%s %q", addr.name, addr.value)
		}
	}
	for _, h := range []struct{ name, value string }{
		{"eth.domainSeparator", c.Eth.DomainSeparator},
		{"eth.unlockTypeHash", c.Eth.UnlockTypeHash},
	} {
		if h.value == "" {
			continue
		}
		if b, err := common.DecodeHex(h.value); err != nil || len(b) != 32 {
			return invalid("%s %q", h.name, h.value)
		}
	}
	if c.SigServer.DbPath == "" {
		return invalid("sigServer.dbPath is required")
	}
	return nil
}

// AssetRegistry builds the asset registry described by the config.
func (c *Config) AssetRegistry() (*asset.Registry, error) {
	return asset.NewRegistry(&asset.RegistryConfig{
		OwnerCellTypeHash: c.Common.OwnerCellTypeHash,
		BridgeLock:        c.Ckb.Deps.BridgeLock,
		SudtType:          c.Ckb.Deps.SudtType,
		WhiteLists: map[asset.ChainType][]asset.WhiteListConfig{
			asset.ChainETH: c.Eth.AssetWhiteList,
			asset.ChainCKB: c.Eth.NervosAssetWhiteList,
		},
	})
}

// KeyEntries merges the configured keys with the encrypted keystore, if any.
// Keystore entries win on conflict.
func (c *Config) KeyEntries() ([]keystore.KeyEntry, error) {
	entries := append([]keystore.KeyEntry{}, c.Ckb.MultiSignKeys...)
	entries = append(entries, c.Eth.MultiSignKeys...)
	entries = append(entries, c.Ada.MultiSignKeys...)
	if c.SigServer.KeystorePath != "" {
		stored, err := keystore.LoadFile(c.SigServer.KeystorePath, c.SigServer.KeystorePassword)
		if err != nil {
			return nil, err
		}
		entries = append(entries, stored...)
	}
	return entries, nil
}
