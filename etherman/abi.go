package etherman

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const (
	bridgeABIJSON = `[
	{"type":"function","name":"unlock","stateMutability":"nonpayable","outputs":[],"inputs":[
		{"name":"records","type":"tuple[]","components":[
			{"name":"token","type":"address"},
			{"name":"recipient","type":"address"},
			{"name":"amount","type":"uint256"},
			{"name":"ckbTxHash","type":"bytes"}]},
		{"name":"nonce","type":"uint256"},
		{"name":"signatures","type":"bytes"}]},
	{"type":"function","name":"latestUnlockNonce_","stateMutability":"view","inputs":[],"outputs":[
		{"name":"","type":"uint256"}]}
	]`

	assetManagerABIJSON = `[
	{"type":"function","name":"mint","stateMutability":"nonpayable","outputs":[],"inputs":[
		{"name":"records","type":"tuple[]","components":[
			{"name":"assetId","type":"bytes32"},
			{"name":"to","type":"address"},
			{"name":"amount","type":"uint256"},
			{"name":"lockId","type":"bytes32"}]}]}
	]`
)

var (
	BridgeABI       = mustParseABI(bridgeABIJSON)
	AssetManagerABI = mustParseABI(assetManagerABIJSON)

	unlockRecordsType = mustNewType("tuple[]", []abi.ArgumentMarshaling{
		{Name: "token", Type: "address"},
		{Name: "recipient", Type: "address"},
		{Name: "amount", Type: "uint256"},
		{Name: "ckbTxHash", Type: "bytes"},
	})
	bytes32Type = mustNewType("bytes32", nil)
	uint256Type = mustNewType("uint256", nil)
	uint8Type   = mustNewType("uint8", nil)
	addressType = mustNewType("address", nil)
)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(err)
	}
	return parsed
}

func mustNewType(t string, components []abi.ArgumentMarshaling) abi.Type {
	typ, err := abi.NewType(t, "", components)
	if err != nil {
		panic(err)
	}
	return typ
}
