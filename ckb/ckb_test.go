package ckb

import (
	"encoding/binary"
	"encoding/json"
	"strings"
	"testing"

	"github.com/TEENet-io/bridge-verifier/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCkbHashEmpty(t *testing.T) {
	h := CkbHash()
	assert.Equal(t, "0x44f4c69744d5f8c55d642062949dcae49bc4e7ef43d388c5a12f42b5633d163e", common.EncodeHex(h[:]))
	assert.Len(t, Blake160([]byte{}), 20)
}

func TestScriptSerialize(t *testing.T) {
	s := &Script{
		CodeHash: "0x" + strings.Repeat("00", 32),
		HashType: HashTypeData,
		Args:     "0x",
	}
	b, err := s.Serialize()
	require.NoError(t, err)
	require.Len(t, b, 53)
	assert.Equal(t, uint32(53), binary.LittleEndian.Uint32(b[0:4]))
	assert.Equal(t, uint32(16), binary.LittleEndian.Uint32(b[4:8]))
	assert.Equal(t, uint32(48), binary.LittleEndian.Uint32(b[8:12]))
	assert.Equal(t, uint32(49), binary.LittleEndian.Uint32(b[12:16]))
	assert.Equal(t, byte(0), b[48])
	assert.Equal(t, []byte{0, 0, 0, 0}, b[49:])

	s.HashType = "bogus"
	_, err = s.Serialize()
	assert.ErrorIs(t, err, ErrInvalidHashType)

	a := Secp256k1Lock(common.RandBytes(20))
	c := *a
	c.Args = strings.ToUpper(c.Args[2:])
	c.Args = "0x" + c.Args
	assert.True(t, a.Equal(&c))
	c.HashType = HashTypeData
	assert.False(t, a.Equal(&c))
}

func TestWitnessArgs(t *testing.T) {
	w := &WitnessArgs{Lock: make([]byte, 65)}
	b := w.Serialize()
	// header 16 + bytes(65) + two absent options
	assert.Len(t, b, 16+4+65)
	assert.Equal(t, uint32(85), binary.LittleEndian.Uint32(b[8:12]))
	assert.Equal(t, uint32(85), binary.LittleEndian.Uint32(b[12:16]))
}

func TestShortAddress(t *testing.T) {
	args := common.HexStrToByteSlice("b39bbc0b3673c7d36450bc14cfcdad2d559c6c64")
	addr, err := EncodeShortAddress(CodeIndexSecp256k1, args, Mainnet)
	require.NoError(t, err)
	assert.Equal(t, "ckb1qyqt8xaupvm8837nv3gtc9x0ekkj64vud3jqfwyw5v", addr)

	lock, network, err := ParseAddress(addr)
	require.NoError(t, err)
	assert.Equal(t, Mainnet, network)
	assert.True(t, lock.Equal(Secp256k1Lock(args)))
}

func TestFullAddressRoundTrip(t *testing.T) {
	lock := &Script{
		CodeHash: common.RandHash32(),
		HashType: HashTypeType,
		Args:     common.EncodeHex(common.RandBytes(77)),
	}
	addr, err := EncodeAddress(lock, Testnet)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(addr, "ckt1"))
	assert.Greater(t, len(addr), 90)

	parsed, network, err := ParseAddress(addr)
	require.NoError(t, err)
	assert.Equal(t, Testnet, network)
	assert.True(t, lock.Equal(parsed))

	_, _, err = ParseAddress(addr[:len(addr)-1] + "q")
	assert.ErrorIs(t, err, ErrInvalidAddress)
	_, _, err = ParseAddress("not-an-address")
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func testInputCell(lock *Script, txHash string, index string) Cell {
	return Cell{
		CellOutput: CellOutput{Capacity: "0x174876e800", Lock: *lock},
		Data:       "0x",
		OutPoint:   &OutPoint{TxHash: txHash, Index: index},
	}
}

func testSkeleton() *TransactionSkeleton {
	secp := Secp256k1Lock(common.RandBytes(20))
	multi := &Script{CodeHash: MultisigCodeHash, HashType: HashTypeType, Args: common.EncodeHex(common.RandBytes(20))}
	return &TransactionSkeleton{
		CellDeps: []CellDep{{
			OutPoint: OutPoint{TxHash: common.RandHash32(), Index: "0x0"},
			DepType:  DepTypeDepGroup,
		}},
		HeaderDeps: []string{},
		Inputs: []Cell{
			testInputCell(secp, common.RandHash32(), "0x0"),
			testInputCell(multi, common.RandHash32(), "0x1"),
			testInputCell(multi, common.RandHash32(), "0x2"),
		},
		Outputs: []Cell{{
			CellOutput: CellOutput{Capacity: "0x2540be400", Lock: *secp},
			Data:       "0x",
		}},
		Witnesses: []string{
			common.EncodeHex((&WitnessArgs{Lock: make([]byte, 65)}).Serialize()),
			common.EncodeHex((&WitnessArgs{Lock: make([]byte, 85)}).Serialize()),
			"0x",
			"0xdeadbeef",
		},
		InputSinces: map[string]string{},
	}
}

func TestComputeSigningEntries(t *testing.T) {
	skel := testSkeleton()
	all := func(*Script) bool { return true }

	entries, err := ComputeSigningEntries(skel, all)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 0, entries[0].Index)
	assert.Equal(t, 1, entries[1].Index)

	// recompute the multisig group message by hand
	tx, err := skel.ToTransaction()
	require.NoError(t, err)
	txHash, err := tx.Hash()
	require.NoError(t, err)
	h := NewHasher()
	h.Write(txHash[:])
	for _, idx := range []int{1, 2, 3} {
		w := common.HexStrToByteSlice(skel.Witnesses[idx])
		h.Write(molU64(uint64(len(w))))
		h.Write(w)
	}
	assert.Equal(t, common.EncodeHex(h.Sum(nil)), entries[1].Message)

	onlyMultisig := func(s *Script) bool { return s.CodeHash == MultisigCodeHash }
	filtered, err := ComputeSigningEntries(skel, onlyMultisig)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, entries[1], filtered[0])

	// any change to the transaction changes every message
	skel.Outputs[0].CellOutput.Capacity = "0x2540be401"
	tampered, err := ComputeSigningEntries(skel, all)
	require.NoError(t, err)
	assert.NotEqual(t, entries[1].Message, tampered[1].Message)
	assert.False(t, SameSigningEntries(entries, tampered))

	reversed := []SigningEntry{entries[1], entries[0]}
	assert.True(t, SameSigningEntries(entries, reversed))
}

func TestSkeletonJSON(t *testing.T) {
	skel := testSkeleton()
	b, err := json.Marshal(skel)
	require.NoError(t, err)

	var decoded TransactionSkeleton
	require.NoError(t, json.Unmarshal(b, &decoded))

	h1, err := mustTx(t, skel).Hash()
	require.NoError(t, err)
	h2, err := mustTx(t, &decoded).Hash()
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Len(t, decoded.InputOutPoints(), 3)

	decoded.Inputs[0].OutPoint = nil
	_, err = decoded.ToTransaction()
	assert.ErrorIs(t, err, ErrMissingOutPoint)
}

func mustTx(t *testing.T, s *TransactionSkeleton) *Transaction {
	tx, err := s.ToTransaction()
	require.NoError(t, err)
	return tx
}

func TestOutPointKey(t *testing.T) {
	txHash := common.RandHash32()
	key := (&OutPoint{TxHash: txHash, Index: "0x0"}).Key()
	assert.Equal(t, strings.ToLower(txHash)+":0x0", key)
	assert.Equal(t, key, (&OutPoint{TxHash: strings.ToUpper(txHash[:2]) + strings.ToUpper(txHash[2:]), Index: "0x00"}).Key())
	assert.Equal(t, (&OutPoint{TxHash: txHash, Index: "0xa"}).Key(), (&OutPoint{TxHash: txHash, Index: "0x0A"}).Key())
	assert.NotEqual(t, key, (&OutPoint{TxHash: txHash, Index: "0x1"}).Key())
}
