package ckb

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/TEENet-io/bridge-verifier/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const (
	HashTypeData  = "data"
	HashTypeType  = "type"
	HashTypeData1 = "data1"
	HashTypeData2 = "data2"

	DepTypeCode     = "code"
	DepTypeDepGroup = "dep_group"
)

var (
	ErrInvalidHashType = errors.New("invalid hash type")
	ErrInvalidDepType  = errors.New("invalid dep type")
	ErrInvalidHash     = errors.New("invalid 32-byte hash")
)

func hashTypeByte(ht string) (byte, error) {
	switch ht {
	case HashTypeData:
		return 0, nil
	case HashTypeType:
		return 1, nil
	case HashTypeData1:
		return 2, nil
	case HashTypeData2:
		return 4, nil
	}
	return 0, ErrInvalidHashType
}

func hashTypeFromByte(b byte) (string, error) {
	switch b {
	case 0:
		return HashTypeData, nil
	case 1:
		return HashTypeType, nil
	case 2:
		return HashTypeData1, nil
	case 4:
		return HashTypeData2, nil
	}
	return "", ErrInvalidHashType
}

func decodeHash(s string) ([]byte, error) {
	b, err := common.DecodeHex(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidHash, s)
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidHash, s)
	}
	return b, nil
}

// Script is a CKB lock or type script in its RPC JSON form.
type Script struct {
	CodeHash string `json:"code_hash"`
	HashType string `json:"hash_type"`
	Args     string `json:"args"`
}

func (s *Script) Serialize() ([]byte, error) {
	codeHash, err := decodeHash(s.CodeHash)
	if err != nil {
		return nil, err
	}
	ht, err := hashTypeByte(s.HashType)
	if err != nil {
		return nil, err
	}
	args, err := common.DecodeHex(s.Args)
	if err != nil {
		return nil, fmt.Errorf("invalid script args: %w", err)
	}
	return molTable(codeHash, []byte{ht}, molBytes(args)), nil
}

func (s *Script) Hash() ([32]byte, error) {
	b, err := s.Serialize()
	if err != nil {
		return [32]byte{}, err
	}
	return CkbHash(b), nil
}

// HashHex is Hash in 0x hex form.
func (s *Script) HashHex() (string, error) {
	h, err := s.Hash()
	if err != nil {
		return "", err
	}
	return common.EncodeHex(h[:]), nil
}

// Equal compares scripts field by field, ignoring hex letter case.
func (s *Script) Equal(o *Script) bool {
	if s == nil || o == nil {
		return s == o
	}
	return strings.EqualFold(s.CodeHash, o.CodeHash) &&
		s.HashType == o.HashType &&
		strings.EqualFold(s.Args, o.Args)
}

type OutPoint struct {
	TxHash string `json:"tx_hash"`
	Index  string `json:"index"`
}

func (op *OutPoint) Serialize() ([]byte, error) {
	txHash, err := decodeHash(op.TxHash)
	if err != nil {
		return nil, err
	}
	index, err := hexutil.DecodeUint64(op.Index)
	if err != nil {
		return nil, fmt.Errorf("invalid out point index %s: %w", op.Index, err)
	}
	return append(txHash, molU32(uint32(index))...), nil
}

// Key is the "txhash:index" form used to compare spent cells. The index is
// rewritten in its shortest hex form.
func (op *OutPoint) Key() string {
	index := strings.ToLower(op.Index)
	if n, err := strconv.ParseUint(common.Trim0xPrefix(index), 16, 32); err == nil {
		index = hexutil.EncodeUint64(n)
	}
	return strings.ToLower(op.TxHash) + ":" + index
}

type CellDep struct {
	OutPoint OutPoint `json:"out_point"`
	DepType  string   `json:"dep_type"`
}

func (cd *CellDep) Serialize() ([]byte, error) {
	op, err := cd.OutPoint.Serialize()
	if err != nil {
		return nil, err
	}
	switch cd.DepType {
	case DepTypeCode:
		return append(op, 0), nil
	case DepTypeDepGroup:
		return append(op, 1), nil
	}
	return nil, ErrInvalidDepType
}

type CellOutput struct {
	Capacity string  `json:"capacity"`
	Lock     Script  `json:"lock"`
	Type     *Script `json:"type,omitempty"`
}

func (co *CellOutput) CapacityValue() (uint64, error) {
	return hexutil.DecodeUint64(co.Capacity)
}

func (co *CellOutput) Serialize() ([]byte, error) {
	capacity, err := co.CapacityValue()
	if err != nil {
		return nil, fmt.Errorf("invalid capacity %s: %w", co.Capacity, err)
	}
	lock, err := co.Lock.Serialize()
	if err != nil {
		return nil, err
	}
	var typ []byte
	if co.Type != nil {
		if typ, err = co.Type.Serialize(); err != nil {
			return nil, err
		}
	}
	return molTable(molU64(capacity), lock, typ), nil
}

type CellInput struct {
	Since          string   `json:"since"`
	PreviousOutput OutPoint `json:"previous_output"`
}

func (ci *CellInput) Serialize() ([]byte, error) {
	since, err := hexutil.DecodeUint64(ci.Since)
	if err != nil {
		return nil, fmt.Errorf("invalid since %s: %w", ci.Since, err)
	}
	op, err := ci.PreviousOutput.Serialize()
	if err != nil {
		return nil, err
	}
	return append(molU64(since), op...), nil
}

// Transaction is the RPC form of a CKB transaction.
type Transaction struct {
	Version     string       `json:"version"`
	CellDeps    []CellDep    `json:"cell_deps"`
	HeaderDeps  []string     `json:"header_deps"`
	Inputs      []CellInput  `json:"inputs"`
	Outputs     []CellOutput `json:"outputs"`
	OutputsData []string     `json:"outputs_data"`
	Witnesses   []string     `json:"witnesses"`
}

// SerializeRaw encodes the RawTransaction, i.e. everything but witnesses.
func (tx *Transaction) SerializeRaw() ([]byte, error) {
	version, err := hexutil.DecodeUint64(tx.Version)
	if err != nil {
		return nil, fmt.Errorf("invalid version %s: %w", tx.Version, err)
	}

	cellDeps := make([][]byte, len(tx.CellDeps))
	for i := range tx.CellDeps {
		if cellDeps[i], err = tx.CellDeps[i].Serialize(); err != nil {
			return nil, fmt.Errorf("cell dep %d: %w", i, err)
		}
	}
	headerDeps := make([][]byte, len(tx.HeaderDeps))
	for i, h := range tx.HeaderDeps {
		if headerDeps[i], err = decodeHash(h); err != nil {
			return nil, fmt.Errorf("header dep %d: %w", i, err)
		}
	}
	inputs := make([][]byte, len(tx.Inputs))
	for i := range tx.Inputs {
		if inputs[i], err = tx.Inputs[i].Serialize(); err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
	}
	outputs := make([][]byte, len(tx.Outputs))
	for i := range tx.Outputs {
		if outputs[i], err = tx.Outputs[i].Serialize(); err != nil {
			return nil, fmt.Errorf("output %d: %w", i, err)
		}
	}
	outputsData := make([][]byte, len(tx.OutputsData))
	for i, d := range tx.OutputsData {
		b, err := common.DecodeHex(d)
		if err != nil {
			return nil, fmt.Errorf("output data %d: %w", i, err)
		}
		outputsData[i] = molBytes(b)
	}

	return molTable(
		molU32(uint32(version)),
		molFixVec(cellDeps),
		molFixVec(headerDeps),
		molFixVec(inputs),
		molDynVec(outputs),
		molDynVec(outputsData),
	), nil
}

func (tx *Transaction) Hash() ([32]byte, error) {
	raw, err := tx.SerializeRaw()
	if err != nil {
		return [32]byte{}, err
	}
	return CkbHash(raw), nil
}

// WitnessArgs is the conventional witness layout. Nil fields are absent.
type WitnessArgs struct {
	Lock       []byte
	InputType  []byte
	OutputType []byte
}

func (w *WitnessArgs) Serialize() []byte {
	opt := func(b []byte) []byte {
		if b == nil {
			return nil
		}
		return molBytes(b)
	}
	return molTable(opt(w.Lock), opt(w.InputType), opt(w.OutputType))
}

// ScriptTemplate is a deployed script without args.
type ScriptTemplate struct {
	CodeHash string `mapstructure:"codeHash" json:"codeHash"`
	HashType string `mapstructure:"hashType" json:"hashType"`
}

func (t ScriptTemplate) WithArgs(args []byte) *Script {
	return &Script{CodeHash: t.CodeHash, HashType: t.HashType, Args: common.EncodeHex(args)}
}

// Matches reports whether s runs the code of t, whatever its args.
func (t ScriptTemplate) Matches(s *Script) bool {
	return s != nil && strings.EqualFold(s.CodeHash, t.CodeHash) && s.HashType == t.HashType
}
