package ckb

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

var ErrMissingOutPoint = errors.New("input cell has no out point")

// Cell is a live cell as carried by a transaction skeleton.
type Cell struct {
	CellOutput  CellOutput `json:"cell_output"`
	Data        string     `json:"data"`
	OutPoint    *OutPoint  `json:"out_point,omitempty"`
	BlockHash   string     `json:"block_hash,omitempty"`
	BlockNumber string     `json:"block_number,omitempty"`
}

type FixedEntry struct {
	Field string `json:"field"`
	Index int    `json:"index"`
}

// TransactionSkeleton is the JSON object a collector sends along a CKB
// signature request: an unsigned transaction plus its resolved input cells.
type TransactionSkeleton struct {
	CellProvider   json.RawMessage   `json:"cellProvider,omitempty"`
	CellDeps       []CellDep         `json:"cellDeps"`
	HeaderDeps     []string          `json:"headerDeps"`
	Inputs         []Cell            `json:"inputs"`
	Outputs        []Cell            `json:"outputs"`
	Witnesses      []string          `json:"witnesses"`
	FixedEntries   []FixedEntry      `json:"fixedEntries"`
	SigningEntries []SigningEntry    `json:"signingEntries"`
	InputSinces    map[string]string `json:"inputSinces"`
}

// ToTransaction assembles the unsigned transaction described by the skeleton.
func (s *TransactionSkeleton) ToTransaction() (*Transaction, error) {
	tx := &Transaction{
		Version:     "0x0",
		CellDeps:    s.CellDeps,
		HeaderDeps:  s.HeaderDeps,
		Inputs:      make([]CellInput, len(s.Inputs)),
		Outputs:     make([]CellOutput, len(s.Outputs)),
		OutputsData: make([]string, len(s.Outputs)),
		Witnesses:   s.Witnesses,
	}
	if tx.CellDeps == nil {
		tx.CellDeps = []CellDep{}
	}
	if tx.HeaderDeps == nil {
		tx.HeaderDeps = []string{}
	}
	if tx.Witnesses == nil {
		tx.Witnesses = []string{}
	}

	for i, in := range s.Inputs {
		if in.OutPoint == nil {
			return nil, fmt.Errorf("input %d: %w", i, ErrMissingOutPoint)
		}
		since := "0x0"
		if v, ok := s.InputSinces[strconv.Itoa(i)]; ok {
			since = v
		}
		tx.Inputs[i] = CellInput{Since: since, PreviousOutput: *in.OutPoint}
	}
	for i, out := range s.Outputs {
		tx.Outputs[i] = out.CellOutput
		data := out.Data
		if data == "" {
			data = "0x"
		}
		tx.OutputsData[i] = data
	}
	return tx, nil
}

// InputOutPoints lists the outpoints spent by the skeleton in "txhash:index"
// form.
func (s *TransactionSkeleton) InputOutPoints() []string {
	keys := make([]string, 0, len(s.Inputs))
	for _, in := range s.Inputs {
		if in.OutPoint != nil {
			keys = append(keys, in.OutPoint.Key())
		}
	}
	return keys
}
