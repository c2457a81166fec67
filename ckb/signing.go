package ckb

import (
	"fmt"
	"sort"
	"strings"

	"github.com/TEENet-io/bridge-verifier/common"
)

const SigningTypeWitnessArgsLock = "witness_args_lock"

// SigningEntry is the message a lock group has to sign.
type SigningEntry struct {
	Type    string `json:"type"`
	Index   int    `json:"index"`
	Message string `json:"message"`
}

// ComputeSigningEntries recomputes the signing message of every lock group
// whose lock is accepted by signable, in input order. The message is
// ckbhash(txHash | len | witness ...) over the witnesses of the group and the
// witnesses without a matching input.
func ComputeSigningEntries(s *TransactionSkeleton, signable func(lock *Script) bool) ([]SigningEntry, error) {
	tx, err := s.ToTransaction()
	if err != nil {
		return nil, err
	}
	txHash, err := tx.Hash()
	if err != nil {
		return nil, err
	}

	witnesses := make([][]byte, len(s.Witnesses))
	for i, w := range s.Witnesses {
		if witnesses[i], err = common.DecodeHex(w); err != nil {
			return nil, fmt.Errorf("witness %d: %w", i, err)
		}
	}

	groups := make(map[[32]byte][]int)
	var order [][32]byte
	for i := range s.Inputs {
		lock := &s.Inputs[i].CellOutput.Lock
		if !signable(lock) {
			continue
		}
		h, err := lock.Hash()
		if err != nil {
			return nil, fmt.Errorf("input %d lock: %w", i, err)
		}
		if _, ok := groups[h]; !ok {
			order = append(order, h)
		}
		groups[h] = append(groups[h], i)
	}

	entries := make([]SigningEntry, 0, len(order))
	for _, h := range order {
		indexes := groups[h]
		hasher := NewHasher()
		hasher.Write(txHash[:])
		for _, idx := range indexes {
			if idx >= len(witnesses) {
				return nil, fmt.Errorf("no witness for input %d", idx)
			}
			hasher.Write(molU64(uint64(len(witnesses[idx]))))
			hasher.Write(witnesses[idx])
		}
		for i := len(s.Inputs); i < len(witnesses); i++ {
			hasher.Write(molU64(uint64(len(witnesses[i]))))
			hasher.Write(witnesses[i])
		}
		entries = append(entries, SigningEntry{
			Type:    SigningTypeWitnessArgsLock,
			Index:   indexes[0],
			Message: common.EncodeHex(hasher.Sum(nil)),
		})
	}
	return entries, nil
}

// SameSigningEntries compares two entry sets regardless of order.
func SameSigningEntries(a, b []SigningEntry) bool {
	if len(a) != len(b) {
		return false
	}
	key := func(e SigningEntry) string {
		return fmt.Sprintf("%s/%d/%s", e.Type, e.Index, strings.ToLower(e.Message))
	}
	ka := make([]string, len(a))
	kb := make([]string, len(b))
	for i := range a {
		ka[i] = key(a[i])
		kb[i] = key(b[i])
	}
	sort.Strings(ka)
	sort.Strings(kb)
	for i := range ka {
		if ka[i] != kb[i] {
			return false
		}
	}
	return true
}
