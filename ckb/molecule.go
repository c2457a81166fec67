package ckb

import "encoding/binary"

// Minimal molecule encoder covering the CKB core types needed to hash a
// transaction and to build script args.

func molU32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func molU64(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

// molBytes encodes the Bytes type, a fixvec of byte.
func molBytes(b []byte) []byte {
	out := make([]byte, 0, 4+len(b))
	out = append(out, molU32(uint32(len(b)))...)
	return append(out, b...)
}

// molFixVec encodes a vector of fixed size items.
func molFixVec(items [][]byte) []byte {
	out := molU32(uint32(len(items)))
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

// molDynVec encodes a vector of dynamic size items. It shares the header
// layout of a table.
func molDynVec(items [][]byte) []byte {
	return molTable(items...)
}

// molTable encodes full size, field offsets and then the fields.
func molTable(fields ...[]byte) []byte {
	headerSize := 4 * (len(fields) + 1)
	total := headerSize
	for _, f := range fields {
		total += len(f)
	}

	out := make([]byte, 0, total)
	out = append(out, molU32(uint32(total))...)
	offset := headerSize
	for _, f := range fields {
		out = append(out, molU32(uint32(offset))...)
		offset += len(f)
	}
	for _, f := range fields {
		out = append(out, f...)
	}
	return out
}
