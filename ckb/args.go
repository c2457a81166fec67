package ckb

import "errors"

var ErrInvalidLockscriptArgs = errors.New("invalid bridge lockscript args")

// EncodeBridgeLockscriptArgs builds the args table of the bridge lockscript:
// owner cell type hash, origin chain and asset identifier.
func EncodeBridgeLockscriptArgs(ownerCellTypeHash []byte, chain byte, asset []byte) []byte {
	return molTable(ownerCellTypeHash, []byte{chain}, molBytes(asset))
}

// DecodeBridgeLockscriptArgs is the inverse of EncodeBridgeLockscriptArgs.
func DecodeBridgeLockscriptArgs(b []byte) (owner []byte, chain byte, asset []byte, err error) {
	if len(b) < 16 {
		return nil, 0, nil, ErrInvalidLockscriptArgs
	}
	u32 := func(i int) int {
		return int(uint32(b[i]) | uint32(b[i+1])<<8 | uint32(b[i+2])<<16 | uint32(b[i+3])<<24)
	}
	total, o0, o1, o2 := u32(0), u32(4), u32(8), u32(12)
	if total != len(b) || o0 != 16 || o1 != o0+32 || o2 != o1+1 || o2+4 > total {
		return nil, 0, nil, ErrInvalidLockscriptArgs
	}
	size := u32(o2)
	if o2+4+size != total {
		return nil, 0, nil, ErrInvalidLockscriptArgs
	}
	return b[o0:o1], b[o1], b[o2+4:], nil
}
