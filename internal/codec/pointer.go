package codec

import (
	"encoding/binary"
	"unsafe"
)

// PrefixSize is the width of the big-endian length that precedes every
// buffer returned through a pointer.
const PrefixSize = 4

// ReadPointer copies the length-prefixed buffer at p into Go memory.
//
// The first four bytes at p hold the payload length n (big-endian), followed
// by n payload bytes. The returned slice is owned by the caller. The region at
// p is left untouched; releasing it belongs to the library that produced it.
//
// p must point at readable memory of at least PrefixSize+n bytes that stays
// valid for the duration of the call. Violating this is undefined behaviour
// and typically kills the process; it cannot be detected here.
func ReadPointer(p unsafe.Pointer) []byte {
	prefix := unsafe.Slice((*byte)(p), PrefixSize)
	n := binary.BigEndian.Uint32(prefix)

	out := make([]byte, n)
	if n > 0 {
		copy(out, unsafe.Slice((*byte)(unsafe.Add(p, PrefixSize)), n))
	}
	return out
}

// ParseLengthPrefixed is the bounds-checked form of ReadPointer for a region
// already available as a slice. Bytes past PrefixSize+n are ignored.
func ParseLengthPrefixed(region []byte) ([]byte, error) {
	if len(region) < PrefixSize {
		return nil, &TruncatedError{Want: PrefixSize, Have: len(region)}
	}

	n := binary.BigEndian.Uint32(region[:PrefixSize])
	end := uint64(PrefixSize) + uint64(n)
	if uint64(len(region)) < end {
		return nil, &TruncatedError{Want: int(end), Have: len(region)}
	}

	out := make([]byte, n)
	copy(out, region[PrefixSize:end])
	return out, nil
}

// AppendLengthPrefixed appends the wire form of payload to dst.
func AppendLengthPrefixed(dst, payload []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(payload)))
	return append(dst, payload...)
}
