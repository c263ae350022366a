package bplustree

import (
	"bytes"
	"encoding/binary"
)

// KeyComparator imposes a strict total order on fixed-width keys.
type KeyComparator func(a, b []byte) int

// BytesComparator orders keys lexicographically.
func BytesComparator() KeyComparator { return bytes.Compare }

// Int64Key encodes v as an 8-byte key whose lexicographic order matches the
// signed integer order (big-endian with the sign bit flipped).
func Int64Key(v int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(v)^(1<<63))
	return buf
}

// DecodeInt64Key inverts Int64Key.
func DecodeInt64Key(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b) ^ (1 << 63))
}

// Int64Comparator orders keys produced by Int64Key.
func Int64Comparator() KeyComparator { return bytes.Compare }
