package util

import "encoding/binary"

// Uint64ToBytes encodes the value as 8 byte big-endian slice.
func Uint64ToBytes(i uint64) []byte {
	return binary.BigEndian.AppendUint64(make([]byte, 0, 8), i)
}

// BytesToUint64 decodes 8 byte big-endian slice, shorter input is left padded with zeroes.
func BytesToUint64(b []byte) uint64 {
	if len(b) < 8 {
		padded := make([]byte, 8)
		copy(padded[8-len(b):], b)
		b = padded
	}
	return binary.BigEndian.Uint64(b)
}

// Int64ToLE encodes the value as 8 byte little-endian slice, the layout
// used for seeds of program derived addresses.
func Int64ToLE(i int64) []byte {
	return binary.LittleEndian.AppendUint64(make([]byte, 0, 8), uint64(i)) // #nosec G115 bit pattern is preserved
}

// LEToInt64 is the inverse of Int64ToLE.
func LEToInt64(b []byte) int64 {
	return int64(binary.LittleEndian.Uint64(b)) // #nosec G115 bit pattern is preserved
}
