package sfbin

import "fmt"

// maxVarintLen is the longest legal uvarint encoding of a 64-bit value.
const maxVarintLen = 10

// appendUvarint appends u in little-endian base-128 form, 7 data bits per
// byte with the high bit set while more bytes follow. The encoding is the
// shortest possible one for u.
func appendUvarint(buf []byte, u uint64) []byte {
	for u >= 0x80 {
		buf = append(buf, byte(u)|0x80)
		u >>= 7
	}
	return append(buf, byte(u))
}

// readUvarint decodes a uvarint starting at off and returns the value and
// the offset of the first byte after it. It fails with ErrMalformedVarint
// when the continuation chain would overflow 64 bits and with
// ErrTruncatedInput when the buffer ends mid-sequence.
func readUvarint(data []byte, off int, field string) (uint64, int, error) {
	var u uint64
	var shift uint
	for i := 0; ; i++ {
		if off+i >= len(data) {
			return 0, 0, fmt.Errorf("%w: %s at offset %d", ErrTruncatedInput, field, off+i)
		}
		b := data[off+i]
		if i == maxVarintLen-1 && b > 1 {
			// 10th byte may only contribute the final bit of a uint64.
			return 0, 0, fmt.Errorf("%w: %s at offset %d", ErrMalformedVarint, field, off)
		}
		if b < 0x80 {
			return u | uint64(b)<<shift, off + i + 1, nil
		}
		u |= uint64(b&0x7f) << shift
		shift += 7
	}
}

// zigzag maps a signed value to an unsigned one so that small magnitudes,
// negative or positive, stay small under varint encoding.
func zigzag(i int64) uint64 {
	return uint64((i << 1) ^ (i >> 63))
}

// unzigzag is the exact inverse of zigzag.
func unzigzag(u uint64) int64 {
	return int64(u>>1) ^ -int64(u&1)
}

// appendSvarint appends a zigzag-encoded signed varint.
func appendSvarint(buf []byte, i int64) []byte {
	return appendUvarint(buf, zigzag(i))
}

// readSvarint decodes a zigzag-encoded signed varint.
func readSvarint(data []byte, off int, field string) (int64, int, error) {
	u, next, err := readUvarint(data, off, field)
	if err != nil {
		return 0, 0, err
	}
	return unzigzag(u), next, nil
}
