package sfbin

import (
	"errors"
	"math"
	"testing"
)

func TestUvarintRoundTrip(t *testing.T) {
	values := []uint64{
		0, 1, 2, 127, 128, 129, 255, 256, 16383, 16384,
		1<<21 - 1, 1 << 21, 1<<28 - 1, 1 << 28,
		1<<35 - 1, 1 << 42, 1 << 49, 1 << 56, 1<<63 - 1, 1 << 63,
		math.MaxUint64 - 1, math.MaxUint64,
	}

	for _, v := range values {
		buf := appendUvarint(nil, v)
		got, next, err := readUvarint(buf, 0, "test")
		if err != nil {
			t.Fatalf("value %d: unexpected error: %v", v, err)
		}
		if got != v {
			t.Errorf("value %d: decoded %d", v, got)
		}
		if next != len(buf) {
			t.Errorf("value %d: consumed %d of %d bytes", v, next, len(buf))
		}
	}
}

func TestUvarintShortestEncoding(t *testing.T) {
	tests := []struct {
		value uint64
		size  int
	}{
		{0, 1},
		{127, 1},
		{128, 2},
		{16383, 2},
		{16384, 3},
		{math.MaxUint64, 10},
	}

	for _, tt := range tests {
		if got := len(appendUvarint(nil, tt.value)); got != tt.size {
			t.Errorf("value %d: encoded to %d bytes, want %d", tt.value, got, tt.size)
		}
	}
}

func TestUvarintMalformed(t *testing.T) {
	// 10 continuation bytes: the chain would overflow 64 bits.
	overlong := make([]byte, 11)
	for i := range overlong {
		overlong[i] = 0x80
	}

	// Terminator in the 10th byte carrying more than the final bit.
	overflow := []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x02}

	for name, buf := range map[string][]byte{"overlong": overlong, "overflow": overflow} {
		if _, _, err := readUvarint(buf, 0, "test"); !errors.Is(err, ErrMalformedVarint) {
			t.Errorf("%s: got %v, want ErrMalformedVarint", name, err)
		}
	}
}

func TestUvarintTruncated(t *testing.T) {
	buf := appendUvarint(nil, 300) // 2 bytes

	if _, _, err := readUvarint(buf[:1], 0, "test"); !errors.Is(err, ErrTruncatedInput) {
		t.Errorf("mid-sequence: got %v, want ErrTruncatedInput", err)
	}
	if _, _, err := readUvarint(nil, 0, "test"); !errors.Is(err, ErrTruncatedInput) {
		t.Errorf("empty: got %v, want ErrTruncatedInput", err)
	}
}

func TestZigzag(t *testing.T) {
	tests := []struct {
		signed   int64
		unsigned uint64
	}{
		{0, 0},
		{-1, 1},
		{1, 2},
		{-2, 3},
		{2, 4},
		{math.MaxInt64, math.MaxUint64 - 1},
		{math.MinInt64, math.MaxUint64},
	}

	for _, tt := range tests {
		if got := zigzag(tt.signed); got != tt.unsigned {
			t.Errorf("zigzag(%d) = %d, want %d", tt.signed, got, tt.unsigned)
		}
		if got := unzigzag(tt.unsigned); got != tt.signed {
			t.Errorf("unzigzag(%d) = %d, want %d", tt.unsigned, got, tt.signed)
		}
	}
}

func TestSvarintRoundTrip(t *testing.T) {
	values := []int64{0, 1, -1, 63, 64, -64, -65, 1000000, -1000000, math.MaxInt64, math.MinInt64}

	for _, v := range values {
		buf := appendSvarint(nil, v)
		got, next, err := readSvarint(buf, 0, "test")
		if err != nil {
			t.Fatalf("value %d: unexpected error: %v", v, err)
		}
		if got != v {
			t.Errorf("value %d: decoded %d", v, got)
		}
		if next != len(buf) {
			t.Errorf("value %d: consumed %d of %d bytes", v, next, len(buf))
		}
	}
}
