package sfbin

import (
	"math"
	"testing"
)

func TestQuantizeRounding(t *testing.T) {
	// Round half away from zero, in both directions.
	tests := []struct {
		c     float64
		scale float64
		want  int64
	}{
		{2.5, 1, 3},
		{-2.5, 1, -3},
		{2.4, 1, 2},
		{-2.4, 1, -2},
		{0, 1, 0},
		{3.5, 1, 4},
		{-3.5, 1, -4},
		{1.0, 1e-7, 10000000},
	}

	for _, tt := range tests {
		if got := quantize(tt.c, tt.scale); got != tt.want {
			t.Errorf("quantize(%v, %v) = %d, want %d", tt.c, tt.scale, got, tt.want)
		}
	}
}

func TestQuantizeErrorBound(t *testing.T) {
	scale := 1e-7
	coords := []float64{0, 1.0, 2.0, -73.9857, 40.7484, 139.6917, 179.9999999, -179.9999999, 1e-8}

	for _, c := range coords {
		back := dequantize(quantize(c, scale), scale)
		if diff := math.Abs(back - c); diff > scale/2 {
			t.Errorf("coordinate %v: round-trip error %v exceeds %v", c, diff, scale/2)
		}
	}
}

func TestCheckScale(t *testing.T) {
	for _, s := range []float64{1e-7, 1, 1000, 0.5} {
		if err := checkScale(s); err != nil {
			t.Errorf("scale %v: unexpected error %v", s, err)
		}
	}

	for _, s := range []float64{0, -1, -1e-7, math.NaN(), math.Inf(1), math.Inf(-1)} {
		if err := checkScale(s); err == nil {
			t.Errorf("scale %v: expected ErrScaleOutOfRange", s)
		}
	}
}
