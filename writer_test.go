package sfbin

import (
	"bytes"
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

func cityCollection() *geojson.FeatureCollection {
	cities := []struct {
		name    string
		lon     float64
		lat     float64
		pop     int
		capital bool
	}{
		{"Tokyo", 139.6917, 35.6895, 13960000, true},
		{"New York", -73.9857, 40.7484, 8336817, false},
		{"Paris", 2.3522, 48.8566, 2161000, true},
	}

	fc := geojson.NewFeatureCollection()
	for _, c := range cities {
		f := geojson.NewFeature(orb.Point{c.lon, c.lat})
		f.Properties = geojson.Properties{
			"name":    c.name,
			"pop":     c.pop,
			"capital": c.capital,
		}
		fc.Append(f)
	}
	return fc
}

func TestMarshal_Deterministic(t *testing.T) {
	fc := cityCollection()

	for _, variant := range []Variant{VariantV4, VariantV7} {
		for _, mode := range []SchemaMode{SchemaAuto, SchemaStatic, SchemaDynamic} {
			opts := &Options{Variant: variant, Scale: DefaultScale, Schema: mode}

			first, err := Marshal(fc, opts)
			if err != nil {
				t.Fatalf("%s: %v", variant, err)
			}
			for i := 0; i < 5; i++ {
				again, err := Marshal(fc, opts)
				if err != nil {
					t.Fatalf("%s: %v", variant, err)
				}
				if !bytes.Equal(first, again) {
					t.Fatalf("%s: repeated encode differs", variant)
				}
			}
		}
	}
}

func TestMarshal_StaticSmallerThanDynamic(t *testing.T) {
	fc := cityCollection()

	static, err := Marshal(fc, &Options{Variant: VariantV7, Scale: DefaultScale, Schema: SchemaStatic})
	if err != nil {
		t.Fatalf("static: %v", err)
	}
	dynamic, err := Marshal(fc, &Options{Variant: VariantV7, Scale: DefaultScale, Schema: SchemaDynamic})
	if err != nil {
		t.Fatalf("dynamic: %v", err)
	}

	// Dynamic repeats field names per feature; static writes them once.
	if len(static) >= len(dynamic) {
		t.Errorf("static (%d bytes) should be smaller than dynamic (%d bytes)", len(static), len(dynamic))
	}
}

func TestMarshal_SchemaMismatchBeforeBytes(t *testing.T) {
	fc := cityCollection()
	broken := geojson.NewFeature(orb.Point{0, 0})
	broken.Properties = geojson.Properties{"name": "Nowhere"} // pop, capital missing
	fc.Append(broken)

	data, err := Marshal(fc, &Options{Variant: VariantV7, Scale: DefaultScale, Schema: SchemaStatic})
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("got %v, want ErrSchemaMismatch", err)
	}
	if data != nil {
		t.Error("no bytes should be produced on schema mismatch")
	}
}

func TestMarshal_NilCollection(t *testing.T) {
	if _, err := Marshal(nil, nil); !errors.Is(err, ErrNilCollection) {
		t.Errorf("got %v, want ErrNilCollection", err)
	}
}

func TestMarshal_BadScale(t *testing.T) {
	fc := cityCollection()

	for _, scale := range []float64{-1, -1e-7} {
		if _, err := Marshal(fc, &Options{Variant: VariantV7, Scale: scale}); !errors.Is(err, ErrScaleOutOfRange) {
			t.Errorf("scale %v: got %v, want ErrScaleOutOfRange", scale, err)
		}
	}

	// V4 performs no quantization, so the scale is not consulted.
	if _, err := Marshal(fc, &Options{Variant: VariantV4, Scale: -1}); err != nil {
		t.Errorf("v4 with unused scale: unexpected error %v", err)
	}
}

func TestMarshal_CoordinateOverflowsQuantization(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.Point{1e30, 0}))

	if _, err := Marshal(fc, &Options{Variant: VariantV7, Scale: 1e-7}); !errors.Is(err, ErrInvalidRing) {
		t.Errorf("V7: got %v, want ErrInvalidRing", err)
	}

	// The same coordinate is representable as an absolute double.
	data, err := Marshal(fc, &Options{Variant: VariantV4})
	if err != nil {
		t.Fatalf("V4 encode: %v", err)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("V4 decode: %v", err)
	}
	if p := got.Features[0].Geometry.(orb.Point); p[0] != 1e30 {
		t.Errorf("V4 round-trip: got %v, want x = 1e30", p)
	}
}

func TestMarshal_BadVariant(t *testing.T) {
	if _, err := Marshal(cityCollection(), &Options{Variant: 9}); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("got %v, want ErrUnsupportedFormat", err)
	}
}

func TestMarshal_DefaultOptions(t *testing.T) {
	data, err := Marshal(cityCollection(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	h, err := ReadHeader(data)
	if err != nil {
		t.Fatalf("header: %v", err)
	}
	if h.Variant != VariantV7 {
		t.Errorf("variant: got %s, want v7", h.Variant)
	}
	if h.Scale != DefaultScale {
		t.Errorf("scale: got %v, want %v", h.Scale, DefaultScale)
	}
	if !h.Static {
		t.Error("identical feature fields should auto-select the static schema")
	}
	if h.FeatureCount != 3 {
		t.Errorf("feature count: got %d, want 3", h.FeatureCount)
	}
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, cityCollection(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fc, err := Read(&buf)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(fc.Features) != 3 {
		t.Errorf("got %d features, want 3", len(fc.Features))
	}
}
