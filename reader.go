package sfbin

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/paulmach/orb/geojson"
)

// readHeader validates the magic and version and decodes the fixed header
// plus the static schema block when present. It returns the offset of the
// feature count.
func readHeader(data []byte) (*Header, int, error) {
	if len(data) < len(magic)+3 {
		return nil, 0, fmt.Errorf("%w: header at offset 0", ErrTruncatedInput)
	}
	if [4]byte(data[:4]) != magic {
		return nil, 0, fmt.Errorf("%w: bad magic at offset 0", ErrUnsupportedFormat)
	}

	h := &Header{Version: data[4]}
	if h.Version != formatVersion {
		return nil, 0, fmt.Errorf("%w: version %d at offset 4", ErrUnsupportedFormat, h.Version)
	}

	h.Variant = Variant(data[5])
	if !h.Variant.valid() {
		return nil, 0, fmt.Errorf("%w: variant tag %d at offset 5", ErrUnsupportedFormat, data[5])
	}

	kind := schemaKind(data[6])
	if kind != schemaKindStatic && kind != schemaKindDynamic {
		return nil, 0, fmt.Errorf("%w: schema kind %d at offset 6", ErrUnsupportedFormat, data[6])
	}
	h.Static = kind == schemaKindStatic

	off := 7
	if h.Variant == VariantV7 {
		if off+8 > len(data) {
			return nil, 0, fmt.Errorf("%w: quantization scale at offset %d", ErrTruncatedInput, off)
		}
		h.Scale = math.Float64frombits(binary.LittleEndian.Uint64(data[off:]))
		off += 8
		if err := checkScale(h.Scale); err != nil {
			return nil, 0, fmt.Errorf("%w: %v at offset %d", err, h.Scale, off-8)
		}
	}

	if h.Static {
		var err error
		h.Fields, off, err = readStaticSchema(data, off)
		if err != nil {
			return nil, 0, err
		}
	}

	count, off, err := readUvarint(data, off, "feature count")
	if err != nil {
		return nil, 0, err
	}
	h.FeatureCount = count

	return h, off, nil
}

// ReadHeader decodes only the stream header, without touching feature
// blocks. Useful for inspecting a file's variant, scale and schema.
func ReadHeader(data []byte) (*Header, error) {
	h, _, err := readHeader(data)
	return h, err
}

// Unmarshal decodes an sfbin byte stream back into a feature collection.
// It fails with ErrUnsupportedFormat on a magic or version mismatch, with
// ErrTruncatedInput when the buffer ends before a declared field, and
// with ErrTrailingBytes when bytes remain after the declared feature
// count has been consumed.
func Unmarshal(data []byte) (*geojson.FeatureCollection, error) {
	h, off, err := readHeader(data)
	if err != nil {
		return nil, err
	}

	fc := geojson.NewFeatureCollection()
	for i := uint64(0); i < h.FeatureCount; i++ {
		g, next, err := readGeometry(data, off, h.Variant, h.Scale)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		off = next

		var props geojson.Properties
		if h.Static {
			props, off, err = readStaticValues(data, off, h.Fields)
		} else {
			props, off, err = readDynamicValues(data, off)
		}
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}

		f := geojson.NewFeature(g)
		f.Properties = props
		fc.Append(f)
	}

	if off != len(data) {
		return nil, fmt.Errorf("%w: %d bytes at offset %d", ErrTrailingBytes, len(data)-off, off)
	}

	return fc, nil
}

// Read decodes an sfbin stream from r.
func Read(r io.Reader) (*geojson.FeatureCollection, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}
