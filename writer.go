package sfbin

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/paulmach/orb/geojson"
)

// Marshal encodes a feature collection into a self-describing sfbin byte
// stream. The output is deterministic: the same collection and options
// always produce byte-identical output. The schema for the whole
// collection is resolved and validated before any feature bytes are
// written, so a schema mismatch never yields partial output.
func Marshal(fc *geojson.FeatureCollection, opts *Options) ([]byte, error) {
	if fc == nil {
		return nil, ErrNilCollection
	}
	if opts == nil {
		opts = DefaultOptions()
	}
	if !opts.Variant.valid() {
		return nil, fmt.Errorf("%w: unknown variant %d", ErrUnsupportedFormat, opts.Variant)
	}
	scale := opts.Scale
	if scale == 0 {
		scale = DefaultScale
	}
	if opts.Variant == VariantV7 {
		if err := checkScale(scale); err != nil {
			return nil, err
		}
	}

	kind, fields, err := resolveSchema(fc.Features, opts.Schema)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 0, 64+len(fc.Features)*16)
	buf = append(buf, magic[:]...)
	buf = append(buf, formatVersion, byte(opts.Variant), byte(kind))
	if opts.Variant == VariantV7 {
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(scale))
	}
	if kind == schemaKindStatic {
		buf = appendStaticSchema(buf, fields)
	}
	buf = appendUvarint(buf, uint64(len(fc.Features)))

	for i, f := range fc.Features {
		if f == nil {
			return nil, fmt.Errorf("%w: feature %d", ErrNilGeometry, i)
		}
		buf, err = appendGeometry(buf, f.Geometry, opts.Variant, scale)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		if kind == schemaKindStatic {
			buf, err = appendStaticValues(buf, f.Properties, fields)
		} else {
			buf, err = appendDynamicValues(buf, f.Properties)
		}
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
	}

	return buf, nil
}

// Write encodes a feature collection to w.
func Write(w io.Writer, fc *geojson.FeatureCollection, opts *Options) error {
	data, err := Marshal(fc, opts)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
