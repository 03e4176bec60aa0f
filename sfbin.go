// Package sfbin implements a compact binary codec for two-dimensional
// Simple Features data (points, lines, polygons and their multi-part
// variants) held as orb geometries with geojson.Feature properties.
// It supports two encoding variants: V4 stores absolute double-precision
// coordinates, V7 stores quantized coordinates with per-ring delta
// compression packed as zigzag varints.
package sfbin

import (
	"errors"
	"math"
)

// Common errors returned by this package. Decode errors are wrapped with
// the byte offset and field being parsed; match them with errors.Is.
var (
	ErrMalformedVarint   = errors.New("sfbin: malformed varint")
	ErrScaleOutOfRange   = errors.New("sfbin: scale out of range")
	ErrInvalidRing       = errors.New("sfbin: invalid ring")
	ErrSchemaMismatch    = errors.New("sfbin: schema mismatch")
	ErrUnsupportedFormat = errors.New("sfbin: unsupported format")
	ErrTruncatedInput    = errors.New("sfbin: truncated input")
	ErrTrailingBytes     = errors.New("sfbin: trailing bytes after last feature")
	ErrInvalidGeoJSON    = errors.New("sfbin: invalid geojson")
	ErrUnsupportedType   = errors.New("sfbin: unsupported geometry type")
	ErrNilGeometry       = errors.New("sfbin: nil geometry")
	ErrNilCollection     = errors.New("sfbin: nil feature collection")
)

// magic identifies an sfbin stream. It is followed by a single version byte.
var magic = [4]byte{'S', 'F', 'B', '1'}

// formatVersion is the current (and only) stream version.
const formatVersion = 1

// Variant selects the coordinate encoding.
type Variant uint8

const (
	// VariantV4 stores every coordinate as an absolute little-endian
	// float64. Round-trips are exact.
	VariantV4 Variant = 4

	// VariantV7 quantizes coordinates to a fixed-point grid and stores
	// each ring as an absolute origin followed by point-to-point deltas,
	// all packed as zigzag varints. Round-trips are exact to within
	// half the quantization scale.
	VariantV7 Variant = 7
)

func (v Variant) valid() bool {
	return v == VariantV4 || v == VariantV7
}

// String returns the variant name as used by the CLI.
func (v Variant) String() string {
	switch v {
	case VariantV4:
		return "v4"
	case VariantV7:
		return "v7"
	default:
		return "unknown"
	}
}

// SchemaMode controls how feature attributes are encoded.
type SchemaMode int

const (
	// SchemaAuto picks static when every feature carries exactly the
	// same field name to type mapping, dynamic otherwise. The rule is
	// deterministic for a given collection.
	SchemaAuto SchemaMode = iota

	// SchemaStatic requires a shared schema: field names and types are
	// written once, features carry positional values only. Encoding
	// fails with ErrSchemaMismatch when a feature deviates.
	SchemaStatic

	// SchemaDynamic writes self-describing (name, type, value) triples
	// per feature. Larger, but tolerates heterogeneous features.
	SchemaDynamic
)

// schemaKind is the on-wire schema discriminator.
type schemaKind uint8

const (
	schemaKindStatic  schemaKind = 0
	schemaKindDynamic schemaKind = 1
)

// DefaultScale is the default quantization scale for V7, roughly
// centimeter accuracy for EPSG:4326 degrees.
const DefaultScale = 1e-7

// Options configures encoding.
type Options struct {
	Variant Variant    // Coordinate encoding variant (default: VariantV7)
	Scale   float64    // Quantization scale for V7 (default: DefaultScale)
	Schema  SchemaMode // Attribute schema selection (default: SchemaAuto)
}

// DefaultOptions returns the default encoding options.
func DefaultOptions() *Options {
	return &Options{
		Variant: VariantV7,
		Scale:   DefaultScale,
		Schema:  SchemaAuto,
	}
}

// Header describes a decoded sfbin stream.
type Header struct {
	Version      uint8   // Stream format version
	Variant      Variant // Coordinate encoding variant
	Static       bool    // Whether a shared attribute schema is present
	Scale        float64 // Quantization scale (V7 only, 0 for V4)
	FeatureCount uint64  // Number of features in the stream
	Fields       []Field // Shared schema fields (static only)
}

// PrecisionBound returns the maximum absolute coordinate error introduced
// by encoding at this header's variant, i.e. scale/2 for V7 and 0 for V4.
func (h *Header) PrecisionBound() float64 {
	if h.Variant == VariantV7 {
		return h.Scale / 2
	}
	return 0
}

// checkScale validates a quantization scale.
func checkScale(s float64) error {
	if math.IsNaN(s) || math.IsInf(s, 0) || s <= 0 {
		return ErrScaleOutOfRange
	}
	return nil
}
