package sfbin

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Geometry type tags as written to the stream.
const (
	geomPoint           = 1
	geomMultiPoint      = 2
	geomLineString      = 3
	geomMultiLineString = 4
	geomPolygon         = 5
	geomMultiPolygon    = 6
)

// shape is the normalized form every geometry is reduced to before
// encoding: an ordered list of parts, each part an ordered list of rings,
// each ring an ordered list of points. Non-polygonal types have exactly
// one open ring per part; polygon rings are closed (first point equals
// last point).
type shape struct {
	tag   byte
	parts [][]orb.Ring
}

// normalizeGeometry reduces an orb.Geometry to its part/ring/point shape.
// orb.Ring and orb.Bound are treated as polygons, matching their GeoJSON
// rendering. Geometry collections are not part of the format.
func normalizeGeometry(geom orb.Geometry) (shape, error) {
	switch v := geom.(type) {
	case orb.Point:
		return shape{tag: geomPoint, parts: [][]orb.Ring{{orb.Ring{v}}}}, nil

	case orb.MultiPoint:
		if len(v) == 0 {
			return shape{tag: geomMultiPoint}, nil
		}
		return shape{tag: geomMultiPoint, parts: [][]orb.Ring{{orb.Ring(v)}}}, nil

	case orb.LineString:
		if len(v) == 0 {
			return shape{tag: geomLineString}, nil
		}
		return shape{tag: geomLineString, parts: [][]orb.Ring{{orb.Ring(v)}}}, nil

	case orb.MultiLineString:
		s := shape{tag: geomMultiLineString, parts: make([][]orb.Ring, 0, len(v))}
		for _, ls := range v {
			s.parts = append(s.parts, []orb.Ring{orb.Ring(ls)})
		}
		return s, nil

	case orb.Ring:
		return normalizeGeometry(orb.Polygon{v})

	case orb.Polygon:
		if len(v) == 0 {
			return shape{tag: geomPolygon}, nil
		}
		rings := make([]orb.Ring, len(v))
		copy(rings, v)
		return shape{tag: geomPolygon, parts: [][]orb.Ring{rings}}, nil

	case orb.MultiPolygon:
		s := shape{tag: geomMultiPolygon, parts: make([][]orb.Ring, 0, len(v))}
		for _, poly := range v {
			rings := make([]orb.Ring, len(poly))
			copy(rings, poly)
			s.parts = append(s.parts, rings)
		}
		return s, nil

	case orb.Bound:
		return normalizeGeometry(v.ToPolygon())

	case nil:
		return shape{}, ErrNilGeometry

	default:
		return shape{}, fmt.Errorf("%w: %T", ErrUnsupportedType, geom)
	}
}

// closed reports whether a polygon ring's first and last points are
// bit-identical.
func closed(ring orb.Ring) bool {
	return ring[0] == ring[len(ring)-1]
}

// validateShape enforces the ring invariants before any bytes are written:
// polygon rings are closed with at least 4 points, line rings have at
// least 2 points, every coordinate is finite, and under V7 every
// coordinate lands on an int64-representable grid point at the given
// scale. A quotient at or above 2^63 would wrap during quantization and
// decode to a silently-wrong coordinate, so it is rejected here instead.
func validateShape(s shape, variant Variant, scale float64) error {
	polygonal := s.tag == geomPolygon || s.tag == geomMultiPolygon
	linear := s.tag == geomLineString || s.tag == geomMultiLineString

	for _, part := range s.parts {
		for _, ring := range part {
			if polygonal {
				if len(ring) < 4 {
					return fmt.Errorf("%w: polygon ring has %d points, need at least 4", ErrInvalidRing, len(ring))
				}
				if !closed(ring) {
					return fmt.Errorf("%w: polygon ring is not closed", ErrInvalidRing)
				}
			} else if linear && len(ring) < 2 {
				return fmt.Errorf("%w: line has %d points, need at least 2", ErrInvalidRing, len(ring))
			}
			for _, p := range ring {
				if !finite(p[0]) || !finite(p[1]) {
					return fmt.Errorf("%w: non-finite coordinate", ErrInvalidRing)
				}
				if variant == VariantV7 &&
					(math.Abs(p[0]/scale) >= 1<<63 || math.Abs(p[1]/scale) >= 1<<63) {
					return fmt.Errorf("%w: coordinate (%g, %g) overflows the quantization range at scale %g",
						ErrInvalidRing, p[0], p[1], scale)
				}
			}
		}
	}

	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// appendGeometry encodes one geometry block: type tag, part/ring/point
// counts, then coordinate data in the selected variant. For V7 each ring
// restarts with an absolute quantized origin and chains deltas only
// between consecutive points of the same ring, so rounding error never
// accumulates across ring boundaries.
func appendGeometry(buf []byte, geom orb.Geometry, variant Variant, scale float64) ([]byte, error) {
	s, err := normalizeGeometry(geom)
	if err != nil {
		return nil, err
	}
	if err := validateShape(s, variant, scale); err != nil {
		return nil, err
	}

	buf = append(buf, s.tag)
	buf = appendUvarint(buf, uint64(len(s.parts)))
	for _, part := range s.parts {
		buf = appendUvarint(buf, uint64(len(part)))
		for _, ring := range part {
			buf = appendUvarint(buf, uint64(len(ring)))
		}
	}

	for _, part := range s.parts {
		for _, ring := range part {
			if variant == VariantV7 {
				buf = appendRingDeltas(buf, ring, scale)
			} else {
				buf = appendRingDoubles(buf, ring)
			}
		}
	}

	return buf, nil
}

// appendRingDeltas writes a ring as an absolute quantized origin followed
// by deltas against the immediately preceding point.
func appendRingDeltas(buf []byte, ring orb.Ring, scale float64) []byte {
	var prevX, prevY int64
	for i, p := range ring {
		qx, qy := quantize(p[0], scale), quantize(p[1], scale)
		if i == 0 {
			buf = appendSvarint(buf, qx)
			buf = appendSvarint(buf, qy)
		} else {
			buf = appendSvarint(buf, qx-prevX)
			buf = appendSvarint(buf, qy-prevY)
		}
		prevX, prevY = qx, qy
	}
	return buf
}

// appendRingDoubles writes a ring as raw little-endian float64 pairs.
func appendRingDoubles(buf []byte, ring orb.Ring) []byte {
	for _, p := range ring {
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(p[0]))
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(p[1]))
	}
	return buf
}

// readGeometry decodes one geometry block starting at off and returns the
// geometry together with the offset of the first byte after it.
func readGeometry(data []byte, off int, variant Variant, scale float64) (orb.Geometry, int, error) {
	if off >= len(data) {
		return nil, 0, fmt.Errorf("%w: geometry type tag at offset %d", ErrTruncatedInput, off)
	}
	tag := data[off]
	off++
	if tag < geomPoint || tag > geomMultiPolygon {
		return nil, 0, fmt.Errorf("%w: unknown geometry type tag %d at offset %d", ErrUnsupportedFormat, tag, off-1)
	}

	partCount, off, err := readUvarint(data, off, "part count")
	if err != nil {
		return nil, 0, err
	}
	if partCount > uint64(len(data)-off) {
		return nil, 0, fmt.Errorf("%w: part count %d at offset %d", ErrTruncatedInput, partCount, off)
	}

	// A point costs at least 2 bytes as a pair of varints and exactly 16
	// as a pair of doubles, so counts the rest of the buffer cannot hold
	// are rejected before any ring is allocated.
	minPointBytes := uint64(2)
	if variant == VariantV4 {
		minPointBytes = 16
	}

	s := shape{tag: tag, parts: make([][]orb.Ring, 0, partCount)}
	totalPoints := uint64(0)
	for p := uint64(0); p < partCount; p++ {
		var ringCount uint64
		ringCount, off, err = readUvarint(data, off, "ring count")
		if err != nil {
			return nil, 0, err
		}
		if ringCount > uint64(len(data)-off) {
			return nil, 0, fmt.Errorf("%w: ring count %d at offset %d", ErrTruncatedInput, ringCount, off)
		}
		part := make([]orb.Ring, 0, ringCount)
		for r := uint64(0); r < ringCount; r++ {
			var pointCount uint64
			pointCount, off, err = readUvarint(data, off, "point count")
			if err != nil {
				return nil, 0, err
			}
			totalPoints += pointCount
			if pointCount > uint64(len(data)-off)/minPointBytes ||
				totalPoints > uint64(len(data)-off)/minPointBytes {
				return nil, 0, fmt.Errorf("%w: point count %d at offset %d", ErrTruncatedInput, pointCount, off)
			}
			part = append(part, make(orb.Ring, pointCount))
		}
		s.parts = append(s.parts, part)
	}

	for _, part := range s.parts {
		for _, ring := range part {
			if variant == VariantV7 {
				off, err = readRingDeltas(data, off, ring, scale)
			} else {
				off, err = readRingDoubles(data, off, ring)
			}
			if err != nil {
				return nil, 0, err
			}
		}
	}

	geom, err := assembleGeometry(s)
	if err != nil {
		return nil, 0, err
	}

	return geom, off, nil
}

// readRingDeltas fills ring by accumulating running quantized x/y from an
// absolute origin plus deltas, dequantizing each point.
func readRingDeltas(data []byte, off int, ring orb.Ring, scale float64) (int, error) {
	var x, y int64
	var err error
	for i := range ring {
		var dx, dy int64
		dx, off, err = readSvarint(data, off, "coordinate x")
		if err != nil {
			return 0, err
		}
		dy, off, err = readSvarint(data, off, "coordinate y")
		if err != nil {
			return 0, err
		}
		if i == 0 {
			x, y = dx, dy
		} else {
			x += dx
			y += dy
		}
		ring[i] = orb.Point{dequantize(x, scale), dequantize(y, scale)}
	}
	return off, nil
}

// readRingDoubles fills ring from raw little-endian float64 pairs.
func readRingDoubles(data []byte, off int, ring orb.Ring) (int, error) {
	for i := range ring {
		if off+16 > len(data) {
			return 0, fmt.Errorf("%w: coordinate pair at offset %d", ErrTruncatedInput, off)
		}
		x := math.Float64frombits(binary.LittleEndian.Uint64(data[off:]))
		y := math.Float64frombits(binary.LittleEndian.Uint64(data[off+8:]))
		ring[i] = orb.Point{x, y}
		off += 16
	}
	return off, nil
}

// assembleGeometry rebuilds the orb.Geometry matching a decoded shape.
func assembleGeometry(s shape) (orb.Geometry, error) {
	switch s.tag {
	case geomPoint:
		if len(s.parts) == 0 {
			return orb.Point{}, nil
		}
		if len(s.parts) != 1 || len(s.parts[0]) != 1 || len(s.parts[0][0]) != 1 {
			return nil, fmt.Errorf("%w: malformed point structure", ErrUnsupportedFormat)
		}
		return orb.Point(s.parts[0][0][0]), nil

	case geomMultiPoint:
		if len(s.parts) == 0 {
			return orb.MultiPoint{}, nil
		}
		if len(s.parts) != 1 || len(s.parts[0]) != 1 {
			return nil, fmt.Errorf("%w: malformed multipoint structure", ErrUnsupportedFormat)
		}
		return orb.MultiPoint(s.parts[0][0]), nil

	case geomLineString:
		if len(s.parts) == 0 {
			return orb.LineString{}, nil
		}
		if len(s.parts) != 1 || len(s.parts[0]) != 1 {
			return nil, fmt.Errorf("%w: malformed linestring structure", ErrUnsupportedFormat)
		}
		return orb.LineString(s.parts[0][0]), nil

	case geomMultiLineString:
		mls := make(orb.MultiLineString, 0, len(s.parts))
		for _, part := range s.parts {
			if len(part) != 1 {
				return nil, fmt.Errorf("%w: malformed multilinestring structure", ErrUnsupportedFormat)
			}
			mls = append(mls, orb.LineString(part[0]))
		}
		return mls, nil

	case geomPolygon:
		if len(s.parts) == 0 {
			return orb.Polygon{}, nil
		}
		if len(s.parts) != 1 {
			return nil, fmt.Errorf("%w: malformed polygon structure", ErrUnsupportedFormat)
		}
		return orb.Polygon(s.parts[0]), nil

	default: // geomMultiPolygon, tag range checked by the caller
		mp := make(orb.MultiPolygon, 0, len(s.parts))
		for _, part := range s.parts {
			mp = append(mp, orb.Polygon(part))
		}
		return mp, nil
	}
}
