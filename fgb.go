package sfbin

import (
	"bytes"
	"encoding/binary"
	"math"
	"strconv"

	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	fgbwriter "github.com/flatgeobuf/flatgeobuf/src/go/writer"
	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ExportFlatGeobuf renders a feature collection as a FlatGeobuf stream
// without a spatial index. It exists as a size and timing baseline for
// the sfbin format (the compare command and the benchmark suite); sfbin
// streams are not FlatGeobuf streams.
func ExportFlatGeobuf(fc *geojson.FeatureCollection) ([]byte, error) {
	if fc == nil || len(fc.Features) == 0 {
		return nil, ErrNilCollection
	}

	builder := flatbuffers.NewBuilder(4096)

	geomType := flattypes.GeometryTypeUnknown
	if s, err := normalizeGeometry(fc.Features[0].Geometry); err == nil {
		geomType = fgbGeometryType(s.tag)
		for _, f := range fc.Features[1:] {
			next, err := normalizeGeometry(f.Geometry)
			if err != nil || fgbGeometryType(next.tag) != geomType {
				geomType = flattypes.GeometryTypeUnknown
				break
			}
		}
	}

	header := fgbwriter.NewHeader(builder)
	header.SetGeometryType(geomType)

	columns, index := fgbColumns(fc.Features, builder)
	if len(columns) > 0 {
		header.SetColumns(columns)
	}

	gen := &fgbGenerator{features: fc.Features, columns: index}
	w := fgbwriter.NewWriter(header, false, gen, nil)

	var buf bytes.Buffer
	if _, err := w.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// fgbGeometryType maps an sfbin geometry tag to its FlatGeobuf type.
func fgbGeometryType(tag byte) flattypes.GeometryType {
	switch tag {
	case geomPoint:
		return flattypes.GeometryTypePoint
	case geomMultiPoint:
		return flattypes.GeometryTypeMultiPoint
	case geomLineString:
		return flattypes.GeometryTypeLineString
	case geomMultiLineString:
		return flattypes.GeometryTypeMultiLineString
	case geomPolygon:
		return flattypes.GeometryTypePolygon
	case geomMultiPolygon:
		return flattypes.GeometryTypeMultiPolygon
	default:
		return flattypes.GeometryTypeUnknown
	}
}

// fgbColumnType maps an sfbin field type to its FlatGeobuf column type.
func fgbColumnType(t FieldType) flattypes.ColumnType {
	switch t {
	case TypeInt:
		return flattypes.ColumnTypeLong
	case TypeFloat:
		return flattypes.ColumnTypeDouble
	case TypeBool:
		return flattypes.ColumnTypeBool
	default:
		return flattypes.ColumnTypeString
	}
}

// fgbColumns builds one column table covering every feature: first-seen
// fields in sorted order per feature, int promoted to double on conflict,
// anything else conflicting demoted to string.
func fgbColumns(features []*geojson.Feature, builder *flatbuffers.Builder) ([]*fgbwriter.Column, map[string]fgbColumn) {
	types := make(map[string]FieldType)
	order := make([]string, 0)

	for _, f := range features {
		if f == nil {
			continue
		}
		for _, name := range sortedKeys(f.Properties) {
			_, t, isNull, err := normalizeValue(f.Properties[name])
			if err != nil || isNull {
				continue
			}
			prev, ok := types[name]
			if !ok {
				types[name] = t
				order = append(order, name)
				continue
			}
			if prev == t {
				continue
			}
			if (prev == TypeInt && t == TypeFloat) || (prev == TypeFloat && t == TypeInt) {
				types[name] = TypeFloat
			} else {
				types[name] = TypeString
			}
		}
	}

	columns := make([]*fgbwriter.Column, 0, len(order))
	index := make(map[string]fgbColumn, len(order))
	for i, name := range order {
		col := fgbwriter.NewColumn(builder)
		col.SetName(name)
		col.SetTitle(name)
		col.SetType(fgbColumnType(types[name]))
		col.SetNullable(true)
		columns = append(columns, col)
		index[name] = fgbColumn{index: uint16(i), typ: types[name]}
	}

	return columns, index
}

type fgbColumn struct {
	index uint16
	typ   FieldType
}

// fgbGenerator feeds features to the FlatGeobuf writer one at a time.
type fgbGenerator struct {
	features []*geojson.Feature
	columns  map[string]fgbColumn
	pos      int
}

func (g *fgbGenerator) Generate() *fgbwriter.Feature {
	for g.pos < len(g.features) {
		f := g.features[g.pos]
		g.pos++
		if f == nil || f.Geometry == nil {
			continue
		}

		builder := flatbuffers.NewBuilder(1024)
		geom := fgbGeometry(f.Geometry, builder)
		if geom == nil {
			continue
		}

		feature := fgbwriter.NewFeature(builder)
		feature.SetGeometry(geom)
		if props := fgbProperties(f.Properties, g.columns); len(props) > 0 {
			feature.SetProperties(props)
		}
		return feature
	}
	return nil
}

// fgbGeometry converts a geometry via its normalized shape into the
// FlatGeobuf flat xy/ends representation.
func fgbGeometry(geom orb.Geometry, builder *flatbuffers.Builder) *fgbwriter.Geometry {
	s, err := normalizeGeometry(geom)
	if err != nil {
		return nil
	}

	g := fgbwriter.NewGeometry(builder)
	g.SetType(fgbGeometryType(s.tag))

	if s.tag == geomMultiPolygon {
		parts := make([]fgbwriter.Geometry, 0, len(s.parts))
		for _, part := range s.parts {
			pg := fgbwriter.NewGeometry(builder)
			pg.SetType(flattypes.GeometryTypePolygon)
			xy, ends := fgbFlatten(part)
			pg.SetXY(xy)
			pg.SetEnds(ends)
			parts = append(parts, *pg)
		}
		g.SetParts(parts)
		return g
	}

	rings := make([]orb.Ring, 0)
	for _, part := range s.parts {
		for _, ring := range part {
			rings = append(rings, ring)
		}
	}
	xy, ends := fgbFlatten(rings)
	g.SetXY(xy)
	if len(rings) > 1 || s.tag == geomPolygon || s.tag == geomMultiLineString {
		g.SetEnds(ends)
	}
	return g
}

// fgbFlatten concatenates rings into one xy array with cumulative ends.
func fgbFlatten(rings []orb.Ring) ([]float64, []uint32) {
	total := 0
	for _, r := range rings {
		total += len(r)
	}
	xy := make([]float64, 0, total*2)
	ends := make([]uint32, 0, len(rings))
	cum := uint32(0)
	for _, r := range rings {
		for _, p := range r {
			xy = append(xy, p[0], p[1])
		}
		cum += uint32(len(r))
		ends = append(ends, cum)
	}
	return xy, ends
}

// fgbProperties encodes properties as FlatGeobuf column index + value
// pairs. Strings are u32 length prefixed per the FlatGeobuf spec.
func fgbProperties(props geojson.Properties, columns map[string]fgbColumn) []byte {
	if len(props) == 0 || len(columns) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, name := range sortedKeys(props) {
		val, t, isNull, err := normalizeValue(props[name])
		if err != nil || isNull {
			continue
		}
		col, ok := columns[name]
		if !ok {
			continue
		}

		var idx [2]byte
		binary.LittleEndian.PutUint16(idx[:], col.index)
		buf.Write(idx[:])

		switch col.typ {
		case TypeInt:
			var b [8]byte
			binary.LittleEndian.PutUint64(b[:], uint64(val.(int64)))
			buf.Write(b[:])
		case TypeFloat:
			f, ok := val.(float64)
			if !ok && t == TypeInt {
				f = float64(val.(int64))
			}
			var b [8]byte
			binary.LittleEndian.PutUint64(b[:], math.Float64bits(f))
			buf.Write(b[:])
		case TypeBool:
			if val.(bool) {
				buf.WriteByte(1)
			} else {
				buf.WriteByte(0)
			}
		default:
			s := fgbString(val, t)
			var b [4]byte
			binary.LittleEndian.PutUint32(b[:], uint32(len(s)))
			buf.Write(b[:])
			buf.WriteString(s)
		}
	}

	return buf.Bytes()
}

// fgbString renders a value destined for a string column that conflicting
// feature types demoted from int, float or bool.
func fgbString(val interface{}, t FieldType) string {
	switch t {
	case TypeInt:
		return strconv.FormatInt(val.(int64), 10)
	case TypeFloat:
		return strconv.FormatFloat(val.(float64), 'g', -1, 64)
	case TypeBool:
		return strconv.FormatBool(val.(bool))
	default:
		return val.(string)
	}
}
