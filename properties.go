package sfbin

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb/geojson"
)

// FieldType is the type of one attribute value.
type FieldType uint8

const (
	TypeString FieldType = 0
	TypeInt    FieldType = 1
	TypeFloat  FieldType = 2
	TypeBool   FieldType = 3

	// tagNull marks a null value in dynamic attribute blocks. Static
	// blocks use a presence byte instead, so positional decoding stays
	// unambiguous.
	tagNull = 4
)

// String returns the field type name.
func (t FieldType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeBool:
		return "bool"
	default:
		return "unknown"
	}
}

// Field is one (name, type) entry of a static schema.
type Field struct {
	Name string
	Type FieldType
}

// normalizeValue reduces a property value from the GeoJSON bridge to the
// codec's value domain: string, int64, float64, bool or null. Integer
// kinds collapse to int64 and float kinds to float64; anything else is a
// schema mismatch.
func normalizeValue(v interface{}) (interface{}, FieldType, bool, error) {
	switch val := v.(type) {
	case nil:
		return nil, 0, true, nil
	case string:
		return val, TypeString, false, nil
	case bool:
		return val, TypeBool, false, nil
	case int:
		return int64(val), TypeInt, false, nil
	case int8:
		return int64(val), TypeInt, false, nil
	case int16:
		return int64(val), TypeInt, false, nil
	case int32:
		return int64(val), TypeInt, false, nil
	case int64:
		return val, TypeInt, false, nil
	case uint:
		return int64(val), TypeInt, false, nil
	case uint8:
		return int64(val), TypeInt, false, nil
	case uint16:
		return int64(val), TypeInt, false, nil
	case uint32:
		return int64(val), TypeInt, false, nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, 0, false, fmt.Errorf("%w: attribute value %d overflows int64", ErrSchemaMismatch, val)
		}
		return int64(val), TypeInt, false, nil
	case float32:
		return float64(val), TypeFloat, false, nil
	case float64:
		return val, TypeFloat, false, nil
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i, TypeInt, false, nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, 0, false, fmt.Errorf("%w: unparseable number %q", ErrSchemaMismatch, string(val))
		}
		return f, TypeFloat, false, nil
	default:
		return nil, 0, false, fmt.Errorf("%w: unsupported attribute value type %T", ErrSchemaMismatch, v)
	}
}

// sortedKeys returns a feature's property names in sorted order, so the
// encoded output is deterministic regardless of map iteration order.
func sortedKeys(props geojson.Properties) []string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// resolveSchema decides how a collection's attributes are encoded. A
// collection is static-eligible iff every feature has exactly the same
// field name to type mapping; null values match any type, and a field
// that is null in every feature defaults to string. SchemaStatic fails
// with ErrSchemaMismatch on the first deviation, before any feature
// bytes are written. Field order is sorted by name.
func resolveSchema(features []*geojson.Feature, mode SchemaMode) (schemaKind, []Field, error) {
	if mode == SchemaDynamic {
		return schemaKindDynamic, nil, nil
	}

	types := make(map[string]FieldType)
	seen := make(map[string]bool)
	eligible := true
	var reason error

	for i, f := range features {
		var props geojson.Properties
		if f != nil {
			props = f.Properties
		}

		if i > 0 && len(props) != len(seen) {
			eligible = false
			reason = fmt.Errorf("%w: feature %d has %d fields, schema has %d", ErrSchemaMismatch, i, len(props), len(seen))
		}

		for _, name := range sortedKeys(props) {
			_, t, isNull, err := normalizeValue(props[name])
			if err != nil {
				return 0, nil, err
			}
			if i > 0 && !seen[name] {
				eligible = false
				reason = fmt.Errorf("%w: feature %d adds field %q", ErrSchemaMismatch, i, name)
			}
			if i == 0 {
				seen[name] = true
			}
			if isNull {
				continue
			}
			prev, ok := types[name]
			if !ok {
				types[name] = t
			} else if prev != t {
				eligible = false
				reason = fmt.Errorf("%w: field %q is %s in one feature and %s in another", ErrSchemaMismatch, name, prev, t)
			}
		}
	}

	if !eligible {
		if mode == SchemaStatic {
			return 0, nil, reason
		}
		return schemaKindDynamic, nil, nil
	}

	fields := make([]Field, 0, len(seen))
	for _, name := range sortedKeysBool(seen) {
		t, ok := types[name]
		if !ok {
			t = TypeString // null in every feature
		}
		fields = append(fields, Field{Name: name, Type: t})
	}

	return schemaKindStatic, fields, nil
}

func sortedKeysBool(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// appendStaticSchema writes the shared schema block: field count, then
// per field the name and type tag.
func appendStaticSchema(buf []byte, fields []Field) []byte {
	buf = appendUvarint(buf, uint64(len(fields)))
	for _, f := range fields {
		buf = appendUvarint(buf, uint64(len(f.Name)))
		buf = append(buf, f.Name...)
		buf = append(buf, byte(f.Type))
	}
	return buf
}

// readStaticSchema decodes the shared schema block.
func readStaticSchema(data []byte, off int) ([]Field, int, error) {
	count, off, err := readUvarint(data, off, "schema field count")
	if err != nil {
		return nil, 0, err
	}
	if count > uint64(len(data)-off) {
		return nil, 0, fmt.Errorf("%w: schema field count %d at offset %d", ErrTruncatedInput, count, off)
	}

	fields := make([]Field, 0, count)
	for i := uint64(0); i < count; i++ {
		var name string
		name, off, err = readString(data, off, "schema field name")
		if err != nil {
			return nil, 0, err
		}
		if off >= len(data) {
			return nil, 0, fmt.Errorf("%w: schema field type at offset %d", ErrTruncatedInput, off)
		}
		t := FieldType(data[off])
		off++
		if t > TypeBool {
			return nil, 0, fmt.Errorf("%w: unknown field type tag %d at offset %d", ErrUnsupportedFormat, t, off-1)
		}
		fields = append(fields, Field{Name: name, Type: t})
	}

	return fields, off, nil
}

// appendStaticValues writes a feature's values in schema order. Null is
// tagged by a zero presence byte, never by omission. The caller has
// already validated the collection against the schema, so a deviation
// here means the feature set changed mid-encode.
func appendStaticValues(buf []byte, props geojson.Properties, fields []Field) ([]byte, error) {
	if len(props) != len(fields) {
		return nil, fmt.Errorf("%w: feature has %d fields, schema has %d", ErrSchemaMismatch, len(props), len(fields))
	}
	for _, f := range fields {
		raw, ok := props[f.Name]
		if !ok {
			return nil, fmt.Errorf("%w: feature is missing field %q", ErrSchemaMismatch, f.Name)
		}
		val, t, isNull, err := normalizeValue(raw)
		if err != nil {
			return nil, err
		}
		if isNull {
			buf = append(buf, 0)
			continue
		}
		if t != f.Type {
			return nil, fmt.Errorf("%w: field %q is %s, schema declares %s", ErrSchemaMismatch, f.Name, t, f.Type)
		}
		buf = append(buf, 1)
		buf = appendValue(buf, val, t)
	}
	return buf, nil
}

// readStaticValues decodes one feature's positional values.
func readStaticValues(data []byte, off int, fields []Field) (geojson.Properties, int, error) {
	props := make(geojson.Properties, len(fields))
	for _, f := range fields {
		if off >= len(data) {
			return nil, 0, fmt.Errorf("%w: presence byte for field %q at offset %d", ErrTruncatedInput, f.Name, off)
		}
		present := data[off]
		off++
		if present == 0 {
			props[f.Name] = nil
			continue
		}
		var val interface{}
		var err error
		val, off, err = readValue(data, off, f.Type, f.Name)
		if err != nil {
			return nil, 0, err
		}
		props[f.Name] = val
	}
	return props, off, nil
}

// appendDynamicValues writes a feature's attributes as self-describing
// (name, type tag, value) triples in sorted name order.
func appendDynamicValues(buf []byte, props geojson.Properties) ([]byte, error) {
	buf = appendUvarint(buf, uint64(len(props)))
	for _, name := range sortedKeys(props) {
		val, t, isNull, err := normalizeValue(props[name])
		if err != nil {
			return nil, err
		}
		buf = appendUvarint(buf, uint64(len(name)))
		buf = append(buf, name...)
		if isNull {
			buf = append(buf, tagNull)
			continue
		}
		buf = append(buf, byte(t))
		buf = appendValue(buf, val, t)
	}
	return buf, nil
}

// readDynamicValues decodes one feature's self-describing attributes.
func readDynamicValues(data []byte, off int) (geojson.Properties, int, error) {
	count, off, err := readUvarint(data, off, "attribute count")
	if err != nil {
		return nil, 0, err
	}
	if count > uint64(len(data)-off) {
		return nil, 0, fmt.Errorf("%w: attribute count %d at offset %d", ErrTruncatedInput, count, off)
	}

	props := make(geojson.Properties, count)
	for i := uint64(0); i < count; i++ {
		var name string
		name, off, err = readString(data, off, "attribute name")
		if err != nil {
			return nil, 0, err
		}
		if off >= len(data) {
			return nil, 0, fmt.Errorf("%w: type tag for attribute %q at offset %d", ErrTruncatedInput, name, off)
		}
		tag := data[off]
		off++
		if tag == tagNull {
			props[name] = nil
			continue
		}
		if FieldType(tag) > TypeBool {
			return nil, 0, fmt.Errorf("%w: unknown value type tag %d at offset %d", ErrUnsupportedFormat, tag, off-1)
		}
		var val interface{}
		val, off, err = readValue(data, off, FieldType(tag), name)
		if err != nil {
			return nil, 0, err
		}
		props[name] = val
	}
	return props, off, nil
}

// appendValue writes one non-null normalized value.
func appendValue(buf []byte, val interface{}, t FieldType) []byte {
	switch t {
	case TypeString:
		s := val.(string)
		buf = appendUvarint(buf, uint64(len(s)))
		buf = append(buf, s...)
	case TypeInt:
		buf = appendSvarint(buf, val.(int64))
	case TypeFloat:
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(val.(float64)))
	case TypeBool:
		if val.(bool) {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	}
	return buf
}

// readValue decodes one non-null value of a known type.
func readValue(data []byte, off int, t FieldType, name string) (interface{}, int, error) {
	switch t {
	case TypeString:
		return readString(data, off, "value of "+name)
	case TypeInt:
		v, next, err := readSvarint(data, off, "value of "+name)
		if err != nil {
			return nil, 0, err
		}
		return v, next, nil
	case TypeFloat:
		if off+8 > len(data) {
			return nil, 0, fmt.Errorf("%w: value of %s at offset %d", ErrTruncatedInput, name, off)
		}
		bits := binary.LittleEndian.Uint64(data[off:])
		return math.Float64frombits(bits), off + 8, nil
	default: // TypeBool, tag range checked by the caller
		if off >= len(data) {
			return nil, 0, fmt.Errorf("%w: value of %s at offset %d", ErrTruncatedInput, name, off)
		}
		return data[off] != 0, off + 1, nil
	}
}

// readString decodes a length-prefixed string.
func readString(data []byte, off int, field string) (string, int, error) {
	n, off, err := readUvarint(data, off, field+" length")
	if err != nil {
		return "", 0, err
	}
	if n > uint64(len(data)-off) {
		return "", 0, fmt.Errorf("%w: %s at offset %d", ErrTruncatedInput, field, off)
	}
	return string(data[off : off+int(n)]), off + int(n), nil
}
