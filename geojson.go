package sfbin

import (
	"fmt"

	"github.com/paulmach/orb/geojson"
)

// FromGeoJSON parses GeoJSON text into a feature collection suitable for
// Marshal. A bare Feature or Geometry document is wrapped into a
// single-feature collection.
func FromGeoJSON(data []byte) (*geojson.FeatureCollection, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err == nil {
		return fc, nil
	}

	if f, ferr := geojson.UnmarshalFeature(data); ferr == nil {
		fc = geojson.NewFeatureCollection()
		fc.Append(f)
		return fc, nil
	}

	if g, gerr := geojson.UnmarshalGeometry(data); gerr == nil {
		fc = geojson.NewFeatureCollection()
		fc.Append(geojson.NewFeature(g.Geometry()))
		return fc, nil
	}

	return nil, fmt.Errorf("%w: %v", ErrInvalidGeoJSON, err)
}

// ToGeoJSON renders a feature collection as compact GeoJSON text.
func ToGeoJSON(fc *geojson.FeatureCollection) ([]byte, error) {
	if fc == nil {
		return nil, ErrNilCollection
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGeoJSON, err)
	}
	return data, nil
}
