package osm

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// LoadBoundary reads a GeoJSON file and collects every polygon into the
// priority multipolygon that restricts statistics and validation.
func LoadBoundary(path string) (orb.MultiPolygon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading boundary file: %w", err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		// Not a collection; try a single feature.
		f, ferr := geojson.UnmarshalFeature(data)
		if ferr != nil {
			return nil, fmt.Errorf("parsing boundary file %s: %w", path, err)
		}
		fc = geojson.NewFeatureCollection()
		fc.Append(f)
	}

	var mp orb.MultiPolygon
	for _, f := range fc.Features {
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			mp = append(mp, g)
		case orb.MultiPolygon:
			mp = append(mp, g...)
		}
	}
	if len(mp) == 0 {
		return nil, fmt.Errorf("boundary file %s contains no polygons", path)
	}
	return mp, nil
}
