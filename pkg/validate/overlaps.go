package validate

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/yuiseki/underpass/pkg/osm"
)

// roundCornerAngle is the first-corner angle below which a many-point
// ring is treated as a circle rather than a building.
const roundCornerAngle = 30.0

// Overlaps is the fast in-memory pre-check run before the database
// conflation pass. It only applies to buildings: highways overlap all the
// time. Ways on different layers are allowed to overlap.
func Overlaps(allWays []*osm.Way, way *osm.Way) bool {
	if way.NumPoints() <= 1 {
		return false
	}
	// It's probably a circle
	if way.NumPoints() > 5 && math.Abs(CornerAngle(way.LineString)) < roundCornerAngle {
		return false
	}
	for _, old := range allWays {
		if old.ID == way.ID {
			continue
		}
		if way.TagValue("layer") != old.TagValue("layer") {
			continue
		}
		if polygonsOverlap(way.Polygon, old.Polygon) {
			return true
		}
	}
	return false
}

// polygonsOverlap approximates a polygon overlap test: the bounds must
// intersect and at least one vertex of either ring must fall inside the
// other polygon. Exact boundary touches do not count.
func polygonsOverlap(a, b orb.Polygon) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	if !a.Bound().Intersects(b.Bound()) {
		return false
	}
	for _, p := range a[0] {
		if osm.Within(p, orb.MultiPolygon{b}) {
			return true
		}
	}
	for _, p := range b[0] {
		if osm.Within(p, orb.MultiPolygon{a}) {
			return true
		}
	}
	return false
}
