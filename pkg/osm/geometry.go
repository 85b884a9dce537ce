package osm

import (
	"math"

	"github.com/paulmach/orb"
)

// EarthRadiusKm is the spherical earth radius used for great-circle
// distances.
const EarthRadiusKm = 6371.0

// IsClosed reports whether the way forms a ring: at least 4 refs with the
// first and last identical. A closed way is written to the polygon table,
// anything else to the line table.
func (w *Way) IsClosed() bool {
	return len(w.Refs) >= 4 && w.Refs[0] == w.Refs[len(w.Refs)-1]
}

// NumPoints returns the number of node references in the way.
func (w *Way) NumPoints() int {
	return len(w.Refs)
}

// Length returns the great-circle length of the resolved linestring in
// kilometres.
func (w *Way) Length() float64 {
	var total float64
	for i := 1; i < len(w.LineString); i++ {
		total += Haversine(w.LineString[i-1], w.LineString[i])
	}
	return total
}

// Haversine returns the great-circle distance between two points in
// kilometres on a spherical earth.
func Haversine(a, b orb.Point) float64 {
	lat1 := a.Lat() * math.Pi / 180
	lat2 := b.Lat() * math.Pi / 180
	dlat := lat2 - lat1
	dlon := (b.Lon() - a.Lon()) * math.Pi / 180

	h := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}

// Within reports whether the point lies strictly inside the multipolygon.
// Points on a boundary edge are excluded.
func Within(p orb.Point, mp orb.MultiPolygon) bool {
	for _, poly := range mp {
		if polygonContains(poly, p) {
			return true
		}
	}
	return false
}

func polygonContains(poly orb.Polygon, p orb.Point) bool {
	if len(poly) == 0 || !ringContains(poly[0], p) {
		return false
	}
	// Holes
	for _, ring := range poly[1:] {
		if ringContains(ring, p) {
			return false
		}
	}
	return true
}

// ringContains is a ray cast to the east. A point exactly on an edge or
// vertex counts as outside.
func ringContains(ring orb.Ring, p orb.Point) bool {
	if len(ring) < 3 {
		return false
	}
	inside := false
	j := len(ring) - 1
	for i := 0; i < len(ring); i++ {
		a, b := ring[i], ring[j]
		if onSegment(a, b, p) {
			return false
		}
		if (a[1] > p[1]) != (b[1] > p[1]) {
			x := (b[0]-a[0])*(p[1]-a[1])/(b[1]-a[1]) + a[0]
			if p[0] < x {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

func onSegment(a, b, p orb.Point) bool {
	cross := (b[0]-a[0])*(p[1]-a[1]) - (b[1]-a[1])*(p[0]-a[0])
	if math.Abs(cross) > 1e-12 {
		return false
	}
	return p[0] >= math.Min(a[0], b[0]) && p[0] <= math.Max(a[0], b[0]) &&
		p[1] >= math.Min(a[1], b[1]) && p[1] <= math.Max(a[1], b[1])
}
