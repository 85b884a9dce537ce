package osm

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

func TestIsClosed(t *testing.T) {
	tests := []struct {
		name string
		refs []int64
		want bool
	}{
		{"square ring", []int64{1, 2, 3, 4, 1}, true},
		{"open way", []int64{1, 2, 3, 4}, false},
		{"triangle ring", []int64{1, 2, 3, 1}, true},
		{"too short", []int64{1, 2, 1}, false},
		{"empty", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &Way{Refs: tt.refs}
			assert.Equal(t, tt.want, w.IsClosed())
			assert.Equal(t, len(tt.refs), w.NumPoints())
		})
	}
}

func TestHaversine(t *testing.T) {
	// One degree of latitude is about 111.19 km on a sphere of R=6371.
	d := Haversine(orb.Point{0, 0}, orb.Point{0, 1})
	assert.InDelta(t, 111.19, d, 0.05)

	// One degree of longitude at 60N is half that.
	d = Haversine(orb.Point{0, 60}, orb.Point{1, 60})
	assert.InDelta(t, 111.19/2, d, 0.1)

	assert.Zero(t, Haversine(orb.Point{10, 20}, orb.Point{10, 20}))
}

func TestWayLength(t *testing.T) {
	w := &Way{
		LineString: orb.LineString{{0, 0}, {0, 1}, {0, 2}},
	}
	// Two one-degree meridian segments, compared with the rounded 111.19 km
	// per degree plus 50 m of slack.
	assert.InDelta(t, 2*111.19, w.Length(), 2*111.19*1e-5+0.05)

	assert.Zero(t, (&Way{}).Length())
}

func TestWithin(t *testing.T) {
	square := orb.MultiPolygon{
		{{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}},
	}

	tests := []struct {
		name  string
		point orb.Point
		want  bool
	}{
		{"center", orb.Point{5, 5}, true},
		{"outside", orb.Point{15, 5}, false},
		{"on edge", orb.Point{0, 5}, false},
		{"on vertex", orb.Point{0, 0}, false},
		{"near edge inside", orb.Point{0.001, 5}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Within(tt.point, square))
		})
	}
}

func TestWithinHole(t *testing.T) {
	donut := orb.MultiPolygon{
		{
			{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}},
			{{4, 4}, {6, 4}, {6, 6}, {4, 6}, {4, 4}},
		},
	}

	assert.True(t, Within(orb.Point{2, 2}, donut))
	assert.False(t, Within(orb.Point{5, 5}, donut))
}

func TestSquareRingArea(t *testing.T) {
	// A 10 m square near the equator: its shoelace area, scaled from
	// square degrees back to meters, is about 100 m2.
	side := 10.0 / 111190.0 // degrees
	ring := orb.Ring{{0, 0}, {side, 0}, {side, side}, {0, side}, {0, 0}}
	poly := orb.Polygon{ring}

	assert.False(t, math.Signbit(planarArea(poly)))
	// Roughly 100 m2 once scaled back to meters.
	areaM2 := planarArea(poly) * 111190.0 * 111190.0
	assert.InDelta(t, 100.0, areaM2, 1.0)
}

// planarArea is the shoelace area of the exterior ring, in square degrees.
func planarArea(p orb.Polygon) float64 {
	if len(p) == 0 {
		return 0
	}
	ring := p[0]
	var sum float64
	for i := 1; i < len(ring); i++ {
		sum += ring[i-1][0]*ring[i][1] - ring[i][0]*ring[i-1][1]
	}
	return math.Abs(sum / 2)
}
