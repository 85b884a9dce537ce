package validate

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"

	"github.com/yuiseki/underpass/pkg/osm"
)

func square(id int64, x, y, side float64) *osm.Way {
	w := osm.NewWay()
	w.ID = id
	w.Refs = []int64{1, 2, 3, 4, 1}
	w.LineString = orb.LineString{
		{x, y}, {x + side, y}, {x + side, y + side}, {x, y + side}, {x, y},
	}
	w.Polygon = orb.Polygon{orb.Ring(w.LineString)}
	return w
}

func TestOverlaps(t *testing.T) {
	a := square(1, 0, 0, 10)
	overlapping := square(2, 5, 5, 10)
	disjoint := square(3, 100, 100, 10)

	assert.True(t, Overlaps([]*osm.Way{overlapping}, a))
	assert.False(t, Overlaps([]*osm.Way{disjoint}, a))

	// A way never overlaps itself.
	assert.False(t, Overlaps([]*osm.Way{a}, a))
}

func TestOverlapsRespectsLayer(t *testing.T) {
	a := square(1, 0, 0, 10)
	b := square(2, 5, 5, 10)
	b.AddTag("layer", "1")

	// Different layers may legitimately overlap.
	assert.False(t, Overlaps([]*osm.Way{b}, a))

	a.AddTag("layer", "1")
	assert.True(t, Overlaps([]*osm.Way{b}, a))
}

func TestOverlapsSkipsRoundBuildings(t *testing.T) {
	// A many-point ring with a shallow first corner is treated as a
	// circle and skipped.
	w := osm.NewWay()
	w.ID = 9
	w.Refs = []int64{1, 2, 3, 4, 5, 6, 1}
	w.LineString = orb.LineString{
		{0, 0}, {1, 0.02}, {2, 0.08}, {2.5, 0.2}, {2, 0.5}, {1, 0.4}, {0, 0},
	}
	w.Polygon = orb.Polygon{orb.Ring(w.LineString)}

	other := square(2, 0, 0, 3)
	assert.False(t, Overlaps([]*osm.Way{other}, w))
}

func TestOverlapsDegenerate(t *testing.T) {
	w := osm.NewWay()
	w.Refs = []int64{1}
	assert.False(t, Overlaps(nil, w))
}
