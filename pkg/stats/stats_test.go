package stats

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuiseki/underpass/pkg/log"
	"github.com/yuiseki/underpass/pkg/osm"
	"github.com/yuiseki/underpass/pkg/osmchange"
)

func init() {
	log.Init(log.Config{Level: log.ErrorLevel, JSONOutput: true})
}

func taggedWay(uid int64, key string, ls orb.LineString) *osm.Way {
	w := osm.NewWay()
	w.ID = 1000 + uid
	w.UID = uid
	w.AddTag(key, "yes")
	w.LineString = ls
	return w
}

func TestCollectCreate(t *testing.T) {
	cf := osmchange.NewChangeFile()
	change := osmchange.NewChange(osm.ActionCreate)
	cf.Changes = append(cf.Changes, change)

	// Untagged node counts as a POI.
	plain := osm.NewNode()
	plain.UID = 7
	change.Nodes = append(change.Nodes, plain)

	// Tagged node is only flagged.
	tagged := osm.NewNode()
	tagged.UID = 7
	tagged.AddTag("amenity", "school")
	change.Nodes = append(change.Nodes, tagged)

	meridian := orb.LineString{{0, 0}, {0, 1}}
	change.Ways = append(change.Ways,
		taggedWay(7, "building", nil),
		taggedWay(7, "highway", meridian),
		taggedWay(8, "waterway", meridian),
	)

	// Untagged way changes no counters.
	bare := osm.NewWay()
	bare.UID = 7
	change.Ways = append(change.Ways, bare)

	NewCollector().Collect(cf)

	s7 := cf.UserStats[7]
	require.NotNil(t, s7)
	assert.Equal(t, 1, s7.PoisAdded)
	assert.Equal(t, 1, s7.BuildingsAdded)
	assert.Equal(t, 1, s7.RoadsAdded)
	assert.InDelta(t, 111.19, s7.RoadsKmAdded, 0.05)
	assert.Zero(t, s7.WaterwaysAdded)

	s8 := cf.UserStats[8]
	require.NotNil(t, s8)
	assert.Equal(t, 1, s8.WaterwaysAdded)
	assert.InDelta(t, 111.19, s8.WaterwaysKmAdded, 0.05)
}

func TestCollectModify(t *testing.T) {
	cf := osmchange.NewChangeFile()
	change := osmchange.NewChange(osm.ActionModify)
	cf.Changes = append(cf.Changes, change)

	node := osm.NewNode()
	node.UID = 3
	change.Nodes = append(change.Nodes, node)

	meridian := orb.LineString{{0, 0}, {0, 2}}
	change.Ways = append(change.Ways,
		taggedWay(3, "building", nil),
		taggedWay(3, "highway", meridian),
	)

	NewCollector().Collect(cf)

	s := cf.UserStats[3]
	require.NotNil(t, s)
	assert.Equal(t, 1, s.PoisModified)
	assert.Equal(t, 1, s.BuildingsModified)
	assert.Equal(t, 1, s.RoadsModified)
	assert.InDelta(t, 2*111.19, s.RoadsKmModified, 0.1)
	assert.Zero(t, s.RoadsAdded)
}

func TestCollectIgnoresRemove(t *testing.T) {
	cf := osmchange.NewChangeFile()
	change := osmchange.NewChange(osm.ActionRemove)
	node := osm.NewNode()
	node.UID = 9
	change.Nodes = append(change.Nodes, node)
	cf.Changes = append(cf.Changes, change)

	NewCollector().Collect(cf)
	assert.Empty(t, cf.UserStats)
}

func TestRoadKmMatchesWayLengths(t *testing.T) {
	// The km counters must equal the sum of the way lengths to within
	// 1 m per 100 km.
	cf := osmchange.NewChangeFile()
	create := osmchange.NewChange(osm.ActionCreate)
	modify := osmchange.NewChange(osm.ActionModify)
	cf.Changes = append(cf.Changes, create, modify)

	w1 := taggedWay(5, "highway", orb.LineString{{0, 0}, {0, 1}, {1, 1}})
	w2 := taggedWay(5, "highway", orb.LineString{{10, 10}, {10, 11}})
	create.Ways = append(create.Ways, w1)
	modify.Ways = append(modify.Ways, w2)

	NewCollector().Collect(cf)

	total := cf.UserStats[5].RoadsKmAdded + cf.UserStats[5].RoadsKmModified
	want := w1.Length() + w2.Length()
	assert.InDelta(t, want, total, want*1e-5)
}
