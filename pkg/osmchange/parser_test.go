package osmchange

import (
	"bytes"
	"compress/gzip"
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuiseki/underpass/pkg/osm"
)

const sampleChange = `<?xml version="1.0" encoding="UTF-8"?>
<osmChange version="0.6" generator="openstreetmap-cgimap">
  <create>
    <node id="34567" version="1" timestamp="2020-10-30T20:15:24Z" uid="3333333" user="bar" changeset="93309184" lat="45.4303763" lon="10.9837526"/>
    <way id="800" version="1" timestamp="2020-10-30T20:15:24Z" uid="3333333" user="bar" changeset="93309184">
      <nd ref="1"/>
      <nd ref="2"/>
      <nd ref="3"/>
      <nd ref="4"/>
      <nd ref="1"/>
      <tag k="building" v="yes"/>
    </way>
  </create>
  <modify>
    <node id="12345" version="7" timestamp="2020-10-30T20:40:38Z" uid="111111" user="foo" changeset="93310152" lat="50.9176152" lon="-1.3751891">
      <tag k="amenity" v="school"/>
    </node>
  </modify>
  <delete>
    <node id="23456" version="7" timestamp="2020-10-30T20:40:38Z" uid="22222" user="foo" changeset="93310152" lat="50.9176152" lon="-1.3751891"/>
    <relation id="55" version="2" timestamp="2020-10-30T20:40:38Z" uid="22222" user="foo" changeset="93310152">
      <member type="way" ref="800" role="outer"/>
      <tag k="type" v="multipolygon"/>
    </relation>
  </delete>
</osmChange>
`

func TestParseSampleChange(t *testing.T) {
	cf, err := Parse(strings.NewReader(sampleChange))
	require.NoError(t, err)
	require.Len(t, cf.Changes, 3)

	create := cf.Changes[0]
	assert.Equal(t, osm.ActionCreate, create.Action)
	require.Len(t, create.Nodes, 1)
	require.Len(t, create.Ways, 1)

	node := create.Nodes[0]
	assert.Equal(t, int64(34567), node.ID)
	assert.Equal(t, uint32(1), node.Version)
	assert.Equal(t, int64(93309184), node.Changeset)
	assert.Equal(t, int64(3333333), node.UID)
	assert.Equal(t, "bar", node.User)
	assert.Equal(t, orb.Point{10.9837526, 45.4303763}, node.Point)
	assert.Equal(t, time.Date(2020, 10, 30, 20, 15, 24, 0, time.UTC), node.Timestamp)
	assert.Equal(t, osm.ActionCreate, node.Action)

	way := create.Ways[0]
	assert.Equal(t, int64(800), way.ID)
	assert.Equal(t, []int64{1, 2, 3, 4, 1}, way.Refs)
	assert.Equal(t, "yes", way.TagValue("building"))
	assert.True(t, way.IsClosed())

	modify := cf.Changes[1]
	assert.Equal(t, osm.ActionModify, modify.Action)
	require.Len(t, modify.Nodes, 1)
	assert.Equal(t, "school", modify.Nodes[0].Tags["amenity"])

	del := cf.Changes[2]
	assert.Equal(t, osm.ActionRemove, del.Action)
	require.Len(t, del.Nodes, 1)
	require.Len(t, del.Relations, 1)

	rel := del.Relations[0]
	assert.Equal(t, int64(55), rel.ID)
	require.Len(t, rel.Members, 1)
	assert.Equal(t, osm.Member{Type: osm.TypeWay, Ref: 800, Role: "outer"}, rel.Members[0])
	assert.Equal(t, "multipolygon", rel.Tags["type"])
}

func TestParseFillsNodeCache(t *testing.T) {
	cf, err := Parse(strings.NewReader(sampleChange))
	require.NoError(t, err)

	// Created and modified nodes are cached; the deleted one is not.
	assert.Contains(t, cf.NodeCache, int64(34567))
	assert.Contains(t, cf.NodeCache, int64(12345))
	assert.NotContains(t, cf.NodeCache, int64(23456))
	assert.Equal(t, orb.Point{10.9837526, 45.4303763}, cf.NodeCache[34567])
}

func TestParseGzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(sampleChange))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	cf, err := Parse(&buf)
	require.NoError(t, err)
	assert.Len(t, cf.Changes, 3)
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"truncated", `<osmChange><create><node id="1"`},
		{"unclosed change", `<osmChange><create><node id="1"/>`},
		{"entity outside change", `<osmChange><node id="1"/></osmChange>`},
		{"nested change", `<osmChange><create><modify/></create></osmChange>`},
		{"bad nd ref", `<osmChange><create><way id="1"><nd ref="abc"/></way></create></osmChange>`},
		{"not xml", "just some text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			assert.ErrorIs(t, err, ErrBadChange)
		})
	}
}

func TestParseIgnoresUnknownAttributes(t *testing.T) {
	input := `<osmChange><create><node id="9" lat="1.5" lon="2.5" visible="true" mystery="x"/></create></osmChange>`
	cf, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, cf.Changes, 1)
	assert.Equal(t, orb.Point{2.5, 1.5}, cf.Changes[0].Nodes[0].Point)
}

func TestStatsAccessor(t *testing.T) {
	cf := NewChangeFile()
	s := cf.Stats(42)
	s.BuildingsAdded++

	assert.Same(t, s, cf.Stats(42))
	assert.Equal(t, 1, cf.Stats(42).BuildingsAdded)
	assert.Equal(t, int64(42), s.UserID)
}
