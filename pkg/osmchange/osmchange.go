package osmchange

import (
	"github.com/paulmach/orb"

	"github.com/yuiseki/underpass/pkg/osm"
)

// Change is one action block from an osmChange document: a create, modify
// or delete element together with every entity it contains.
type Change struct {
	Action    osm.Action
	Nodes     []*osm.Node
	Ways      []*osm.Way
	Relations []*osm.Relation
}

// NewChange starts an empty change with the given action.
func NewChange(action osm.Action) *Change {
	return &Change{Action: action}
}

// ChangeStats holds the per-user counters for one change file. All
// counters start at zero.
type ChangeStats struct {
	UserID              int64
	PoisAdded           int
	PoisModified        int
	BuildingsAdded      int
	BuildingsModified   int
	RoadsAdded          int
	RoadsModified       int
	RoadsKmAdded        float64
	RoadsKmModified     float64
	WaterwaysAdded      int
	WaterwaysModified   int
	WaterwaysKmAdded    float64
	WaterwaysKmModified float64
}

// ChangeFile is one parsed osmChange document: the ordered list of
// changes, the node coordinate cache used to resolve way geometry, and the
// per-user statistics filled in after resolution.
type ChangeFile struct {
	Changes   []*Change
	NodeCache map[int64]orb.Point
	UserStats map[int64]*ChangeStats
}

// NewChangeFile returns an empty change file with initialized maps.
func NewChangeFile() *ChangeFile {
	return &ChangeFile{
		NodeCache: make(map[int64]orb.Point),
		UserStats: make(map[int64]*ChangeStats),
	}
}

// Stats returns the counter record for a user, creating it on first use.
func (cf *ChangeFile) Stats(uid int64) *ChangeStats {
	s, ok := cf.UserStats[uid]
	if !ok {
		s = &ChangeStats{UserID: uid}
		cf.UserStats[uid] = s
	}
	return s
}
