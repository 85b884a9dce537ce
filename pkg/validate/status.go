package validate

import (
	"time"

	"github.com/paulmach/orb"

	"github.com/yuiseki/underpass/pkg/osm"
)

// Status is one quality signal attached to a feature. The strings match
// the status column values in the validation schema.
type Status string

const (
	StatusNoTags     Status = "notags"
	StatusComplete   Status = "complete"
	StatusIncomplete Status = "incomplete"
	StatusBadValue   Status = "badvalue"
	StatusCorrect    Status = "correct"
	StatusBadGeom    Status = "badgeom"
	StatusOrphan     Status = "orphan"
	// StatusOverlapping keeps the historical column spelling.
	StatusOverlapping Status = "overlaping"
	StatusDuplicate   Status = "duplicate"
)

// ValidateStatus is the per-feature quality record produced by the
// validators and the conflation engine.
type ValidateStatus struct {
	OsmID     int64
	ObjType   osm.ObjectType
	UserID    int64
	ChangeID  int64
	Timestamp time.Time
	Center    orb.Point
	Angle     float64
	Status    map[Status]struct{}
	Values    map[string]struct{}
}

// NewStatus creates an empty record for a feature.
func NewStatus(objType osm.ObjectType, osmID int64) *ValidateStatus {
	return &ValidateStatus{
		OsmID:   osmID,
		ObjType: objType,
		Status:  make(map[Status]struct{}),
		Values:  make(map[string]struct{}),
	}
}

// NewWayStatus creates a record carrying a way's identity.
func NewWayStatus(way *osm.Way) *ValidateStatus {
	vs := NewStatus(osm.TypeWay, way.ID)
	vs.UserID = way.UID
	vs.ChangeID = way.Changeset
	vs.Timestamp = way.Timestamp
	return vs
}

// Add sets a status value on the record.
func (vs *ValidateStatus) Add(s Status) {
	vs.Status[s] = struct{}{}
}

// HasStatus reports whether the record carries a status value.
func (vs *ValidateStatus) HasStatus(s Status) bool {
	_, ok := vs.Status[s]
	return ok
}
