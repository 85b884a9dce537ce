package osm

import (
	"time"

	"github.com/paulmach/orb"
)

// Action is the kind of edit an entity carries within a change file.
type Action string

const (
	ActionNone   Action = "none"
	ActionCreate Action = "create"
	ActionModify Action = "modify"
	// ActionRemove maps the <delete> element; delete is avoided as a name
	// so the action reads the same across the codebase and the database.
	ActionRemove Action = "remove"
)

// ObjectType identifies which OSM primitive a record refers to.
type ObjectType string

const (
	TypeNode     ObjectType = "node"
	TypeWay      ObjectType = "way"
	TypeRelation ObjectType = "relation"
)

// Node is a single OSM node within one change.
type Node struct {
	ID        int64
	Version   uint32
	Changeset int64
	UID       int64
	User      string
	Timestamp time.Time
	Point     orb.Point // lon = X, lat = Y
	Tags      map[string]string
	Action    Action
}

// NewNode returns a node with an empty tag map.
func NewNode() *Node {
	return &Node{Tags: make(map[string]string)}
}

// AddTag sets a tag on the node.
func (n *Node) AddTag(key, value string) {
	if n.Tags == nil {
		n.Tags = make(map[string]string)
	}
	n.Tags[key] = value
}

// Way is a single OSM way within one change. The linestring and polygon
// are derived geometry, filled in once the refs are resolved against the
// node cache.
type Way struct {
	ID         int64
	Version    uint32
	Changeset  int64
	UID        int64
	User       string
	Timestamp  time.Time
	Refs       []int64
	Tags       map[string]string
	Action     Action
	LineString orb.LineString
	Polygon    orb.Polygon
}

// NewWay returns a way with an empty tag map.
func NewWay() *Way {
	return &Way{Tags: make(map[string]string)}
}

// AddTag sets a tag on the way.
func (w *Way) AddTag(key, value string) {
	if w.Tags == nil {
		w.Tags = make(map[string]string)
	}
	w.Tags[key] = value
}

// AddRef appends a node reference to the way.
func (w *Way) AddRef(ref int64) {
	w.Refs = append(w.Refs, ref)
}

// HasTag reports whether the way carries the given tag key.
func (w *Way) HasTag(key string) bool {
	_, ok := w.Tags[key]
	return ok
}

// TagValue returns the value for a tag key, or the empty string.
func (w *Way) TagValue(key string) string {
	return w.Tags[key]
}

// Member is one entry in a relation's ordered member list.
type Member struct {
	Type ObjectType
	Ref  int64
	Role string
}

// Relation is a single OSM relation within one change. Geometry synthesis
// for relations is deferred; they participate in catalog metadata only.
type Relation struct {
	ID        int64
	Version   uint32
	Changeset int64
	UID       int64
	User      string
	Timestamp time.Time
	Members   []Member
	Tags      map[string]string
	Action    Action
}

// NewRelation returns a relation with an empty tag map.
func NewRelation() *Relation {
	return &Relation{Tags: make(map[string]string)}
}

// AddTag sets a tag on the relation.
func (r *Relation) AddTag(key, value string) {
	if r.Tags == nil {
		r.Tags = make(map[string]string)
	}
	r.Tags[key] = value
}

// AddMember appends a member to the relation.
func (r *Relation) AddMember(m Member) {
	r.Members = append(r.Members, m)
}
