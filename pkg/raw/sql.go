package raw

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/paulmach/orb"

	"github.com/yuiseki/underpass/pkg/osm"
)

const (
	polyTable = "ways_poly"
	lineTable = "ways_line"
)

// Statement is one SQL command with its arguments, ready for Exec.
type Statement struct {
	SQL  string
	Args []any
}

// formatCoord renders a coordinate with 12 significant digits, the
// precision used throughout the raw schema.
func formatCoord(f float64) string {
	return fmt.Sprintf("%.12g", f)
}

func wktPoint(p orb.Point) string {
	return "POINT(" + formatCoord(p[0]) + " " + formatCoord(p[1]) + ")"
}

func wktCoords(ls orb.LineString) string {
	parts := make([]string, len(ls))
	for i, p := range ls {
		parts[i] = formatCoord(p[0]) + " " + formatCoord(p[1])
	}
	return strings.Join(parts, ",")
}

func wktLineString(ls orb.LineString) string {
	return "LINESTRING(" + wktCoords(ls) + ")"
}

func wktPolygon(poly orb.Polygon) string {
	rings := make([]string, len(poly))
	for i, ring := range poly {
		rings[i] = "(" + wktCoords(orb.LineString(ring)) + ")"
	}
	return "POLYGON(" + strings.Join(rings, ",") + ")"
}

// tagsJSON serializes a tag map to a JSON object, or nil for the NULL
// column value when the entity has no tags.
func tagsJSON(tags map[string]string) any {
	if len(tags) == 0 {
		return nil
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return nil
	}
	return string(data)
}

// nodeUpsert builds the conditional node upsert. A later-received older
// version is silently dropped: the guard keeps the row with the highest
// version regardless of arrival order.
func nodeUpsert(node *osm.Node) Statement {
	return Statement{
		SQL: `INSERT INTO nodes AS r (osm_id, geom, tags, timestamp, version, "user", uid, changeset)
VALUES ($1, ST_GeomFromText($2, 4326), $3, $4, $5, $6, $7, $8)
ON CONFLICT (osm_id) DO UPDATE
SET geom = ST_GeomFromText($2, 4326), tags = $3, timestamp = $4, version = $5, "user" = $6, uid = $7, changeset = $8
WHERE r.version < $5`,
		Args: []any{node.ID, wktPoint(node.Point), tagsJSON(node.Tags),
			node.Timestamp.UTC(), node.Version, node.User, node.UID, node.Changeset},
	}
}

// nodeDelete removes a node unconditionally.
func nodeDelete(id int64) Statement {
	return Statement{SQL: "DELETE FROM nodes WHERE osm_id = $1", Args: []any{id}}
}

// wayTable picks the destination table: closed rings with at least four
// refs land in ways_poly, open ways in ways_line.
func wayTable(way *osm.Way) string {
	if way.IsClosed() {
		return polyTable
	}
	return lineTable
}

// wayUpsert builds the conditional way upsert. Unlike nodes the guard is
// inclusive so replaying the same version is idempotent.
func wayUpsert(way *osm.Way) Statement {
	table := wayTable(way)
	var geom string
	if table == polyTable {
		geom = wktPolygon(way.Polygon)
	} else {
		geom = wktLineString(way.LineString)
	}
	return Statement{
		SQL: `INSERT INTO ` + table + ` AS r (osm_id, tags, refs, geom, timestamp, version, "user", uid, changeset)
VALUES ($1, $2, $3, ST_GeomFromText($4, 4326), $5, $6, $7, $8, $9)
ON CONFLICT (osm_id) DO UPDATE
SET tags = $2, refs = $3, geom = ST_GeomFromText($4, 4326), timestamp = $5, version = $6, "user" = $7, uid = $8, changeset = $9
WHERE r.version <= $6`,
		Args: []any{way.ID, tagsJSON(way.Tags), way.Refs, geom,
			way.Timestamp.UTC(), way.Version, way.User, way.UID, way.Changeset},
	}
}

// wayRefsReplace rewrites the way_refs rows for one way. The delete and
// the inserts run in the same transaction as the way upsert.
func wayRefsReplace(way *osm.Way) []Statement {
	stmts := []Statement{
		{SQL: "DELETE FROM way_refs WHERE way_id = $1", Args: []any{way.ID}},
	}
	for _, ref := range way.Refs {
		stmts = append(stmts, Statement{
			SQL:  "INSERT INTO way_refs (way_id, node_id) VALUES ($1, $2)",
			Args: []any{way.ID, ref},
		})
	}
	return stmts
}

// wayDelete removes a way from both geometry tables and its ref rows.
func wayDelete(id int64) []Statement {
	return []Statement{
		{SQL: "DELETE FROM way_refs WHERE way_id = $1", Args: []any{id}},
		{SQL: "DELETE FROM " + polyTable + " WHERE osm_id = $1", Args: []any{id}},
		{SQL: "DELETE FROM " + lineTable + " WHERE osm_id = $1", Args: []any{id}},
	}
}
