package validate

import (
	"context"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/rs/zerolog"

	"github.com/yuiseki/underpass/pkg/log"
	"github.com/yuiseki/underpass/pkg/metrics"
	"github.com/yuiseki/underpass/pkg/osm"
)

// DB is the subset of pgxpool.Pool the conflation engine needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const (
	// tolerance for floating point comparisons
	tolerance = 0.001
	// minIntersection is the smallest overlap, in square meters, that
	// counts toward a duplicate.
	minIntersection = 30.0
)

// Conflator detects duplicate and overlapping polygons between incoming
// ways and the existing planet data restricted to the priority area.
type Conflator struct {
	db     DB
	logger zerolog.Logger
}

// NewConflator creates a conflation engine over an open database handle.
func NewConflator(db DB) *Conflator {
	return &Conflator{
		db:     db,
		logger: log.WithComponent("conflate"),
	}
}

// CreateView materializes the boundary view: the planet polygons that lie
// within the priority multipolygon, projected to SRID 4326.
func (c *Conflator) CreateView(ctx context.Context, priority orb.MultiPolygon) error {
	ewkt := "SRID=4326;" + wkt.MarshalString(priority)
	_, err := c.db.Exec(ctx,
		`DROP VIEW IF EXISTS boundary;
CREATE VIEW boundary AS
SELECT osm_id, area, building, highway, amenity, ST_Transform(way, 4326) AS way
FROM planet_osm_polygon
WHERE ST_Within(ST_Transform(way, 4326), ST_MakeValid(ST_GeomFromEWKT($1)))`, ewkt)
	if err != nil {
		return fmt.Errorf("creating boundary view: %w", err)
	}
	return nil
}

// classify decides between duplicate and overlapping. Two polygons are
// duplicates when their areas are within a factor of two of each other in
// either direction and the overlap is substantial. The ratio window is
// tested on the area ratio taken both ways, so the tolerance at its edges
// keeps the classification symmetric. Areas are in square meters.
func classify(intersection, areaW, areaP float64) Status {
	if areaP == 0 {
		return StatusOverlapping
	}
	inWindow := func(r float64) bool {
		return r >= 0.5-tolerance && r <= 2.0+tolerance
	}
	ratio := areaW / areaP
	if (inWindow(ratio) || inWindow(1/ratio)) &&
		intersection-minIntersection > tolerance {
		return StatusDuplicate
	}
	return StatusOverlapping
}

// NewDuplicatePolygon checks one candidate way polygon against the
// boundary view and reports every existing building it duplicates or
// overlaps. Degrees are useless for area comparisons, so the geometry is
// reprojected to the equal-area SRID 2167 before measuring.
func (c *Conflator) NewDuplicatePolygon(ctx context.Context, way *osm.Way) ([]*ValidateStatus, error) {
	if len(way.Polygon) == 0 || len(way.Polygon[0]) == 0 {
		c.logger.Debug().Int64("id", way.ID).Msg("Way polygon is empty")
		return nil, nil
	}
	ewkt := "SRID=4326;" + wkt.MarshalString(way.Polygon)

	rows, err := c.db.Query(ctx,
		`SELECT ST_Area(ST_Transform(ST_Intersection(ST_GeomFromEWKT($1), way), 2167)),
       ST_Area(ST_Transform(ST_GeomFromEWKT($1), 2167)),
       osm_id,
       ST_Area(ST_Transform(way, 2167))
FROM boundary
WHERE ST_Overlaps(ST_GeomFromEWKT($1), way) AND building IS NOT NULL`, ewkt)
	if err != nil {
		return nil, fmt.Errorf("querying new-vs-existing overlaps: %w", err)
	}
	defer rows.Close()

	var findings []*ValidateStatus
	for rows.Next() {
		var intersection, areaW, areaP float64
		var existingID int64
		if err := rows.Scan(&intersection, &areaW, &existingID, &areaP); err != nil {
			return nil, fmt.Errorf("scanning overlap row: %w", err)
		}

		vs := NewWayStatus(way)
		vs.OsmID = existingID
		status := classify(intersection, areaW, areaP)
		vs.Add(status)
		metrics.ValidationFindings.WithLabelValues(string(status)).Inc()
		c.logger.Debug().
			Int64("way", way.ID).Int64("existing", existingID).
			Float64("intersection_m2", intersection).
			Str("status", string(status)).
			Msg("Conflation finding")
		findings = append(findings, vs)
	}
	return findings, rows.Err()
}

// ExistingDuplicatePolygon runs the same pairwise check across the
// boundary view itself. The id ordering predicate skips self-pairs and
// visits each unordered pair once; both sides of a pair get a record.
func (c *Conflator) ExistingDuplicatePolygon(ctx context.Context) ([]*ValidateStatus, error) {
	rows, err := c.db.Query(ctx,
		`SELECT ST_Area(ST_Transform(ST_Intersection(g1.way, g2.way), 2167)),
       g1.osm_id, ST_Area(ST_Transform(g1.way, 2167)),
       g2.osm_id, ST_Area(ST_Transform(g2.way, 2167))
FROM boundary AS g1, boundary AS g2
WHERE g1.osm_id < g2.osm_id AND ST_Overlaps(g1.way, g2.way)`)
	if err != nil {
		return nil, fmt.Errorf("querying existing-vs-existing overlaps: %w", err)
	}
	defer rows.Close()

	var findings []*ValidateStatus
	for rows.Next() {
		var intersection, area1, area2 float64
		var id1, id2 int64
		if err := rows.Scan(&intersection, &id1, &area1, &id2, &area2); err != nil {
			return nil, fmt.Errorf("scanning overlap row: %w", err)
		}

		status := classify(intersection, area1, area2)
		for _, id := range []int64{id1, id2} {
			vs := NewStatus(osm.TypeWay, id)
			vs.Add(status)
			findings = append(findings, vs)
		}
		metrics.ValidationFindings.WithLabelValues(string(status)).Add(2)
	}
	return findings, rows.Err()
}

// CornerAngle returns the angle, in degrees, between the first two
// segments of a linestring. Buildings are expected to have sharp corners;
// a shallow angle on a many-point ring usually means a circle.
func CornerAngle(ls orb.LineString) float64 {
	if len(ls) < 3 {
		return -1
	}
	s1 := (ls[1][1] - ls[0][1]) / (ls[1][0] - ls[0][0])
	s2 := (ls[2][1] - ls[1][1]) / (ls[2][0] - ls[1][0])
	return math.Atan((s2-s1)/(1+s2*s1)) * 180 / math.Pi
}
