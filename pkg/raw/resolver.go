package raw

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"

	"github.com/yuiseki/underpass/pkg/osm"
	"github.com/yuiseki/underpass/pkg/osmchange"
)

// ResolveGeometries fills the node cache of a change file and rebuilds
// every way geometry from it. Ways in the store that reference nodes
// modified inside the priority polygon are pulled in as synthetic modify
// entries so their geometry is recomputed downstream.
func (s *Store) ResolveGeometries(ctx context.Context, cf *osmchange.ChangeFile, priority orb.MultiPolygon) error {
	referenced := make(map[int64]struct{})
	var modifiedWithin []int64
	removedWays := make(map[int64]struct{})

	for _, change := range cf.Changes {
		for _, way := range change.Ways {
			if way.Action == osm.ActionRemove {
				removedWays[way.ID] = struct{}{}
				continue
			}
			for _, ref := range way.Refs {
				if _, ok := cf.NodeCache[ref]; !ok {
					referenced[ref] = struct{}{}
				}
			}
		}
		for _, node := range change.Nodes {
			if node.Action == osm.ActionModify && osm.Within(node.Point, priority) {
				modifiedWithin = append(modifiedWithin, node.ID)
			}
		}
	}

	// A moved node drags every way that references it: synthesize modify
	// entries so downstream stages recompute those geometries.
	if len(modifiedWithin) > 0 {
		ways, err := s.WaysByNodeRefs(ctx, modifiedWithin)
		if err != nil {
			return err
		}
		synthetic := osmchange.NewChange(osm.ActionModify)
		for _, way := range ways {
			for _, ref := range way.Refs {
				if _, ok := cf.NodeCache[ref]; !ok {
					referenced[ref] = struct{}{}
				}
			}
			if _, removed := removedWays[way.ID]; removed {
				continue
			}
			way.Action = osm.ActionModify
			synthetic.Ways = append(synthetic.Ways, way)
		}
		if len(synthetic.Ways) > 0 {
			cf.Changes = append(cf.Changes, synthetic)
		}
	}

	if len(referenced) > 0 {
		ids := make([]int64, 0, len(referenced))
		for id := range referenced {
			ids = append(ids, id)
		}
		if err := s.fillNodeCache(ctx, cf, ids); err != nil {
			return err
		}
	}

	// Rebuild every way from the cache. A ref still missing here (for
	// example a node deleted upstream) contributes nothing; geometry
	// validation flags the result if it came out malformed.
	for _, change := range cf.Changes {
		for _, way := range change.Ways {
			way.LineString = way.LineString[:0]
			for _, ref := range way.Refs {
				if p, ok := cf.NodeCache[ref]; ok {
					way.LineString = append(way.LineString, p)
				}
			}
			if way.IsClosed() {
				ring := make(orb.Ring, len(way.LineString))
				copy(ring, way.LineString)
				way.Polygon = orb.Polygon{ring}
			}
		}
	}

	return nil
}

// fillNodeCache loads coordinates for the referenced node ids. The store
// keeps geometry in lon/lat order: ST_X is the longitude.
func (s *Store) fillNodeCache(ctx context.Context, cf *osmchange.ChangeFile, ids []int64) error {
	rows, err := s.db.Query(ctx,
		"SELECT osm_id, ST_X(geom), ST_Y(geom) FROM nodes WHERE osm_id = ANY($1)", ids)
	if err != nil {
		return fmt.Errorf("querying node cache: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var lon, lat float64
		if err := rows.Scan(&id, &lon, &lat); err != nil {
			return fmt.Errorf("scanning node row: %w", err)
		}
		cf.NodeCache[id] = orb.Point{lon, lat}
	}
	return rows.Err()
}

// WaysByNodeRefs returns every stored way, from both geometry tables,
// that references any of the given nodes.
func (s *Store) WaysByNodeRefs(ctx context.Context, nodeIDs []int64) ([]*osm.Way, error) {
	const query = `SELECT DISTINCT osm_id, refs, version, tags FROM way_refs JOIN ways_poly wp ON wp.osm_id = way_id WHERE node_id = ANY($1)
UNION
SELECT DISTINCT osm_id, refs, version, tags FROM way_refs JOIN ways_line wl ON wl.osm_id = way_id WHERE node_id = ANY($1)`

	rows, err := s.db.Query(ctx, query, nodeIDs)
	if err != nil {
		return nil, fmt.Errorf("querying ways by node refs: %w", err)
	}
	defer rows.Close()

	var ways []*osm.Way
	for rows.Next() {
		way := osm.NewWay()
		var version int64
		var tags []byte
		if err := rows.Scan(&way.ID, &way.Refs, &version, &tags); err != nil {
			return nil, fmt.Errorf("scanning way row: %w", err)
		}
		way.Version = uint32(version)
		if len(tags) > 0 {
			if err := json.Unmarshal(tags, &way.Tags); err != nil {
				return nil, fmt.Errorf("decoding tags for way %d: %w", way.ID, err)
			}
		}
		ways = append(ways, way)
	}
	return ways, rows.Err()
}
