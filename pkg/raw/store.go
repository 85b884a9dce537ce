package raw

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/yuiseki/underpass/pkg/log"
	"github.com/yuiseki/underpass/pkg/metrics"
	"github.com/yuiseki/underpass/pkg/osm"
	"github.com/yuiseki/underpass/pkg/osmchange"
)

// DB is the subset of pgxpool.Pool the raw store needs.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store writes resolved changes into the raw OSM schema: the nodes table,
// the two way tables split by geometry, and the way_refs link table.
type Store struct {
	db     DB
	logger zerolog.Logger
}

// NewStore creates a raw store over an open database handle.
func NewStore(db DB) *Store {
	return &Store{
		db:     db,
		logger: log.WithComponent("raw"),
	}
}

// ApplyChangeFile persists every entity of a resolved change file. All
// writes for one change file share a transaction, so replaying a file
// either reapplies it completely or not at all. Version-guard rejections
// are expected during replay and are only counted.
func (s *Store) ApplyChangeFile(ctx context.Context, cf *osmchange.ChangeFile) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning change transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, change := range cf.Changes {
		for _, node := range change.Nodes {
			if err := s.applyNode(ctx, tx, node); err != nil {
				return err
			}
		}
		for _, way := range change.Ways {
			if err := s.applyWay(ctx, tx, way); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing change transaction: %w", err)
	}
	return nil
}

func (s *Store) applyNode(ctx context.Context, tx pgx.Tx, node *osm.Node) error {
	switch node.Action {
	case osm.ActionCreate, osm.ActionModify:
		st := nodeUpsert(node)
		tag, err := tx.Exec(ctx, st.SQL, st.Args...)
		if err != nil {
			return fmt.Errorf("upserting node %d: %w", node.ID, err)
		}
		if tag.RowsAffected() == 0 {
			metrics.StoreConflicts.Inc()
			s.logger.Debug().Int64("id", node.ID).Uint32("version", node.Version).
				Msg("Node upsert rejected by version guard")
			return nil
		}
		metrics.ChangesApplied.WithLabelValues("node", string(node.Action)).Inc()
	case osm.ActionRemove:
		st := nodeDelete(node.ID)
		if _, err := tx.Exec(ctx, st.SQL, st.Args...); err != nil {
			return fmt.Errorf("deleting node %d: %w", node.ID, err)
		}
		metrics.ChangesApplied.WithLabelValues("node", string(node.Action)).Inc()
	}
	return nil
}

func (s *Store) applyWay(ctx context.Context, tx pgx.Tx, way *osm.Way) error {
	switch way.Action {
	case osm.ActionCreate, osm.ActionModify:
		if len(way.Refs) <= 2 {
			return nil
		}
		// A way is only written when every ref resolved; otherwise the
		// geometry would be truncated and mislead the validators.
		if len(way.LineString) != len(way.Refs) {
			s.logger.Debug().Int64("id", way.ID).
				Int("refs", len(way.Refs)).Int("points", len(way.LineString)).
				Msg("Skipping way with unresolved refs")
			return nil
		}
		st := wayUpsert(way)
		tag, err := tx.Exec(ctx, st.SQL, st.Args...)
		if err != nil {
			return fmt.Errorf("upserting way %d: %w", way.ID, err)
		}
		if tag.RowsAffected() == 0 {
			metrics.StoreConflicts.Inc()
			s.logger.Debug().Int64("id", way.ID).Uint32("version", way.Version).
				Msg("Way upsert rejected by version guard")
			return nil
		}
		for _, rst := range wayRefsReplace(way) {
			if _, err := tx.Exec(ctx, rst.SQL, rst.Args...); err != nil {
				return fmt.Errorf("rewriting refs for way %d: %w", way.ID, err)
			}
		}
		metrics.ChangesApplied.WithLabelValues("way", string(way.Action)).Inc()
	case osm.ActionRemove:
		for _, st := range wayDelete(way.ID) {
			if _, err := tx.Exec(ctx, st.SQL, st.Args...); err != nil {
				return fmt.Errorf("deleting way %d: %w", way.ID, err)
			}
		}
		metrics.ChangesApplied.WithLabelValues("way", string(way.Action)).Inc()
	}
	return nil
}
