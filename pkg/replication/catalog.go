package replication

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/yuiseki/underpass/pkg/log"
	"github.com/yuiseki/underpass/pkg/state"
)

// DB is the subset of pgxpool.Pool the catalog needs. Keeping it an
// interface lets the query logic run against a transaction or a mock.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Catalog persists replication checkpoints in the states table.
type Catalog struct {
	db     DB
	logger zerolog.Logger
}

// NewCatalog creates a catalog over an open database handle.
func NewCatalog(db DB) *Catalog {
	return &Catalog{
		db:     db,
		logger: log.WithComponent("catalog"),
	}
}

const stateColumns = "timestamp, sequence, path, frequency"

func scanState(row pgx.Row) (*state.State, error) {
	var s state.State
	err := row.Scan(&s.Timestamp, &s.Sequence, &s.Path, &s.Frequency)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scanning state row: %w", err)
	}
	s.Timestamp = s.Timestamp.UTC()
	return &s, nil
}

// Get returns the checkpoint stored for an exact path, or nil.
func (c *Catalog) Get(ctx context.Context, path string) (*state.State, error) {
	row := c.db.QueryRow(ctx,
		"SELECT "+stateColumns+" FROM states WHERE path = $1", path)
	return scanState(row)
}

// GetAt returns the earliest checkpoint at or after the given timestamp
// for one frequency, or nil.
func (c *Catalog) GetAt(ctx context.Context, freq Frequency, t time.Time) (*state.State, error) {
	row := c.db.QueryRow(ctx,
		"SELECT "+stateColumns+" FROM states WHERE timestamp >= $1 AND frequency = $2 ORDER BY timestamp ASC LIMIT 1",
		t.UTC(), string(freq))
	return scanState(row)
}

// First returns the oldest checkpoint for a frequency, or nil.
func (c *Catalog) First(ctx context.Context, freq Frequency) (*state.State, error) {
	row := c.db.QueryRow(ctx,
		"SELECT "+stateColumns+" FROM states WHERE frequency = $1 ORDER BY timestamp ASC LIMIT 1",
		string(freq))
	return scanState(row)
}

// Last returns the newest checkpoint for a frequency, or nil.
func (c *Catalog) Last(ctx context.Context, freq Frequency) (*state.State, error) {
	row := c.db.QueryRow(ctx,
		"SELECT "+stateColumns+" FROM states WHERE frequency = $1 ORDER BY timestamp DESC LIMIT 1",
		string(freq))
	return scanState(row)
}

// Put inserts a checkpoint. The path is the conflict key: a row that
// already exists is left untouched, so concurrent writers and replays are
// harmless. The frequency column is derived lexically from the path.
func (c *Catalog) Put(ctx context.Context, s *state.State) error {
	freq := InferFrequency(s.Path)
	if freq == "" {
		return fmt.Errorf("no frequency fragment in path %q", s.Path)
	}
	tag, err := c.db.Exec(ctx,
		"INSERT INTO states (timestamp, sequence, path, frequency) VALUES ($1, $2, $3, $4) ON CONFLICT (path) DO NOTHING",
		s.Timestamp.UTC(), s.Sequence, s.Path, string(freq))
	if err != nil {
		return fmt.Errorf("inserting state %q: %w", s.Path, err)
	}
	if tag.RowsAffected() == 0 {
		c.logger.Debug().Str("path", s.Path).Msg("State already recorded")
	}
	return nil
}
