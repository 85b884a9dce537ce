package monitor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog"

	"github.com/yuiseki/underpass/pkg/events"
	"github.com/yuiseki/underpass/pkg/log"
	"github.com/yuiseki/underpass/pkg/metrics"
	"github.com/yuiseki/underpass/pkg/osm"
	"github.com/yuiseki/underpass/pkg/osmchange"
	"github.com/yuiseki/underpass/pkg/planet"
	"github.com/yuiseki/underpass/pkg/raw"
	"github.com/yuiseki/underpass/pkg/replication"
	"github.com/yuiseki/underpass/pkg/state"
	"github.com/yuiseki/underpass/pkg/stats"
	"github.com/yuiseki/underpass/pkg/validate"
)

// Config wires the monitor to its collaborators. It is created once at
// startup and its lifetime equals the pipeline's.
type Config struct {
	Planet    planet.Config
	Catalog   *replication.Catalog
	Store     *raw.Store
	Conflator *validate.Conflator
	Broker    *events.Broker
	Priority  orb.MultiPolygon

	// Remote addresses the replication feed. When its subpath is set the
	// monitor starts there; otherwise StartTime picks the first file.
	Remote    *replication.RemoteURL
	StartTime time.Time
}

// Monitor follows one replication feed: it downloads each change file in
// sequence, applies it to the raw store, derives statistics, and runs the
// conflation checks. Shutdown is drain-then-stop: the context is checked
// between files, never mid-request.
type Monitor struct {
	cfg    Config
	logger zerolog.Logger
	stats  *stats.Collector
}

// New creates a monitor.
func New(cfg Config) *Monitor {
	return &Monitor{
		cfg:    cfg,
		logger: log.WithComponent("monitor"),
		stats:  stats.NewCollector(),
	}
}

// Run follows the feed until the context is canceled.
func (m *Monitor) Run(ctx context.Context) error {
	client, err := planet.Connect(m.cfg.Planet)
	if err != nil {
		return err
	}
	defer client.Close()

	seq, err := m.startSequence(ctx, client)
	if err != nil {
		return err
	}
	m.logger.Info().
		Uint64("sequence", seq).
		Str("frequency", string(m.cfg.Remote.Frequency)).
		Msg("Monitor started")

	interval := m.cfg.Remote.Frequency.Interval()
	for {
		if err := ctx.Err(); err != nil {
			m.logger.Info().Msg("Monitor stopped")
			return nil
		}

		remote := m.cfg.Remote.WithSequence(seq)
		slog := log.WithSequence(seq)
		err := m.processSequence(ctx, client, remote)
		if err != nil {
			if errors.Is(err, planet.ErrNotFound) {
				// The next replication file is not published yet.
				slog.Debug().Msg("Waiting for next replication file")
				select {
				case <-time.After(interval):
				case <-ctx.Done():
				}
				continue
			}
			if errors.Is(err, osmchange.ErrBadChange) {
				slog.Error().Err(err).Msg("Abandoning malformed change file")
				seq++
				continue
			}
			if errors.Is(err, context.Canceled) {
				m.logger.Info().Msg("Monitor stopped")
				return nil
			}
			return err
		}
		seq++
	}
}

// startSequence resolves where the feed starts: an explicit URL wins,
// then the catalog, then a remote directory search.
func (m *Monitor) startSequence(ctx context.Context, client *planet.Client) (uint64, error) {
	if m.cfg.Remote.Subpath != "" {
		return m.cfg.Remote.Sequence()
	}

	if !m.cfg.StartTime.IsZero() {
		if s, err := m.cfg.Catalog.GetAt(ctx, m.cfg.Remote.Frequency, m.cfg.StartTime); err != nil {
			return 0, err
		} else if s != nil {
			return s.Sequence, nil
		}

		s, err := client.FindData(ctx, m.cfg.Remote.Frequency, m.cfg.StartTime)
		if err != nil {
			return 0, fmt.Errorf("no state at %s: %w", m.cfg.StartTime.Format(time.RFC3339), err)
		}
		if err := m.cfg.Catalog.Put(ctx, s); err != nil {
			m.logger.Warn().Err(err).Str("path", s.Path).Msg("Failed to record discovered state")
		}
		return s.Sequence, nil
	}

	// Fall back to the newest checkpoint already cataloged.
	s, err := m.cfg.Catalog.Last(ctx, m.cfg.Remote.Frequency)
	if err != nil {
		return 0, err
	}
	if s == nil {
		return 0, errors.New("no starting point: supply a timestamp or URL")
	}
	return s.Sequence, nil
}

// processSequence downloads and applies one replication file. The
// checkpoint is recorded only after the change file applied cleanly, so a
// malformed file leaves the catalog unchanged.
func (m *Monitor) processSequence(ctx context.Context, client *planet.Client, remote *replication.RemoteURL) error {
	st, err := client.FetchState(ctx, remote.StatePath())
	if err != nil {
		if errors.Is(err, state.ErrBadState) {
			m.logger.Error().Err(err).Str("path", remote.StatePath()).Msg("Skipping bad state file")
			return nil
		}
		return err
	}

	body, err := client.FetchObject(ctx, remote.ChangePath())
	if err != nil {
		return err
	}

	timer := metrics.NewTimer()
	cf, err := osmchange.Parse(bytes.NewReader(body))
	if err != nil {
		return err
	}

	if err := m.ProcessChangeFile(ctx, cf); err != nil {
		return err
	}
	timer.ObserveDuration(metrics.ChangeFileDuration)

	if err := m.cfg.Catalog.Put(ctx, st); err != nil {
		return err
	}

	m.logger.Info().
		Uint64("sequence", st.Sequence).
		Time("timestamp", st.Timestamp).
		Int("changes", len(cf.Changes)).
		Msg("Applied replication file")
	return nil
}

// ProcessChangeFile resolves, applies, and validates one parsed change
// file. It is also the entry point for local change-file imports.
func (m *Monitor) ProcessChangeFile(ctx context.Context, cf *osmchange.ChangeFile) error {
	if err := m.cfg.Store.ResolveGeometries(ctx, cf, m.cfg.Priority); err != nil {
		return err
	}
	if err := m.cfg.Store.ApplyChangeFile(ctx, cf); err != nil {
		return err
	}

	m.collectStats(cf)
	m.conflate(ctx, cf)
	return nil
}

func (m *Monitor) collectStats(cf *osmchange.ChangeFile) {
	userstats := m.stats.Collect(cf)
	if len(userstats) == 0 || m.cfg.Broker == nil {
		return
	}
	for uid, s := range userstats {
		ev := events.New(events.EventStatsCollected, "change statistics")
		ev.Metadata["uid"] = strconv.FormatInt(uid, 10)
		ev.Metadata["buildings_added"] = strconv.Itoa(s.BuildingsAdded)
		ev.Metadata["buildings_modified"] = strconv.Itoa(s.BuildingsModified)
		ev.Metadata["roads_added"] = strconv.Itoa(s.RoadsAdded)
		ev.Metadata["roads_km_added"] = strconv.FormatFloat(s.RoadsKmAdded, 'f', 3, 64)
		ev.Metadata["waterways_added"] = strconv.Itoa(s.WaterwaysAdded)
		ev.Metadata["pois_added"] = strconv.Itoa(s.PoisAdded)
		m.cfg.Broker.Publish(ev)
	}
}

// conflate runs the new-vs-existing duplicate check for every building
// polygon in the change file and publishes the findings.
func (m *Monitor) conflate(ctx context.Context, cf *osmchange.ChangeFile) {
	if m.cfg.Conflator == nil {
		return
	}
	for _, change := range cf.Changes {
		if change.Action != osm.ActionCreate && change.Action != osm.ActionModify {
			continue
		}
		for _, way := range change.Ways {
			if !way.IsClosed() || !way.HasTag("building") {
				continue
			}
			findings, err := m.cfg.Conflator.NewDuplicatePolygon(ctx, way)
			if err != nil {
				m.logger.Error().Err(err).Int64("way", way.ID).Msg("Conflation query failed")
				continue
			}
			m.publishFindings(way, findings)
		}
	}
}

func (m *Monitor) publishFindings(way *osm.Way, findings []*validate.ValidateStatus) {
	if m.cfg.Broker == nil {
		return
	}
	for _, vs := range findings {
		t := events.EventFindingOverlapping
		if vs.HasStatus(validate.StatusDuplicate) {
			t = events.EventFindingDuplicate
		}
		ev := events.New(t, "conflation finding")
		ev.Metadata["way"] = strconv.FormatInt(way.ID, 10)
		ev.Metadata["existing"] = strconv.FormatInt(vs.OsmID, 10)
		m.cfg.Broker.Publish(ev)
	}
}
