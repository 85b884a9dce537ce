package stats

import (
	"github.com/rs/zerolog"

	"github.com/yuiseki/underpass/pkg/log"
	"github.com/yuiseki/underpass/pkg/osm"
	"github.com/yuiseki/underpass/pkg/osmchange"
)

// Collector derives per-user feature counters from an applied change file.
type Collector struct {
	logger zerolog.Logger
}

// NewCollector creates a stats collector.
func NewCollector() *Collector {
	return &Collector{logger: log.WithComponent("stats")}
}

// Collect walks every change in the file and totals the counters per uid
// into cf.UserStats. Way lengths come from the resolved linestrings, so
// the resolver must have run first.
func (c *Collector) Collect(cf *osmchange.ChangeFile) map[int64]*osmchange.ChangeStats {
	for _, change := range cf.Changes {
		switch change.Action {
		case osm.ActionCreate:
			c.collectCreate(cf, change)
		case osm.ActionModify:
			c.collectModify(cf, change)
		}
	}
	return cf.UserStats
}

func (c *Collector) collectCreate(cf *osmchange.ChangeFile, change *osmchange.Change) {
	for _, node := range change.Nodes {
		if len(node.Tags) > 0 {
			// A brand new node that is part of a way has no tags; one
			// with tags is an actual POI and worth a closer look.
			c.logger.Info().Int64("id", node.ID).Msg("New node has tags")
			continue
		}
		cf.Stats(node.UID).PoisAdded++
	}
	for _, way := range change.Ways {
		if len(way.Tags) == 0 {
			c.logger.Warn().Int64("id", way.ID).Msg("New way has no tags")
			if way.IsClosed() && way.NumPoints() == 5 {
				c.logger.Warn().Int64("id", way.ID).Msg("Untagged closed way might be a building")
			}
			continue
		}
		s := cf.Stats(way.UID)
		if way.HasTag("building") {
			s.BuildingsAdded++
		}
		if way.HasTag("highway") {
			s.RoadsAdded++
			s.RoadsKmAdded += way.Length()
		}
		if way.HasTag("waterway") {
			s.WaterwaysAdded++
			s.WaterwaysKmAdded += way.Length()
		}
	}
}

func (c *Collector) collectModify(cf *osmchange.ChangeFile, change *osmchange.Change) {
	for _, node := range change.Nodes {
		if len(node.Tags) > 0 {
			c.logger.Info().Int64("id", node.ID).Msg("Modified node has tags")
			continue
		}
		cf.Stats(node.UID).PoisModified++
	}
	for _, way := range change.Ways {
		if len(way.Tags) == 0 {
			c.logger.Warn().Int64("id", way.ID).Msg("Modified way has no tags")
			continue
		}
		s := cf.Stats(way.UID)
		if way.HasTag("building") {
			s.BuildingsModified++
		}
		if way.HasTag("highway") {
			s.RoadsModified++
			s.RoadsKmModified += way.Length()
		}
		if way.HasTag("waterway") {
			s.WaterwaysModified++
			s.WaterwaysKmModified += way.Length()
		}
	}
}
