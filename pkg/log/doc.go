/*
Package log provides structured logging for Underpass using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-specific loggers, configurable log levels, and helper functions
for common logging patterns. All logs include timestamps and support filtering
by severity level for production debugging.

# Usage

Initializing the logger:

	import "github.com/yuiseki/underpass/pkg/log"

	// JSON output (production)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

Component loggers:

	fetcherLog := log.WithComponent("fetcher")
	fetcherLog.Info().Str("path", "000/075/000").Msg("Downloading state file")

	log.Logger.Error().
		Err(err).
		Uint64("sequence", 4230996).
		Msg("Failed to parse state file")

# Integration Points

This package integrates with:

  - pkg/planet: logs connection lifecycle and request retries
  - pkg/fetcher: logs per-chunk download progress
  - pkg/monitor: logs the replication loop and applied changes
  - pkg/raw: logs version-guard rejections and ways skipped for unresolved refs
  - pkg/validate: logs conflation findings
*/
package log
