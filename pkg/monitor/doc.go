/*
Package monitor drives the replication pipeline.

The monitor follows one replication feed sequence by sequence. For each
replication file it downloads the state and change files, parses the
osmChange document, resolves way geometry through the node cache, applies
the result to the raw store, derives per-user statistics, and conflates
candidate building polygons against the existing data. The checkpoint is
recorded only after the change file applied cleanly.

	state.txt ──> catalog
	osc.gz ──> parse ──> resolve ──> apply ──> stats ──> conflate
	                                               │         │
	                                               └── events ┘

When the next sequence is not published yet the monitor sleeps one
frequency interval and retries. Shutdown is cooperative: the context is
checked between files and in-flight work is drained, never aborted.
*/
package monitor
