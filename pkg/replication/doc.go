/*
Package replication maps the replication feed onto the states catalog.

A replication feed publishes files at a fixed frequency (minutely, hourly,
daily, plus the changeset feed). Each file is addressed by a monotonic
sequence number rendered as a nine-digit zero-padded path, AAA/BBB/CCC,
under the frequency directory. The catalog persists one row per state file
with the path as primary key; inserts are conflict-do-nothing so replays
and concurrent writers are harmless, and out-of-order arrivals self-heal.

RemoteURL carries the scheme, host, port, data directory, frequency and
subpath of a feed, and converts between sequence numbers and server paths.
*/
package replication
