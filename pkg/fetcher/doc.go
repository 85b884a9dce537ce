/*
Package fetcher bulk-downloads replication state files.

The candidate list is split into chunks sized below the planet server's
per-connection request ceiling. Each chunk gets a fresh TLS session and a
worker pool; the planet client serializes the actual stream writes. Files
already present in the catalog are skipped, everything else is fetched,
decoded and recorded. The job is best-effort: individual failures are
logged and the crawl moves on. A one second pause between chunks keeps the
server happy.
*/
package fetcher
