/*
Package planet is the HTTP client for the OSM replication server.

The client owns a single persistent TLS stream and serializes whole
request/response pairs through one mutex, so a pool of download workers can
share the connection without interleaving writes. The planet server closes
a connection after a bounded number of requests (observed at 224 or fewer);
the client treats any end-of-stream mid-request as routine, reconnects
once, and retries the in-flight request transparently.

	┌────────────────── PLANET CLIENT ──────────────────┐
	│                                                   │
	│  workers ──┐                                      │
	│  workers ──┼── stream mutex ──> tls.Conn ──> GET  │
	│  workers ──┘        │                             │
	│                     └── EOF? reconnect + retry    │
	│                                                   │
	│  ScanDirectory ──> x/net/html tokenizer ──> links │
	│  FetchState    ──> state.Parse                    │
	│  FindData      ──> lazy listings + binary search  │
	└───────────────────────────────────────────────────┘

Certificate verification is deliberately disabled: the upstream's chain is
frequently misconfigured, and data integrity relies on OSM-level
versioning, not transport authentication.

# Usage

	client, err := planet.Connect(planet.Config{
		Host:    "planet.openstreetmap.org",
		Datadir: "replication",
	})
	if err != nil {
		return err
	}
	defer client.Close()

	body, err := client.FetchObject(ctx, "/replication/minute/004/230/996.osc.gz")

# Error Handling

A 404 returns ErrNotFound, which the pipeline treats as a silent skip.
Every network failure that survives the single automatic reconnect is
wrapped in ErrTransport.
*/
package planet
