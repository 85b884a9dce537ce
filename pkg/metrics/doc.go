/*
Package metrics exposes Prometheus instrumentation for the pipeline:
download volume and reconnects on the planet client, catalog writes,
applied changes, version-guard rejections, and conflation findings. Store
conflicts are counted here and otherwise only logged at debug level; they
are an expected part of the consistency model, not errors.
*/
package metrics
