/*
Package raw maintains the store of current map entities.

The schema is four tables: nodes, ways_poly, ways_line and the way_refs
link table. Upserts are version guarded. A node row only changes when the
incoming version is strictly newer, so a later-received older version is
silently dropped; the way guard is inclusive so replaying the same version
stays idempotent. Closed ways with at least four refs go to ways_poly,
everything else to ways_line, and the way_refs rows for a way are rewritten
whole in the same transaction as its upsert.

The resolver side fills a change file's node cache (from the file itself
plus one batched nodes query) and rebuilds every way geometry from it. A
node modified inside the priority polygon drags every stored way that
references it back into the change as a synthetic modify, so downstream
stages recompute those geometries too.
*/
package raw
