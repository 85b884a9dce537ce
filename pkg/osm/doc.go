/*
Package osm holds the entity model: nodes, ways and relations as plain
value types, plus the geometry helpers built on orb. Longitude is always
the X coordinate and latitude the Y. Great-circle lengths use a spherical
earth of radius 6371 km; point-in-polygon tests are strict, excluding the
boundary.
*/
package osm
