/*
Package validate checks OSM features for quality problems.

The conflation engine compares building polygons against the existing
planet data restricted to the priority area. Overlapping pairs whose areas
are within a factor of two of each other and whose intersection exceeds 30
square meters are classified as duplicates, everything else as plain
overlaps. Area math runs in the equal-area SRID 2167 because degrees are
useless for measuring buildings.

Findings are data, not errors: each one is a ValidateStatus record carrying
the feature identity and a set of status values.
*/
package validate
