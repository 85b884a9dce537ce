/*
Package stats derives per-user mapping statistics from applied changes:
POIs, buildings, roads and waterways added or modified, plus kilometres of
road and waterway linework measured along the resolved geometry.
*/
package stats
