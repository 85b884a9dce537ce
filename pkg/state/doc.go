/*
Package state decodes replication checkpoint files.

There are two state.txt formats for the same basic data. The changeset
feed publishes a three-line YAML-ish form:

	---
	last_run: 2020-10-08 22:30:01.737719000 +00:00
	sequence: 4139992

The diff feeds publish java.util.Properties key=value lines, where the
timestamp colons arrive backslash-escaped and the transaction-list keys
are ignored:

	#Fri Oct 09 10:03:04 UTC 2020
	sequenceNumber=4230996
	timestamp=2020-10-09T10\:03\:02Z

State files are used to know where to start downloading files.
*/
package state
