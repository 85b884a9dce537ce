/*
Package osmchange parses osmChange documents.

An osmChange file uses the same syntax as an OSM data file plus one of
three action elements. Nodes, ways and relations can be created, modified
or deleted:

	<modify>
	    <node id="12345" version="7" timestamp="2020-10-30T20:40:38Z" uid="111111" user="foo" changeset="93310152" lat="50.9176152" lon="-1.3751891"/>
	</modify>

The parser is a streaming token loop over encoding/xml with an explicit
state machine; no document tree is built, but every parsed entity is kept
in the returned ChangeFile.
Gzip-compressed input is detected by its magic bytes and decompressed
transparently. Parsed node coordinates are retained in the file's node
cache for geometry resolution.
*/
package osmchange
