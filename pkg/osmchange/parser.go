package osmchange

import (
	"bufio"
	"compress/gzip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/yuiseki/underpass/pkg/osm"
)

// ErrBadChange indicates a malformed osmChange document. The whole change
// file is abandoned and the catalog left untouched.
var ErrBadChange = errors.New("bad change file")

// parserState tracks where the token loop is inside the document.
type parserState int

const (
	stateIdle parserState = iota
	stateInChange
	stateInNode
	stateInWay
	stateInRelation
)

// Parse reads one osmChange document, transparently decompressing gzip
// input (magic bytes 0x1f 0x8b).
func Parse(r io.Reader) (*ChangeFile, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrBadChange, err)
	}
	var src io.Reader = br
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("%w: gzip: %v", ErrBadChange, err)
		}
		defer gz.Close()
		src = gz
	}
	return parseXML(src)
}

// ParseFile reads an osmChange document from disk.
func ParseFile(path string) (*ChangeFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening change file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// parseXML runs the streaming element dispatch. The parser owns a small
// explicit state machine: Idle -> InChange(action) -> InNode/InWay/
// InRelation, with transitions on open and close element events.
func parseXML(r io.Reader) (*ChangeFile, error) {
	cf := NewChangeFile()
	dec := xml.NewDecoder(r)

	st := stateIdle
	sawRoot := false
	var change *Change
	var node *osm.Node
	var way *osm.Way
	var rel *osm.Relation

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadChange, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "osmChange":
				// Root element, ignored beyond noting it was there.
				sawRoot = true
			case "create", "modify", "delete":
				if st != stateIdle {
					return nil, fmt.Errorf("%w: nested <%s>", ErrBadChange, t.Name.Local)
				}
				change = NewChange(actionFor(t.Name.Local))
				cf.Changes = append(cf.Changes, change)
				st = stateInChange
			case "node":
				if st != stateInChange {
					return nil, fmt.Errorf("%w: <node> outside change block", ErrBadChange)
				}
				node = osm.NewNode()
				node.Action = change.Action
				fillNode(node, t.Attr)
				st = stateInNode
			case "way":
				if st != stateInChange {
					return nil, fmt.Errorf("%w: <way> outside change block", ErrBadChange)
				}
				way = osm.NewWay()
				way.Action = change.Action
				fillWay(way, t.Attr)
				st = stateInWay
			case "relation":
				if st != stateInChange {
					return nil, fmt.Errorf("%w: <relation> outside change block", ErrBadChange)
				}
				rel = osm.NewRelation()
				rel.Action = change.Action
				fillRelation(rel, t.Attr)
				st = stateInRelation
			case "tag":
				key, value := attr(t.Attr, "k"), attr(t.Attr, "v")
				switch st {
				case stateInNode:
					node.AddTag(key, value)
				case stateInWay:
					way.AddTag(key, value)
				case stateInRelation:
					rel.AddTag(key, value)
				}
			case "nd":
				if st == stateInWay {
					ref, err := strconv.ParseInt(attr(t.Attr, "ref"), 10, 64)
					if err != nil {
						return nil, fmt.Errorf("%w: nd ref: %v", ErrBadChange, err)
					}
					way.AddRef(ref)
				}
			case "member":
				if st == stateInRelation {
					ref, err := strconv.ParseInt(attr(t.Attr, "ref"), 10, 64)
					if err != nil {
						return nil, fmt.Errorf("%w: member ref: %v", ErrBadChange, err)
					}
					rel.AddMember(osm.Member{
						Type: osm.ObjectType(attr(t.Attr, "type")),
						Ref:  ref,
						Role: attr(t.Attr, "role"),
					})
				}
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "node":
				change.Nodes = append(change.Nodes, node)
				// Coordinates outlive the change: ways elsewhere in the
				// file may reference this node.
				if node.Action != osm.ActionRemove {
					cf.NodeCache[node.ID] = node.Point
				}
				node = nil
				st = stateInChange
			case "way":
				change.Ways = append(change.Ways, way)
				way = nil
				st = stateInChange
			case "relation":
				change.Relations = append(change.Relations, rel)
				rel = nil
				st = stateInChange
			case "create", "modify", "delete":
				change = nil
				st = stateIdle
			}
		}
	}

	if st != stateIdle {
		return nil, fmt.Errorf("%w: truncated document", ErrBadChange)
	}
	if !sawRoot {
		return nil, fmt.Errorf("%w: no osmChange element", ErrBadChange)
	}
	return cf, nil
}

func actionFor(element string) osm.Action {
	switch element {
	case "create":
		return osm.ActionCreate
	case "modify":
		return osm.ActionModify
	default:
		return osm.ActionRemove
	}
}

func attr(attrs []xml.Attr, name string) string {
	for _, a := range attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// parseTimestamp normalizes the OSM attribute format: the 'T' separator
// becomes a space and the trailing 'Z' is dropped before parsing.
func parseTimestamp(s string) time.Time {
	s = strings.TrimSuffix(strings.Replace(s, "T", " ", 1), "Z")
	ts, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		return time.Time{}
	}
	return ts
}

func fillNode(n *osm.Node, attrs []xml.Attr) {
	for _, a := range attrs {
		switch a.Name.Local {
		case "id":
			n.ID, _ = strconv.ParseInt(a.Value, 10, 64)
		case "version":
			v, _ := strconv.ParseUint(a.Value, 10, 32)
			n.Version = uint32(v)
		case "changeset":
			n.Changeset, _ = strconv.ParseInt(a.Value, 10, 64)
		case "uid":
			n.UID, _ = strconv.ParseInt(a.Value, 10, 64)
		case "user":
			n.User = a.Value
		case "timestamp":
			n.Timestamp = parseTimestamp(a.Value)
		case "lat":
			n.Point[1], _ = strconv.ParseFloat(a.Value, 64)
		case "lon":
			n.Point[0], _ = strconv.ParseFloat(a.Value, 64)
		}
	}
}

func fillWay(w *osm.Way, attrs []xml.Attr) {
	for _, a := range attrs {
		switch a.Name.Local {
		case "id":
			w.ID, _ = strconv.ParseInt(a.Value, 10, 64)
		case "version":
			v, _ := strconv.ParseUint(a.Value, 10, 32)
			w.Version = uint32(v)
		case "changeset":
			w.Changeset, _ = strconv.ParseInt(a.Value, 10, 64)
		case "uid":
			w.UID, _ = strconv.ParseInt(a.Value, 10, 64)
		case "user":
			w.User = a.Value
		case "timestamp":
			w.Timestamp = parseTimestamp(a.Value)
		}
	}
}

func fillRelation(r *osm.Relation, attrs []xml.Attr) {
	for _, a := range attrs {
		switch a.Name.Local {
		case "id":
			r.ID, _ = strconv.ParseInt(a.Value, 10, 64)
		case "version":
			v, _ := strconv.ParseUint(a.Value, 10, 32)
			r.Version = uint32(v)
		case "changeset":
			r.Changeset, _ = strconv.ParseInt(a.Value, 10, 64)
		case "uid":
			r.UID, _ = strconv.ParseInt(a.Value, 10, 64)
		case "user":
			r.User = a.Value
		case "timestamp":
			r.Timestamp = parseTimestamp(a.Value)
		}
	}
}
