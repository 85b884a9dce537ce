package state

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrBadState indicates a state file that could not be parsed.
var ErrBadState = errors.New("bad state file")

// State is one replication checkpoint decoded from a state.txt file or a
// database row. It is never mutated after construction.
type State struct {
	Timestamp time.Time
	Sequence  uint64
	// Path is the server-relative directory of the replication file,
	// without the .state.txt suffix.
	Path      string
	Frequency string
}

const (
	// changesetTimeLayout matches "2020-10-08 22:30:01.737719000 +00:00".
	changesetTimeLayout = "2006-01-02 15:04:05.999999999 -07:00"
	// diffTimeLayout matches "2020-10-09T10:03:02Z" once the escaped
	// colons are removed.
	diffTimeLayout = "2006-01-02T15:04:05Z"
)

// Parse decodes either state-file format from an in-memory buffer. The
// changeset format starts with a "---" line; everything else is treated
// as the key=value diff format.
func Parse(data []byte) (*State, error) {
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	if len(lines) > 0 && strings.TrimSpace(lines[0]) == "---" {
		return parseChangeset(lines)
	}
	return parseDiff(lines)
}

// ParseFile decodes a state file from disk.
func ParseFile(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading state file: %w", err)
	}
	return Parse(data)
}

// parseChangeset handles the three-line changeset format:
//
//	---
//	last_run: 2020-10-08 22:30:01.737719000 +00:00
//	sequence: 4139992
func parseChangeset(lines []string) (*State, error) {
	s := &State{}
	var haveSeq bool
	for _, line := range lines[1:] {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "last_run":
			ts, err := time.Parse(changesetTimeLayout, value)
			if err != nil {
				return nil, fmt.Errorf("%w: last_run %q: %v", ErrBadState, value, err)
			}
			s.Timestamp = ts.UTC().Truncate(time.Microsecond)
		case "sequence":
			seq, err := strconv.ParseUint(value, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: sequence %q: %v", ErrBadState, value, err)
			}
			s.Sequence = seq
			haveSeq = true
		}
	}
	if !haveSeq {
		return nil, fmt.Errorf("%w: missing sequence", ErrBadState)
	}
	if s.Timestamp.IsZero() {
		return nil, fmt.Errorf("%w: missing last_run timestamp", ErrBadState)
	}
	return s, nil
}

// parseDiff handles the key=value diff format. The timestamp value carries
// backslash-escaped colons which must be unescaped before parsing; the
// transaction-list keys are ignored.
func parseDiff(lines []string) (*State, error) {
	s := &State{}
	var haveSeq bool
	for _, line := range lines {
		if strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		switch key {
		case "sequenceNumber":
			seq, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: sequenceNumber %q: %v", ErrBadState, value, err)
			}
			s.Sequence = seq
			haveSeq = true
		case "timestamp":
			raw := strings.ReplaceAll(strings.TrimSpace(value), "\\:", ":")
			ts, err := time.Parse(diffTimeLayout, raw)
			if err != nil {
				return nil, fmt.Errorf("%w: timestamp %q: %v", ErrBadState, value, err)
			}
			s.Timestamp = ts.UTC()
		}
	}
	if !haveSeq {
		return nil, fmt.Errorf("%w: missing sequenceNumber", ErrBadState)
	}
	if s.Timestamp.IsZero() {
		return nil, fmt.Errorf("%w: missing timestamp", ErrBadState)
	}
	return s, nil
}

// Encode emits the diff key=value format, escaping the timestamp colons
// the way the upstream server does.
func (s *State) Encode() []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "sequenceNumber=%d\n", s.Sequence)
	stamp := s.Timestamp.UTC().Format(diffTimeLayout)
	fmt.Fprintf(&b, "timestamp=%s\n", strings.ReplaceAll(stamp, ":", "\\:"))
	return []byte(b.String())
}
