package replication

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// PathDepth classifies how much of a replication URL is present, counted
// in three-digit groups.
type PathDepth int

const (
	DepthRoot PathDepth = iota
	DepthDirectory
	DepthSubdirectory
	DepthFilePath
)

var threeDigits = regexp.MustCompile(`[0-9]{3}`)

// MatchPath classifies a replication path by counting its 3-digit groups.
func MatchPath(path string) PathDepth {
	switch len(threeDigits.FindAllString(path, -1)) {
	case 1:
		return DepthDirectory
	case 2:
		return DepthSubdirectory
	case 3:
		return DepthFilePath
	default:
		return DepthRoot
	}
}

// RemoteURL addresses one replication file on the planet server.
type RemoteURL struct {
	Scheme    string
	Host      string
	Port      int
	Datadir   string
	Frequency Frequency
	// Subpath is the AAA/BBB/CCC fragment under the frequency directory.
	Subpath string
}

// ParseRemoteURL splits a full replication URL such as
// https://planet.openstreetmap.org/replication/minute/000/075/000 into its
// parts.
func ParseRemoteURL(raw string) (*RemoteURL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing remote url: %w", err)
	}
	port := 443
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("parsing remote url port: %w", err)
		}
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	r := &RemoteURL{Scheme: u.Scheme, Host: u.Hostname(), Port: port}
	for i, part := range parts {
		if freq, ferr := ParseFrequency(part); ferr == nil && threeDigits.MatchString(strings.Join(parts[i+1:], "/")) {
			r.Datadir = strings.Join(parts[:i], "/")
			r.Frequency = freq
			r.Subpath = strings.Join(parts[i+1:], "/")
			return r, nil
		}
	}
	// No frequency fragment; everything after the host is the datadir.
	r.Datadir = strings.Join(parts, "/")
	return r, nil
}

// SequencePath renders a sequence number as the nine-digit zero-padded
// AAA/BBB/CCC directory fragment.
func SequencePath(seq uint64) string {
	s := fmt.Sprintf("%09d", seq)
	return s[0:3] + "/" + s[3:6] + "/" + s[6:9]
}

// Sequence recovers the sequence number from the subpath fragment.
func (r *RemoteURL) Sequence() (uint64, error) {
	digits := strings.ReplaceAll(r.Subpath, "/", "")
	seq, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("subpath %q is not a sequence: %w", r.Subpath, err)
	}
	return seq, nil
}

// WithSequence returns a copy of the URL addressing another sequence.
func (r *RemoteURL) WithSequence(seq uint64) *RemoteURL {
	out := *r
	out.Subpath = SequencePath(seq)
	return &out
}

// Dir is the server-relative directory for this frequency, with a
// trailing slash.
func (r *RemoteURL) Dir() string {
	return "/" + r.Datadir + "/" + string(r.Frequency) + "/"
}

// StatePath is the server-relative path of the state file.
func (r *RemoteURL) StatePath() string {
	return r.Dir() + r.Subpath + ".state.txt"
}

// ChangePath is the server-relative path of the compressed change file.
func (r *RemoteURL) ChangePath() string {
	return r.Dir() + r.Subpath + ".osc.gz"
}

// CatalogPath is the path fragment stored in the states table: the
// directory plus subpath, without the .state.txt suffix.
func (r *RemoteURL) CatalogPath() string {
	return strings.TrimPrefix(r.Dir(), "/") + r.Subpath
}

func (r *RemoteURL) String() string {
	return fmt.Sprintf("%s://%s:%d%s%s", r.Scheme, r.Host, r.Port, r.Dir(), r.Subpath)
}
