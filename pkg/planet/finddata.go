package planet

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/yuiseki/underpass/pkg/replication"
	"github.com/yuiseki/underpass/pkg/state"
)

// bracket is the starting timestamp of one remote subdirectory. A
// timestamp t falls in directory i when start(i) <= t < start(i+1).
type bracket struct {
	start time.Time
	path  string
}

// freqRoot is the server-relative root directory for one frequency.
func (c *Client) freqRoot(freq replication.Frequency) string {
	return "/" + c.cfg.Datadir + "/" + string(freq) + "/"
}

// FindData locates the replication state whose timestamp bracket contains
// the given instant. The per-frequency directory listings are populated
// lazily on first lookup and kept for the life of the client.
func (c *Client) FindData(ctx context.Context, freq replication.Frequency, t time.Time) (*state.State, error) {
	c.lmu.Lock()
	defer c.lmu.Unlock()

	brackets, err := c.loadBrackets(ctx, freq)
	if err != nil {
		return nil, err
	}
	if len(brackets) == 0 {
		return nil, fmt.Errorf("%w: no subdirectories under %s", ErrNotFound, c.freqRoot(freq))
	}

	// Newest directory whose bracket starts at or before t.
	dir := brackets[0].path
	for _, b := range brackets {
		if b.start.After(t) {
			break
		}
		dir = b.path
	}

	return c.searchDirectory(ctx, freq, dir, t)
}

// loadBrackets scans the frequency root and probes the first state file of
// each subdirectory to learn where its bracket starts.
func (c *Client) loadBrackets(ctx context.Context, freq replication.Frequency) ([]bracket, error) {
	if cached, ok := c.listings[string(freq)]; ok {
		return cached, nil
	}

	root := c.freqRoot(freq)
	dirs, err := c.ScanDirectory(ctx, root)
	if err != nil {
		return nil, err
	}

	var brackets []bracket
	for _, d := range dirs {
		d = strings.TrimSuffix(d, "/")
		start, err := c.bracketStart(ctx, root+d+"/")
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		brackets = append(brackets, bracket{start: start, path: d})
	}
	sort.Slice(brackets, func(i, j int) bool {
		return brackets[i].start.Before(brackets[j].start)
	})

	c.listings[string(freq)] = brackets
	return brackets, nil
}

// bracketStart returns the timestamp of the earliest state file reachable
// under a top-level directory, caching the probe result.
func (c *Client) bracketStart(ctx context.Context, dir string) (time.Time, error) {
	if c.cfg.Cache != nil {
		if t, err := c.cfg.Cache.GetBracket(dir); err == nil && !t.IsZero() {
			return t, nil
		}
	}

	subs, err := c.ScanDirectory(ctx, dir)
	if err != nil {
		return time.Time{}, err
	}
	for _, sub := range subs {
		sub = strings.TrimSuffix(sub, "/")
		files, err := c.ScanDirectory(ctx, dir+sub+"/")
		if err != nil {
			continue
		}
		for _, f := range files {
			if !strings.HasSuffix(f, ".state.txt") {
				continue
			}
			s, err := c.FetchState(ctx, dir+sub+"/"+f)
			if err != nil {
				continue
			}
			if c.cfg.Cache != nil {
				if cerr := c.cfg.Cache.PutBracket(dir, s.Timestamp); cerr != nil {
					c.logger.Warn().Err(cerr).Str("dir", dir).Msg("Failed to cache bracket")
				}
			}
			return s.Timestamp, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: no state files under %s", ErrNotFound, dir)
}

// searchDirectory binary-searches the state files beneath one top-level
// directory for the earliest state at or after t.
func (c *Client) searchDirectory(ctx context.Context, freq replication.Frequency, top string, t time.Time) (*state.State, error) {
	root := c.freqRoot(freq)

	subs, err := c.ScanDirectory(ctx, root+top+"/")
	if err != nil {
		return nil, err
	}

	var best *state.State
	for _, sub := range subs {
		sub = strings.TrimSuffix(sub, "/")
		dir := root + top + "/" + sub + "/"
		files, err := c.ScanDirectory(ctx, dir)
		if err != nil {
			continue
		}
		var states []string
		for _, f := range files {
			if strings.HasSuffix(f, ".state.txt") {
				states = append(states, f)
			}
		}
		if len(states) == 0 {
			continue
		}

		// The directory covers [first, last]; skip it when t is past
		// the end, stop once a directory starts after a found state.
		last, err := c.FetchState(ctx, dir+states[len(states)-1])
		if err != nil {
			continue
		}
		if last.Timestamp.Before(t) {
			continue
		}

		// Binary search: state files are listed in sequence order and
		// timestamps are non-decreasing.
		lo, hi := 0, len(states)-1
		for lo < hi {
			mid := (lo + hi) / 2
			s, err := c.FetchState(ctx, dir+states[mid])
			if err != nil {
				lo = mid + 1
				continue
			}
			if s.Timestamp.Before(t) {
				lo = mid + 1
			} else {
				hi = mid
			}
		}
		s, err := c.FetchState(ctx, dir+states[lo])
		if err != nil {
			return nil, err
		}
		if !s.Timestamp.Before(t) {
			best = s
			break
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: no state at or after %s under %s", ErrNotFound, t.UTC().Format(time.RFC3339), top)
	}
	return best, nil
}
