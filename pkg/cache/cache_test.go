package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestListingRoundTrip(t *testing.T) {
	s := openStore(t)

	links := []string{"000/", "001/", "002/"}
	require.NoError(t, s.PutListing("/replication/minute/", links))

	got, err := s.GetListing("/replication/minute/")
	require.NoError(t, err)
	assert.Equal(t, links, got)
}

func TestListingMissing(t *testing.T) {
	s := openStore(t)

	got, err := s.GetListing("/replication/hour/")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestBracketRoundTrip(t *testing.T) {
	s := openStore(t)

	want := time.Date(2020, 10, 9, 10, 3, 2, 0, time.UTC)
	require.NoError(t, s.PutBracket("/replication/minute/004/", want))

	got, err := s.GetBracket("/replication/minute/004/")
	require.NoError(t, err)
	assert.True(t, got.Equal(want))

	missing, err := s.GetBracket("/replication/minute/005/")
	require.NoError(t, err)
	assert.True(t, missing.IsZero())
}
