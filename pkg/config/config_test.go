package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "planet.openstreetmap.org", cfg.Planet.Host)
	assert.Equal(t, 443, cfg.Planet.Port)
	assert.Equal(t, "replication", cfg.Planet.Datadir)
	assert.Equal(t, "minute", cfg.Frequency)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadMissingFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Planet.Host, cfg.Planet.Host)
	assert.Equal(t, cfg.Database, cfg.ConflationDatabase)
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "underpass.yaml")
	content := `planet:
  host: planet.maps.mail.ru
  datadir: replication
frequency: hour
database: postgres://db/underpass
conflation_database: postgres://db/osm2pgsql
workers: 8
chunk_size: 100
log_level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "planet.maps.mail.ru", cfg.Planet.Host)
	assert.Equal(t, "hour", cfg.Frequency)
	assert.Equal(t, "postgres://db/osm2pgsql", cfg.ConflationDatabase)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 100, cfg.ChunkSize)
	// Unset keys keep their defaults.
	assert.Equal(t, 443, cfg.Planet.Port)
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "underpass.yaml")
	require.NoError(t, os.WriteFile(path, []byte("planet: ["), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}
