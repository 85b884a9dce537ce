package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PlanetConfig selects the replication server.
type PlanetConfig struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	Datadir string `yaml:"datadir"`
}

// Config is the daemon configuration, loaded from YAML and overridable
// from the command line.
type Config struct {
	Planet PlanetConfig `yaml:"planet"`

	// Database is the postgres connection string for the underpass
	// schema (states, nodes, ways_poly, ways_line, way_refs).
	Database string `yaml:"database"`

	// ConflationDatabase is the postgres connection string holding the
	// planet_osm_polygon table used by the conflation engine. Defaults
	// to Database.
	ConflationDatabase string `yaml:"conflation_database"`

	// Frequency is the replication feed to follow.
	Frequency string `yaml:"frequency"`

	// Boundary is the GeoJSON file holding the priority multipolygon.
	Boundary string `yaml:"boundary"`

	// DataDir is the local directory for the listing cache.
	DataDir string `yaml:"data_dir"`

	Workers   int `yaml:"workers"`
	ChunkSize int `yaml:"chunk_size"`

	// MetricsAddr is the listen address for /metrics. Empty disables it.
	MetricsAddr string `yaml:"metrics_addr"`

	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Planet: PlanetConfig{
			Host:    "planet.openstreetmap.org",
			Port:    443,
			Datadir: "replication",
		},
		Database:    "postgres://localhost/underpass",
		Frequency:   "minute",
		Boundary:    "priority.geojson",
		DataDir:     ".",
		MetricsAddr: ":9090",
		LogLevel:    "info",
	}
}

// Load reads a YAML config file over the defaults. A missing file is not
// an error; the defaults stand.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.ConflationDatabase = cfg.Database
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if cfg.ConflationDatabase == "" {
		cfg.ConflationDatabase = cfg.Database
	}
	return cfg, nil
}
