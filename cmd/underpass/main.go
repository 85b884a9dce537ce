package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/yuiseki/underpass/pkg/cache"
	"github.com/yuiseki/underpass/pkg/config"
	"github.com/yuiseki/underpass/pkg/events"
	"github.com/yuiseki/underpass/pkg/fetcher"
	"github.com/yuiseki/underpass/pkg/log"
	"github.com/yuiseki/underpass/pkg/metrics"
	"github.com/yuiseki/underpass/pkg/monitor"
	"github.com/yuiseki/underpass/pkg/osmchange"
	"github.com/yuiseki/underpass/pkg/planet"
	"github.com/yuiseki/underpass/pkg/raw"
	"github.com/yuiseki/underpass/pkg/replication"
	"github.com/yuiseki/underpass/pkg/validate"

	osmpkg "github.com/yuiseki/underpass/pkg/osm"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// errPipeline marks a fatal pipeline failure, which exits with -1 rather
// than the argument-error code.
var errPipeline = errors.New("pipeline failure")

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, errPipeline) {
			os.Exit(-1)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "underpass",
	Short: "Underpass - OpenStreetMap change monitoring",
	Long: `Underpass continuously downloads, applies and validates incremental
map updates published by an OSM replication server, maintaining a
relational store of current map entities and a stream of statistics
and quality signals derived from each change.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Underpass version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	// Global flags
	rootCmd.PersistentFlags().String("config", "underpass.yaml", "Configuration file")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().StringP("planet", "p", "", "Replication server hostname")
	rootCmd.PersistentFlags().StringP("datadir", "d", "", "Replication directory on the server")
	rootCmd.PersistentFlags().String("database", "", "Postgres connection string")
	rootCmd.PersistentFlags().StringP("frequency", "f", "", "Update frequency (minute, hour, day, changeset)")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(scanCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

// loadConfig merges the YAML file with the global flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if v, _ := cmd.Flags().GetString("planet"); v != "" {
		cfg.Planet.Host = v
	}
	if v, _ := cmd.Flags().GetString("datadir"); v != "" {
		cfg.Planet.Datadir = strings.Trim(v, "/")
	}
	if v, _ := cmd.Flags().GetString("database"); v != "" {
		cfg.Database = v
		cfg.ConflationDatabase = v
	}
	if v, _ := cmd.Flags().GetString("frequency"); v != "" {
		cfg.Frequency = v
	}
	return cfg, nil
}

func planetConfig(cfg *config.Config, store *cache.Store) planet.Config {
	return planet.Config{
		Host:    cfg.Planet.Host,
		Port:    cfg.Planet.Port,
		Datadir: cfg.Planet.Datadir,
		Cache:   store,
	}
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Follow a replication feed and apply every change",
	Long: `Monitor locates the replication file for the given timestamp or URL,
then follows the feed: each change file is downloaded, applied to the
raw store, measured for per-user statistics, and conflated against the
existing data. The loop runs until interrupted and drains in-flight
work before stopping.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		urlFlag, _ := cmd.Flags().GetString("url")
		timestamp, _ := cmd.Flags().GetString("timestamp")
		boundary, _ := cmd.Flags().GetString("boundary")

		if urlFlag == "" && timestamp == "" {
			return errors.New("you need to supply either a timestamp or URL")
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if boundary != "" {
			cfg.Boundary = boundary
		}

		var start time.Time
		if timestamp != "" {
			if timestamp == "now" {
				start = time.Now().UTC()
			} else {
				start, err = time.Parse("2006-01-02 15:04:05", timestamp)
				if err != nil {
					return fmt.Errorf("invalid timestamp %q: %w", timestamp, err)
				}
			}
		}

		freq, err := replication.ParseFrequency(cfg.Frequency)
		if err != nil {
			return err
		}

		priority, err := osmpkg.LoadBoundary(cfg.Boundary)
		if err != nil {
			return fmt.Errorf("%w: %v", errPipeline, err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		pool, err := pgxpool.New(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("%w: connecting to database: %v", errPipeline, err)
		}
		defer pool.Close()

		confPool := pool
		if cfg.ConflationDatabase != cfg.Database {
			confPool, err = pgxpool.New(ctx, cfg.ConflationDatabase)
			if err != nil {
				return fmt.Errorf("%w: connecting to conflation database: %v", errPipeline, err)
			}
			defer confPool.Close()
		}

		dircache, err := cache.Open(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("%w: %v", errPipeline, err)
		}
		defer dircache.Close()

		remote := &replication.RemoteURL{
			Scheme:    "https",
			Host:      cfg.Planet.Host,
			Port:      cfg.Planet.Port,
			Datadir:   cfg.Planet.Datadir,
			Frequency: freq,
		}
		if urlFlag != "" {
			if strings.HasPrefix(urlFlag, "http") {
				remote, err = replication.ParseRemoteURL(urlFlag)
				if err != nil {
					return err
				}
			} else {
				remote.Subpath = strings.Trim(urlFlag, "/")
			}
		}

		broker := events.NewBroker()
		broker.Start()
		defer broker.Stop()

		// Findings and statistics surface through the log sink.
		sink := events.NewLogSink(broker)
		sink.Start()
		defer sink.Stop()

		if cfg.MetricsAddr != "" {
			go serveMetrics(cfg.MetricsAddr)
		}

		conflator := validate.NewConflator(confPool)
		if err := conflator.CreateView(ctx, priority); err != nil {
			log.Logger.Warn().Err(err).Msg("Conflation view unavailable, findings disabled")
			conflator = nil
		}

		mon := monitor.New(monitor.Config{
			Planet:    planetConfig(cfg, dircache),
			Catalog:   replication.NewCatalog(pool),
			Store:     raw.NewStore(pool),
			Conflator: conflator,
			Broker:    broker,
			Priority:  priority,
			Remote:    remote,
			StartTime: start,
		})
		if err := mon.Run(ctx); err != nil {
			return fmt.Errorf("%w: %v", errPipeline, err)
		}
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Apply a local change file to the raw store",
	RunE: func(cmd *cobra.Command, args []string) error {
		changefile, _ := cmd.Flags().GetString("changefile")
		boundary, _ := cmd.Flags().GetString("boundary")
		if changefile == "" {
			return errors.New("--changefile is required")
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if boundary != "" {
			cfg.Boundary = boundary
		}

		priority, err := osmpkg.LoadBoundary(cfg.Boundary)
		if err != nil {
			return fmt.Errorf("%w: %v", errPipeline, err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		pool, err := pgxpool.New(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("%w: connecting to database: %v", errPipeline, err)
		}
		defer pool.Close()

		cf, err := osmchange.ParseFile(changefile)
		if err != nil {
			return err
		}

		mon := monitor.New(monitor.Config{
			Store:    raw.NewStore(pool),
			Catalog:  replication.NewCatalog(pool),
			Priority: priority,
		})
		if err := mon.ProcessChangeFile(ctx, cf); err != nil {
			return fmt.Errorf("%w: %v", errPipeline, err)
		}
		log.Info("Change file imported")
		return nil
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Crawl replication directories and catalog every state file",
	Long: `Scan walks the remote directory tree below the given URL fragment and
records every state file it finds. A bare frequency scans the whole
feed; one, two or three 3-digit groups narrow the walk to a directory,
subdirectory or single file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		urlFlag, _ := cmd.Flags().GetString("url")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		freq, err := replication.ParseFrequency(cfg.Frequency)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		pool, err := pgxpool.New(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("%w: connecting to database: %v", errPipeline, err)
		}
		defer pool.Close()

		dircache, err := cache.Open(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("%w: %v", errPipeline, err)
		}
		defer dircache.Close()

		broker := events.NewBroker()
		broker.Start()
		defer broker.Stop()

		sink := events.NewLogSink(broker)
		sink.Start()
		defer sink.Stop()

		pcfg := planetConfig(cfg, dircache)
		f := fetcher.New(fetcher.Config{
			Planet:    pcfg,
			Catalog:   replication.NewCatalog(pool),
			Broker:    broker,
			Workers:   cfg.Workers,
			ChunkSize: cfg.ChunkSize,
		})

		base := "/" + cfg.Planet.Datadir + "/" + string(freq) + "/"
		sub := strings.Trim(urlFlag, "/")
		if err := scanTree(ctx, pcfg, f, base, sub); err != nil {
			return fmt.Errorf("%w: %v", errPipeline, err)
		}
		return nil
	},
}

// scanTree recurses through the directory levels until it reaches the
// subdirectories that hold the actual state files, then hands each one to
// the fetcher.
func scanTree(ctx context.Context, pcfg planet.Config, f *fetcher.Fetcher, base, sub string) error {
	depth := replication.MatchPath(sub)
	if depth == replication.DepthFilePath {
		cut := strings.LastIndex(sub, "/")
		return f.Run(ctx, base+sub[:cut]+"/", []string{sub[cut+1:] + ".state.txt"})
	}

	dir := base
	if sub != "" {
		dir += sub + "/"
	}

	client, err := planet.Connect(pcfg)
	if err != nil {
		return err
	}
	links, err := client.ScanDirectory(ctx, dir)
	client.Close()
	if err != nil {
		return err
	}

	switch depth {
	case replication.DepthSubdirectory:
		return f.Run(ctx, dir, links)
	default:
		for _, link := range links {
			if err := ctx.Err(); err != nil {
				return err
			}
			next := strings.TrimSuffix(link, "/")
			child := next
			if sub != "" {
				child = sub + "/" + next
			}
			if err := scanTree(ctx, pcfg, f, base, child); err != nil {
				return err
			}
		}
	}
	return nil
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Logger.Error().Err(err).Str("addr", addr).Msg("Metrics server stopped")
	}
}

func init() {
	monitorCmd.Flags().StringP("url", "u", "", "Starting URL fragment (ex. 000/075/000)")
	monitorCmd.Flags().StringP("timestamp", "t", "", "Starting timestamp (ex. '2020-10-09 10:03:02' or 'now')")
	monitorCmd.Flags().StringP("boundary", "b", "", "Boundary polygon file name")

	importCmd.Flags().StringP("changefile", "c", "", "Change file path (.osc or .osc.gz)")
	importCmd.Flags().StringP("boundary", "b", "", "Boundary polygon file name")

	scanCmd.Flags().StringP("url", "u", "", "URL fragment to scan (ex. 000 or 000/075)")
}
