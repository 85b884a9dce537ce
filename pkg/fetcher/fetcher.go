package fetcher

import (
	"context"
	"errors"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/yuiseki/underpass/pkg/events"
	"github.com/yuiseki/underpass/pkg/log"
	"github.com/yuiseki/underpass/pkg/metrics"
	"github.com/yuiseki/underpass/pkg/planet"
	"github.com/yuiseki/underpass/pkg/replication"
)

const (
	// defaultChunkSize stays below the request ceiling the planet server
	// enforces per connection (observed at 224 or fewer).
	defaultChunkSize = 200
	// chunkPause keeps the crawl polite between connections.
	chunkPause = time.Second
)

// Config holds the fetcher dependencies and tuning knobs.
type Config struct {
	Planet  planet.Config
	Catalog *replication.Catalog
	Broker  *events.Broker
	// Workers is the thread-pool width. Zero means one per CPU.
	Workers int
	// ChunkSize is how many files share one TLS session.
	ChunkSize int
}

// Fetcher downloads state files in chunks, one fresh TLS session per
// chunk, and records each decoded checkpoint in the catalog. The job is
// best-effort: a file that fails to download or decode is logged and
// skipped.
type Fetcher struct {
	cfg    Config
	logger zerolog.Logger
}

// New creates a fetcher.
func New(cfg Config) *Fetcher {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	return &Fetcher{
		cfg:    cfg,
		logger: log.WithComponent("fetcher"),
	}
}

// Run walks the candidate filenames under one base directory. Shutdown is
// cooperative: the context is checked between chunks, and in-flight
// requests are drained rather than aborted.
func (f *Fetcher) Run(ctx context.Context, base string, files []string) error {
	for start := 0; start < len(files); start += f.cfg.ChunkSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := start + f.cfg.ChunkSize
		if end > len(files) {
			end = len(files)
		}
		if err := f.runChunk(ctx, base, files[start:end]); err != nil {
			return err
		}

		// Don't hit the server too hard, it's not polite.
		if end < len(files) {
			select {
			case <-time.After(chunkPause):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

// runChunk downloads one chunk over a fresh TLS session. Filenames are
// dispatched to the worker pool; the planet client serializes the actual
// stream writes through its own mutex.
func (f *Fetcher) runChunk(ctx context.Context, base string, files []string) error {
	client, err := planet.Connect(f.cfg.Planet)
	if err != nil {
		return err
	}
	defer client.Close()

	timer := metrics.NewTimer()
	jobs := make(chan string)
	var wg sync.WaitGroup

	for i := 0; i < f.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for file := range jobs {
				f.fetchOne(ctx, client, base, file)
			}
		}()
	}

	for _, file := range files {
		if !strings.HasSuffix(file, ".txt") {
			continue
		}
		jobs <- file
	}
	close(jobs)
	wg.Wait()

	f.logger.Debug().
		Int("files", len(files)).
		Dur("took", timer.Duration()).
		Msg("Chunk finished")
	return nil
}

// fetchOne downloads, decodes and catalogs a single state file.
func (f *Fetcher) fetchOne(ctx context.Context, client *planet.Client, base, file string) {
	path := strings.TrimPrefix(base+strings.TrimSuffix(file, ".state.txt"), "/")
	flog := log.WithPath(path)

	existing, err := f.cfg.Catalog.Get(ctx, path)
	if err != nil {
		flog.Error().Err(err).Msg("Catalog lookup failed")
		return
	}
	if existing != nil {
		metrics.StatesSkipped.Inc()
		flog.Debug().Msg("Already stored")
		return
	}

	s, err := client.FetchState(ctx, base+file)
	if err != nil {
		if errors.Is(err, planet.ErrNotFound) {
			return
		}
		flog.Error().Err(err).Msg("Failed to fetch state file")
		return
	}

	if err := f.cfg.Catalog.Put(ctx, s); err != nil {
		flog.Error().Err(err).Msg("Failed to record state")
		return
	}
	metrics.StatesRecorded.Inc()

	if f.cfg.Broker != nil {
		ev := events.New(events.EventStateRecorded, s.Path)
		ev.Metadata["sequence"] = strconv.FormatUint(s.Sequence, 10)
		ev.Metadata["timestamp"] = s.Timestamp.UTC().Format(time.RFC3339)
		f.cfg.Broker.Publish(ev)
	}

	flog.Info().
		Uint64("sequence", s.Sequence).
		Time("timestamp", s.Timestamp).
		Msg("Recorded state")
}
