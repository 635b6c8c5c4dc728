package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/DigiBugCat/yt-cli/pkg/config"
	"github.com/DigiBugCat/yt-cli/pkg/domain"
	"github.com/DigiBugCat/yt-cli/pkg/downloader"
	"github.com/DigiBugCat/yt-cli/pkg/index"
	"github.com/DigiBugCat/yt-cli/pkg/job"
	"github.com/DigiBugCat/yt-cli/pkg/paths"
	"github.com/DigiBugCat/yt-cli/pkg/storage"
	"github.com/DigiBugCat/yt-cli/pkg/transcriber"
)

// ErrNotStored is returned by GetByURL when a video has no stored entry.
var ErrNotStored = errors.New("no stored transcript for video")

// Catalog ties the resolver, store, and index together and exposes the
// operations the command surface is built on. All external inputs come
// through the explicit Config so tests can run isolated instances.
type Catalog struct {
	cfg      config.Config
	resolver *paths.Resolver
	store    *storage.Store
	idx      *index.Index
	dl       downloader.Downloader
	provider transcriber.Provider
	log      *logrus.Entry
}

// New opens a catalog over the configured data directory.
func New(ctx context.Context, cfg config.Config, dl downloader.Downloader, provider transcriber.Provider, log *logrus.Entry) (*Catalog, error) {
	if err := cfg.EnsureDirs(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	idx := index.New(index.Config{Path: cfg.DatabasePath()})
	if err := idx.Connect(ctx); err != nil {
		return nil, err
	}

	return &Catalog{
		cfg:      cfg,
		resolver: paths.NewResolver(cfg.TranscriptsDir()),
		store:    storage.NewStore(cfg.TranscriptsDir()),
		idx:      idx,
		dl:       dl,
		provider: provider,
		log:      log,
	}, nil
}

// Close releases the index database handle.
func (c *Catalog) Close() error {
	return c.idx.Close()
}

// Store exposes the transcript store.
func (c *Catalog) Store() *storage.Store {
	return c.store
}

// Index exposes the search index.
func (c *Catalog) Index() *index.Index {
	return c.idx
}

func (c *Catalog) jobOptions() job.Options {
	return job.Options{
		PollInterval:      c.cfg.PollInterval,
		ProcessingTimeout: c.cfg.ProcessingTimeout,
		MaxUploadAttempts: c.cfg.MaxUploadAttempts,
		KeepAudio:         c.cfg.KeepAudio,
		LocksDir:          c.cfg.LocksDir(),
	}
}

// Transcribe runs the full pipeline for one URL and returns the stored
// document with its entry directory.
func (c *Catalog) Transcribe(ctx context.Context, url string) (*domain.TranscriptDoc, string, error) {
	j := job.New(url, c.dl, c.provider, c.resolver, c.store, c.idx, c.jobOptions(), c.log)
	return j.Run(ctx)
}

// List returns summaries of stored entries, optionally filtered.
func (c *Catalog) List(filter storage.ListFilter) ([]domain.StorageEntry, error) {
	return c.store.List(filter)
}

// Search evaluates a ranked full-text query. Hits whose entry directory no
// longer exists (index divergence after manual edits) are treated as
// absent: dropped from results and reported once via the log, never an
// error.
func (c *Catalog) Search(ctx context.Context, query string, filter index.SearchFilter, limit int) ([]index.SearchResult, error) {
	hits, err := c.idx.Search(ctx, query, filter, limit)
	if err != nil {
		return nil, err
	}

	results := hits[:0]
	dropped := 0
	for _, h := range hits {
		if _, statErr := os.Stat(h.Path); statErr != nil {
			dropped++
			continue
		}
		results = append(results, h)
	}
	if dropped > 0 {
		c.log.WithField("missing", dropped).Warn("index references missing entries; run `yt-cli reindex`")
	}
	return results, nil
}

// Read loads a stored transcript by entry directory or video id.
func (c *Catalog) Read(ctx context.Context, ref string) (*domain.TranscriptDoc, string, error) {
	dir, err := c.resolveRef(ctx, ref)
	if err != nil {
		return nil, "", err
	}
	doc, err := c.store.Read(dir)
	if err != nil {
		return nil, "", err
	}
	return doc, dir, nil
}

// ReadMarkdown loads the human-readable rendering by entry directory or
// video id.
func (c *Catalog) ReadMarkdown(ctx context.Context, ref string) (string, error) {
	dir, err := c.resolveRef(ctx, ref)
	if err != nil {
		return "", err
	}
	return c.store.ReadMarkdown(dir)
}

// resolveRef accepts an entry directory, a path to a file inside one, or a
// bare video id.
func (c *Catalog) resolveRef(ctx context.Context, ref string) (string, error) {
	if info, err := os.Stat(ref); err == nil {
		if info.IsDir() {
			return ref, nil
		}
		return filepath.Dir(ref), nil
	}
	path, err := c.idx.Lookup(ctx, ref)
	if err != nil {
		return "", err
	}
	if path == "" {
		return "", fmt.Errorf("%w: %s", storage.ErrNotFound, ref)
	}
	return path, nil
}

// GetByURL resolves a URL to its stored entry directory without
// re-downloading or re-transcribing. Returns ErrNotStored when the video
// has never been transcribed.
func (c *Catalog) GetByURL(ctx context.Context, url string) (string, error) {
	// Fast path: the id can usually be cut straight out of the URL.
	if videoID, err := paths.ExtractVideoID(url); err == nil {
		if path, err := c.idx.Lookup(ctx, videoID); err == nil && path != "" {
			if _, statErr := os.Stat(path); statErr == nil {
				return path, nil
			}
		}
	}

	// Slow path: capture metadata and resolve the deterministic directory.
	video, err := c.dl.Metadata(ctx, url)
	if err != nil {
		return "", fmt.Errorf("resolve video metadata: %w", err)
	}
	dir, err := c.resolver.Resolve(video.Platform, video.Channel, video.VideoID)
	if err != nil {
		return "", err
	}
	if _, err := c.store.Read(dir); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrNotStored, video.VideoID)
		}
		return "", err
	}
	return dir, nil
}

// Stats summarizes the indexed corpus.
func (c *Catalog) Stats(ctx context.Context) (*index.Stats, error) {
	return c.idx.Stats(ctx)
}

// Reindex drops and rebuilds the search index from the storage tree.
// Unreadable entries are skipped with a diagnostic; the rebuild is a fixed
// point, so running it twice yields the same index. Returns the number of
// entries indexed.
func (c *Catalog) Reindex(ctx context.Context) (int, error) {
	entries, err := c.store.List(storage.ListFilter{})
	if err != nil {
		return 0, err
	}

	records := make([]index.Record, 0, len(entries))
	for _, e := range entries {
		doc, err := c.store.Read(e.Path)
		if err != nil {
			c.log.WithError(err).WithField("path", e.Path).Warn("skipping unreadable entry")
			continue
		}
		records = append(records, index.RecordFromDoc(doc, e.Path))
	}
	return c.idx.ReindexAll(ctx, records)
}
