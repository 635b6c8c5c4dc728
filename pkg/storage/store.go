package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/DigiBugCat/yt-cli/pkg/domain"
)

// Artifact file names inside an entry directory. The layout is shared with
// other tools reading the transcript tree, so these names are fixed.
const (
	MetadataFile   = "metadata.json"
	TranscriptFile = "transcript.json"
	MarkdownFile   = "transcript.md"
	AudioFile      = "audio.mp3"
)

var (
	// ErrNotFound is returned when an entry directory or its required files are absent.
	ErrNotFound = errors.New("transcript not found")

	// ErrCorrupt is returned when stored content cannot be parsed.
	ErrCorrupt = errors.New("transcript corrupt")
)

// Metadata is the on-disk metadata artifact: the video reference plus job timing.
type Metadata struct {
	domain.VideoRef
	TranscribedAt time.Time `json:"transcribed_at"`
}

// Store reads and writes the artifact set for stored transcripts.
// All writes are idempotent: re-writing an entry replaces it wholesale.
type Store struct {
	root string
}

// NewStore creates a store over the transcripts root directory.
func NewStore(root string) *Store {
	return &Store{root: root}
}

// Root returns the transcripts root directory.
func (s *Store) Root() string {
	return s.root
}

// Write materializes a transcript document into entryDir atomically: all
// artifacts are staged in a sibling directory and swapped into place with a
// rename, so readers never observe a half-written entry. Any prior content
// for the entry is replaced (last write wins). If audioPath is non-empty the
// audio file is moved into the entry.
func (s *Store) Write(entryDir string, doc *domain.TranscriptDoc, audioPath string) error {
	parent := filepath.Dir(entryDir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("create channel dir: %w", err)
	}

	stage := entryDir + ".stage-" + uuid.NewString()[:8]
	if err := os.MkdirAll(stage, 0o755); err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(stage)

	meta := Metadata{VideoRef: doc.Video, TranscribedAt: time.Now().UTC()}
	if err := writeJSON(filepath.Join(stage, MetadataFile), meta); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(stage, TranscriptFile), doc.Transcript); err != nil {
		return err
	}
	markdown := RenderMarkdown(doc)
	if err := os.WriteFile(filepath.Join(stage, MarkdownFile), []byte(markdown), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", MarkdownFile, err)
	}
	if audioPath != "" {
		if err := moveFile(audioPath, filepath.Join(stage, AudioFile)); err != nil {
			return fmt.Errorf("move audio: %w", err)
		}
	}

	if err := os.RemoveAll(entryDir); err != nil {
		return fmt.Errorf("clear previous entry: %w", err)
	}
	if err := os.Rename(stage, entryDir); err != nil {
		return fmt.Errorf("materialize entry: %w", err)
	}
	return nil
}

// Read loads a transcript document from an entry directory. Returns
// ErrNotFound when the directory or a required artifact is absent, and
// ErrCorrupt when an artifact cannot be parsed.
func (s *Store) Read(entryDir string) (*domain.TranscriptDoc, error) {
	metaBytes, err := os.ReadFile(filepath.Join(entryDir, MetadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, entryDir)
		}
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	trBytes, err := os.ReadFile(filepath.Join(entryDir, TranscriptFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, entryDir)
		}
		return nil, fmt.Errorf("read transcript: %w", err)
	}

	var meta Metadata
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return nil, fmt.Errorf("%w: metadata: %v", ErrCorrupt, err)
	}
	var tr domain.Transcript
	if err := json.Unmarshal(trBytes, &tr); err != nil {
		return nil, fmt.Errorf("%w: transcript: %v", ErrCorrupt, err)
	}

	return &domain.TranscriptDoc{Video: meta.VideoRef, Transcript: tr}, nil
}

// ReadMarkdown returns the human-readable rendering of an entry.
func (s *Store) ReadMarkdown(entryDir string) (string, error) {
	b, err := os.ReadFile(filepath.Join(entryDir, MarkdownFile))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, entryDir)
		}
		return "", fmt.Errorf("read markdown: %w", err)
	}
	return string(b), nil
}

// ListFilter narrows List results. Empty fields match everything.
type ListFilter struct {
	Platform string
	// Channel matches case-insensitively on the channel display name.
	Channel string
}

// List walks the storage tree and returns a summary for every complete
// entry. Order follows the lexical directory walk and is stable within a
// call. Incomplete or unreadable entries are skipped, never fatal.
func (s *Store) List(filter ListFilter) ([]domain.StorageEntry, error) {
	var entries []domain.StorageEntry

	walkRoot := s.root
	if filter.Platform != "" {
		walkRoot = filepath.Join(s.root, filter.Platform)
	}
	if _, err := os.Stat(walkRoot); os.IsNotExist(err) {
		return entries, nil
	}

	err := filepath.WalkDir(walkRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if _, statErr := os.Stat(filepath.Join(path, TranscriptFile)); statErr != nil {
			return nil
		}
		entry, ok := s.summarize(path)
		if ok {
			entries = append(entries, entry)
		}
		return fs.SkipDir
	})
	if err != nil {
		return nil, fmt.Errorf("walk transcripts: %w", err)
	}

	if filter.Channel != "" {
		needle := strings.ToLower(filter.Channel)
		kept := entries[:0]
		for _, e := range entries {
			if strings.Contains(strings.ToLower(e.Channel), needle) {
				kept = append(kept, e)
			}
		}
		entries = kept
	}
	return entries, nil
}

// summarize builds a StorageEntry from an entry directory, preferring
// metadata.json and falling back to path structure.
func (s *Store) summarize(entryDir string) (domain.StorageEntry, bool) {
	entry := domain.StorageEntry{
		Path:    entryDir,
		VideoID: filepath.Base(entryDir),
	}

	rel, err := filepath.Rel(s.root, entryDir)
	if err == nil {
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) >= 3 {
			entry.Platform = parts[0]
			entry.Channel = parts[1]
		}
	}

	metaBytes, err := os.ReadFile(filepath.Join(entryDir, MetadataFile))
	if err != nil {
		return entry, true
	}
	var meta Metadata
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return entry, true
	}
	if meta.VideoID != "" {
		entry.VideoID = meta.VideoID
	}
	if meta.Platform != "" {
		entry.Platform = meta.Platform
	}
	if meta.Channel != "" {
		entry.Channel = meta.Channel
	}
	entry.Title = meta.Title
	entry.ChannelHandle = meta.ChannelHandle
	entry.URL = meta.URL
	entry.UploadDate = meta.UploadDate
	entry.DurationSec = meta.DurationSec
	return entry, true
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// moveFile renames src to dst, copying when rename crosses filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
