package worker

import (
	"context"
	"fmt"

	"github.com/DigiBugCat/yt-cli/pkg/catalog"
	"github.com/DigiBugCat/yt-cli/pkg/domain"
)

// Worker transcribes videos from URLs.
type Worker struct {
	cat *catalog.Catalog
}

// NewWorker creates a new worker over the shared catalog.
func NewWorker(cat *catalog.Catalog) *Worker {
	return &Worker{cat: cat}
}

// ProcessURL runs the full transcription pipeline for a single URL.
// Per-video serialization is handled by the job's entry lock, so workers
// never race on the same storage entry.
func (w *Worker) ProcessURL(ctx context.Context, url string) (*domain.TranscriptDoc, error) {
	doc, _, err := w.cat.Transcribe(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("transcribe %s: %w", url, err)
	}
	return doc, nil
}
