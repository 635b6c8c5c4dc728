package downloader

import (
	"context"

	"github.com/DigiBugCat/yt-cli/pkg/domain"
)

// Downloader fetches video audio and metadata for the transcription
// pipeline. Implementations wrap an external tool; the pipeline only
// depends on this interface so tests can substitute fakes.
type Downloader interface {
	// FetchAudio downloads the audio track of a video and returns it with
	// the captured video metadata.
	FetchAudio(ctx context.Context, url string) (domain.VideoRef, domain.AudioAsset, error)

	// Metadata captures video metadata without downloading.
	Metadata(ctx context.Context, url string) (domain.VideoRef, error)

	// PlaylistEntries lists videos from a playlist-like URL (channel tab,
	// platform search) without downloading anything.
	PlaylistEntries(ctx context.Context, url string, limit int) ([]domain.PlaylistEntry, error)
}
