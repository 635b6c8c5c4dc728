package transcriber

import (
	"context"
	"fmt"

	"github.com/DigiBugCat/yt-cli/pkg/domain"
)

// Status is the provider-side job status.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// JobHandle is the provider's opaque job identifier.
type JobHandle string

// PermanentError is a terminal rejection by the provider (bad audio,
// unsupported language). It is never retried.
type PermanentError struct {
	Message string
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("provider rejected job: %s", e.Message)
}

// Provider is the cloud transcription service. The pipeline depends only on
// this interface; fakes simulate delay, transient failure, and permanent
// failure in tests.
//
// Errors that are not *PermanentError are treated as transient by callers.
type Provider interface {
	// Upload submits an audio asset for transcription and returns the
	// provider's job handle.
	Upload(ctx context.Context, asset domain.AudioAsset) (JobHandle, error)

	// PollStatus reports the current job status. A permanent provider
	// failure is returned as StatusError with a *PermanentError.
	PollStatus(ctx context.Context, handle JobHandle) (Status, error)

	// FetchResult retrieves the structured transcript of a completed job.
	FetchResult(ctx context.Context, handle JobHandle) (*domain.Transcript, error)

	// Delete releases provider-side resources for a job. Best effort;
	// used on cancellation.
	Delete(ctx context.Context, handle JobHandle) error
}
