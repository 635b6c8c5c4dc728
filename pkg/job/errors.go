package job

import (
	"errors"
	"fmt"
)

// Reason classifies a terminal job failure so callers can distinguish
// retryable-by-user failures from permanent ones.
type Reason string

const (
	// ReasonDownload: the downloader failed (network, geo-block, private
	// video, missing cookies). The pipeline does not retry; the caller may
	// resubmit the whole job.
	ReasonDownload Reason = "download"

	// ReasonUpload: audio upload to the provider exhausted its retries.
	ReasonUpload Reason = "upload"

	// ReasonProvider: the provider permanently rejected the job.
	ReasonProvider Reason = "provider"

	// ReasonTimeout: provider-side processing exceeded its bound.
	ReasonTimeout Reason = "timeout"

	// ReasonPersist: transcription succeeded but local write/index failed.
	// Safe to retry persistence without re-uploading.
	ReasonPersist Reason = "persist"

	// ReasonLocked: another job for the same video is already in flight.
	ReasonLocked Reason = "locked"
)

// Error is a terminal job failure with its classification.
type Error struct {
	Reason Reason
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("job failed (%s): %v", e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func fail(reason Reason, err error) *Error {
	return &Error{Reason: reason, Err: err}
}

// ReasonOf extracts the failure reason from an error chain, or "" when the
// error is not a job failure.
func ReasonOf(err error) Reason {
	var jerr *Error
	if errors.As(err, &jerr) {
		return jerr.Reason
	}
	return ""
}
