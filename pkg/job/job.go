package job

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gofrs/flock"
	"github.com/sirupsen/logrus"

	"github.com/DigiBugCat/yt-cli/pkg/domain"
	"github.com/DigiBugCat/yt-cli/pkg/downloader"
	"github.com/DigiBugCat/yt-cli/pkg/index"
	"github.com/DigiBugCat/yt-cli/pkg/paths"
	"github.com/DigiBugCat/yt-cli/pkg/storage"
	"github.com/DigiBugCat/yt-cli/pkg/transcriber"
)

// State is the pipeline position of a transcription job.
type State string

const (
	StateCreated    State = "created"
	StateAudioReady State = "audio_ready"
	StateUploaded   State = "uploaded"
	StateQueued     State = "queued"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Options tunes job timing and retention.
type Options struct {
	// PollInterval is the provider status poll cadence.
	PollInterval time.Duration

	// ProcessingTimeout bounds the provider-side Queued/Processing phase.
	ProcessingTimeout time.Duration

	// MaxUploadAttempts bounds upload retries before the job fails.
	MaxUploadAttempts int

	// KeepAudio moves the downloaded audio into the storage entry after a
	// successful transcription instead of deleting it.
	KeepAudio bool

	// LocksDir holds the per-entry advisory lock files.
	LocksDir string
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = 3 * time.Second
	}
	if o.ProcessingTimeout <= 0 {
		o.ProcessingTimeout = 60 * time.Minute
	}
	if o.MaxUploadAttempts <= 0 {
		o.MaxUploadAttempts = 5
	}
	return o
}

// Job drives one video from URL to a stored, indexed transcript.
//
// A job is single-use: create, Run once, optionally RetryPersist after a
// persist failure, then Close. Concurrent jobs for distinct videos are
// independent; jobs for the same video are serialized by an advisory lock
// on the resolved entry directory, held for the job's lifetime.
type Job struct {
	url      string
	dl       downloader.Downloader
	provider transcriber.Provider
	resolver *paths.Resolver
	store    *storage.Store
	idx      *index.Index
	opts     Options
	log      *logrus.Entry

	state    State
	video    domain.VideoRef
	audio    domain.AudioAsset
	handle   transcriber.JobHandle
	entryDir string
	lock     *flock.Flock

	// result is retained from Completed until persistence succeeds so a
	// persist retry never re-pays the transcription.
	result *domain.Transcript
}

// New creates a job for one video URL.
func New(url string, dl downloader.Downloader, provider transcriber.Provider,
	resolver *paths.Resolver, store *storage.Store, idx *index.Index,
	opts Options, log *logrus.Entry) *Job {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Job{
		url:      url,
		dl:       dl,
		provider: provider,
		resolver: resolver,
		store:    store,
		idx:      idx,
		opts:     opts.withDefaults(),
		log:      log.WithField("url", url),
		state:    StateCreated,
	}
}

// State reports the job's current pipeline position.
func (j *Job) State() State {
	return j.state
}

// EntryDir reports the resolved storage directory, available once the
// download step has captured metadata.
func (j *Job) EntryDir() string {
	return j.entryDir
}

func (j *Job) setState(s State) {
	j.state = s
	j.log.WithField("state", string(s)).Debug("job transition")
}

// Run executes the pipeline: download, upload, poll, materialize, index.
// On success the stored document and entry directory are returned and the
// job is closed. On failure the returned error carries a Reason; for
// ReasonPersist the transcription result is retained and the entry lock
// stays held so RetryPersist can finish the job without re-uploading.
func (j *Job) Run(ctx context.Context) (*domain.TranscriptDoc, string, error) {
	doc, dir, err := j.run(ctx)
	if err != nil && ReasonOf(err) != ReasonPersist {
		j.cleanupAudio()
		j.Close()
	}
	return doc, dir, err
}

func (j *Job) run(ctx context.Context) (*domain.TranscriptDoc, string, error) {
	// Created -> AudioReady
	video, audio, err := j.dl.FetchAudio(ctx, j.url)
	if err != nil {
		j.setState(StateFailed)
		return nil, "", fail(ReasonDownload, err)
	}
	j.video = video
	j.audio = audio
	j.setState(StateAudioReady)
	j.log.WithFields(logrus.Fields{
		"title":   video.Title,
		"channel": video.Channel,
	}).Info("audio downloaded")

	entryDir, err := j.resolver.Resolve(video.Platform, video.Channel, video.VideoID)
	if err != nil {
		j.setState(StateFailed)
		return nil, "", fail(ReasonDownload, err)
	}
	j.entryDir = entryDir

	if err := j.acquireLock(); err != nil {
		j.setState(StateFailed)
		return nil, "", err
	}

	// AudioReady -> Uploaded
	if err := j.upload(ctx); err != nil {
		j.setState(StateFailed)
		return nil, "", err
	}
	j.setState(StateUploaded)
	j.log.WithField("handle", string(j.handle)).Info("audio uploaded to provider")

	// Uploaded -> Queued -> Processing -> Completed
	if err := j.poll(ctx); err != nil {
		j.setState(StateFailed)
		return nil, "", err
	}

	result, err := j.fetchResult(ctx)
	if err != nil {
		j.setState(StateFailed)
		return nil, "", err
	}
	j.result = result
	j.setState(StateCompleted)
	j.log.WithField("words", len(result.Words)).Info("transcription complete")

	doc, err := j.persist(ctx)
	if err != nil {
		return nil, "", err
	}
	j.Close()
	return doc, j.entryDir, nil
}

// acquireLock takes the per-entry advisory lock, failing fast when another
// job for the same video holds it.
func (j *Job) acquireLock() error {
	if j.opts.LocksDir == "" {
		return nil
	}
	if err := os.MkdirAll(j.opts.LocksDir, 0o755); err != nil {
		return fail(ReasonPersist, fmt.Errorf("create locks dir: %w", err))
	}
	name := strings.NewReplacer("/", "_", "\\", "_").Replace(
		filepath.Join(j.video.Platform, paths.SanitizeSegment(j.video.VideoID, 50)))
	lock := flock.New(filepath.Join(j.opts.LocksDir, name+".lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fail(ReasonLocked, fmt.Errorf("acquire entry lock: %w", err))
	}
	if !locked {
		return fail(ReasonLocked, fmt.Errorf("another job for video %s is in flight", j.video.VideoID))
	}
	j.lock = lock
	return nil
}

// upload hands the audio to the provider, retrying transient failures with
// exponential backoff up to MaxUploadAttempts.
func (j *Job) upload(ctx context.Context) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(j.opts.MaxUploadAttempts-1)),
		ctx)

	err := backoff.Retry(func() error {
		handle, err := j.provider.Upload(ctx, j.audio)
		if err != nil {
			var perm *transcriber.PermanentError
			if errors.As(err, &perm) {
				return backoff.Permanent(err)
			}
			j.log.WithError(err).Warn("upload attempt failed")
			return err
		}
		j.handle = handle
		return nil
	}, policy)
	if err != nil {
		var perm *transcriber.PermanentError
		if errors.As(err, &perm) {
			return fail(ReasonProvider, err)
		}
		if ctx.Err() != nil {
			return fail(ReasonUpload, ctx.Err())
		}
		return fail(ReasonUpload, err)
	}
	return nil
}

// poll waits for the provider to finish, timer-driven so concurrent jobs
// interleave instead of serializing on a blocking sleep. Transient poll
// errors back off with a cap; only the overall ProcessingTimeout fails the
// job.
func (j *Job) poll(ctx context.Context) error {
	deadline := time.Now().Add(j.opts.ProcessingTimeout)

	transient := backoff.NewExponentialBackOff()
	transient.InitialInterval = j.opts.PollInterval
	transient.MaxInterval = 4 * j.opts.PollInterval
	transient.MaxElapsedTime = 0

	timer := time.NewTimer(j.opts.PollInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			// Cancellation releases the provider job and is surfaced as-is;
			// only a deadline maps to the timeout failure.
			j.releaseProvider()
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fail(ReasonTimeout, ctx.Err())
			}
			return ctx.Err()
		case <-timer.C:
		}

		if time.Now().After(deadline) {
			return fail(ReasonTimeout,
				fmt.Errorf("provider did not complete within %s", j.opts.ProcessingTimeout))
		}

		status, err := j.provider.PollStatus(ctx, j.handle)
		if err != nil {
			var perm *transcriber.PermanentError
			if errors.As(err, &perm) {
				return fail(ReasonProvider, err)
			}
			wait := transient.NextBackOff()
			j.log.WithError(err).WithField("retry_in", wait).Warn("transient poll error")
			timer.Reset(wait)
			continue
		}
		transient.Reset()

		switch status {
		case transcriber.StatusQueued:
			j.setState(StateQueued)
		case transcriber.StatusProcessing:
			j.setState(StateProcessing)
		case transcriber.StatusCompleted:
			return nil
		case transcriber.StatusError:
			return fail(ReasonProvider, fmt.Errorf("provider reported failure"))
		}
		timer.Reset(j.opts.PollInterval)
	}
}

func (j *Job) fetchResult(ctx context.Context) (*domain.Transcript, error) {
	result, err := j.provider.FetchResult(ctx, j.handle)
	if err != nil {
		var perm *transcriber.PermanentError
		if errors.As(err, &perm) {
			return nil, fail(ReasonProvider, err)
		}
		return nil, fail(ReasonTimeout, err)
	}
	return result, nil
}

// persist materializes the entry and indexes it. Remote transcription has
// already succeeded here, so failures are ReasonPersist and retryable via
// RetryPersist without touching the provider again.
func (j *Job) persist(ctx context.Context) (*domain.TranscriptDoc, error) {
	doc := &domain.TranscriptDoc{Video: j.video, Transcript: *j.result}

	audioPath := ""
	if j.opts.KeepAudio {
		audioPath = j.audio.LocalPath
	}
	if err := j.store.Write(j.entryDir, doc, audioPath); err != nil {
		return nil, fail(ReasonPersist, err)
	}
	if err := j.idx.Add(ctx, index.RecordFromDoc(doc, j.entryDir)); err != nil {
		return nil, fail(ReasonPersist, err)
	}
	if !j.opts.KeepAudio {
		j.cleanupAudio()
	}
	return doc, nil
}

// RetryPersist re-runs the materialize+index step after a ReasonPersist
// failure, using the retained transcription result.
func (j *Job) RetryPersist(ctx context.Context) (*domain.TranscriptDoc, string, error) {
	if j.result == nil {
		return nil, "", fmt.Errorf("no retained result to persist")
	}
	doc, err := j.persist(ctx)
	if err != nil {
		return nil, "", err
	}
	j.Close()
	return doc, j.entryDir, nil
}

// Cancel releases provider-side resources for an in-flight job. Storage is
// never touched, so cancellation leaves no partial entry.
func (j *Job) Cancel() {
	j.releaseProvider()
	j.cleanupAudio()
	j.Close()
}

func (j *Job) releaseProvider() {
	if j.handle == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := j.provider.Delete(ctx, j.handle); err != nil {
		j.log.WithError(err).Debug("provider cleanup failed")
	}
}

func (j *Job) cleanupAudio() {
	if j.audio.LocalPath == "" {
		return
	}
	if err := os.Remove(j.audio.LocalPath); err != nil && !os.IsNotExist(err) {
		j.log.WithError(err).Debug("audio cleanup failed")
	}
}

// Close releases the entry lock. Idempotent.
func (j *Job) Close() {
	if j.lock != nil {
		_ = j.lock.Unlock()
		j.lock = nil
	}
}
