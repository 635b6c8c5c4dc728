package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/DigiBugCat/yt-cli/pkg/catalog"
)

// Manager distributes video URLs across transcription workers. Distinct
// videos transcribe concurrently; duplicate URLs in one batch lose the
// entry lock and surface as errors rather than corrupting an entry.
type Manager struct {
	workerCount int
	cat         *catalog.Catalog
	log         *logrus.Entry
}

// NewManager creates a manager running workerCount concurrent jobs.
func NewManager(workerCount int, cat *catalog.Catalog, log *logrus.Entry) *Manager {
	if workerCount <= 0 {
		workerCount = 1
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Manager{workerCount: workerCount, cat: cat, log: log}
}

// ProcessURLs transcribes all URLs, interleaving provider polling across
// jobs. Individual failures are logged and counted; the batch fails only
// when every URL fails.
func (m *Manager) ProcessURLs(ctx context.Context, urls []string) error {
	if len(urls) == 0 {
		return nil
	}

	jobChan := make(chan string, len(urls))
	for _, url := range urls {
		jobChan <- url
	}
	close(jobChan)

	type result struct {
		url string
		err error
	}
	resultsChan := make(chan result, len(urls))

	var wg sync.WaitGroup
	for i := 0; i < m.workerCount; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w := NewWorker(m.cat)
			for url := range jobChan {
				_, err := w.ProcessURL(ctx, url)
				resultsChan <- result{url: url, err: err}
			}
		}(i)
	}

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	var successCount, errorCount int
	for res := range resultsChan {
		if res.err == nil {
			successCount++
			continue
		}
		errorCount++
		m.log.WithError(res.err).WithField("url", res.url).Error("transcription failed")
	}

	m.log.WithFields(logrus.Fields{
		"succeeded": successCount,
		"failed":    errorCount,
	}).Info("batch complete")

	if errorCount > 0 && successCount == 0 {
		return fmt.Errorf("all %d URLs failed to transcribe", errorCount)
	}
	return nil
}
