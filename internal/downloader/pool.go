// Package downloader fetches the media attached to records with a bounded,
// rate limited set of concurrent downloads.
package downloader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"xscraper/pkg/logger"
	"xscraper/pkg/ratelimit"
)

// DownloadJob is one media file to fetch
type DownloadJob struct {
	URL      string
	RecordID string
	FileName string
}

// DownloadResult is the outcome of a job. Skipped results are successes
// where the file was already stored.
type DownloadResult struct {
	Job      DownloadJob
	Success  bool
	Skipped  bool
	Error    error
	Duration time.Duration
	Size     int
}

// MediaDownloader fetches media bytes
type MediaDownloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// MediaStorage stores media files by name
type MediaStorage interface {
	IsDownloaded(name string) bool
	SaveMedia(r io.Reader, name string) error
}

// Summary totals a set of results
type Summary struct {
	Downloaded int
	Skipped    int
	Failed     int
	Bytes      int64
}

func (s *Summary) add(r DownloadResult) {
	switch {
	case r.Skipped:
		s.Skipped++
	case r.Success:
		s.Downloaded++
		s.Bytes += int64(r.Size)
	default:
		s.Failed++
	}
}

// Pool runs at most Workers downloads at a time. A failed job never stops
// the others; only cancellation does.
type Pool struct {
	Workers int
	Client  MediaDownloader
	Store   MediaStorage
	Limiter ratelimit.Limiter
	Logger  logger.Logger

	// OnResult observes each result as it completes; calls are serialized
	OnResult func(DownloadResult)
}

func NewPool(workers int, client MediaDownloader, store MediaStorage, limiter ratelimit.Limiter, log logger.Logger) *Pool {
	return &Pool{Workers: workers, Client: client, Store: store, Limiter: limiter, Logger: log}
}

// Run downloads every job and returns the results in completion order
func (p *Pool) Run(ctx context.Context, jobs []DownloadJob) ([]DownloadResult, Summary) {
	log := logger.OrNop(p.Logger)
	log.InfoWithFields("Starting media downloads", map[string]interface{}{
		"workers": max(p.Workers, 1),
		"jobs":    len(jobs),
	})

	var (
		mu      sync.Mutex
		results = make([]DownloadResult, 0, len(jobs))
		summary Summary
	)
	var g errgroup.Group
	g.SetLimit(max(p.Workers, 1))

	for _, job := range jobs {
		g.Go(func() error {
			r := p.fetch(ctx, job, log)
			mu.Lock()
			defer mu.Unlock()
			results = append(results, r)
			summary.add(r)
			if p.OnResult != nil {
				p.OnResult(r)
			}
			return nil
		})
	}
	_ = g.Wait()

	log.DebugWithFields("Media downloads finished", map[string]interface{}{
		"downloaded": summary.Downloaded,
		"skipped":    summary.Skipped,
		"failed":     summary.Failed,
	})
	return results, summary
}

func (p *Pool) fetch(ctx context.Context, job DownloadJob, log logger.Logger) (result DownloadResult) {
	start := time.Now()
	result.Job = job
	defer func() { result.Duration = time.Since(start) }()

	if err := ctx.Err(); err != nil {
		result.Error = err
		return result
	}
	if p.Store.IsDownloaded(job.FileName) {
		result.Success, result.Skipped = true, true
		return result
	}

	if p.Limiter != nil && !p.Limiter.Allow() {
		log.DebugWithFields("Waiting for download budget", map[string]interface{}{"record_id": job.RecordID})
		if err := p.Limiter.Wait(ctx); err != nil {
			result.Error = err
			return result
		}
	}

	data, err := p.Client.Download(ctx, job.URL)
	if err == nil {
		result.Size = len(data)
		if err = p.Store.SaveMedia(bytes.NewReader(data), job.FileName); err != nil {
			err = fmt.Errorf("save failed: %w", err)
		}
	} else {
		err = fmt.Errorf("download failed: %w", err)
	}

	logger.LogDownload(log, job.RecordID, job.URL, err == nil, err)
	result.Error = err
	result.Success = err == nil
	return result
}
