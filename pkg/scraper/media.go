package scraper

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"xscraper/internal/downloader"
	"xscraper/internal/fsutil"
	"xscraper/pkg/checkpoint"
	"xscraper/pkg/logger"
	"xscraper/pkg/ratelimit"
	"xscraper/pkg/record"
	"xscraper/pkg/storage"
	"xscraper/pkg/twitter"
)

// MediaJobs plans one download per media URL of records: post media for post
// surfaces, avatars for profile surfaces. URLs already in cp are left out.
func MediaJobs(surface twitter.Surface, records []record.Record, cp *checkpoint.Checkpoint) []downloader.DownloadJob {
	var jobs []downloader.DownloadJob
	seen := make(map[string]struct{})

	add := func(url, recordID, name string) {
		if url == "" {
			return
		}
		if _, dup := seen[url]; dup {
			return
		}
		if cp != nil && cp.IsMediaDownloaded(url) {
			return
		}
		seen[url] = struct{}{}
		jobs = append(jobs, downloader.DownloadJob{
			URL:      url,
			RecordID: recordID,
			FileName: fsutil.SafeName(name) + twitter.MediaExtension(url),
		})
	}

	for _, r := range records {
		if surface.Kind() == twitter.KindPost {
			for i, url := range r.Strings(twitter.FieldMedia) {
				add(url, r.ID, fmt.Sprintf("%s_%d", r.ID, i))
			}
			continue
		}
		add(r.String(twitter.FieldAvatarURL), r.ID, r.Key()+"_avatar")
	}
	return jobs
}

// downloadMedia fetches the media of records into <output>/media/<subject>
func (s *Scraper) downloadMedia(ctx context.Context, subjectID string, surface twitter.Surface, records []record.Record, mgr *checkpoint.Manager, cp *checkpoint.Checkpoint) downloader.Summary {
	jobs := MediaJobs(surface, records, cp)
	if len(jobs) == 0 {
		return downloader.Summary{}
	}

	dir := filepath.Join(s.config.Output.BaseDirectory, "media", fsutil.SafeName(subjectID))
	store, err := storage.NewManager(dir)
	if err != nil {
		s.logger.WithError(err).Error("Failed to create media storage")
		return downloader.Summary{Failed: len(jobs)}
	}

	perMinute := s.config.RateLimit.RequestsPerMinute
	if perMinute <= 0 {
		perMinute = 60
	}
	limiter := ratelimit.NewTokenBucket(perMinute, time.Minute)

	pool := downloader.NewPool(s.config.Download.ConcurrentDownloads, s.media, store, limiter, s.logger)
	pool.OnResult = func(r downloader.DownloadResult) {
		s.reportDownload(subjectID, r)
		if r.Success && !r.Skipped && mgr != nil && cp != nil {
			if err := mgr.RecordDownload(cp, r.Job.URL, r.Job.FileName); err != nil {
				s.logger.WithError(err).Debug("Failed to record download in checkpoint")
			}
		}
	}

	for _, job := range jobs {
		if s.tui != nil {
			s.tui.StartDownload(job.FileName, subjectID, job.FileName)
		} else if s.progress != nil {
			s.progress.StartDownload(job.FileName)
		}
	}

	logger.LogComponentStart("media_downloader", map[string]interface{}{
		"subject": subjectID,
		"jobs":    len(jobs),
		"dir":     dir,
	})
	_, summary := pool.Run(ctx, jobs)
	logger.LogComponentStop("media_downloader", fmt.Sprintf("%d downloaded, %d skipped, %d failed", summary.Downloaded, summary.Skipped, summary.Failed))

	if s.tui != nil {
		s.tui.UpdateRateLimit(perMinute-limiter.Remaining(), perMinute, time.Now().Add(time.Minute))
	}
	return summary
}

func (s *Scraper) reportDownload(subjectID string, r downloader.DownloadResult) {
	switch {
	case r.Error != nil:
		if s.tui != nil {
			s.tui.FailDownload(r.Job.FileName, r.Error)
		} else if s.progress != nil {
			s.progress.FailDownload(r.Job.FileName, r.Error)
		}
	default:
		if s.tui != nil {
			s.tui.CompleteDownload(r.Job.FileName, int64(r.Size))
		} else if s.progress != nil {
			s.progress.CompleteDownload(r.Job.FileName, int64(r.Size))
		}
	}
}
