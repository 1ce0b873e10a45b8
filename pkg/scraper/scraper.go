package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"xscraper/internal/downloader"
	"xscraper/pkg/checkpoint"
	"xscraper/pkg/collector"
	"xscraper/pkg/config"
	errs "xscraper/pkg/errors"
	"xscraper/pkg/export"
	"xscraper/pkg/logger"
	"xscraper/pkg/ratelimit"
	"xscraper/pkg/record"
	"xscraper/pkg/retry"
	"xscraper/pkg/snapshot"
	"xscraper/pkg/twitter"
	"xscraper/pkg/ui"
)

// ErrCheckpointExists is returned when an unfinished run is on disk and the
// job asked neither to resume nor to restart
var ErrCheckpointExists = errors.New("checkpoint exists - use --resume to continue or --force-restart to start fresh")

const pausePollInterval = 500 * time.Millisecond

// Job describes one collection
type Job struct {
	// Subject is a handle, a status URL or id for replies, a tag or a search query
	Subject string
	Surface twitter.Surface
	// Limit overrides collector.target_count when positive
	Limit int
	// Format overrides output.format when set
	Format        export.Format
	Resume        bool
	ForceRestart  bool
	DownloadMedia bool
	// Destination overrides the output directory, e.g. to stream to stdout
	Destination export.Destination
}

// Outcome reports what a run produced
type Outcome struct {
	SubjectID string
	Result    *collector.Result
	Delta     snapshot.Delta
	// Stored is false when the run was interrupted and no snapshot was written
	Stored      bool
	// Withheld counts removed records dropped from Delta because the run
	// stopped before the end of the list
	Withheld    int
	Resumed     bool
	RecordsFile string
	DeltaFile   string
	Media       downloader.Summary
}

// Scraper orchestrates collection, snapshotting, export and media download
type Scraper struct {
	opener   twitter.Opener
	store    snapshot.Store
	media    downloader.MediaDownloader
	config   *config.Config
	logger   logger.Logger
	notifier *ui.Notifier
	progress *ui.ProgressDisplay
	tui      ui.TUI
}

// New creates a Scraper reading views from opener and keeping generations in store
func New(cfg *config.Config, opener twitter.Opener, store snapshot.Store, log logger.Logger) (*Scraper, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if opener == nil {
		return nil, errors.New("view opener is required")
	}
	if store == nil {
		return nil, errors.New("snapshot store is required")
	}
	if log == nil {
		log = logger.GetLogger()
	}

	return &Scraper{
		opener:   opener,
		store:    store,
		media:    twitter.NewMediaClient(cfg.Download.DownloadTimeout, cfg.Account.UserAgent, cfg.Download.MaxFileSize, log),
		config:   cfg,
		logger:   log,
		notifier: ui.NewNotifier(cfg.Notifications),
	}, nil
}

// SetTUI sets the terminal UI for the scraper
func (s *Scraper) SetTUI(tui ui.TUI) {
	s.tui = tui
}

// SetMediaClient replaces the HTTP media client
func (s *Scraper) SetMediaClient(m downloader.MediaDownloader) {
	s.media = m
}

// SetNotifier replaces the desktop notifier
func (s *Scraper) SetNotifier(n *ui.Notifier) {
	s.notifier = n
}

// Run collects job.Subject on job.Surface and returns the outcome. The
// outcome is returned alongside most errors so callers can report what was
// saved before the failure.
func (s *Scraper) Run(ctx context.Context, job Job) (*Outcome, error) {
	job.Subject = strings.TrimSpace(job.Subject)
	if job.Subject == "" {
		return nil, errors.New("subject is required")
	}
	if job.Surface == "" {
		job.Surface = twitter.SurfaceFollowers
	}

	format, err := s.format(job)
	if err != nil {
		return nil, err
	}

	subjectID := snapshot.SubjectID(string(job.Surface), job.Subject)
	log := s.logger.WithFields(map[string]interface{}{
		"subject": subjectID,
		"surface": string(job.Surface),
	})
	outcome := &Outcome{SubjectID: subjectID}

	s.logInfo("Initiating extraction sequence for %s", subjectID)

	cpMgr, cp, err := s.prepareCheckpoint(subjectID, job)
	if err != nil {
		return nil, err
	}
	outcome.Resumed = cp != nil && len(cp.Records) > 0

	view, err := s.opener.Open(ctx, job.Surface, job.Subject)
	if err != nil {
		log.WithError(err).Error("Failed to open view")
		s.discardEmptyCheckpoint(cpMgr, cp)
		s.reportFailure(subjectID, err)
		return nil, fmt.Errorf("failed to open %s: %w", subjectID, err)
	}
	defer func() {
		if cerr := view.Close(); cerr != nil {
			log.WithError(cerr).Debug("Failed to close view")
		}
	}()

	target := s.config.Collector.TargetCount
	if job.Limit > 0 {
		target = job.Limit
	}
	if s.tui == nil {
		s.progress = ui.NewProgressDisplay(subjectID, target, strings.EqualFold(s.config.Logging.Level, "debug"))
	}

	logger.LogComponentStart("collector", map[string]interface{}{
		"subject": subjectID,
		"target":  target,
		"resumed": outcome.Resumed,
	})

	opts := collector.Options{
		Subject:       subjectID,
		TargetCount:   target,
		RetryCeiling:  s.config.Collector.RetryCeiling,
		MaxIterations: s.config.Collector.MaxIterations,
		Pacer:         ratelimit.NewPacer(s.config.Collector.Delay, s.config.Collector.DelayJitter),
		Logger:        log,
		OnPage:        s.onPage(ctx, subjectID, cpMgr, cp),
	}
	if cp != nil {
		opts.Seed = cp.Records
	}

	res, collectErr := collector.Collect(ctx, view, opts)
	outcome.Result = res
	if res != nil {
		logger.LogComponentStop("collector", string(res.Reason))
	}

	if collectErr != nil {
		return outcome, s.finishInterrupted(job, format, outcome, cpMgr, cp, collectErr)
	}

	records := res.Records()
	current := snapshot.New(subjectID, records, res.Complete())
	current.CapturedAt = res.Finished.UTC()

	previous, err := s.store.Get(ctx, subjectID)
	if err != nil {
		// Without the previous generation the delta would be wrong; export and stop.
		log.WithError(err).Error("Failed to read previous snapshot")
		outcome.RecordsFile, _ = s.exportRecords(job, format, records, current.CapturedAt, "")
		return outcome, errs.Persistence("failed to read previous snapshot", err)
	}

	outcome.Delta = snapshot.Diff(previous, current)
	s.guardPartialDelta(outcome, previous, current, res.Reason)
	logger.LogDelta(log, subjectID, outcome.Delta.FirstRun, len(outcome.Delta.Added), len(outcome.Delta.Removed))

	putErr := s.store.Put(ctx, subjectID, current)
	if putErr != nil {
		log.WithError(putErr).Error("Failed to store snapshot")
	} else {
		outcome.Stored = true
	}

	outcome.RecordsFile, err = s.exportRecords(job, format, records, current.CapturedAt, "")
	if err != nil {
		return outcome, err
	}
	if s.config.Output.ExportDelta && !outcome.Delta.FirstRun {
		outcome.DeltaFile, err = s.exportDelta(job, format, outcome.Delta, current.CapturedAt)
		if err != nil {
			return outcome, err
		}
	}

	if job.DownloadMedia || s.config.Download.Enabled {
		outcome.Media = s.downloadMedia(ctx, subjectID, job.Surface, records, cpMgr, cp)
	}

	if putErr != nil {
		s.reportFailure(subjectID, putErr)
		return outcome, errs.Persistence("failed to store snapshot", putErr)
	}

	if cpMgr != nil && cpMgr.Exists() {
		if err := cpMgr.Delete(); err != nil {
			log.WithError(err).Warn("Failed to delete checkpoint")
		} else {
			log.Debug("Checkpoint deleted after successful completion")
		}
	}

	s.reportSuccess(outcome)
	return outcome, nil
}

// guardPartialDelta keeps a list that stopped early from reporting the
// records it never reached as removed, and flags a comparison against an
// incomplete previous generation.
func (s *Scraper) guardPartialDelta(outcome *Outcome, previous, current *snapshot.Snapshot, reason collector.StopReason) {
	if outcome.Delta.FirstRun {
		return
	}
	log := s.logger.WithField("subject", outcome.SubjectID)
	if !current.Complete && len(outcome.Delta.Removed) > 0 {
		outcome.Withheld = len(outcome.Delta.Removed)
		outcome.Delta.Removed = nil
		log.WarnWithFields("Run stopped before the end of the list, removed records withheld", map[string]interface{}{
			"reason":   string(reason),
			"withheld": outcome.Withheld,
		})
		s.logWarning("Stopped early (%s): %d records not reached are not reported as removed", reason, outcome.Withheld)
	}
	if !previous.Complete {
		log.WithField("previous", previous.CapturedAt).Warn("Previous snapshot is incomplete")
		s.logWarning("The previous snapshot of %s is incomplete; some added records may not be new", outcome.SubjectID)
	}
}

func (s *Scraper) format(job Job) (export.Format, error) {
	if job.Format != "" {
		return export.ParseFormat(string(job.Format))
	}
	return export.ParseFormat(s.config.Output.Format)
}

// prepareCheckpoint applies the resume/restart policy. A nil manager means
// checkpointing is unavailable and the run continues without it.
func (s *Scraper) prepareCheckpoint(subjectID string, job Job) (*checkpoint.Manager, *checkpoint.Checkpoint, error) {
	dir, err := s.config.CheckpointDir()
	if err != nil {
		s.logger.WithError(err).Warn("Checkpoint directory unavailable, continuing without checkpoints")
		return nil, nil, nil
	}

	mgr, err := checkpoint.NewManager(dir, subjectID, s.logger)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to create checkpoint manager, continuing without checkpoints")
		return nil, nil, nil
	}

	var cp *checkpoint.Checkpoint
	switch {
	case job.ForceRestart && mgr.Exists():
		if err := mgr.Backup(); err != nil {
			s.logger.WithError(err).Warn("Failed to back up existing checkpoint")
		}
		if err := mgr.Delete(); err != nil {
			s.logger.WithError(err).Warn("Failed to delete existing checkpoint")
		}
		s.printInfo("Force restart", "Ignoring existing checkpoint")

	case job.Resume && mgr.Exists():
		cp, err = mgr.Load()
		if err != nil {
			s.logger.WithError(err).Error("Failed to load checkpoint")
			return nil, nil, fmt.Errorf("failed to load checkpoint: %w", err)
		}
		if cp != nil {
			s.printInfo("Resuming from checkpoint", fmt.Sprintf("%d records after %d pages", len(cp.Records), cp.Iterations))
			s.logger.InfoWithFields("Resuming from checkpoint", map[string]interface{}{
				"subject":    subjectID,
				"records":    len(cp.Records),
				"iterations": cp.Iterations,
			})
		}

	case mgr.Exists():
		info, _ := mgr.Info()
		if info != nil && !ui.IsQuietMode() && s.tui == nil {
			ui.PrintWarning(fmt.Sprintf("\n► Previous collection found (%d records, %s old)", info.Records, info.Age().Round(time.Second)))
			ui.PrintInfo("  Use", "--resume to continue where you left off")
			ui.PrintInfo("  Use", "--force-restart to start fresh")
		}
		return nil, nil, ErrCheckpointExists
	}

	if cp == nil {
		cp, err = mgr.Create(subjectID, string(job.Surface))
		if err != nil {
			s.logger.WithError(err).Warn("Failed to create checkpoint")
			return nil, nil, nil
		}
	}
	return mgr, cp, nil
}

// onPage reports progress, honours the TUI pause key and checkpoints every
// collector.checkpoint_every pages
func (s *Scraper) onPage(ctx context.Context, subjectID string, mgr *checkpoint.Manager, cp *checkpoint.Checkpoint) func(collector.PageEvent) {
	every := s.config.Collector.CheckpointEvery

	return func(ev collector.PageEvent) {
		if s.tui != nil {
			s.tui.UpdateCollection(subjectID, ev.Iteration, ev.TotalCollected, ev.SinceLastNewRecord)
		} else if s.progress != nil {
			s.progress.Page(ev.Iteration, ev.TotalCollected, ev.SinceLastNewRecord)
		}

		if mgr != nil && cp != nil && every > 0 && ev.Iteration%every == 0 {
			if err := mgr.UpdateProgress(cp, ev.Accumulator.Records(), ev.Iteration); err != nil {
				s.logger.WithError(err).Warn("Failed to update checkpoint progress")
			}
		}

		s.waitWhilePaused(ctx)
	}
}

func (s *Scraper) waitWhilePaused(ctx context.Context) {
	if s.tui == nil || !s.tui.IsPaused() {
		return
	}
	s.logger.Info("Collection paused")
	for s.tui.IsPaused() {
		// Cancellation is picked up by the collector right after this returns
		if err := retry.Wait(ctx, pausePollInterval); err != nil {
			return
		}
	}
	s.logger.Info("Collection resumed")
}

// finishInterrupted saves what a failed collection gathered. Terminal errors
// mean the subject itself is unusable, so nothing is exported for them.
func (s *Scraper) finishInterrupted(job Job, format export.Format, outcome *Outcome, mgr *checkpoint.Manager, cp *checkpoint.Checkpoint, collectErr error) error {
	res := outcome.Result
	log := s.logger.WithField("subject", outcome.SubjectID)

	if res == nil {
		s.reportFailure(outcome.SubjectID, collectErr)
		return collectErr
	}

	if errs.IsTerminal(collectErr) {
		log.WithError(collectErr).Error("Collection aborted")
		s.discardEmptyCheckpoint(mgr, cp)
		s.reportFailure(outcome.SubjectID, collectErr)
		return collectErr
	}

	records := res.Records()
	if mgr != nil && cp != nil {
		if err := mgr.UpdateProgress(cp, records, res.Iterations); err != nil {
			log.WithError(err).Warn("Failed to save checkpoint for interrupted run")
		}
	}

	if len(records) > 0 {
		file, err := s.exportRecords(job, format, records, res.Finished, "partial")
		if err != nil {
			log.WithError(err).Error("Failed to export partial records")
		} else {
			outcome.RecordsFile = file
			s.printInfo("Partial results saved", file)
		}
	}

	log.WithError(collectErr).WithFields(map[string]interface{}{
		"collected":  len(records),
		"iterations": res.Iterations,
		"reason":     string(res.Reason),
	}).Warn("Collection interrupted")
	s.logWarning("Collection interrupted after %d records; rerun with --resume to continue", len(records))
	return collectErr
}

// discardEmptyCheckpoint removes a checkpoint that holds nothing worth resuming
func (s *Scraper) discardEmptyCheckpoint(mgr *checkpoint.Manager, cp *checkpoint.Checkpoint) {
	if mgr == nil || cp == nil || len(cp.Records) > 0 {
		return
	}
	if err := mgr.Delete(); err != nil {
		s.logger.WithError(err).Debug("Failed to delete empty checkpoint")
	}
}

func (s *Scraper) exporter(job Job, format export.Format) *export.Exporter {
	columns := s.config.Output.Columns
	if len(columns) == 0 {
		columns = job.Surface.DefaultColumns()
	}
	e := export.New(format, columns)
	if s.config.Output.ListSeparator != "" {
		e.ListSeparator = s.config.Output.ListSeparator
	}
	e.PrettyJSON = s.config.Output.PrettyJSON
	return e
}

func (s *Scraper) destination(job Job) export.Destination {
	if job.Destination != nil {
		return job.Destination
	}
	return export.FileDestination{Dir: s.config.Output.BaseDirectory}
}

func (s *Scraper) exportRecords(job Job, format export.Format, records []record.Record, at time.Time, suffix string) (string, error) {
	name := export.FileName(job.Subject, string(job.Surface), at, suffix)
	file, err := s.exporter(job, format).ExportRecords(name, records, s.destination(job))
	if err != nil {
		s.logger.WithError(err).Error("Failed to export records")
		return "", fmt.Errorf("failed to export records: %w", err)
	}
	s.logger.InfoWithFields("Records exported", map[string]interface{}{
		"file":    file,
		"records": len(records),
	})
	return file, nil
}

func (s *Scraper) exportDelta(job Job, format export.Format, delta snapshot.Delta, at time.Time) (string, error) {
	name := export.FileName(job.Subject, string(job.Surface), at, "delta")
	file, err := s.exporter(job, format).ExportDelta(name, delta, s.destination(job))
	if err != nil {
		s.logger.WithError(err).Error("Failed to export delta")
		return "", fmt.Errorf("failed to export delta: %w", err)
	}
	s.logger.WithField("file", file).Info("Delta exported")
	return file, nil
}

func (s *Scraper) reportSuccess(outcome *Outcome) {
	reason := ""
	if outcome.Result != nil {
		reason = string(outcome.Result.Reason)
	}

	delta := outcome.Delta
	if s.tui != nil {
		if !delta.FirstRun {
			s.tui.LogInfo("Delta: +%d / -%d", len(delta.Added), len(delta.Removed))
		}
		s.tui.LogSuccess("Extraction completed for %s (%s)", outcome.SubjectID, reason)
		return
	}

	if s.progress != nil {
		s.progress.Complete(reason)
	}
	if !delta.FirstRun && delta.Changed() {
		s.notifier.SendChange(outcome.SubjectID, len(delta.Added), len(delta.Removed))
	}
	if s.config.Notifications.Enabled {
		s.notifier.SendSuccess("EXTRACTION COMPLETE", fmt.Sprintf("%s: %d records", outcome.SubjectID, outcome.Result.Accumulator.Len()))
	}
}

func (s *Scraper) reportFailure(subjectID string, err error) {
	if s.tui != nil {
		s.tui.LogError("%s: %v", subjectID, err)
		return
	}
	if s.config.Notifications.Enabled {
		s.notifier.SendError("EXTRACTION FAILED", fmt.Sprintf("%s: %v", subjectID, err))
	}
}

func (s *Scraper) logInfo(format string, args ...interface{}) {
	if s.tui != nil {
		s.tui.LogInfo(format, args...)
		return
	}
	ui.PrintHighlight("\n[" + strings.ToUpper(fmt.Sprintf(format, args...)) + "]")
}

func (s *Scraper) logWarning(format string, args ...interface{}) {
	if s.tui != nil {
		s.tui.LogWarning(format, args...)
		return
	}
	ui.PrintWarning("\n" + fmt.Sprintf(format, args...))
}

func (s *Scraper) printInfo(label, value string) {
	if s.tui != nil {
		s.tui.LogInfo("%s: %s", label, value)
		return
	}
	ui.PrintInfo(label, value)
}
