package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"xscraper/pkg/config"
	"xscraper/pkg/export"
	"xscraper/pkg/logger"
	"xscraper/pkg/scraper"
	"xscraper/pkg/snapshot"
	"xscraper/pkg/twitter"
	"xscraper/pkg/ui"
	"xscraper/pkg/ui/tui"
)

var (
	// Scrape command flags
	scrapeLimit         int
	scrapeFormat        string
	scrapeSurface       string
	scrapeReplay        string
	scrapeOutput        string
	scrapeStdout        bool
	scrapeStore         string
	scrapeAccount       string
	scrapeCeiling       int
	scrapeMaxIterations int
	scrapeConcurrent    int
	scrapeHeadless      bool
	resumeRun           bool
	forceRestart        bool
	useTUI              bool
	downloadMedia       bool
)

// scrapeCmd represents the scrape command
var scrapeCmd = &cobra.Command{
	Use:   "scrape <subject>",
	Short: "Collect a surface of an X account, thread, hashtag or search",
	Long: `Scroll a page, collect every record it shows and stop when the page
stops producing new records, the limit is reached or the iteration cap is hit.

The subject is a handle for followers, following, verified_followers, posts
and likes; a status URL or id for replies; a tag for hashtag; a free text
query for search.

Each finished run is stored as a snapshot. The next run of the same subject
reports what was added and removed since then.

Browsing requires a logged in X session, configured through:
  - Stored credentials (use 'xscraper auth login' to store)
  - Environment variables (XSCRAPER_AUTH_TOKEN and XSCRAPER_CSRF_TOKEN)
  - Configuration file`,
	Example: `  # Collect the followers of jack
  xscraper scrape jack

  # First 200 posts as CSV
  xscraper scrape jack --surface posts --limit 200 --format csv

  # Stream a search to stdout
  xscraper scrape "golang generics" --surface search --stdout

  # Replay saved pages instead of browsing
  xscraper scrape jack --replay ./captures

  # Continue an interrupted run
  xscraper scrape jack --resume

  # Start over, ignoring the checkpoint
  xscraper scrape jack --force-restart

  # Live dashboard and media download
  xscraper scrape jack --surface posts --tui --download-media`,
	Args: cobra.ExactArgs(1),
	RunE: runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	scrapeCmd.Flags().IntVarP(&scrapeLimit, "limit", "n", 0, "stop after this many records (0: until the page is exhausted)")
	scrapeCmd.Flags().StringVarP(&scrapeFormat, "format", "f", "", "export format: json or csv (default from config)")
	scrapeCmd.Flags().StringVarP(&scrapeSurface, "surface", "s", string(twitter.SurfaceFollowers), "surface: "+surfaceNames())
	scrapeCmd.Flags().StringVar(&scrapeReplay, "replay", "", "read saved HTML pages from this directory instead of a browser")
	scrapeCmd.Flags().StringVarP(&scrapeOutput, "output", "o", "", "export directory (default from config)")
	scrapeCmd.Flags().BoolVar(&scrapeStdout, "stdout", false, "write the export to stdout instead of a file")
	scrapeCmd.Flags().StringVar(&scrapeStore, "store", "", "snapshot store: file, sqlite or redis (default from config)")
	scrapeCmd.Flags().StringVarP(&scrapeAccount, "account", "a", "", "use a specific stored account")
	scrapeCmd.Flags().IntVar(&scrapeCeiling, "retry-ceiling", 0, "iterations without new records before stopping")
	scrapeCmd.Flags().IntVar(&scrapeMaxIterations, "max-iterations", 0, "hard cap on scroll iterations")
	scrapeCmd.Flags().IntVar(&scrapeConcurrent, "concurrent", 0, "concurrent media downloads")
	scrapeCmd.Flags().BoolVar(&scrapeHeadless, "headless", true, "run Chrome without a window")
	scrapeCmd.Flags().BoolVar(&resumeRun, "resume", false, "resume from the last checkpoint")
	scrapeCmd.Flags().BoolVar(&forceRestart, "force-restart", false, "force restart, ignoring an existing checkpoint")
	scrapeCmd.Flags().BoolVar(&useTUI, "tui", false, "use interactive terminal UI with real-time progress")
	scrapeCmd.Flags().BoolVar(&downloadMedia, "download-media", false, "download post images and profile avatars")

	scrapeCmd.MarkFlagsMutuallyExclusive("resume", "force-restart")
	scrapeCmd.MarkFlagsMutuallyExclusive("tui", "stdout")
}

func surfaceNames() string {
	names := make([]string, len(twitter.Surfaces))
	for i, s := range twitter.Surfaces {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

func scrapeFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	if scrapeOutput != "" {
		flags["output"] = scrapeOutput
	}
	if scrapeFormat != "" {
		flags["format"] = scrapeFormat
	}
	if scrapeLimit > 0 {
		flags["limit"] = scrapeLimit
	}
	if scrapeStore != "" {
		flags["store"] = scrapeStore
	}
	if scrapeCeiling > 0 {
		flags["retry-ceiling"] = scrapeCeiling
	}
	if scrapeMaxIterations > 0 {
		flags["max-iterations"] = scrapeMaxIterations
	}
	if scrapeConcurrent > 0 {
		flags["concurrent-downloads"] = scrapeConcurrent
	}
	if cmd.Flags().Changed("headless") {
		flags["headless"] = scrapeHeadless
	}
	if downloadMedia {
		flags["download-media"] = true
	}
	return flags
}

func runScrape(cmd *cobra.Command, args []string) error {
	subject := strings.TrimSpace(args[0])

	surface, err := twitter.ParseSurface(scrapeSurface)
	if err != nil {
		return err
	}

	cfg, log, err := loadConfig(cmd, scrapeFlags(cmd))
	if err != nil {
		return err
	}
	if useTUI {
		// The dashboard owns the terminal; console logs would tear it.
		ui.SetQuietMode(true)
		if cfg.Logging.File == "" {
			log = logger.NewNopLogger()
			logger.SetLogger(log)
		}
	}

	var format export.Format
	if scrapeFormat != "" {
		if format, err = export.ParseFormat(scrapeFormat); err != nil {
			return err
		}
	}

	ui.PrintInfo("Target", snapshot.SubjectID(string(surface), subject))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opener, closeOpener, err := newOpener(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeOpener()

	store, err := snapshot.Open(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open snapshot store: %w", err)
	}
	defer store.Close()

	s, err := scraper.New(cfg, opener, store, log)
	if err != nil {
		return fmt.Errorf("failed to initialise scraper: %w", err)
	}

	job := scraper.Job{
		Subject:       subject,
		Surface:       surface,
		Limit:         scrapeLimit,
		Format:        format,
		Resume:        resumeRun,
		ForceRestart:  forceRestart,
		DownloadMedia: downloadMedia,
	}
	if scrapeStdout {
		job.Destination = export.WriterDestination{W: os.Stdout}
		// One document per run on stdout
		cfg.Output.ExportDelta = false
	}

	log.WithField("subject", subject).Info("Starting scrape operation")

	var outcome *scraper.Outcome
	if useTUI {
		outcome, err = runWithTUI(ctx, s, job, cfg)
	} else {
		ui.PrintHighlight("[INITIATING EXTRACTION SEQUENCE]")
		outcome, err = s.Run(ctx, job)
	}

	printOutcome(outcome)
	if err != nil {
		if errors.Is(err, scraper.ErrCheckpointExists) {
			ui.PrintWarning("An interrupted run exists for this subject", "rerun with --resume or --force-restart")
		}
		log.WithError(err).WithField("subject", subject).Error("Extraction failed")
		return err
	}

	log.WithField("subject", subject).Info("Extraction completed successfully")
	ui.PrintSuccess("[EXTRACTION COMPLETED SUCCESSFULLY]")
	return nil
}

// newOpener returns the replay reader when --replay is set, otherwise a logged in browser
func newOpener(ctx context.Context, cfg *config.Config, log logger.Logger) (twitter.Opener, func(), error) {
	if scrapeReplay != "" {
		info, err := os.Stat(scrapeReplay)
		if err != nil || !info.IsDir() {
			return nil, nil, fmt.Errorf("replay directory %q not found", scrapeReplay)
		}
		ui.PrintInfo("Replaying", scrapeReplay)
		return twitter.NewReplay(scrapeReplay, log), func() {}, nil
	}

	browser, err := openBrowser(ctx, cfg, scrapeAccount, log)
	if err != nil {
		return nil, nil, err
	}
	return browser, func() {
		if err := browser.Close(); err != nil {
			log.WithError(err).Debug("Failed to close browser")
		}
	}, nil
}

// runWithTUI runs the scrape next to the dashboard. Quitting the dashboard
// cancels the scrape; the checkpoint keeps what was collected.
func runWithTUI(ctx context.Context, s *scraper.Scraper, job scraper.Job, cfg *config.Config) (*scraper.Outcome, error) {
	target := cfg.Collector.TargetCount
	if job.Limit > 0 {
		target = job.Limit
	}
	terminal := tui.NewTUI(snapshot.SubjectID(string(job.Surface), job.Subject), target, cfg.Collector.RetryCeiling)
	s.SetTUI(terminal)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		outcome *scraper.Outcome
		err     error
	}
	done := make(chan result, 1)
	go func() {
		outcome, err := s.Run(ctx, job)
		done <- result{outcome, err}
		terminal.Stop()
	}()

	tuiErr := terminal.Start()
	cancel()
	res := <-done

	ui.SetQuietMode(quiet || logLevel == "error")
	if tuiErr != nil {
		logger.GetLogger().WithError(tuiErr).Warn("TUI failed")
	}
	return res.outcome, res.err
}

func printOutcome(outcome *scraper.Outcome) {
	if outcome == nil || outcome.Result == nil {
		return
	}
	res := outcome.Result
	ui.PrintInfo("Subject", outcome.SubjectID)
	ui.PrintInfo("Records", fmt.Sprintf("%d (%s after %d iterations)", res.Accumulator.Len(), res.Reason, res.Iterations))
	if outcome.Resumed {
		ui.PrintInfo("Resumed", "yes")
	}
	if outcome.Stored {
		if outcome.Delta.FirstRun {
			ui.PrintInfo("Delta", "first snapshot")
		} else {
			ui.PrintInfo("Delta", fmt.Sprintf("+%d / -%d", len(outcome.Delta.Added), len(outcome.Delta.Removed)))
		}
	}
	if outcome.RecordsFile != "" {
		ui.PrintInfo("Export", outcome.RecordsFile)
	}
	if outcome.DeltaFile != "" {
		ui.PrintInfo("Delta export", outcome.DeltaFile)
	}
	if m := outcome.Media; m.Downloaded+m.Skipped+m.Failed > 0 {
		ui.PrintInfo("Media", fmt.Sprintf("%d downloaded, %d skipped, %d failed (%s)", m.Downloaded, m.Skipped, m.Failed, ui.FormatBytes(m.Bytes)))
	}
}
