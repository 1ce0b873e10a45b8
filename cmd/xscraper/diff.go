package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"xscraper/pkg/config"
	"xscraper/pkg/export"
	"xscraper/pkg/snapshot"
	"xscraper/pkg/twitter"
	"xscraper/pkg/ui"
)

// errNoSnapshots is returned by diff and history for a subject never collected
var errNoSnapshots = errors.New("no snapshots stored for this subject")

var (
	diffSurface string
	diffStore   string
	diffFormat  string
	diffExport  bool
	diffStdout  bool
)

// diffCmd represents the diff command
var diffCmd = &cobra.Command{
	Use:   "diff <subject>",
	Short: "Show what changed between the last two snapshots of a subject",
	Long: `Compare the two most recent stored snapshots of a subject and list the
records that were added and removed. Nothing is scraped.

With a single stored snapshot every record is reported as part of the
first snapshot and the delta is empty.`,
	Example: `  # Who followed and unfollowed jack between the last two runs
  xscraper diff jack

  # Posts delta written as CSV next to the exports
  xscraper diff jack --surface posts --export --format csv

  # Delta as JSON for 'xscraper act --from delta.json'
  xscraper diff jack --stdout > delta.json`,
	Args: cobra.ExactArgs(1),
	RunE: runDiff,
}

func init() {
	rootCmd.AddCommand(diffCmd)

	diffCmd.Flags().StringVarP(&diffSurface, "surface", "s", string(twitter.SurfaceFollowers), "surface: "+surfaceNames())
	diffCmd.Flags().StringVar(&diffStore, "store", "", "snapshot store: file, sqlite or redis (default from config)")
	diffCmd.Flags().StringVarP(&diffFormat, "format", "f", "", "export format: json or csv (default from config)")
	diffCmd.Flags().BoolVar(&diffExport, "export", false, "also write the delta to the output directory")
	diffCmd.Flags().BoolVar(&diffStdout, "stdout", false, "write the delta to stdout instead of a table")
}

func runDiff(cmd *cobra.Command, args []string) error {
	surface, err := twitter.ParseSurface(diffSurface)
	if err != nil {
		return err
	}

	flags := make(map[string]interface{})
	if diffStore != "" {
		flags["store"] = diffStore
	}
	if diffFormat != "" {
		flags["format"] = diffFormat
	}
	cfg, log, err := loadConfig(cmd, flags)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	store, err := snapshot.Open(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open snapshot store: %w", err)
	}
	defer store.Close()

	subject := strings.TrimSpace(args[0])
	subjectID := snapshot.SubjectID(string(surface), subject)
	delta, partial, err := latestDelta(ctx, store, subjectID)
	if err != nil {
		return err
	}
	if partial {
		ui.PrintWarning("One of the compared snapshots is incomplete; records it never reached are not reported as removed")
	}

	exporter, err := deltaExporter(cfg, surface)
	if err != nil {
		return err
	}

	if diffStdout {
		_, err := exporter.ExportDelta("", delta, export.WriterDestination{W: os.Stdout})
		return err
	}

	ui.RenderDelta(os.Stdout, delta)

	if diffExport && !delta.FirstRun {
		name := export.FileName(subject, string(surface), delta.Current, "delta")
		path, err := exporter.ExportDelta(name, delta, export.FileDestination{Dir: cfg.Output.BaseDirectory})
		if err != nil {
			return err
		}
		ui.PrintInfo("Delta export", path)
	}
	return nil
}

// latestDelta diffs the two newest generations of subjectID. partial is set
// when either compared snapshot stopped before the list was exhausted; when
// the newest one did, its removed records are withheld since the run never
// reached them.
func latestDelta(ctx context.Context, store snapshot.Store, subjectID string) (delta snapshot.Delta, partial bool, err error) {
	snaps, err := store.History(ctx, subjectID, 2)
	if err != nil {
		return snapshot.Delta{}, false, fmt.Errorf("failed to read snapshots: %w", err)
	}
	switch len(snaps) {
	case 0:
		return snapshot.Delta{}, false, fmt.Errorf("%s: %w", subjectID, errNoSnapshots)
	case 1:
		return snapshot.Diff(nil, snaps[0]), !snaps[0].Complete, nil
	}

	delta = snapshot.Diff(snaps[1], snaps[0])
	if !snaps[0].Complete {
		delta.Removed = nil
	}
	return delta, !snaps[0].Complete || !snaps[1].Complete, nil
}

func deltaExporter(cfg *config.Config, surface twitter.Surface) (*export.Exporter, error) {
	format, err := export.ParseFormat(cfg.Output.Format)
	if err != nil {
		return nil, err
	}
	columns := cfg.Output.Columns
	if len(columns) == 0 {
		columns = surface.DefaultColumns()
	}
	e := export.New(format, columns)
	if cfg.Output.ListSeparator != "" {
		e.ListSeparator = cfg.Output.ListSeparator
	}
	e.PrettyJSON = cfg.Output.PrettyJSON
	return e, nil
}
