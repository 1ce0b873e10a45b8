package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"xscraper/pkg/snapshot"
	"xscraper/pkg/twitter"
	"xscraper/pkg/ui"
)

var (
	historySurface string
	historyStore   string
	historyLimit   int
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history <subject>",
	Short: "List the stored snapshots of a subject",
	Long: `List the stored snapshots of a subject, newest first, with the record
count of each generation and how many records it added and removed
compared to the generation before it.`,
	Example: `  xscraper history jack
  xscraper history jack --surface following --limit 5`,
	Args: cobra.ExactArgs(1),
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVarP(&historySurface, "surface", "s", string(twitter.SurfaceFollowers), "surface: "+surfaceNames())
	historyCmd.Flags().StringVar(&historyStore, "store", "", "snapshot store: file, sqlite or redis (default from config)")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "number of generations to show (0: all)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	surface, err := twitter.ParseSurface(historySurface)
	if err != nil {
		return err
	}

	flags := make(map[string]interface{})
	if historyStore != "" {
		flags["store"] = historyStore
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

	subjectID := snapshot.SubjectID(string(surface), strings.TrimSpace(args[0]))

	snaps, err := store.History(ctx, subjectID, historyLimit)
	if err != nil {
		return fmt.Errorf("failed to read snapshots: %w", err)
	}
	if len(snaps) == 0 {
		return fmt.Errorf("%s: %w", subjectID, errNoSnapshots)
	}

	ui.RenderHistory(os.Stdout, subjectID, snaps)
	return nil
}
