package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"xscraper/pkg/actions"
	"xscraper/pkg/twitter"
	"xscraper/pkg/ui"
)

var (
	actFrom    string
	actDryRun  bool
	actAccount string
)

// actCmd represents the act command
var actCmd = &cobra.Command{
	Use:   "act follow|unfollow [handles...]",
	Short: "Follow or unfollow accounts at a paced rate",
	Long: `Follow or unfollow a list of accounts from the logged in session.

Handles come from the arguments, from a delta file written by 'scrape' or
'diff', or both. From a delta, follow uses the added records and unfollow
uses the removed records.

Actions are spaced by actions.delay plus jitter and capped at
actions.max_per_hour. Accounts already in the requested state are skipped.
An expired session stops the run.`,
	Example: `  # Follow two accounts
  xscraper act follow alice bob

  # Follow back everyone who followed since the last run
  xscraper act follow --from exports/jack_followers_20250101_120000_delta.json

  # See what would be unfollowed without sending anything
  xscraper act unfollow --from delta.json --dry-run`,
	Args:      cobra.MinimumNArgs(1),
	ValidArgs: []string{string(actions.Follow), string(actions.Unfollow)},
	RunE:      runAct,
}

func init() {
	rootCmd.AddCommand(actCmd)

	actCmd.Flags().StringVar(&actFrom, "from", "", "read handles from a JSON delta file")
	actCmd.Flags().BoolVar(&actDryRun, "dry-run", false, "log the actions without sending them")
	actCmd.Flags().StringVarP(&actAccount, "account", "a", "", "use a specific stored account")
}

func runAct(cmd *cobra.Command, args []string) error {
	kind, err := actions.ParseKind(args[0])
	if err != nil {
		return err
	}

	handles, err := actionHandles(kind, args[1:], actFrom)
	if err != nil {
		return err
	}
	if len(handles) == 0 {
		return fmt.Errorf("no handles to %s", kind)
	}

	flags := make(map[string]interface{})
	if actDryRun {
		flags["dry-run"] = true
	}
	cfg, log, err := loadConfig(cmd, flags)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var actor actions.Actor
	if !cfg.Actions.DryRun {
		browser, err := openBrowser(ctx, cfg, actAccount, log)
		if err != nil {
			return err
		}
		defer browser.Close()
		actor = twitter.NewActor(browser)
	}

	runner := actions.NewRunner(actor, cfg, log)
	tracker := ui.NewActionTracker(cfg.Actions.MaxPerHour)
	runner.OnItem = func(item actions.Item) {
		tracker.Record(string(item.Outcome))
		tracker.PrintProgress(item.Handle, string(item.Outcome))
	}

	ui.PrintInfo("Action", fmt.Sprintf("%s %d accounts", kind, len(handles)))
	if cfg.Actions.DryRun {
		ui.PrintWarning("Dry run", "nothing will be sent")
	}

	report, runErr := runner.Run(ctx, kind, handles)
	if report != nil {
		ui.PrintInfo("Summary", fmt.Sprintf("%d done, %d dry run, %d skipped, %d failed, %d not run in %s",
			report.Count(actions.OutcomeDone),
			report.Count(actions.OutcomeDryRun),
			report.Count(actions.OutcomeSkipped),
			report.Count(actions.OutcomeFailed),
			report.Count(actions.OutcomeNotRun),
			ui.FormatDuration(tracker.GetElapsedTime())))
	}
	if runErr != nil {
		return runErr
	}
	if report.Count(actions.OutcomeFailed) > 0 {
		ui.PrintWarning("Some actions failed", "see the log for details")
	} else {
		ui.PrintSuccess(fmt.Sprintf("[%s COMPLETED]", kind))
	}
	return nil
}

// actionHandles joins explicit handles with the ones picked from a delta file
func actionHandles(kind actions.Kind, explicit []string, deltaPath string) ([]string, error) {
	handles := append([]string{}, explicit...)
	if deltaPath != "" {
		fromDelta, err := actions.HandlesFromDelta(deltaPath, kind)
		if err != nil {
			return nil, err
		}
		handles = append(handles, fromDelta...)
	}
	return actions.Dedupe(handles), nil
}
