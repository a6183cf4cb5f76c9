package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lherron/vsds/internal/cli/appctx"
	"github.com/lherron/vsds/internal/history"
	"github.com/lherron/vsds/internal/selectors"
)

var logCmd = &cobra.Command{
	Use:   "log [RUN-ID]",
	Short: "Show migration history",
	Long: `Show recorded migration runs, newest first. With a run ID (or a unique
prefix of one) show what happened to each component in that run.

Examples:
  vsds log                       # Recent runs
  vsds log --component button    # Runs that touched button
  vsds log --since 2026-01-01    # Runs since a date
  vsds log 3f2a                  # Outcomes of one run
  vsds log --history button      # Every recorded outcome for button
`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		err := appctx.WithApp(appctx.Options{NeedsHistory: true, HistoryReadOnly: true}, runLog)(cmd, args)
		if errors.Is(err, history.ErrNoHistory) {
			fmt.Fprintln(cmd.OutOrStdout(), "no runs recorded")
			return nil
		}
		return err
	},
}

var (
	logLimit     int
	logCursor    string
	logComponent string
	logSince     string
	logHistory   string
)

func init() {
	rootCmd.AddCommand(logCmd)

	logCmd.Flags().IntVar(&logLimit, "limit", 20, "Limit number of runs (0 = unlimited)")
	logCmd.Flags().StringVar(&logCursor, "cursor", "", "Pagination cursor from previous page")
	logCmd.Flags().StringVar(&logComponent, "component", "", "Only runs that resolved this component")
	logCmd.Flags().StringVar(&logSince, "since", "", "Only runs started at or after date/time (YYYY-MM-DD or RFC3339)")
	logCmd.Flags().StringVar(&logHistory, "history", "", "Show the recorded outcomes of one component")
}

func runLog(app *appctx.App, cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rec := app.History

	if logHistory != "" {
		name, err := selectors.NormalizeName(logHistory)
		if err != nil {
			return err
		}
		outcomes, err := rec.ComponentHistory(ctx, name, logLimit)
		if err != nil {
			return err
		}
		return app.Renderer.Outcomes(outcomes)
	}

	if len(args) == 1 {
		id, err := rec.ResolveRun(ctx, args[0])
		if err != nil {
			return err
		}
		outcomes, err := rec.Outcomes(ctx, id)
		if err != nil {
			return err
		}
		return app.Renderer.Outcomes(outcomes)
	}

	opts := history.ListOptions{
		Limit:  logLimit,
		Cursor: logCursor,
	}
	if logComponent != "" {
		name, err := selectors.NormalizeName(logComponent)
		if err != nil {
			return err
		}
		opts.Component = name
	}
	if logSince != "" {
		since, err := parseTimeFlag(logSince)
		if err != nil {
			return fmt.Errorf("invalid --since: %w", err)
		}
		opts.Since = since
	}

	runs, next, err := rec.ListRuns(ctx, opts)
	if err != nil {
		return err
	}
	return app.Renderer.Runs(runs, next)
}

// parseTimeFlag accepts a date in local time or an RFC3339 timestamp.
func parseTimeFlag(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, s, time.Local); err == nil {
		return t, nil
	}
	return time.Time{}, errors.New("expected YYYY-MM-DD or RFC3339")
}
