package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lherron/vsds/internal/cli/appctx"
	"github.com/lherron/vsds/internal/migrate"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate [COMPONENT|GLOB|path:PATTERN]...",
	Short: "Update installed components to their latest release",
	Long: `Migrate installed components to the latest upstream release.

Unmodified components are overwritten. Locally edited components are
three-way merged against the release they were installed from; clean
merges are written, and conflicting ones are handed to AI reconciliation
when it is enabled. Anything that cannot be resolved safely is left
untouched and reported for manual migration.

With no arguments every installed component is considered.

Exit status is 4 when any component was skipped and 1 when the run
could not be recorded.

Examples:
  vsds migrate                      # Migrate everything
  vsds migrate button 'form-*'      # Migrate selected components
  vsds migrate 'path:src/ui/**'     # Select by installed path
  vsds migrate --dry-run            # Show what would happen
  vsds migrate --no-ai --workers 8  # Skip conflicts instead of reconciling
`,
	RunE: appctx.WithApp(appctx.Options{NeedsProject: true, NeedsHistory: true}, runMigrate),
}

var (
	migrateDryRun  bool
	migrateNoAI    bool
	migrateForce   bool
	migrateWorkers int
)

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "Compute outcomes without writing files or calling AI reconciliation")
	migrateCmd.Flags().BoolVar(&migrateNoAI, "no-ai", false, "Disable AI reconciliation for this run")
	migrateCmd.Flags().BoolVar(&migrateForce, "force", false, "Re-apply the latest release even when already up to date")
	migrateCmd.Flags().IntVarP(&migrateWorkers, "workers", "j", 0, "Components migrated concurrently (default from VSDS_WORKERS)")
}

func runMigrate(app *appctx.App, cmd *cobra.Command, args []string) error {
	if migrateWorkers < 0 {
		return fmt.Errorf("--workers must not be negative")
	}

	reconciler, err := app.Reconciler(migrateNoAI || migrateDryRun)
	if err != nil {
		return fmt.Errorf("failed to set up AI reconciliation: %w", err)
	}

	mig := app.Migrator(reconciler, migrate.Options{
		Workers:   migrateWorkers,
		DryRun:    migrateDryRun,
		Force:     migrateForce,
		Observers: app.Observers(),
	})

	report, runErr := mig.Run(cmd.Context(), args)
	var recordErr *migrate.RunError
	if runErr != nil && !errors.As(runErr, &recordErr) {
		return runErr
	}

	if err := app.Renderer.Report(report); err != nil {
		return err
	}

	if err := report.Err(); err != nil {
		app.Logger.Debug("component errors", zap.Error(err))
	}

	if recordErr != nil {
		return exitError(ExitFailure, runErr)
	}

	if skipped := len(report.Skipped()); skipped > 0 {
		return exitError(ExitSkipped, fmt.Errorf("%d component(s) need manual migration", skipped))
	}
	return nil
}
