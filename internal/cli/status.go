package cli

import (
	"github.com/spf13/cobra"

	"github.com/lherron/vsds/internal/cli/appctx"
	"github.com/lherron/vsds/internal/migrate"
)

var statusCmd = &cobra.Command{
	Use:   "status [COMPONENT|GLOB|path:PATTERN]...",
	Short: "Show installed components, available updates and local edits",
	Long: `Show each installed component's version, the latest upstream release
and how far the local copy has drifted from what was installed.

Examples:
  vsds status                # All components
  vsds status 'form-*' -o json
`,
	RunE: appctx.WithApp(appctx.ProjectOptions(), runStatus),
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(app *appctx.App, cmd *cobra.Command, args []string) error {
	mig := app.Migrator(nil, migrate.Options{})
	statuses, err := mig.Status(cmd.Context(), args)
	if err != nil {
		return err
	}
	return app.Renderer.Statuses(statuses)
}
