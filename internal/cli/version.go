package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/vsds/internal/manifest"
	"github.com/lherron/vsds/internal/render"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Displays version, commit, and build date information.`,
	RunE:  runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) error {
	format := render.FormatTable
	if f := cmd.Flag("json"); f != nil && f.Value.String() == "true" {
		format = render.FormatJSON
	} else if f := cmd.Flag("output"); f != nil && f.Value.String() != "" {
		parsed, err := render.ParseFormat(f.Value.String())
		if err != nil {
			return err
		}
		format = parsed
	}

	r := render.NewRenderer(cmd.OutOrStdout(), render.Options{Format: format})
	if r.Structured() {
		return r.Render(map[string]any{
			"version":                 Version,
			"commit":                  GitCommit,
			"build_date":              BuildDate,
			"manifest_schema_version": manifest.SchemaVersion,
			"supported_commands":      []string{"migrate", "status", "diff", "log", "version"},
			"supported_formats":       []string{"table", "json", "yaml"},
		})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "vsds version %s\n", Version)
	fmt.Fprintf(cmd.OutOrStdout(), "  commit: %s\n", GitCommit)
	fmt.Fprintf(cmd.OutOrStdout(), "  built:  %s\n", BuildDate)
	fmt.Fprintf(cmd.OutOrStdout(), "  manifest schema: v%d\n", manifest.SchemaVersion)

	return nil
}
