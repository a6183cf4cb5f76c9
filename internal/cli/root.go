package cli

import (
	"context"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "vsds",
	Short: "Keep installed UI kit components in step with upstream releases",
	Long: `vsds tracks the components copied into a project from the UI kit
registry. It reports which ones have newer releases and migrates them,
three-way merging upstream changes into locally edited copies.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Canceling ctx stops migrations between
// components.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().String("project", "", "Project root holding vsds.yaml (overrides VSDS_PROJECT_ROOT)")
	rootCmd.PersistentFlags().String("registry", "", "Component registry directory (overrides VSDS_REGISTRY_DIR)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (overrides VSDS_LOG_LEVEL)")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output format: table, json, yaml (overrides VSDS_OUTPUT)")
	rootCmd.PersistentFlags().Bool("json", false, "Shorthand for --output json")
}
