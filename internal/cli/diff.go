package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/vsds/internal/cli/appctx"
	"github.com/lherron/vsds/internal/diff"
	"github.com/lherron/vsds/internal/merge"
	"github.com/lherron/vsds/internal/migrate"
)

var diffCmd = &cobra.Command{
	Use:   "diff <COMPONENT>",
	Short: "Preview the merge a migration would perform",
	Long: `Show how migrating a component would change the local copy.

By default the output is a unified diff from the local file to the merged
result. Conflicting regions keep the local text, exactly as migrate would
before trying AI reconciliation.

Examples:
  vsds diff button               # Local copy vs. merged result
  vsds diff button --upstream    # What changed upstream since install
  vsds diff button --conflicts   # Merged text with conflict markers
`,
	Args: cobra.ExactArgs(1),
	RunE: appctx.WithApp(appctx.ProjectOptions(), runDiff),
}

var (
	diffUnified   int
	diffUpstream  bool
	diffConflicts bool
)

func init() {
	rootCmd.AddCommand(diffCmd)

	diffCmd.Flags().IntVarP(&diffUnified, "unified", "U", 3, "Lines of unified context")
	diffCmd.Flags().BoolVar(&diffUpstream, "upstream", false, "Diff the installed release against the latest one")
	diffCmd.Flags().BoolVar(&diffConflicts, "conflicts", false, "Print the merged text with conflict markers")
	diffCmd.MarkFlagsMutuallyExclusive("upstream", "conflicts")
}

type diffOutput struct {
	Component      string                 `json:"component"`
	Path           string                 `json:"path"`
	Installed      string                 `json:"installed"`
	Latest         string                 `json:"latest"`
	Classification migrate.Classification `json:"classification"`
	Merge          string                 `json:"merge"`
	Regions        []merge.Region         `json:"regions,omitempty"`
	Stat           diff.Stat              `json:"stat"`
	Diff           string                 `json:"diff,omitempty"`
	Text           string                 `json:"text,omitempty"`
}

func runDiff(app *appctx.App, cmd *cobra.Command, args []string) error {
	if diffUnified < 0 {
		return fmt.Errorf("--unified must not be negative")
	}

	mig := app.Migrator(nil, migrate.Options{})
	p, err := mig.Preview(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	c := p.Component

	out := diffOutput{
		Component:      c.Name,
		Path:           c.Path,
		Installed:      c.InstalledVersion,
		Latest:         c.UpstreamVersion,
		Classification: p.Classification,
		Merge:          p.Outcome.Kind.String(),
		Regions:        p.Outcome.Regions,
	}

	switch {
	case diffConflicts:
		out.Text = merge.Markers(c.BaseText, c.LocalText, c.UpstreamText, p.Outcome)
		out.Stat, err = diff.Between(c.LocalText, p.Outcome.Text)
	case diffUpstream:
		out.Diff, err = diff.Unified(
			fmt.Sprintf("%s@%s", c.Name, c.InstalledVersion),
			fmt.Sprintf("%s@%s", c.Name, c.UpstreamVersion),
			c.BaseText, c.UpstreamText, diffUnified)
		if err == nil {
			out.Stat, err = diff.ParseStat(out.Diff)
		}
	default:
		out.Diff, err = diff.Unified("local/"+c.Path, "merged/"+c.Path, c.LocalText, p.Outcome.Text, diffUnified)
		if err == nil {
			out.Stat, err = diff.ParseStat(out.Diff)
		}
	}
	if err != nil {
		return fmt.Errorf("%s: %w", c.Name, err)
	}

	r := app.Renderer
	if r.Structured() {
		return r.Render(out)
	}

	if diffConflicts {
		r.Printf("%s", out.Text)
	} else if out.Diff == "" {
		r.Println(r.Muted("no changes"))
	} else {
		r.Diff(out.Diff)
	}
	if !p.Outcome.IsClean() && !diffUpstream {
		r.Println(r.Muted(p.Outcome.Summary()))
	}
	return nil
}
