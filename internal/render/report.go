package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/lherron/vsds/internal/history"
	"github.com/lherron/vsds/internal/migrate"
)

var resolutions = []migrate.Resolution{
	migrate.Overwritten,
	migrate.CleanMerged,
	migrate.AIReconciled,
	migrate.Skipped,
}

// Resolution renders a resolution name in its status color.
func (r *Renderer) Resolution(name string) string {
	switch name {
	case migrate.Overwritten.String():
		return r.styles.success.Render(name)
	case migrate.CleanMerged.String(), migrate.AIReconciled.String():
		return r.styles.merged.Render(name)
	case migrate.Skipped.String():
		return r.styles.warning.Render(name)
	}
	return name
}

// Summary returns the one-line count of each resolution.
func Summary(report *migrate.Report) string {
	parts := make([]string, 0, len(resolutions))
	for _, res := range resolutions {
		parts = append(parts, fmt.Sprintf("%d %s", report.Count(res), res))
	}
	return fmt.Sprintf("%d component(s): %s", len(report.Results), strings.Join(parts, ", "))
}

// Report renders a migration report.
func (r *Renderer) Report(report *migrate.Report) error {
	if r.Structured() {
		return r.Render(report)
	}

	if report.Run.DryRun {
		r.Println(r.Muted("dry run: no files were changed"))
	}

	rows := make([][]string, 0, len(report.Results))
	for _, res := range report.Results {
		rows = append(rows, []string{
			res.Component,
			res.FromVersion,
			res.ToVersion,
			res.Classification.String(),
			r.Resolution(res.Resolution.String()),
			r.detail(res),
		})
	}
	if err := r.RenderTable([]string{"COMPONENT", "FROM", "TO", "STATE", "RESULT", "DETAIL"}, rows); err != nil {
		return err
	}

	if n := len(report.UpToDate); n > 0 {
		r.Println(r.Muted(fmt.Sprintf("%d component(s) already up to date: %s", n, strings.Join(report.UpToDate, ", "))))
	}
	r.Println(Summary(report))
	if skipped := report.Skipped(); len(skipped) > 0 {
		r.Println(r.styles.warning.Render(fmt.Sprintf("%d component(s) need manual migration; run 'vsds diff --conflicts <name>' to inspect", len(skipped))))
	}
	return nil
}

func (r *Renderer) detail(res migrate.Result) string {
	switch {
	case res.Err != nil && res.Reason != "":
		return r.styles.failure.Render(res.Reason + ": " + res.Err.Error())
	case res.Err != nil:
		return r.styles.failure.Render(res.Err.Error())
	case res.Reason != "":
		return res.Reason
	case res.Conflicts() > 0:
		return fmt.Sprintf("%d region(s) reconciled", res.Conflicts())
	}
	return ""
}

// Statuses renders the output of the status command.
func (r *Renderer) Statuses(statuses []migrate.Status) error {
	if r.Structured() {
		type row struct {
			migrate.Status
			Error string `json:"error,omitempty"`
		}
		out := make([]row, 0, len(statuses))
		for _, st := range statuses {
			rw := row{Status: st}
			if st.Err != nil {
				rw.Error = st.Err.Error()
			}
			out = append(out, rw)
		}
		return r.Render(out)
	}

	rows := make([][]string, 0, len(statuses))
	for _, st := range statuses {
		latest := st.Latest
		switch {
		case st.Err != nil:
			latest = r.styles.failure.Render("error")
		case st.UpdateAvailable:
			latest = r.styles.warning.Render(latest)
		}

		state := st.Classification.String()
		changes := ""
		if st.Classification == migrate.Modified {
			changes = r.Stat(st.LocalChanges.Added, st.LocalChanges.Changed, st.LocalChanges.Deleted)
		}
		if st.Err != nil {
			changes = r.styles.failure.Render(st.Err.Error())
		}
		rows = append(rows, []string{st.Name, st.Path, st.Installed, latest, state, changes})
	}
	if len(rows) == 0 {
		r.Println(r.Muted("no components installed"))
		return nil
	}
	return r.RenderTable([]string{"COMPONENT", "PATH", "INSTALLED", "LATEST", "STATE", "LOCAL CHANGES"}, rows)
}

// Stat renders a diffstat as "+a ~c -d".
func (r *Renderer) Stat(added, changed, deleted int) string {
	return fmt.Sprintf("%s %s %s",
		r.styles.added.Render(fmt.Sprintf("+%d", added)),
		r.styles.merged.Render(fmt.Sprintf("~%d", changed)),
		r.styles.deleted.Render(fmt.Sprintf("-%d", deleted)))
}

// Diff colors a unified diff line by line.
func (r *Renderer) Diff(unified string) {
	for _, line := range strings.SplitAfter(unified, "\n") {
		if line == "" {
			continue
		}
		text := strings.TrimSuffix(line, "\n")
		switch {
		case strings.HasPrefix(text, "+++"), strings.HasPrefix(text, "---"):
			text = r.styles.header.Render(text)
		case strings.HasPrefix(text, "@@"):
			text = r.styles.merged.Render(text)
		case strings.HasPrefix(text, "+"):
			text = r.styles.added.Render(text)
		case strings.HasPrefix(text, "-"):
			text = r.styles.deleted.Render(text)
		case strings.HasPrefix(text, "\\"):
			text = r.styles.muted.Render(text)
		}
		r.Println(text)
	}
}

// Runs renders a page of the run history.
func (r *Renderer) Runs(runs []history.RunSummary, next string) error {
	if r.Structured() {
		return r.Render(struct {
			Runs       []history.RunSummary `json:"runs"`
			NextCursor string               `json:"next_cursor,omitempty"`
		}{runs, next})
	}

	if len(runs) == 0 {
		r.Println(r.Muted("no runs recorded"))
		return nil
	}
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		status := run.Status
		switch status {
		case history.StatusCompleted:
			status = r.styles.success.Render(status)
		case history.StatusFailed:
			status = r.styles.failure.Render(status)
		case history.StatusCanceled, history.StatusRunning:
			status = r.styles.warning.Render(status)
		}
		if run.DryRun {
			status += r.Muted(" (dry run)")
		}
		rows = append(rows, []string{
			shortID(run.ID),
			run.StartedAt.Local().Format(time.DateTime),
			status,
			fmt.Sprint(run.Components),
			fmt.Sprint(run.Skipped),
		})
	}
	if err := r.RenderTable([]string{"RUN", "STARTED", "STATUS", "COMPONENTS", "SKIPPED"}, rows); err != nil {
		return err
	}
	if next != "" {
		r.Println(r.Muted("more: --cursor " + next))
	}
	return nil
}

// Outcomes renders recorded component outcomes.
func (r *Renderer) Outcomes(outcomes []history.Outcome) error {
	if r.Structured() {
		return r.Render(outcomes)
	}

	if len(outcomes) == 0 {
		r.Println(r.Muted("no outcomes recorded"))
		return nil
	}
	rows := make([][]string, 0, len(outcomes))
	for _, o := range outcomes {
		rows = append(rows, []string{
			shortID(o.RunID),
			o.Component,
			o.FromVersion,
			o.ToVersion,
			r.Resolution(o.Resolution),
			fmt.Sprint(o.Conflicts),
			o.Error,
		})
	}
	return r.RenderTable([]string{"RUN", "COMPONENT", "FROM", "TO", "RESULT", "CONFLICTS", "DETAIL"}, rows)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
