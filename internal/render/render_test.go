package render

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lherron/vsds/internal/diff"
	"github.com/lherron/vsds/internal/history"
	"github.com/lherron/vsds/internal/merge"
	"github.com/lherron/vsds/internal/migrate"
)

func sampleReport() *migrate.Report {
	return &migrate.Report{
		Run: migrate.Run{ID: "0123456789abcdef", StartedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		Results: []migrate.Result{
			{Component: "button", FromVersion: "1.0.0", ToVersion: "1.1.0", Classification: migrate.Unmodified, Resolution: migrate.Overwritten},
			{Component: "card", FromVersion: "1.0.0", ToVersion: "2.0.0", Classification: migrate.Modified, Resolution: migrate.CleanMerged},
			{Component: "input", FromVersion: "1.0.0", ToVersion: "2.0.0", Classification: migrate.Modified, Resolution: migrate.Skipped,
				Reason: "1 conflicting region(s)", Regions: []merge.Region{{}}},
			{Component: "select", FromVersion: "1.0.0", Classification: migrate.Unchecked, Resolution: migrate.Skipped,
				Err: errors.New("select: upstream unreadable")},
		},
		UpToDate: []string{"badge"},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"table", FormatTable, false},
		{"JSON", FormatJSON, false},
		{"yaml", FormatYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestReportTable(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, Options{Format: FormatTable})
	if err := r.Report(sampleReport()); err != nil {
		t.Fatalf("Report: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"COMPONENT",
		"button",
		"clean-merged",
		"1 conflicting region(s)",
		"select: upstream unreadable",
		"already up to date: badge",
		"4 component(s): 1 overwritten, 1 clean-merged, 0 ai-reconciled, 2 skipped",
		"2 component(s) need manual migration",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Errorf("non-terminal output contains escape sequences:\n%q", out)
	}
}

func TestReportTableAlignment(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, Options{})
	if err := r.RenderTable([]string{"A", "B"}, [][]string{{"long-value", "x"}, {"s", "y"}}); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	col := strings.Index(lines[0], "B")
	for _, line := range lines[2:] {
		if strings.IndexAny(line, "xy") != col {
			t.Errorf("misaligned row %q (want column %d)", line, col)
		}
	}
}

func TestReportStructured(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		if err := NewRenderer(&buf, Options{Format: FormatJSON}).Report(sampleReport()); err != nil {
			t.Fatal(err)
		}
		var decoded struct {
			Results []struct {
				Component  string `json:"component"`
				Resolution string `json:"resolution"`
			} `json:"results"`
		}
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
		}
		if len(decoded.Results) != 4 || decoded.Results[2].Resolution != "skipped" {
			t.Errorf("results = %+v", decoded.Results)
		}
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		if err := NewRenderer(&buf, Options{Format: FormatYAML}).Report(sampleReport()); err != nil {
			t.Fatal(err)
		}
		var decoded map[string]any
		if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid YAML: %v\n%s", err, buf.String())
		}
		if !strings.Contains(buf.String(), "resolution: clean-merged") {
			t.Errorf("yaml output:\n%s", buf.String())
		}
	})
}

func TestStatuses(t *testing.T) {
	statuses := []migrate.Status{
		{Item: migrate.Item{Name: "button", Path: "src/button.tsx", Installed: "1.0.0", Latest: "1.1.0", UpdateAvailable: true},
			Classification: migrate.Modified, LocalChanges: diff.Stat{Added: 2, Changed: 1}},
		{Item: migrate.Item{Name: "card", Path: "src/card.tsx", Installed: "1.0.0", Err: errors.New("card: registry unreadable")}},
	}

	var buf bytes.Buffer
	if err := NewRenderer(&buf, Options{}).Statuses(statuses); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"src/button.tsx", "+2 ~1 -0", "card: registry unreadable"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output missing %q:\n%s", want, buf.String())
		}
	}

	buf.Reset()
	if err := NewRenderer(&buf, Options{Format: FormatJSON}).Statuses(statuses); err != nil {
		t.Fatal(err)
	}
	var decoded []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded[0]["name"] != "button" || decoded[1]["error"] != "card: registry unreadable" {
		t.Errorf("decoded = %v", decoded)
	}
}

func TestRuns(t *testing.T) {
	runs := []history.RunSummary{
		{ID: "abcdef0123456789", StartedAt: time.Now(), Status: history.StatusCompleted, Components: 3, Skipped: 1, DryRun: true},
	}
	var buf bytes.Buffer
	if err := NewRenderer(&buf, Options{}).Runs(runs, "next-page"); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"abcdef01", "completed (dry run)", "--cursor next-page"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output missing %q:\n%s", want, buf.String())
		}
	}
}

func TestDiff(t *testing.T) {
	var buf bytes.Buffer
	NewRenderer(&buf, Options{}).Diff("--- a\n+++ b\n@@ -1 +1 @@\n-old\n+new\n")
	if buf.String() != "--- a\n+++ b\n@@ -1 +1 @@\n-old\n+new\n" {
		t.Errorf("plain diff changed:\n%q", buf.String())
	}
}
