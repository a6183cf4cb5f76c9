package migrate

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/lherron/vsds/internal/manifest"
	"github.com/lherron/vsds/internal/merge"
	"github.com/lherron/vsds/internal/reconcile"
	"github.com/lherron/vsds/internal/snapshot"
)

// Classification is the first transition of a component: whether its local
// copy still matches the recorded base.
type Classification int

const (
	Unchecked Classification = iota
	Unmodified
	Modified
)

var classificationNames = map[Classification]string{
	Unchecked:  "unchecked",
	Unmodified: "unmodified",
	Modified:   "modified",
}

func (c Classification) String() string {
	if s, ok := classificationNames[c]; ok {
		return s
	}
	return fmt.Sprintf("classification(%d)", int(c))
}

// MarshalText renders the classification by name in JSON and YAML output.
func (c Classification) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Resolution is the terminal state of a component.
type Resolution int

const (
	Unresolved Resolution = iota
	Overwritten
	CleanMerged
	AIReconciled
	Skipped
)

var resolutionNames = map[Resolution]string{
	Unresolved:   "unresolved",
	Overwritten:  "overwritten",
	CleanMerged:  "clean-merged",
	AIReconciled: "ai-reconciled",
	Skipped:      "skipped",
}

func (r Resolution) String() string {
	if s, ok := resolutionNames[r]; ok {
		return s
	}
	return fmt.Sprintf("resolution(%d)", int(r))
}

// MarshalText renders the resolution by name in JSON and YAML output.
func (r Resolution) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Writes reports whether entering r writes the component file.
func (r Resolution) Writes() bool {
	return r == Overwritten || r == CleanMerged || r == AIReconciled
}

// Store is the file access a migration needs. *snapshot.Store implements it.
type Store interface {
	Load(ctx context.Context, rec manifest.Record) (*snapshot.Component, error)
	WriteLocal(c *snapshot.Component, text string) error
	WriteBase(name, text string) error
}

// Reconciler resolves conflicted merges. *reconcile.Adapter implements it.
type Reconciler interface {
	Reconcile(ctx context.Context, req reconcile.Request) (string, error)
}

// Run identifies one invocation of Migrator.Run.
type Run struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	DryRun    bool      `json:"dry_run"`
}

// Observer is told about each resolved component. Observers are called from
// worker goroutines and must be safe for concurrent use. They are never
// called while a merge is being computed, and they cannot fail a run.
type Observer interface {
	RunStarted(ctx context.Context, run Run)
	ComponentResolved(ctx context.Context, run Run, res Result)
	RunFinished(ctx context.Context, run Run, report *Report, err error)
}

// Result is the outcome of migrating one component.
type Result struct {
	Component      string         `json:"component"`
	Path           string         `json:"path"`
	FromVersion    string         `json:"from_version"`
	ToVersion      string         `json:"to_version,omitempty"`
	Classification Classification `json:"classification"`
	Resolution     Resolution     `json:"resolution"`
	ModifiedByUser bool           `json:"modified_by_user"`
	Regions        []merge.Region `json:"regions,omitempty"`

	// Reason explains a Skipped resolution in one line.
	Reason string `json:"reason,omitempty"`

	// Err is set when something went wrong, as opposed to a plain conflict.
	Err error `json:"-"`
}

// Conflicts returns the number of conflict regions the merge produced.
func (r Result) Conflicts() int {
	return len(r.Regions)
}

// Report collects the results of a run.
type Report struct {
	Run        Run       `json:"run"`
	FinishedAt time.Time `json:"finished_at"`
	Results    []Result  `json:"results"`

	// UpToDate lists selected components already at the latest version.
	UpToDate []string `json:"up_to_date,omitempty"`
}

// Count returns how many components ended in res.
func (r *Report) Count(res Resolution) int {
	n := 0
	for _, result := range r.Results {
		if result.Resolution == res {
			n++
		}
	}
	return n
}

// Skipped returns the results that were left untouched.
func (r *Report) Skipped() []Result {
	var out []Result
	for _, result := range r.Results {
		if result.Resolution == Skipped {
			out = append(out, result)
		}
	}
	return out
}

// Err aggregates the per-component errors. Conflicts alone are not errors.
// Component errors already name their component.
func (r *Report) Err() error {
	var result *multierror.Error
	for _, res := range r.Results {
		if res.Err != nil {
			result = multierror.Append(result, res.Err)
		}
	}
	return result.ErrorOrNil()
}

// RunError means the run could not record its results. Component files
// listed in Written were updated but the manifest still describes their
// previous versions; their base snapshots were restored so the next run
// merges them again.
type RunError struct {
	Written []string
	Err     error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%d component file(s) written but not recorded: %v", len(e.Written), e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}
