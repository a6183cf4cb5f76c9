// Package history records migration runs and their per-component outcomes
// in the project's SQLite history database.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lherron/vsds/internal/db"
	"github.com/lherron/vsds/internal/migrate"
)

// DefaultPath is the history database location relative to the project root.
const DefaultPath = ".vsds/history.db"

const timeLayout = "2006-01-02T15:04:05.000000Z"

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCanceled  = "canceled"
)

var (
	// ErrRunNotFound is returned when a run ID or prefix matches nothing.
	ErrRunNotFound = errors.New("run not found")

	// ErrNoHistory is returned by OpenExisting when no database exists yet.
	ErrNoHistory = errors.New("no migration history recorded")
)

// RunSummary is one row of the runs table.
type RunSummary struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	DryRun     bool       `json:"dry_run"`
	Status     string     `json:"status"`
	Components int        `json:"components"`
	Skipped    int        `json:"skipped"`
}

// Outcome is one recorded component resolution.
type Outcome struct {
	RunID          string    `json:"run_id"`
	Component      string    `json:"component"`
	Classification string    `json:"classification"`
	Resolution     string    `json:"resolution"`
	FromVersion    string    `json:"from_version"`
	ToVersion      string    `json:"to_version"`
	Conflicts      int       `json:"conflicts"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Recorder writes runs to the history database. It implements
// migrate.Observer; write failures are logged and never fail the run.
type Recorder struct {
	db     *db.DB
	logger *zap.Logger
}

// Open opens (and migrates) the history database at path.
func Open(path string, logger *zap.Logger) (*Recorder, error) {
	database, err := db.Open(path)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to migrate history database: %w", err)
	}
	return New(database, logger), nil
}

// OpenExisting opens the history database for reading. Unlike Open it never
// creates or upgrades the file.
func OpenExisting(path string, logger *zap.Logger) (*Recorder, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w at %s", ErrNoHistory, path)
	}
	database, err := db.Open(path)
	if err != nil {
		return nil, err
	}
	if err := database.RequiresMigrationError(); err != nil {
		database.Close()
		return nil, err
	}
	return New(database, logger), nil
}

// New wraps an already migrated database.
func New(database *db.DB, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{db: database, logger: logger}
}

// Close closes the underlying database.
func (r *Recorder) Close() error {
	return r.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(timeLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// RunStarted implements migrate.Observer.
func (r *Recorder) RunStarted(ctx context.Context, run migrate.Run) {
	_, err := r.db.ExecContext(context.WithoutCancel(ctx), `
		INSERT INTO runs (uuid, started_at, dry_run, status) VALUES (?, ?, ?, ?)
	`, run.ID, formatTime(run.StartedAt), run.DryRun, StatusRunning)
	if err != nil {
		r.logger.Warn("history: failed to record run start", zap.String("run", run.ID), zap.Error(err))
	}
}

// ComponentResolved implements migrate.Observer.
func (r *Recorder) ComponentResolved(ctx context.Context, run migrate.Run, res migrate.Result) {
	var errText string
	if res.Err != nil {
		errText = res.Err.Error()
	} else if res.Resolution == migrate.Skipped {
		errText = res.Reason
	}

	_, err := r.db.ExecContext(context.WithoutCancel(ctx), `
		INSERT INTO outcomes (run_uuid, component, classification, resolution,
		                      from_version, to_version, conflicts, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, res.Component, res.Classification.String(), res.Resolution.String(),
		res.FromVersion, res.ToVersion, res.Conflicts(), errText)
	if err != nil {
		r.logger.Warn("history: failed to record outcome",
			zap.String("run", run.ID),
			zap.String("component", res.Component),
			zap.Error(err))
	}
}

// RunFinished implements migrate.Observer.
func (r *Recorder) RunFinished(ctx context.Context, run migrate.Run, report *migrate.Report, err error) {
	status := StatusCompleted
	switch {
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		status = StatusCanceled
	case err != nil:
		status = StatusFailed
	}

	_, execErr := r.db.ExecContext(context.WithoutCancel(ctx), `
		UPDATE runs SET finished_at = ?, status = ?, components = ?, skipped = ?
		WHERE uuid = ?
	`, formatTime(report.FinishedAt), status, len(report.Results), report.Count(migrate.Skipped), run.ID)
	if execErr != nil {
		r.logger.Warn("history: failed to record run end", zap.String("run", run.ID), zap.Error(execErr))
	}
}

// ListOptions filters ListRuns.
type ListOptions struct {
	Limit     int
	Cursor    string
	Component string
	Since     time.Time
}

// ListRuns returns runs newest first and the cursor for the next page, which
// is empty on the last page.
func (r *Recorder) ListRuns(ctx context.Context, opts ListOptions) ([]RunSummary, string, error) {
	var where []string
	var args []any

	if opts.Cursor != "" {
		c, err := DecodeCursor(opts.Cursor)
		if err != nil {
			return nil, "", err
		}
		clause, params := c.whereClause()
		where = append(where, clause)
		args = append(args, params...)
	}
	if opts.Component != "" {
		where = append(where, "uuid IN (SELECT run_uuid FROM outcomes WHERE component = ?)")
		args = append(args, opts.Component)
	}
	if !opts.Since.IsZero() {
		where = append(where, "started_at >= ?")
		args = append(args, formatTime(opts.Since))
	}

	query := `SELECT uuid, started_at, finished_at, dry_run, status, components, skipped FROM runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC, uuid DESC"
	if opts.Limit > 0 {
		// One extra row tells us whether another page exists.
		query += fmt.Sprintf(" LIMIT %d", opts.Limit+1)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var s RunSummary
		var started string
		var finished sql.NullString
		if err := rows.Scan(&s.ID, &started, &finished, &s.DryRun, &s.Status, &s.Components, &s.Skipped); err != nil {
			return nil, "", fmt.Errorf("failed to scan run: %w", err)
		}
		if s.StartedAt, err = parseTime(started); err != nil {
			return nil, "", fmt.Errorf("run %s: bad start time: %w", s.ID, err)
		}
		if finished.Valid {
			t, err := parseTime(finished.String)
			if err != nil {
				return nil, "", fmt.Errorf("run %s: bad finish time: %w", s.ID, err)
			}
			s.FinishedAt = &t
		}
		runs = append(runs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("error iterating runs: %w", err)
	}

	var next string
	if opts.Limit > 0 && len(runs) > opts.Limit {
		runs = runs[:opts.Limit]
		last := runs[len(runs)-1]
		next, err = Cursor{StartedAt: formatTime(last.StartedAt), LastID: last.ID}.Encode()
		if err != nil {
			return nil, "", err
		}
	}
	return runs, next, nil
}

// ResolveRun expands a run ID prefix to the full ID.
func (r *Recorder) ResolveRun(ctx context.Context, prefix string) (string, error) {
	if prefix == "" {
		return "", fmt.Errorf("%w: empty run id", ErrRunNotFound)
	}
	rows, err := r.db.QueryContext(ctx, `SELECT uuid FROM runs WHERE uuid LIKE ? || '%' LIMIT 2`, prefix)
	if err != nil {
		return "", fmt.Errorf("failed to look up run: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("failed to scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	switch len(ids) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrRunNotFound, prefix)
	case 1:
		return ids[0], nil
	}
	return "", fmt.Errorf("run id %q is ambiguous", prefix)
}

// Outcomes returns the outcomes recorded for a run, by component name.
func (r *Recorder) Outcomes(ctx context.Context, runID string) ([]Outcome, error) {
	return r.queryOutcomes(ctx, `WHERE run_uuid = ? ORDER BY component`, runID)
}

// ComponentHistory returns the most recent outcomes for one component,
// newest first.
func (r *Recorder) ComponentHistory(ctx context.Context, component string, limit int) ([]Outcome, error) {
	clause := `WHERE component = ? ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		clause += fmt.Sprintf(" LIMIT %d", limit)
	}
	return r.queryOutcomes(ctx, clause, component)
}

func (r *Recorder) queryOutcomes(ctx context.Context, clause string, args ...any) ([]Outcome, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT run_uuid, component, classification, resolution,
		       from_version, to_version, conflicts, error, created_at
		FROM outcomes `+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var out []Outcome
	for rows.Next() {
		var o Outcome
		var created string
		if err := rows.Scan(&o.RunID, &o.Component, &o.Classification, &o.Resolution,
			&o.FromVersion, &o.ToVersion, &o.Conflicts, &o.Error, &created); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		if o.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("outcome %s/%s: bad timestamp: %w", o.RunID, o.Component, err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outcomes: %w", err)
	}
	return out, nil
}
