// Package migrate brings installed components up to their latest upstream
// release. Each component moves through Unchecked, then Classified as
// Unmodified or Modified, then Resolved as Overwritten, CleanMerged,
// AIReconciled or Skipped. Only the first three touch the filesystem.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lherron/vsds/internal/manifest"
	"github.com/lherron/vsds/internal/merge"
	"github.com/lherron/vsds/internal/reconcile"
	"github.com/lherron/vsds/internal/registry"
	"github.com/lherron/vsds/internal/selectors"
	"github.com/lherron/vsds/internal/snapshot"
	"github.com/lherron/vsds/internal/syntax"
)

// DefaultWorkers bounds concurrent component migrations when Options.Workers
// is unset.
const DefaultWorkers = 4

// Options configures a Migrator.
type Options struct {
	Workers   int
	DryRun    bool
	Force     bool
	Logger    *zap.Logger
	Observers []Observer

	// Now stamps manifest records. Defaults to time.Now.
	Now func() time.Time
}

// Migrator runs migrations over a project's manifest.
type Migrator struct {
	store      Store
	upstream   registry.Source
	manifest   *manifest.Manifest
	reconciler Reconciler
	opts       Options
	logger     *zap.Logger

	// mu guards manifest and written while workers run.
	mu      sync.Mutex
	written []*snapshot.Component
}

// New builds a Migrator. reconciler may be nil, in which case conflicted
// components are skipped.
func New(store Store, upstream registry.Source, m *manifest.Manifest, reconciler Reconciler, opts Options) *Migrator {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Migrator{
		store:      store,
		upstream:   upstream,
		manifest:   m,
		reconciler: reconciler,
		opts:       opts,
		logger:     logger,
	}
}

// Item is one selected component and what the registry offers for it.
type Item struct {
	Record          manifest.Record `json:"-"`
	Name            string          `json:"name"`
	Path            string          `json:"path"`
	Installed       string          `json:"installed"`
	Latest          string          `json:"latest,omitempty"`
	UpdateAvailable bool            `json:"update_available"`
	Err             error           `json:"-"`
}

// Plan selects manifest components and compares their installed version
// with the registry's latest. Registry failures are kept on the item so the
// run can report them per component.
func (m *Migrator) Plan(ctx context.Context, sel []string) ([]Item, error) {
	names, err := selectors.Select(m.manifest, sel)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(names))
	for _, name := range names {
		rec, _ := m.manifest.Get(name)
		item := Item{
			Record:    rec,
			Name:      name,
			Path:      rec.Path,
			Installed: rec.Version,
		}

		release, err := m.upstream.Latest(ctx, name)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			item.Err = &snapshot.ReadError{Component: name, Source: snapshot.SourceUpstream, Err: err}
			items = append(items, item)
			continue
		}
		item.Latest = release.Version

		newer, err := registry.IsNewer(rec.Version, release.Version)
		if err != nil {
			// Unparseable versions fall back to plain inequality.
			m.logger.Debug("version comparison failed",
				zap.String("component", name),
				zap.Error(err))
			newer = rec.Version != release.Version
		}
		item.UpdateAvailable = newer
		items = append(items, item)
	}
	return items, nil
}

// Run migrates the selected components. The returned report is complete
// even when err is non-nil; err is a *RunError when the manifest could not
// be saved, or the planning error.
func (m *Migrator) Run(ctx context.Context, sel []string) (*Report, error) {
	run := Run{
		ID:        uuid.NewString(),
		StartedAt: m.opts.Now().UTC(),
		DryRun:    m.opts.DryRun,
	}
	report := &Report{Run: run}

	for _, o := range m.opts.Observers {
		o.RunStarted(ctx, run)
	}

	items, err := m.Plan(ctx, sel)
	if err != nil {
		report.FinishedAt = m.opts.Now().UTC()
		m.finish(ctx, run, report, err)
		return report, err
	}

	var pending []Item
	for _, item := range items {
		if item.Err == nil && !item.UpdateAvailable && !m.opts.Force {
			report.UpToDate = append(report.UpToDate, item.Name)
			continue
		}
		pending = append(pending, item)
	}

	m.logger.Info("migration started",
		zap.String("run", run.ID),
		zap.Int("components", len(pending)),
		zap.Int("up_to_date", len(report.UpToDate)),
		zap.Bool("dry_run", run.DryRun))

	results := make([]Result, len(pending))
	var g errgroup.Group
	g.SetLimit(m.opts.Workers)
	for i, item := range pending {
		i, item := i, item
		if ctx.Err() != nil {
			results[i] = skippedBy(item, ctx.Err())
			m.resolved(ctx, run, results[i])
			continue
		}
		g.Go(func() error {
			results[i] = m.migrateOne(ctx, item)
			m.resolved(ctx, run, results[i])
			return nil
		})
	}
	_ = g.Wait()
	report.Results = results

	err = m.record()
	report.FinishedAt = m.opts.Now().UTC()
	m.finish(ctx, run, report, err)
	return report, err
}

// record saves the manifest once all workers are done. On failure the base
// snapshots of written components are put back so they agree with the
// manifest still on disk.
func (m *Migrator) record() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.opts.DryRun || len(m.written) == 0 {
		return nil
	}

	saveErr := m.manifest.Save()
	if saveErr == nil {
		m.written = nil
		return nil
	}

	runErr := &RunError{Err: saveErr}
	for _, c := range m.written {
		runErr.Written = append(runErr.Written, c.Name)
		if err := m.store.WriteBase(c.Name, c.BaseText); err != nil {
			m.logger.Error("failed to restore base snapshot",
				zap.String("component", c.Name),
				zap.Error(err))
		}
	}
	m.written = nil
	return runErr
}

func (m *Migrator) finish(ctx context.Context, run Run, report *Report, err error) {
	fields := []zap.Field{
		zap.String("run", run.ID),
		zap.Int(Overwritten.String(), report.Count(Overwritten)),
		zap.Int(CleanMerged.String(), report.Count(CleanMerged)),
		zap.Int(AIReconciled.String(), report.Count(AIReconciled)),
		zap.Int(Skipped.String(), report.Count(Skipped)),
	}
	if err != nil {
		m.logger.Error("migration failed", append(fields, zap.Error(err))...)
	} else {
		m.logger.Info("migration finished", fields...)
	}

	for _, o := range m.opts.Observers {
		o.RunFinished(ctx, run, report, err)
	}
}

func (m *Migrator) resolved(ctx context.Context, run Run, res Result) {
	fields := []zap.Field{
		zap.String("component", res.Component),
		zap.Stringer("classification", res.Classification),
		zap.Stringer("resolution", res.Resolution),
		zap.Int("conflicts", res.Conflicts()),
	}
	switch {
	case res.Err != nil:
		m.logger.Warn("component skipped", append(fields, zap.Error(res.Err))...)
	case res.Resolution == Skipped:
		m.logger.Info("component skipped", append(fields, zap.String("reason", res.Reason))...)
	default:
		m.logger.Info("component resolved", fields...)
	}

	for _, o := range m.opts.Observers {
		o.ComponentResolved(ctx, run, res)
	}
}

func skippedBy(item Item, err error) Result {
	return Result{
		Component:   item.Name,
		Path:        item.Path,
		FromVersion: item.Installed,
		ToVersion:   item.Latest,
		Resolution:  Skipped,
		Reason:      err.Error(),
		Err:         fmt.Errorf("%s: %w", item.Name, err),
	}
}

// migrateOne drives a single component to its resolution.
func (m *Migrator) migrateOne(ctx context.Context, item Item) Result {
	res := Result{
		Component:   item.Name,
		Path:        item.Path,
		FromVersion: item.Installed,
		ToVersion:   item.Latest,
	}

	if err := ctx.Err(); err != nil {
		return skippedBy(item, err)
	}
	if item.Err != nil {
		res.Resolution = Skipped
		res.Reason = "could not read component"
		res.Err = item.Err
		return res
	}

	c, err := m.store.Load(ctx, item.Record)
	if err != nil {
		res.Resolution = Skipped
		res.Reason = "could not read component"
		res.Err = err
		return res
	}
	res.ToVersion = c.UpstreamVersion

	merged, ok := m.resolve(ctx, c, &res)
	if !ok {
		return res
	}
	res.ModifiedByUser = merged != c.UpstreamText

	if m.opts.DryRun {
		return res
	}

	if err := m.write(c, merged, res.ModifiedByUser); err != nil {
		res.Resolution = Skipped
		res.Reason = "could not write component"
		res.Err = err
	}
	return res
}

// resolve classifies c and computes the text it resolves to. It returns
// false when the component is Skipped.
func (m *Migrator) resolve(ctx context.Context, c *snapshot.Component, res *Result) (string, bool) {
	if !c.Modified() {
		res.Classification = Unmodified
		res.Resolution = Overwritten
		return c.UpstreamText, true
	}

	res.Classification = Modified
	outcome := merge.Merge(c.BaseText, c.LocalText, c.UpstreamText)
	if outcome.IsClean() {
		res.Resolution = CleanMerged
		return outcome.Text, true
	}
	res.Regions = outcome.Regions

	switch {
	case m.reconciler == nil:
		res.Resolution = Skipped
		res.Reason = fmt.Sprintf("%d conflicting region(s), AI reconciliation not configured", len(outcome.Regions))
		return "", false
	case m.opts.DryRun:
		res.Resolution = Skipped
		res.Reason = fmt.Sprintf("%d conflicting region(s), AI reconciliation not attempted in a dry run", len(outcome.Regions))
		return "", false
	}

	text, err := m.reconciler.Reconcile(ctx, reconcile.Request{
		ComponentName: c.Name,
		FileType:      syntax.FileType(c.Path),
		BaseText:      c.BaseText,
		LocalText:     c.LocalText,
		UpstreamText:  c.UpstreamText,
		Regions:       outcome.Regions,
	})
	if err != nil {
		res.Resolution = Skipped
		res.Reason = fmt.Sprintf("%d conflicting region(s), %s", len(outcome.Regions), reconcileReason(err))
		res.Err = err
		return "", false
	}

	res.Resolution = AIReconciled
	return text, true
}

func reconcileReason(err error) string {
	switch {
	case errors.Is(err, reconcile.ErrRejected):
		return "AI reconciliation declined"
	case errors.Is(err, reconcile.ErrInvalid):
		return "AI reconciliation result rejected by validation"
	}
	return "AI reconciliation unavailable"
}

// write applies a resolution: the component file first, then the base
// snapshot, then the in-memory manifest record. A failure part way puts the
// earlier steps back so the component stays as it was.
func (m *Migrator) write(c *snapshot.Component, merged string, modifiedByUser bool) error {
	wroteLocal := false
	if merged != c.LocalText {
		if err := m.store.WriteLocal(c, merged); err != nil {
			return err
		}
		wroteLocal = true
	}

	if err := m.store.WriteBase(c.Name, c.UpstreamText); err != nil {
		if wroteLocal {
			m.restoreLocal(c)
		}
		return err
	}

	rec := manifest.Record{
		Name:           c.Name,
		Path:           c.Path,
		Version:        c.UpstreamVersion,
		Checksum:       manifest.Checksum([]byte(c.UpstreamText)),
		ModifiedByUser: modifiedByUser,
		UpdatedAt:      m.opts.Now().UTC(),
	}

	m.mu.Lock()
	err := m.manifest.Set(rec)
	if err == nil {
		m.written = append(m.written, c)
	}
	m.mu.Unlock()

	if err != nil {
		if restoreErr := m.store.WriteBase(c.Name, c.BaseText); restoreErr != nil {
			m.logger.Error("failed to restore base snapshot",
				zap.String("component", c.Name),
				zap.Error(restoreErr))
		}
		if wroteLocal {
			m.restoreLocal(c)
		}
		return fmt.Errorf("%s: %w", c.Name, err)
	}
	return nil
}

func (m *Migrator) restoreLocal(c *snapshot.Component) {
	if err := m.store.WriteLocal(c, c.LocalText); err != nil {
		m.logger.Error("failed to restore component file",
			zap.String("component", c.Name),
			zap.Error(err))
	}
}
