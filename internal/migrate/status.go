package migrate

import (
	"context"
	"fmt"

	"github.com/lherron/vsds/internal/diff"
	"github.com/lherron/vsds/internal/merge"
	"github.com/lherron/vsds/internal/selectors"
	"github.com/lherron/vsds/internal/snapshot"
)

// Status describes an installed component without changing anything.
type Status struct {
	Item
	Classification Classification `json:"classification"`
	LocalChanges   diff.Stat      `json:"local_changes"`
}

// Status reports version and local-edit state for the selected components.
// Per-component read failures are kept on the item.
func (m *Migrator) Status(ctx context.Context, sel []string) ([]Status, error) {
	items, err := m.Plan(ctx, sel)
	if err != nil {
		return nil, err
	}

	out := make([]Status, 0, len(items))
	for _, item := range items {
		st := Status{Item: item}
		if item.Err != nil {
			out = append(out, st)
			continue
		}

		c, err := m.store.Load(ctx, item.Record)
		if err != nil {
			st.Err = err
			out = append(out, st)
			continue
		}

		st.Classification = Unmodified
		if c.Modified() {
			st.Classification = Modified
			stat, err := diff.Between(c.BaseText, c.LocalText)
			if err != nil {
				st.Err = fmt.Errorf("%s: diffstat: %w", item.Name, err)
			}
			st.LocalChanges = stat
		}
		out = append(out, st)
	}
	return out, nil
}

// Preview is the merge a migration would perform for one component.
type Preview struct {
	Component      *snapshot.Component
	Classification Classification
	Outcome        merge.Outcome
}

// Preview computes the merge for name without writing anything or calling
// the reconciler.
func (m *Migrator) Preview(ctx context.Context, name string) (*Preview, error) {
	normalized, err := selectors.NormalizeName(name)
	if err != nil {
		return nil, err
	}
	rec, ok := m.manifest.Get(normalized)
	if !ok {
		return nil, fmt.Errorf("component %q is not installed", name)
	}

	c, err := m.store.Load(ctx, rec)
	if err != nil {
		return nil, err
	}

	p := &Preview{Component: c}
	if !c.Modified() {
		p.Classification = Unmodified
		p.Outcome = merge.Outcome{Kind: merge.Clean, Text: c.UpstreamText}
		return p, nil
	}
	p.Classification = Modified
	p.Outcome = merge.Merge(c.BaseText, c.LocalText, c.UpstreamText)
	return p, nil
}
