package migrate_test

import (
	"context"
	"testing"

	"github.com/lherron/vsds/internal/diff"
	"github.com/lherron/vsds/internal/merge"
	"github.com/lherron/vsds/internal/migrate"
	"github.com/lherron/vsds/internal/testutil"
)

func TestStatus(t *testing.T) {
	p := testutil.NewProject(t)
	p.Install("button", "button.tsx", "1.0.0", "a\nb\n", "a\nb\n")
	p.Install("card", "card.tsx", "1.0.0", "a\nb\n", "a\nb2\nc\n")
	p.Install("orphan", "orphan.tsx", "1.0.0", "o\n", "o\n")
	p.Publish("button", "1.0.0", "button.tsx", "a\nb\n")
	p.Publish("card", "1.2.0", "card.tsx", "a\nb\nz\n")

	mig, _ := newMigrator(t, p, nil, migrate.Options{})
	statuses, err := mig.Status(context.Background(), nil)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(statuses) != 3 {
		t.Fatalf("got %d statuses, want 3", len(statuses))
	}

	byName := map[string]migrate.Status{}
	for _, st := range statuses {
		byName[st.Name] = st
	}

	button := byName["button"]
	if button.Classification != migrate.Unmodified || button.UpdateAvailable || button.Err != nil {
		t.Errorf("button = %+v", button)
	}

	card := byName["card"]
	if card.Classification != migrate.Modified || !card.UpdateAvailable || card.Latest != "1.2.0" {
		t.Errorf("card = %+v", card)
	}
	if card.LocalChanges == (diff.Stat{}) {
		t.Error("card should report local changes")
	}

	if byName["orphan"].Err == nil {
		t.Error("orphan should carry a registry error")
	}
}

func TestPreview(t *testing.T) {
	p := testutil.NewProject(t)
	p.Install("input", "input.tsx", "1.0.0", "X\n", "X-custom\n")
	p.Install("button", "button.tsx", "1.0.0", "v1\n", "v1\n")
	p.Publish("input", "2.0.0", "input.tsx", "X-upstream\n")
	p.Publish("button", "1.1.0", "button.tsx", "v2\n")

	mig, _ := newMigrator(t, p, nil, migrate.Options{})

	pv, err := mig.Preview(context.Background(), "Input")
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if pv.Classification != migrate.Modified || pv.Outcome.Kind != merge.Conflicted {
		t.Errorf("input preview = %s/%s", pv.Classification, pv.Outcome.Kind)
	}
	if got := p.ReadLocal("input.tsx"); got != "X-custom\n" {
		t.Errorf("preview wrote to disk: %q", got)
	}

	pv, err = mig.Preview(context.Background(), "button")
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if !pv.Outcome.IsClean() || pv.Outcome.Text != "v2\n" {
		t.Errorf("button preview = %+v", pv.Outcome)
	}

	if _, err := mig.Preview(context.Background(), "dialog"); err == nil {
		t.Error("expected error for a component that is not installed")
	}
}
