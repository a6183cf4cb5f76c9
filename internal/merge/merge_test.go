package merge

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMerge_LocalRenameUpstreamAppend(t *testing.T) {
	base := "A\nB\nC\n"
	local := "A\nB2\nC\n"
	upstream := "A\nB\nC\nD\n"

	got := Merge(base, local, upstream)
	if !got.IsClean() {
		t.Fatalf("expected clean merge, got conflicts:\n%s", got.Summary())
	}
	if got.Text != "A\nB2\nC\nD\n" {
		t.Errorf("merged text = %q, want %q", got.Text, "A\nB2\nC\nD\n")
	}
}

func TestMerge_DivergentEditOfSameLine(t *testing.T) {
	got := Merge("X\n", "X-custom\n", "X-upstream\n")

	if got.Kind != Conflicted {
		t.Fatalf("expected conflicted outcome, got %s", got.Kind)
	}
	if got.Text != "X-custom\n" {
		t.Errorf("default text = %q, want local %q", got.Text, "X-custom\n")
	}
	want := []Region{{
		Base:     LineRange{Start: 0, End: 1},
		Local:    LineRange{Start: 0, End: 1},
		Upstream: LineRange{Start: 0, End: 1},
		Merged:   LineRange{Start: 0, End: 1},
	}}
	if diff := cmp.Diff(want, got.Regions); diff != "" {
		t.Errorf("regions mismatch (-want +got):\n%s", diff)
	}
}

func TestMerge_NoLocalChangeTakesUpstream(t *testing.T) {
	base := "a\nb\nc\n"
	upstream := "a\nb-new\nc\nd\n"

	got := Merge(base, base, upstream)
	if !got.IsClean() || got.Text != upstream {
		t.Errorf("Merge(base, base, upstream) = %+v, want clean upstream", got)
	}
}

func TestMerge_NoUpstreamChangeKeepsLocal(t *testing.T) {
	base := "a\nb\nc\n"
	local := "a\nmine\nc\n"

	got := Merge(base, local, base)
	if !got.IsClean() || got.Text != local {
		t.Errorf("Merge(base, local, base) = %+v, want clean local", got)
	}
}

func TestMerge_IdenticalSidesAreCleanRegardlessOfBase(t *testing.T) {
	got := Merge("completely\ndifferent\n", "same\n", "same\n")
	if !got.IsClean() || got.Text != "same\n" {
		t.Errorf("expected clean %q, got %+v", "same\n", got)
	}
}

func TestMerge_IdenticalEditInBothSidesIsNotAConflict(t *testing.T) {
	base := "a\nb\nc\nd\ne\n"
	local := "a\nB\nc\nd\ne\n"
	upstream := "a\nB\nc\nD\ne\n"

	got := Merge(base, local, upstream)
	if !got.IsClean() {
		t.Fatalf("expected clean merge, got:\n%s", got.Summary())
	}
	if got.Text != "a\nB\nc\nD\ne\n" {
		t.Errorf("merged text = %q", got.Text)
	}
}

func TestMerge_AdjacentLinesDoNotConflict(t *testing.T) {
	base := "one\ntwo\nthree\nfour\n"
	local := "one\nTWO\nthree\nfour\n"
	upstream := "one\ntwo\nTHREE\nfour\n"

	got := Merge(base, local, upstream)
	if !got.IsClean() {
		t.Fatalf("expected clean merge, got:\n%s", got.Summary())
	}
	if got.Text != "one\nTWO\nTHREE\nfour\n" {
		t.Errorf("merged text = %q", got.Text)
	}
}

func TestMerge_DivergentTrailingAppendsConflict(t *testing.T) {
	got := Merge("A\n", "A\nL\n", "A\nU\n")
	if got.Kind != Conflicted {
		t.Fatalf("expected conflict for divergent appends, got %q", got.Text)
	}
	if got.Text != "A\nL\n" {
		t.Errorf("default text = %q, want %q", got.Text, "A\nL\n")
	}
	if len(got.Regions) != 1 || got.Regions[0].Base != (LineRange{Start: 1, End: 1}) {
		t.Errorf("unexpected regions: %+v", got.Regions)
	}
}

func TestMerge_SameTrailingAppendIsClean(t *testing.T) {
	got := Merge("A\nB\n", "A\nB\nC\n", "A2\nB\nC\n")
	if !got.IsClean() {
		t.Fatalf("expected clean merge, got:\n%s", got.Summary())
	}
	if got.Text != "A2\nB\nC\n" {
		t.Errorf("merged text = %q", got.Text)
	}
}

func TestMerge_RegionCoordinatesAfterLocalInsert(t *testing.T) {
	base := "x\ny\nz\n"
	local := "new1\nnew2\nx\ny-local\nz\n"
	upstream := "x\ny-up\nz\n"

	got := Merge(base, local, upstream)
	if got.Kind != Conflicted {
		t.Fatalf("expected conflict, got %q", got.Text)
	}
	if got.Text != local {
		t.Errorf("default text = %q, want %q", got.Text, local)
	}
	want := []Region{{
		Base:     LineRange{Start: 1, End: 2},
		Local:    LineRange{Start: 3, End: 4},
		Upstream: LineRange{Start: 1, End: 2},
		Merged:   LineRange{Start: 3, End: 4},
	}}
	if diff := cmp.Diff(want, got.Regions); diff != "" {
		t.Errorf("regions mismatch (-want +got):\n%s", diff)
	}
}

func TestMerge_ComponentFile(t *testing.T) {
	base := `export function Button({ icon, children }: ButtonProps) {
  return (
    <button className="inline-flex items-center rounded-md">
      {icon && <span>{icon}</span>}
      {children}
    </button>
  );
}
`
	local := `export function Button({ icon, children }: ButtonProps) {
  return (
    <button className="inline-flex items-center rounded-lg">
      {icon && <span>{icon}</span>}
      {children}
    </button>
  );
}
`
	upstream := `export function Button({ icon, children, iconRight }: ButtonProps) {
  return (
    <button className="inline-flex items-center rounded-md">
      {icon && <span>{icon}</span>}
      {children}
      {iconRight && <span aria-hidden="true">{iconRight}</span>}
    </button>
  );
}
`
	got := Merge(base, local, upstream)
	if !got.IsClean() {
		t.Fatalf("expected clean merge, got:\n%s", got.Summary())
	}
	if !strings.Contains(got.Text, "rounded-lg") {
		t.Error("merged text lost the local class change")
	}
	if !strings.Contains(got.Text, "iconRight &&") || !strings.Contains(got.Text, "children, iconRight }") {
		t.Error("merged text lost the upstream iconRight addition")
	}
	if HasMarkers(got.Text) {
		t.Error("clean merge contains conflict markers")
	}
}

func TestMerge_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	alphabet := []string{"a\n", "b\n", "c\n", "}\n", "d"}
	randomText := func() string {
		var sb strings.Builder
		n := rng.Intn(6)
		for i := 0; i < n; i++ {
			line := alphabet[rng.Intn(len(alphabet))]
			if !strings.HasSuffix(line, "\n") && i != n-1 {
				line += "\n"
			}
			sb.WriteString(line)
		}
		return sb.String()
	}

	for i := 0; i < 300; i++ {
		base, other := randomText(), randomText()

		if got := Merge(base, base, other); !got.IsClean() || got.Text != other {
			t.Fatalf("Merge(%q, base, %q) = %+v, want clean upstream", base, other, got)
		}
		if got := Merge(base, other, base); !got.IsClean() || got.Text != other {
			t.Fatalf("Merge(%q, %q, base) = %+v, want clean local", base, other, got)
		}

		local := randomText()
		got := Merge(base, local, other)
		if got.IsClean() && len(got.Regions) != 0 {
			t.Fatalf("clean outcome carries regions: %+v", got)
		}
		if !got.IsClean() && len(got.Regions) == 0 {
			t.Fatalf("conflicted outcome without regions: %+v", got)
		}
	}
}

func TestOutcomeSummary(t *testing.T) {
	o := Merge("X\n", "X-custom\n", "X-upstream\n")
	summary := o.Summary()
	if !strings.Contains(summary, "1 conflicting region") || !strings.Contains(summary, "base line 1") {
		t.Errorf("unexpected summary: %q", summary)
	}
	if Merge("a\n", "a\n", "b\n").Summary() != "" {
		t.Error("clean outcome should have an empty summary")
	}
}

func TestLineRangeString(t *testing.T) {
	tests := []struct {
		r    LineRange
		want string
	}{
		{LineRange{Start: 0, End: 1}, "line 1"},
		{LineRange{Start: 2, End: 5}, "lines 3-5"},
		{LineRange{Start: 4, End: 4}, "after line 4"},
	}
	for _, tt := range tests {
		if got := tt.r.String(); got != tt.want {
			t.Errorf("%+v.String() = %q, want %q", tt.r, got, tt.want)
		}
	}
}
