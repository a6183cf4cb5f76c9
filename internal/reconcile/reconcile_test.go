package reconcile

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/lherron/vsds/internal/merge"
)

type fakeProvider struct {
	resp  Response
	err   error
	delay time.Duration
	calls int
}

func (f *fakeProvider) Reconcile(ctx context.Context, req Request) (Response, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return Response{}, ctx.Err()
		}
	}
	return f.resp, f.err
}

type fakeValidator struct {
	ok  bool
	err error
}

func (f fakeValidator) WellFormed(ctx context.Context, fileType, text string) (bool, error) {
	return f.ok, f.err
}

func conflictRequest() Request {
	base, local, upstream := "X\n", "X-custom\n", "X-upstream\n"
	return Request{
		ComponentName: "button",
		FileType:      "tsx",
		BaseText:      base,
		LocalText:     local,
		UpstreamText:  upstream,
		Regions:       merge.Merge(base, local, upstream).Regions,
	}
}

// markdownRequest conflicts below a setext heading whose "=======" underline
// is legitimate content.
func markdownRequest() Request {
	base := "Title\n=======\n\nX\n"
	local := "Title\n=======\n\nX-custom\n"
	upstream := "Title\n=======\n\nX-upstream\n"
	return Request{
		ComponentName: "button",
		FileType:      "text",
		BaseText:      base,
		LocalText:     local,
		UpstreamText:  upstream,
		Regions:       merge.Merge(base, local, upstream).Regions,
	}
}

func TestAdapter_AcceptsContentSeparatorLine(t *testing.T) {
	want := "Title\n=======\n\nX-custom-upstream\n"
	a := NewAdapter(&fakeProvider{resp: Response{MergedText: want}}, fakeValidator{ok: true})

	got, err := a.Reconcile(context.Background(), markdownRequest())
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if got != want {
		t.Errorf("merged text = %q, want %q", got, want)
	}
}

func TestAdapter_AcceptsValidCandidate(t *testing.T) {
	provider := &fakeProvider{resp: Response{MergedText: "X-custom-upstream\n"}}
	a := NewAdapter(provider, fakeValidator{ok: true}, WithLogger(zaptest.NewLogger(t)))

	got, err := a.Reconcile(context.Background(), conflictRequest())
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if got != "X-custom-upstream\n" {
		t.Errorf("merged text = %q", got)
	}
	if provider.calls != 1 {
		t.Errorf("provider called %d times, want 1", provider.calls)
	}
}

func TestAdapter_Failures(t *testing.T) {
	tests := []struct {
		name      string
		request   func() Request
		provider  *fakeProvider
		validator SyntaxValidator
		timeout   time.Duration
		want      error
	}{
		{
			name:      "leftover conflict markers",
			provider:  &fakeProvider{resp: Response{MergedText: "<<<<<<< local\nX-custom\n=======\nX-upstream\n>>>>>>> upstream\n"}},
			validator: fakeValidator{ok: true},
			want:      ErrInvalid,
		},
		{
			name:      "indented conflict markers",
			request:   markdownRequest,
			provider:  &fakeProvider{resp: Response{MergedText: "Title\n=======\n\n  <<<<<<< local\n  X-custom\n  =======\n  X-upstream\n  >>>>>>> upstream\n"}},
			validator: fakeValidator{ok: true},
			want:      ErrInvalid,
		},
		{
			name:      "truncated response",
			provider:  &fakeProvider{resp: Response{MergedText: ""}},
			validator: fakeValidator{ok: true},
			want:      ErrInvalid,
		},
		{
			name:      "runaway response",
			provider:  &fakeProvider{resp: Response{MergedText: strings.Repeat("line\n", 50)}},
			validator: fakeValidator{ok: true},
			want:      ErrInvalid,
		},
		{
			name:      "not well formed",
			provider:  &fakeProvider{resp: Response{MergedText: "X-merged\n"}},
			validator: fakeValidator{ok: false},
			want:      ErrInvalid,
		},
		{
			name:      "validator error",
			provider:  &fakeProvider{resp: Response{MergedText: "X-merged\n"}},
			validator: fakeValidator{err: errors.New("parser crashed")},
			want:      ErrInvalid,
		},
		{
			name:      "provider declines",
			provider:  &fakeProvider{resp: Response{Declined: true, Reason: "too risky"}},
			validator: fakeValidator{ok: true},
			want:      ErrRejected,
		},
		{
			name:      "provider unreachable",
			provider:  &fakeProvider{err: errors.New("connection refused")},
			validator: fakeValidator{ok: true},
			want:      ErrUnavailable,
		},
		{
			name:      "provider times out",
			provider:  &fakeProvider{delay: time.Second, resp: Response{MergedText: "X\n"}},
			validator: fakeValidator{ok: true},
			timeout:   10 * time.Millisecond,
			want:      ErrUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := conflictRequest()
			if tt.request != nil {
				req = tt.request()
			}
			a := NewAdapter(tt.provider, tt.validator, WithTimeout(tt.timeout))
			got, err := a.Reconcile(context.Background(), req)
			if err == nil {
				t.Fatalf("expected error, got merged text %q", got)
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			var recErr *Error
			if !errors.As(err, &recErr) || recErr.Component != "button" {
				t.Errorf("expected *Error for button, got %#v", err)
			}
			if got != "" {
				t.Errorf("failed reconciliation returned text %q", got)
			}
		})
	}
}

func TestAdapter_NilValidatorStillChecksStructure(t *testing.T) {
	a := NewAdapter(&fakeProvider{resp: Response{MergedText: "=======\n"}}, nil)
	if _, err := a.Reconcile(context.Background(), conflictRequest()); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}

	a = NewAdapter(&fakeProvider{resp: Response{MergedText: "X-merged\n"}}, nil)
	if _, err := a.Reconcile(context.Background(), conflictRequest()); err != nil {
		t.Errorf("expected acceptance without validator, got %v", err)
	}
}

func TestErrorIs(t *testing.T) {
	err := &Error{Kind: KindRejected, Component: "button", Err: errors.New("no")}
	if !errors.Is(err, ErrRejected) {
		t.Error("expected ErrRejected match")
	}
	if errors.Is(err, ErrUnavailable) || errors.Is(err, ErrInvalid) {
		t.Error("matched the wrong sentinel")
	}
	if !strings.Contains(err.Error(), "rejected") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestLineBounds(t *testing.T) {
	lo, hi := LineBounds("a\nb\nc\nd\n", "a\nb\n")
	if lo != 2 || hi != 6 {
		t.Errorf("LineBounds = (%d, %d), want (2, 6)", lo, hi)
	}
	lo, hi = LineBounds("", "")
	if lo != 0 || hi != 0 {
		t.Errorf("LineBounds of empty texts = (%d, %d)", lo, hi)
	}
}
