// Package reconcile asks an external capability to resolve merge conflicts
// and validates the candidate before anyone is allowed to write it.
//
// The Adapter never returns an unvalidated text: every failure path is an
// *Error classified as Unavailable, Invalid or Rejected.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lherron/vsds/internal/diff"
	"github.com/lherron/vsds/internal/merge"
)

// Kind classifies a reconciliation failure.
type Kind int

const (
	KindUnavailable Kind = iota + 1
	KindInvalid
	KindRejected
)

func (k Kind) String() string {
	switch k {
	case KindUnavailable:
		return "unavailable"
	case KindInvalid:
		return "invalid"
	case KindRejected:
		return "rejected"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Sentinels for errors.Is.
var (
	ErrUnavailable = errors.New("reconciliation unavailable")
	ErrInvalid     = errors.New("reconciliation result invalid")
	ErrRejected    = errors.New("reconciliation rejected")
)

// Error is returned for every failed reconciliation.
type Error struct {
	Kind      Kind
	Component string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: reconciliation %s: %v", e.Component, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnavailable:
		return e.Kind == KindUnavailable
	case ErrInvalid:
		return e.Kind == KindInvalid
	case ErrRejected:
		return e.Kind == KindRejected
	}
	return false
}

// Request is sent to the provider.
type Request struct {
	ComponentName string
	FileType      string
	BaseText      string
	LocalText     string
	UpstreamText  string
	Regions       []merge.Region
}

// Response is the provider's answer. Declined means the provider explicitly
// refused to produce a merge.
type Response struct {
	MergedText string
	Declined   bool
	Reason     string
}

// Provider is the external capability that produces merged text.
type Provider interface {
	Reconcile(ctx context.Context, req Request) (Response, error)
}

// SyntaxValidator reports whether a candidate is well-formed for its file
// type.
type SyntaxValidator interface {
	WellFormed(ctx context.Context, fileType, text string) (bool, error)
}

// Adapter wraps a Provider with a timeout and structural validation.
type Adapter struct {
	provider  Provider
	validator SyntaxValidator
	timeout   time.Duration
	logger    *zap.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithTimeout bounds each provider call. Zero means no bound beyond the
// caller's context.
func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) {
		a.timeout = d
	}
}

// WithLogger sets the adapter's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// NewAdapter builds an Adapter. validator may be nil, in which case only
// the marker and size checks apply.
func NewAdapter(provider Provider, validator SyntaxValidator, opts ...Option) *Adapter {
	a := &Adapter{
		provider:  provider,
		validator: validator,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Reconcile requests a merged text and returns it only if it passes
// validation.
func (a *Adapter) Reconcile(ctx context.Context, req Request) (string, error) {
	callCtx := ctx
	if a.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := a.provider.Reconcile(callCtx, req)
	if err != nil {
		kind := KindUnavailable
		switch {
		case errors.Is(err, ErrRejected):
			kind = KindRejected
		case errors.Is(err, ErrInvalid):
			kind = KindInvalid
		}
		a.logger.Warn("reconciliation call failed",
			zap.String("component", req.ComponentName),
			zap.Stringer("kind", kind),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", &Error{Kind: kind, Component: req.ComponentName, Err: err}
	}

	if resp.Declined {
		reason := resp.Reason
		if reason == "" {
			reason = "provider declined without a reason"
		}
		return "", &Error{Kind: KindRejected, Component: req.ComponentName, Err: errors.New(reason)}
	}

	if err := a.Validate(ctx, req, resp.MergedText); err != nil {
		return "", &Error{Kind: KindInvalid, Component: req.ComponentName, Err: err}
	}

	a.logger.Debug("reconciliation accepted",
		zap.String("component", req.ComponentName),
		zap.Int("regions", len(req.Regions)),
		zap.Duration("elapsed", time.Since(start)))
	return resp.MergedText, nil
}

// Validate runs the structural checks on a candidate merge.
func (a *Adapter) Validate(ctx context.Context, req Request, candidate string) error {
	if merge.HasMarkers(candidate, req.LocalText, req.UpstreamText) {
		return errors.New("candidate contains conflict markers")
	}

	lo, hi := LineBounds(req.LocalText, req.UpstreamText)
	n := len(diff.SplitLines(candidate))
	if n < lo || n > hi {
		return fmt.Errorf("candidate has %d lines, expected between %d and %d", n, lo, hi)
	}

	if a.validator == nil {
		return nil
	}
	ok, err := a.validator.WellFormed(ctx, req.FileType, candidate)
	if err != nil {
		return fmt.Errorf("syntax check failed: %w", err)
	}
	if !ok {
		return fmt.Errorf("candidate is not well-formed %s", req.FileType)
	}
	return nil
}

// LineBounds returns the accepted line-count range for a merge of local and
// upstream: at least half of the longer side and at most both sides
// combined.
func LineBounds(local, upstream string) (int, int) {
	l := len(diff.SplitLines(local))
	u := len(diff.SplitLines(upstream))
	longest := max(l, u)
	return (longest + 1) / 2, l + u
}
