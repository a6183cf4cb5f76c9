// Package webhooks posts migration outcomes to the URLs configured in
// webhook_urls. Delivery is best effort: failures are logged and never
// affect the run.
package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lherron/vsds/internal/migrate"
)

const (
	defaultTimeout     = 500 * time.Millisecond
	defaultConcurrency = 4
)

// Event names carried in Payload.Event.
const (
	EventComponentResolved = "component.resolved"
	EventRunFinished       = "run.finished"
)

// Payload is the webhook body.
type Payload struct {
	Event          string         `json:"event"`
	RunID          string         `json:"run_id"`
	Component      string         `json:"component,omitempty"`
	Path           string         `json:"path,omitempty"`
	FromVersion    string         `json:"from_version,omitempty"`
	ToVersion      string         `json:"to_version,omitempty"`
	Classification string         `json:"classification,omitempty"`
	Resolution     string         `json:"resolution,omitempty"`
	Conflicts      int            `json:"conflicts,omitempty"`
	Reason         string         `json:"reason,omitempty"`
	Error          string         `json:"error,omitempty"`
	Summary        map[string]int `json:"summary,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
}

// Notifier is a migrate.Observer that posts each resolution. Dry runs are
// not reported.
type Notifier struct {
	urls        []string
	client      *http.Client
	logger      *zap.Logger
	concurrency int
	now         func() time.Time
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithClient replaces the HTTP client. Its timeout bounds each delivery.
func WithClient(c *http.Client) Option {
	return func(n *Notifier) {
		n.client = c
	}
}

// WithLogger sets the logger used for delivery failures.
func WithLogger(logger *zap.Logger) Option {
	return func(n *Notifier) {
		n.logger = logger
	}
}

// New returns a Notifier for the given URL templates. Templates may contain
// {component} and {run_id}.
func New(urls []string, opts ...Option) *Notifier {
	n := &Notifier{
		urls:        urls,
		client:      &http.Client{Timeout: defaultTimeout},
		logger:      zap.NewNop(),
		concurrency: defaultConcurrency,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// RunStarted implements migrate.Observer.
func (n *Notifier) RunStarted(ctx context.Context, run migrate.Run) {}

// ComponentResolved implements migrate.Observer.
func (n *Notifier) ComponentResolved(ctx context.Context, run migrate.Run, res migrate.Result) {
	if run.DryRun {
		return
	}
	payload := Payload{
		Event:          EventComponentResolved,
		RunID:          run.ID,
		Component:      res.Component,
		Path:           res.Path,
		FromVersion:    res.FromVersion,
		ToVersion:      res.ToVersion,
		Classification: res.Classification.String(),
		Resolution:     res.Resolution.String(),
		Conflicts:      res.Conflicts(),
		Reason:         res.Reason,
		Timestamp:      n.now().UTC(),
	}
	if res.Err != nil {
		payload.Error = res.Err.Error()
	}
	n.Dispatch(ctx, payload)
}

// RunFinished implements migrate.Observer.
func (n *Notifier) RunFinished(ctx context.Context, run migrate.Run, report *migrate.Report, err error) {
	if run.DryRun {
		return
	}
	payload := Payload{
		Event:     EventRunFinished,
		RunID:     run.ID,
		Summary:   map[string]int{},
		Timestamp: n.now().UTC(),
	}
	for _, res := range []migrate.Resolution{migrate.Overwritten, migrate.CleanMerged, migrate.AIReconciled, migrate.Skipped} {
		payload.Summary[res.String()] = report.Count(res)
	}
	if err != nil {
		payload.Error = err.Error()
	}
	n.Dispatch(ctx, payload)
}

// Dispatch posts payload to every resolved target and waits for delivery.
// Cancellation of ctx does not stop delivery; each request is bounded by
// the client timeout.
func (n *Notifier) Dispatch(ctx context.Context, payload Payload) {
	urls := n.Targets(payload)
	if len(urls) == 0 {
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		n.logger.Warn("webhooks: failed to encode payload", zap.Error(err))
		return
	}

	workers := min(n.concurrency, len(urls))
	sendCtx := context.WithoutCancel(ctx)

	jobs := make(chan string)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for endpoint := range jobs {
				n.send(sendCtx, endpoint, body)
			}
		}()
	}

	for _, endpoint := range urls {
		jobs <- endpoint
	}
	close(jobs)
	wg.Wait()
}

// Targets templates, normalizes, and de-dupes the configured URLs for payload.
func (n *Notifier) Targets(payload Payload) []string {
	if len(n.urls) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(n.urls))
	var normalized []string

	for _, raw := range n.urls {
		templated := strings.TrimSpace(applyTemplate(strings.TrimSpace(raw), payload))
		templated = strings.TrimRight(templated, "/")
		if templated == "" {
			continue
		}
		if !isValidWebhookURL(templated) {
			n.logger.Warn("webhooks: skipping invalid url", zap.String("url", templated))
			continue
		}
		if _, ok := seen[templated]; ok {
			continue
		}
		seen[templated] = struct{}{}
		normalized = append(normalized, templated)
	}

	return normalized
}

func applyTemplate(raw string, payload Payload) string {
	result := strings.ReplaceAll(raw, "{component}", payload.Component)
	result = strings.ReplaceAll(result, "{run_id}", payload.RunID)
	return result
}

func isValidWebhookURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	return parsed.Host != ""
}

func (n *Notifier) send(ctx context.Context, endpoint string, body []byte) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		n.logger.Warn("webhooks: build request failed", zap.String("url", endpoint), zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Warn("webhooks: request failed", zap.String("url", endpoint), zap.Error(err))
		return
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 300 {
		n.logger.Warn("webhooks: unexpected status",
			zap.String("url", endpoint),
			zap.Int("status", resp.StatusCode))
	}
}
