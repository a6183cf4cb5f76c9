// Package appctx provides a shared bootstrap helper for CLI commands.
// It centralizes config loading, logger construction, and opening the
// manifest, registry and history so commands only describe what they do.
package appctx

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lherron/vsds/internal/config"
	"github.com/lherron/vsds/internal/history"
	"github.com/lherron/vsds/internal/logging"
	"github.com/lherron/vsds/internal/manifest"
	"github.com/lherron/vsds/internal/migrate"
	"github.com/lherron/vsds/internal/reconcile"
	"github.com/lherron/vsds/internal/registry"
	"github.com/lherron/vsds/internal/render"
	"github.com/lherron/vsds/internal/snapshot"
	"github.com/lherron/vsds/internal/syntax"
	"github.com/lherron/vsds/internal/webhooks"
)

// App holds the shared application context for commands.
type App struct {
	// Config is the loaded configuration after flag overrides
	Config *config.Config

	Logger   *zap.Logger
	Renderer *render.Renderer

	// Manifest, Registry and Store are nil unless Options.NeedsProject is set
	Manifest *manifest.Manifest
	Registry *registry.Dir
	Store    *snapshot.Store

	// History is nil unless Options.NeedsHistory is set
	History *history.Recorder
}

// Close releases resources held by the App.
// Safe to call multiple times.
func (a *App) Close() {
	if a.History != nil {
		a.History.Close()
		a.History = nil
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
}

// Options configures the bootstrap behavior.
type Options struct {
	// NeedsProject loads the manifest and opens the registry.
	NeedsProject bool

	// NeedsHistory opens the history database, creating and upgrading it
	// when HistoryReadOnly is false.
	NeedsHistory    bool
	HistoryReadOnly bool
}

// ProjectOptions returns options for commands that read the project.
func ProjectOptions() Options {
	return Options{NeedsProject: true}
}

// RunFunc is the signature for command run functions.
type RunFunc func(app *App, cmd *cobra.Command, args []string) error

// WithApp wraps a command's run function with shared bootstrap logic.
// Resources are released automatically when the wrapped function returns.
func WithApp(opts Options, fn RunFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := Bootstrap(cmd, opts)
		if err != nil {
			return err
		}
		defer app.Close()

		return fn(app, cmd, args)
	}
}

// Bootstrap initializes the App according to the given options.
// Callers are responsible for calling App.Close() when done.
func Bootstrap(cmd *cobra.Command, opts Options) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}

	app := &App{Config: cfg}

	app.Logger, err = logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	format, err := render.ParseFormat(cfg.Output)
	if err != nil {
		return nil, err
	}
	app.Renderer = render.NewRenderer(cmd.OutOrStdout(), render.Options{Format: format})

	if opts.NeedsProject {
		if err := app.openProject(); err != nil {
			app.Close()
			return nil, err
		}
	}

	if opts.NeedsHistory {
		open := history.Open
		if opts.HistoryReadOnly {
			open = history.OpenExisting
		}
		rec, err := open(cfg.HistoryDB, app.Logger)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.History = rec
	}

	return app, nil
}

// applyFlags lets persistent flags override loaded configuration.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	if v := flagValue(cmd, "project"); v != "" {
		abs, err := filepath.Abs(v)
		if err != nil {
			return err
		}
		cfg.SetProjectRoot(abs)
	}
	if v := flagValue(cmd, "registry"); v != "" {
		abs, err := filepath.Abs(v)
		if err != nil {
			return err
		}
		cfg.RegistryDir = abs
	}
	if v := flagValue(cmd, "log-level"); v != "" {
		cfg.LogLevel = v
	}
	if v := flagValue(cmd, "output"); v != "" {
		cfg.Output = v
	}
	if f := cmd.Flag("json"); f != nil && f.Changed && f.Value.String() == "true" {
		cfg.Output = string(render.FormatJSON)
	}
	return cfg.Validate()
}

func flagValue(cmd *cobra.Command, name string) string {
	if f := cmd.Flag(name); f != nil {
		return f.Value.String()
	}
	return ""
}

func (a *App) openProject() error {
	m, err := manifest.Load(a.Config.ManifestPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("no %s found in %s: not a vsds project", manifest.DefaultFileName, a.Config.ProjectRoot)
		}
		return err
	}
	a.Manifest = m

	dir, err := a.registryDir()
	if err != nil {
		return err
	}
	reg, err := registry.Open(dir)
	if err != nil {
		return fmt.Errorf("failed to open registry: %w", err)
	}
	a.Registry = reg
	a.Store = snapshot.NewStore(filepath.Dir(m.Path()), reg)
	return nil
}

// registryDir prefers the configured directory, then the one the manifest
// names. A relative manifest entry is relative to the manifest itself.
func (a *App) registryDir() (string, error) {
	if a.Config.RegistryDir != "" {
		return a.Config.RegistryDir, nil
	}
	if a.Manifest.Registry == "" {
		return "", fmt.Errorf("no registry configured: set registry in %s, VSDS_REGISTRY_DIR or --registry", manifest.DefaultFileName)
	}
	if filepath.IsAbs(a.Manifest.Registry) {
		return a.Manifest.Registry, nil
	}
	return filepath.Join(filepath.Dir(a.Manifest.Path()), a.Manifest.Registry), nil
}

// Reconciler builds the AI adapter when reconciliation is enabled. It
// returns nil when disabled, in which case conflicts are skipped.
func (a *App) Reconciler(disabled bool) (migrate.Reconciler, error) {
	if disabled || !a.Config.AI.Enabled {
		return nil, nil
	}
	provider, err := reconcile.NewOpenAIProvider(reconcile.OpenAIConfig{
		APIKey:  a.Config.AI.APIKey,
		BaseURL: a.Config.AI.BaseURL,
		Model:   a.Config.AI.Model,
	})
	if err != nil {
		return nil, err
	}
	return reconcile.NewAdapter(provider, syntax.New(),
		reconcile.WithTimeout(a.Config.AI.Timeout),
		reconcile.WithLogger(a.Logger)), nil
}

// Observers returns the run observers the configuration asks for.
func (a *App) Observers() []migrate.Observer {
	var observers []migrate.Observer
	if a.History != nil {
		observers = append(observers, a.History)
	}
	if len(a.Config.WebhookURLs) > 0 {
		observers = append(observers, webhooks.New(a.Config.WebhookURLs, webhooks.WithLogger(a.Logger)))
	}
	return observers
}

// Migrator builds a migrator over the project.
func (a *App) Migrator(reconciler migrate.Reconciler, opts migrate.Options) *migrate.Migrator {
	if opts.Logger == nil {
		opts.Logger = a.Logger
	}
	if opts.Workers == 0 {
		opts.Workers = a.Config.Workers
	}
	return migrate.New(a.Store, a.Registry, a.Manifest, reconciler, opts)
}
