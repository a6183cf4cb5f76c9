package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	manifestFileName = "vsds.yaml"
	historyPath      = ".vsds/history.db"
)

// AIConfig configures the optional reconciliation provider.
type AIConfig struct {
	Enabled bool          `yaml:"enabled"`
	Model   string        `yaml:"model"`
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// Config represents the application configuration
type Config struct {
	ProjectRoot  string   `yaml:"project_root"`
	ManifestPath string   `yaml:"manifest_path"`
	RegistryDir  string   `yaml:"registry_dir"`
	HistoryDB    string   `yaml:"history_db"`
	Workers      int      `yaml:"workers"`
	LogLevel     string   `yaml:"log_level"`
	LogFormat    string   `yaml:"log_format"`
	Output       string   `yaml:"output"`
	AI           AIConfig `yaml:"ai"`
	WebhookURLs  []string `yaml:"webhook_urls"`
}

// Load loads configuration from multiple sources with precedence:
// 1. Environment variables
// 2. ./.env.local (dotenv) - walks up parent directories to find it
// 3. ~/.config/vsds/config.yaml (YAML)
func Load() (*Config, error) {
	cfg := &Config{
		Workers:   4,
		LogLevel:  "warn",
		LogFormat: "console",
		Output:    "table",
		AI: AIConfig{
			Timeout: 60 * time.Second,
		},
	}

	// Load .env.local if it exists (walking up parent directories)
	if envPath := findEnvLocal(); envPath != "" {
		_ = godotenv.Load(envPath)
	}

	// The YAML config is optional; only a malformed file is an error.
	if err := loadYAMLConfig(cfg); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if cfg.ProjectRoot == "" {
		cfg.ProjectRoot = findProjectRoot()
	}
	cfg.ManifestPath = resolve(cfg.ProjectRoot, cfg.ManifestPath, manifestFileName)
	cfg.HistoryDB = resolve(cfg.ProjectRoot, cfg.HistoryDB, historyPath)
	if cfg.RegistryDir != "" {
		cfg.RegistryDir = resolve(cfg.ProjectRoot, cfg.RegistryDir, "")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetProjectRoot moves the project root. Paths that were defaulted relative
// to the previous root follow it; explicitly configured paths are kept.
func (c *Config) SetProjectRoot(root string) {
	rebase := func(path, fallback string) string {
		if path == filepath.Join(c.ProjectRoot, fallback) {
			return filepath.Join(root, fallback)
		}
		return path
	}
	c.ManifestPath = rebase(c.ManifestPath, manifestFileName)
	c.HistoryDB = rebase(c.HistoryDB, historyPath)
	c.ProjectRoot = root
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("VSDS_PROJECT_ROOT"); v != "" {
		cfg.ProjectRoot = v
	}
	if v := os.Getenv("VSDS_MANIFEST_PATH"); v != "" {
		cfg.ManifestPath = v
	}
	if v := os.Getenv("VSDS_REGISTRY_DIR"); v != "" {
		cfg.RegistryDir = v
	}
	if v := os.Getenv("VSDS_HISTORY_DB"); v != "" {
		cfg.HistoryDB = v
	}
	if v := os.Getenv("VSDS_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid VSDS_WORKERS %q: %w", v, err)
		}
		cfg.Workers = n
	}
	if v := os.Getenv("VSDS_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("VSDS_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("VSDS_OUTPUT"); v != "" {
		cfg.Output = v
	}
	if v := os.Getenv("VSDS_AI_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid VSDS_AI_ENABLED %q: %w", v, err)
		}
		cfg.AI.Enabled = enabled
	}
	if v := os.Getenv("VSDS_AI_MODEL"); v != "" {
		cfg.AI.Model = v
	}
	if v := os.Getenv("VSDS_AI_BASE_URL"); v != "" {
		cfg.AI.BaseURL = v
	}
	if v := getEnvOrFile("VSDS_AI_API_KEY", "VSDS_AI_API_KEY_FILE"); v != "" {
		cfg.AI.APIKey = v
	}
	if v := os.Getenv("VSDS_AI_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid VSDS_AI_TIMEOUT %q: %w", v, err)
		}
		cfg.AI.Timeout = d
	}
	if v := os.Getenv("VSDS_WEBHOOK_URLS"); v != "" {
		cfg.WebhookURLs = splitList(v)
	}
	return nil
}

// Validate checks values that would otherwise fail later in confusing ways.
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	switch c.Output {
	case "table", "json", "yaml":
	default:
		return fmt.Errorf("unknown output format %q (want table, json or yaml)", c.Output)
	}
	if c.AI.Timeout < 0 {
		return fmt.Errorf("ai.timeout must not be negative")
	}
	if c.AI.Enabled && c.AI.APIKey == "" {
		return fmt.Errorf("ai.enabled requires an API key (set VSDS_AI_API_KEY or VSDS_AI_API_KEY_FILE)")
	}
	return nil
}

// loadYAMLConfig loads configuration from ~/.config/vsds/config.yaml
func loadYAMLConfig(cfg *Config) error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	configPath := filepath.Join(homeDir, ".config", "vsds", "config.yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse %s: %w", configPath, err)
	}
	return nil
}

// getEnvOrFile gets an environment variable value, or reads it from a file
// if the _FILE variant is set
func getEnvOrFile(envVar, fileVar string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}

	if filePath := os.Getenv(fileVar); filePath != "" {
		data, err := os.ReadFile(filePath)
		if err == nil {
			return strings.TrimSpace(string(data))
		}
	}

	return ""
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' || r == '\n' }) {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func resolve(root, path, fallback string) string {
	if path == "" {
		path = fallback
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// findEnvLocal searches for .env.local starting from cwd and walking up
// parent directories. Stops at the user's home directory.
// Returns the path to .env.local if found, empty string otherwise.
func findEnvLocal() string {
	return findUpward(".env.local")
}

// findProjectRoot returns the nearest directory holding a manifest, or the
// current directory when there is none.
func findProjectRoot() string {
	if path := findUpward(manifestFileName); path != "" {
		return filepath.Dir(path)
	}
	if cwd, err := os.Getwd(); err == nil {
		return cwd
	}
	return "."
}

func findUpward(name string) string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// If we can't get home dir, just check cwd
		if _, err := os.Stat(name); err == nil {
			return name
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	homeDir = filepath.Clean(homeDir)
	dir := filepath.Clean(cwd)

	for {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}

		if dir == homeDir {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}
