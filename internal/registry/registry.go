// Package registry resolves the newest upstream release of a component.
package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-version"
	"gopkg.in/yaml.v3"
)

// IndexFileName is the index at the root of a registry directory.
const IndexFileName = "registry.yaml"

// ErrUnknownComponent is returned for components missing from the index.
var ErrUnknownComponent = errors.New("component not found in registry")

// Release is one published component file.
type Release struct {
	Name    string
	Version string
	File    string
	Text    string
}

// Source provides upstream releases.
type Source interface {
	Latest(ctx context.Context, name string) (Release, error)
}

// Entry is the index record of one component.
type Entry struct {
	Version string `yaml:"version" validate:"required"`
	File    string `yaml:"file" validate:"required"`
}

// Index lists the latest release of every component in a registry.
type Index struct {
	Components map[string]Entry `yaml:"components" validate:"dive"`
}

// Dir is a registry laid out on disk as registry.yaml plus
// <name>/<file> release assets.
type Dir struct {
	root  string
	index Index
}

var validate = validator.New()

// Open reads the index of the registry rooted at root.
func Open(root string) (*Dir, error) {
	data, err := os.ReadFile(filepath.Join(root, IndexFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to read registry index: %w", err)
	}

	var index Index
	if err := yaml.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("failed to parse registry index: %w", err)
	}
	if err := validate.Struct(index); err != nil {
		return nil, fmt.Errorf("invalid registry index: %w", err)
	}
	for name, entry := range index.Components {
		if _, err := version.NewVersion(entry.Version); err != nil {
			return nil, fmt.Errorf("component %q has invalid version %q: %w", name, entry.Version, err)
		}
		if !filepath.IsLocal(filepath.FromSlash(entry.File)) {
			return nil, fmt.Errorf("component %q has invalid file %q", name, entry.File)
		}
	}

	return &Dir{root: root, index: index}, nil
}

// Root returns the registry directory.
func (d *Dir) Root() string {
	return d.root
}

// Latest reads the newest release of name.
func (d *Dir) Latest(ctx context.Context, name string) (Release, error) {
	if err := ctx.Err(); err != nil {
		return Release{}, err
	}

	entry, ok := d.index.Components[name]
	if !ok {
		return Release{}, fmt.Errorf("%w: %s", ErrUnknownComponent, name)
	}

	path := filepath.Join(d.root, name, filepath.FromSlash(entry.File))
	data, err := os.ReadFile(path)
	if err != nil {
		return Release{}, fmt.Errorf("failed to read release asset: %w", err)
	}

	return Release{
		Name:    name,
		Version: entry.Version,
		File:    entry.File,
		Text:    string(data),
	}, nil
}

// IsNewer reports whether latest is a newer version than installed.
func IsNewer(installed, latest string) (bool, error) {
	iv, err := version.NewVersion(installed)
	if err != nil {
		return false, fmt.Errorf("invalid installed version %q: %w", installed, err)
	}
	lv, err := version.NewVersion(latest)
	if err != nil {
		return false, fmt.Errorf("invalid upstream version %q: %w", latest, err)
	}
	return lv.GreaterThan(iv), nil
}
