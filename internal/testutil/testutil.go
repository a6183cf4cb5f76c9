// Package testutil builds throwaway projects and registries for tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/lherron/vsds/internal/manifest"
	"github.com/lherron/vsds/internal/registry"
	"github.com/lherron/vsds/internal/snapshot"
)

// Project is a temporary project root with a manifest and a sibling
// registry directory.
type Project struct {
	Root        string
	RegistryDir string

	t     *testing.T
	index registry.Index
}

// NewProject creates an empty project and registry.
func NewProject(t *testing.T) *Project {
	t.Helper()
	dir := t.TempDir()
	p := &Project{
		Root:        filepath.Join(dir, "app"),
		RegistryDir: filepath.Join(dir, "registry"),
		t:           t,
		index:       registry.Index{Components: map[string]registry.Entry{}},
	}
	for _, d := range []string{p.Root, p.RegistryDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatalf("Failed to create %s: %v", d, err)
		}
	}
	m := manifest.New(p.ManifestPath())
	m.Registry = p.RegistryDir
	if err := m.Save(); err != nil {
		t.Fatalf("Failed to write manifest: %v", err)
	}
	p.writeIndex()
	return p
}

// ManifestPath returns the project's manifest file.
func (p *Project) ManifestPath() string {
	return filepath.Join(p.Root, manifest.DefaultFileName)
}

// Install records name as installed at version from baseText, and writes
// localText as the developer's current copy.
func (p *Project) Install(name, relPath, version, baseText, localText string) {
	p.t.Helper()
	WriteFile(p.t, p.Root, relPath, localText)
	WriteFile(p.t, p.Root, filepath.Join(snapshot.BaseDir, name), baseText)

	m := p.Manifest()
	err := m.Set(manifest.Record{
		Name:           name,
		Path:           filepath.ToSlash(relPath),
		Version:        version,
		Checksum:       manifest.Checksum([]byte(baseText)),
		ModifiedByUser: baseText != localText,
	})
	if err != nil {
		p.t.Fatalf("Failed to record %s: %v", name, err)
	}
	if err := m.Save(); err != nil {
		p.t.Fatalf("Failed to save manifest: %v", err)
	}
}

// Publish makes text the latest upstream release of name.
func (p *Project) Publish(name, version, file, text string) {
	p.t.Helper()
	WriteFile(p.t, p.RegistryDir, filepath.Join(name, file), text)
	p.index.Components[name] = registry.Entry{Version: version, File: file}
	p.writeIndex()
}

// Manifest loads the project's manifest from disk.
func (p *Project) Manifest() *manifest.Manifest {
	p.t.Helper()
	m, err := manifest.Load(p.ManifestPath())
	if err != nil {
		p.t.Fatalf("Failed to load manifest: %v", err)
	}
	return m
}

// Registry opens the project's registry.
func (p *Project) Registry() *registry.Dir {
	p.t.Helper()
	dir, err := registry.Open(p.RegistryDir)
	if err != nil {
		p.t.Fatalf("Failed to open registry: %v", err)
	}
	return dir
}

// Store returns a snapshot store over the project and its registry.
func (p *Project) Store() *snapshot.Store {
	p.t.Helper()
	return snapshot.NewStore(p.Root, p.Registry())
}

// ReadLocal returns the current contents of a project file.
func (p *Project) ReadLocal(relPath string) string {
	p.t.Helper()
	return ReadFile(p.t, filepath.Join(p.Root, relPath))
}

func (p *Project) writeIndex() {
	p.t.Helper()
	data, err := yaml.Marshal(p.index)
	if err != nil {
		p.t.Fatalf("Failed to encode registry index: %v", err)
	}
	WriteFile(p.t, p.RegistryDir, registry.IndexFileName, string(data))
}

// WriteFile writes content to dir/filename, creating parent directories.
func WriteFile(t *testing.T, dir, filename, content string) string {
	t.Helper()
	path := filepath.Join(dir, filename)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
	return path
}

// ReadFile reads content from a file
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(data)
}
