// Package snapshot loads the three texts a migration works from: the base
// snapshot recorded at install time, the developer's local copy, and the
// newest upstream release.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lherron/vsds/internal/fsutil"
	"github.com/lherron/vsds/internal/manifest"
	"github.com/lherron/vsds/internal/registry"
)

// BaseDir is where base snapshots live, relative to the project root.
const BaseDir = ".vsds/base"

// Source names the text a ReadError refers to.
type Source string

const (
	SourceBase     Source = "base"
	SourceLocal    Source = "local"
	SourceUpstream Source = "upstream"
)

// ReadError means one of a component's texts could not be read. It is fatal
// for that component only.
type ReadError struct {
	Component string
	Source    Source
	Err       error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("%s: read %s: %v", e.Component, e.Source, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// Component is everything a single migration needs. It is not modified after
// Load returns.
type Component struct {
	Name             string
	Path             string
	InstalledVersion string
	BaseText         string
	BaseChecksum     string
	LocalText        string
	LocalChecksum    string
	UpstreamText     string
	UpstreamVersion  string
	UpstreamFile     string
	Mode             os.FileMode
}

// Modified reports whether the local copy diverges from the base snapshot.
func (c *Component) Modified() bool {
	return c.LocalChecksum != c.BaseChecksum
}

// Store reads and writes component texts under a project root.
type Store struct {
	root     string
	upstream registry.Source
}

// NewStore returns a store rooted at the project directory.
func NewStore(root string, upstream registry.Source) *Store {
	return &Store{root: root, upstream: upstream}
}

// Root returns the project root.
func (s *Store) Root() string {
	return s.root
}

// LocalPath returns the absolute path of a component's installed file.
func (s *Store) LocalPath(rec manifest.Record) string {
	return filepath.Join(s.root, filepath.FromSlash(rec.Path))
}

// BasePath returns the path of a component's base snapshot.
func (s *Store) BasePath(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(BaseDir), name)
}

// Load reads the three texts of rec. Checksums are always computed from the
// bytes just read.
func (s *Store) Load(ctx context.Context, rec manifest.Record) (*Component, error) {
	localPath := s.LocalPath(rec)
	info, err := os.Stat(localPath)
	if err != nil {
		return nil, &ReadError{Component: rec.Name, Source: SourceLocal, Err: err}
	}
	if info.IsDir() {
		return nil, &ReadError{Component: rec.Name, Source: SourceLocal, Err: fmt.Errorf("%s is a directory", rec.Path)}
	}
	localData, err := os.ReadFile(localPath)
	if err != nil {
		return nil, &ReadError{Component: rec.Name, Source: SourceLocal, Err: err}
	}
	localChecksum := manifest.Checksum(localData)

	baseText, err := s.readBase(rec, localData, localChecksum)
	if err != nil {
		return nil, &ReadError{Component: rec.Name, Source: SourceBase, Err: err}
	}

	release, err := s.upstream.Latest(ctx, rec.Name)
	if err != nil {
		return nil, &ReadError{Component: rec.Name, Source: SourceUpstream, Err: err}
	}

	return &Component{
		Name:             rec.Name,
		Path:             rec.Path,
		InstalledVersion: rec.Version,
		BaseText:         baseText,
		BaseChecksum:     rec.Checksum,
		LocalText:        string(localData),
		LocalChecksum:    localChecksum,
		UpstreamText:     release.Text,
		UpstreamVersion:  release.Version,
		UpstreamFile:     release.File,
		Mode:             info.Mode().Perm(),
	}, nil
}

// readBase returns the base snapshot and checks it against the recorded
// checksum. A missing snapshot is recovered from the local file when the
// local file is still unmodified.
func (s *Store) readBase(rec manifest.Record, localData []byte, localChecksum string) (string, error) {
	data, err := os.ReadFile(s.BasePath(rec.Name))
	if errors.Is(err, os.ErrNotExist) {
		if localChecksum == rec.Checksum {
			return string(localData), nil
		}
		return "", fmt.Errorf("base snapshot missing and local file has been modified: %w", err)
	}
	if err != nil {
		return "", err
	}
	if got := manifest.Checksum(data); got != rec.Checksum {
		return "", fmt.Errorf("base snapshot checksum %s does not match manifest %s", got, rec.Checksum)
	}
	return string(data), nil
}

// WriteLocal atomically replaces the component's installed file, keeping its
// permissions.
func (s *Store) WriteLocal(c *Component, text string) error {
	mode := c.Mode
	if mode == 0 {
		mode = 0644
	}
	if err := fsutil.WriteFileAtomic(filepath.Join(s.root, filepath.FromSlash(c.Path)), []byte(text), mode); err != nil {
		return fmt.Errorf("%s: write local file: %w", c.Name, err)
	}
	return nil
}

// WriteBase records text as the component's new base snapshot.
func (s *Store) WriteBase(name, text string) error {
	if err := fsutil.WriteFileAtomic(s.BasePath(name), []byte(text), 0644); err != nil {
		return fmt.Errorf("%s: write base snapshot: %w", name, err)
	}
	return nil
}
