// Package manifest reads and atomically rewrites the project's component
// manifest (vsds.yaml). A Manifest is not safe for concurrent use; callers
// that update it from several goroutines must serialize access.
package manifest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/lherron/vsds/internal/fsutil"
)

const (
	// SchemaVersion is the manifest format written by this build.
	SchemaVersion = 1

	// DefaultFileName is the manifest name at the project root.
	DefaultFileName = "vsds.yaml"
)

var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// Record is the persisted state of one installed component.
type Record struct {
	Name           string    `yaml:"-" validate:"required,component_name"`
	Path           string    `yaml:"path" validate:"required"`
	Version        string    `yaml:"version" validate:"required"`
	Checksum       string    `yaml:"checksum" validate:"required,startswith=sha256:"`
	ModifiedByUser bool      `yaml:"modified_by_user"`
	UpdatedAt      time.Time `yaml:"updated_at,omitempty"`
}

// Manifest maps component names to their records.
type Manifest struct {
	SchemaVersion int                `yaml:"schema_version"`
	Registry      string             `yaml:"registry,omitempty"`
	Components    map[string]*Record `yaml:"components"`

	path string
}

// WriteError reports a failed manifest save. The file on disk still holds
// the previous manifest.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write manifest %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("component_name", func(fl validator.FieldLevel) bool {
		return namePattern.MatchString(fl.Field().String())
	})
	return v
}

// New returns an empty manifest that will be saved to path.
func New(path string) *Manifest {
	return &Manifest{
		SchemaVersion: SchemaVersion,
		Components:    map[string]*Record{},
		path:          path,
	}
}

// Load reads and validates the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	m := New(path)
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	if m.SchemaVersion == 0 {
		m.SchemaVersion = SchemaVersion
	}
	if m.SchemaVersion > SchemaVersion {
		return nil, fmt.Errorf("manifest schema version %d is newer than supported version %d", m.SchemaVersion, SchemaVersion)
	}
	if m.Components == nil {
		m.Components = map[string]*Record{}
	}

	for name, rec := range m.Components {
		if rec == nil {
			return nil, fmt.Errorf("component %q has an empty record", name)
		}
		rec.Name = name
		if err := Validate(*rec); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Validate checks a record's required fields.
func Validate(rec Record) error {
	if err := validate.Struct(rec); err != nil {
		return fmt.Errorf("invalid manifest record %q: %w", rec.Name, err)
	}
	if !filepath.IsLocal(filepath.FromSlash(rec.Path)) {
		return fmt.Errorf("invalid manifest record %q: path %q must be relative to the project root", rec.Name, rec.Path)
	}
	return nil
}

// Path returns the file the manifest is saved to.
func (m *Manifest) Path() string {
	return m.path
}

// Names returns the component names in sorted order.
func (m *Manifest) Names() []string {
	names := make([]string, 0, len(m.Components))
	for name := range m.Components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns a copy of the record for name.
func (m *Manifest) Get(name string) (Record, bool) {
	rec, ok := m.Components[name]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Set stores a copy of rec.
func (m *Manifest) Set(rec Record) error {
	if err := Validate(rec); err != nil {
		return err
	}
	m.Components[rec.Name] = &rec
	return nil
}

// Save rewrites the manifest atomically. On failure the previous file is
// left untouched and a *WriteError is returned.
func (m *Manifest) Save() error {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(m); err != nil {
		return &WriteError{Path: m.path, Err: err}
	}
	if err := encoder.Close(); err != nil {
		return &WriteError{Path: m.path, Err: err}
	}

	perm, err := fsutil.FileMode(m.path, 0644)
	if err != nil {
		return &WriteError{Path: m.path, Err: err}
	}
	if err := fsutil.WriteFileAtomic(m.path, buf.Bytes(), perm); err != nil {
		return &WriteError{Path: m.path, Err: err}
	}
	return nil
}

// Checksum returns the content checksum used throughout the manifest,
// in "sha256:<hex>" form.
func Checksum(data []byte) string {
	hash := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(hash[:])
}
