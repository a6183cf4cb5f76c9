package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleManifest = `schema_version: 1
registry: ./registry
components:
  button:
    path: src/components/vsds/Button.tsx
    version: 1.0.0
    checksum: sha256:abc
    modified_by_user: true
  dialog:
    path: src/components/vsds/Dialog.tsx
    version: 0.9.0
    checksum: sha256:def
`

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultFileName)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	m, err := Load(writeManifest(t, sampleManifest))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := m.Names(); len(got) != 2 || got[0] != "button" || got[1] != "dialog" {
		t.Fatalf("unexpected names: %v", got)
	}
	rec, ok := m.Get("button")
	if !ok {
		t.Fatal("button record missing")
	}
	if rec.Name != "button" || rec.Version != "1.0.0" || !rec.ModifiedByUser {
		t.Errorf("unexpected record: %+v", rec)
	}
	if m.Registry != "./registry" {
		t.Errorf("registry = %q", m.Registry)
	}
}

func TestLoad_RejectsInvalidRecords(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing checksum",
			content: `components:
  button:
    path: Button.tsx
    version: 1.0.0
`,
			wantErr: "button",
		},
		{
			name: "bad checksum prefix",
			content: `components:
  button:
    path: Button.tsx
    version: 1.0.0
    checksum: md5:abc
`,
			wantErr: "Checksum",
		},
		{
			name: "bad name",
			content: `components:
  Button_Big:
    path: Button.tsx
    version: 1.0.0
    checksum: sha256:abc
`,
			wantErr: "Button_Big",
		},
		{
			name: "path escapes project",
			content: `components:
  button:
    path: ../outside/Button.tsx
    version: 1.0.0
    checksum: sha256:abc
`,
			wantErr: "relative to the project root",
		},
		{
			name:    "future schema",
			content: "schema_version: 99\ncomponents: {}\n",
			wantErr: "newer than supported",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeManifest(t, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestSaveAndReload(t *testing.T) {
	path := writeManifest(t, sampleManifest)
	m, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	updated := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	if err := m.Set(Record{
		Name:      "button",
		Path:      "src/components/vsds/Button.tsx",
		Version:   "1.1.0",
		Checksum:  Checksum([]byte("new\n")),
		UpdatedAt: updated,
	}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := m.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	rec, _ := reloaded.Get("button")
	if rec.Version != "1.1.0" || rec.ModifiedByUser || !rec.UpdatedAt.Equal(updated) {
		t.Errorf("unexpected reloaded record: %+v", rec)
	}
	if _, ok := reloaded.Get("dialog"); !ok {
		t.Error("dialog record lost on save")
	}
}

func TestSave_FailureReturnsWriteError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFileName)
	if err := os.Mkdir(path, 0755); err != nil {
		t.Fatal(err)
	}

	m := New(path)
	err := m.Save()
	var writeErr *WriteError
	if !errors.As(err, &writeErr) {
		t.Fatalf("expected *WriteError, got %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected temp file cleanup, found %d entries", len(entries))
	}
}

func TestSet_ValidatesRecord(t *testing.T) {
	m := New(filepath.Join(t.TempDir(), DefaultFileName))
	if err := m.Set(Record{Name: "button"}); err == nil {
		t.Error("expected validation error for incomplete record")
	}
}

func TestChecksum(t *testing.T) {
	got := Checksum([]byte("A\nB\nC\n"))
	if !strings.HasPrefix(got, "sha256:") || len(got) != len("sha256:")+64 {
		t.Errorf("unexpected checksum format: %q", got)
	}
	if got != Checksum([]byte("A\nB\nC\n")) {
		t.Error("checksum is not stable")
	}
	if got == Checksum([]byte("A\nB\nC")) {
		t.Error("checksum ignores trailing newline")
	}
}
