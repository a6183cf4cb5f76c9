package registry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeRegistry(t *testing.T, index string, assets map[string]string) string {
	t.Helper()
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, IndexFileName), []byte(index), 0644); err != nil {
		t.Fatal(err)
	}
	for rel, content := range assets {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestDir_Latest(t *testing.T) {
	root := writeRegistry(t, `components:
  button:
    version: 1.2.0
    file: Button.tsx
`, map[string]string{"button/Button.tsx": "export function Button() {}\n"})

	dir, err := Open(root)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	rel, err := dir.Latest(context.Background(), "button")
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if rel.Version != "1.2.0" || rel.Text != "export function Button() {}\n" {
		t.Errorf("unexpected release: %+v", rel)
	}

	if _, err := dir.Latest(context.Background(), "dialog"); !errors.Is(err, ErrUnknownComponent) {
		t.Errorf("expected ErrUnknownComponent, got %v", err)
	}
}

func TestDir_LatestMissingAsset(t *testing.T) {
	root := writeRegistry(t, `components:
  button:
    version: 1.2.0
    file: Button.tsx
`, nil)
	dir, err := Open(root)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := dir.Latest(context.Background(), "button"); err == nil {
		t.Error("expected error for missing asset")
	}
}

func TestDir_LatestHonorsCancellation(t *testing.T) {
	root := writeRegistry(t, "components: {}\n", nil)
	dir, err := Open(root)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := dir.Latest(ctx, "button"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestOpen_RejectsBadIndex(t *testing.T) {
	tests := []struct {
		name    string
		index   string
		wantErr string
	}{
		{"bad version", "components:\n  button:\n    version: not-a-version\n    file: Button.tsx\n", "invalid version"},
		{"missing file", "components:\n  button:\n    version: 1.0.0\n", "invalid registry index"},
		{"escaping file", "components:\n  button:\n    version: 1.0.0\n    file: ../../etc/passwd\n", "invalid file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(writeRegistry(t, tt.index, nil))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestIsNewer(t *testing.T) {
	tests := []struct {
		installed, latest string
		want              bool
	}{
		{"1.0.0", "1.1.0", true},
		{"1.1.0", "1.1.0", false},
		{"2.0.0", "1.9.9", false},
		{"1.0.0-beta.1", "1.0.0", true},
		{"v1.2", "1.10.0", true},
	}
	for _, tt := range tests {
		got, err := IsNewer(tt.installed, tt.latest)
		if err != nil {
			t.Fatalf("IsNewer(%q, %q) error: %v", tt.installed, tt.latest, err)
		}
		if got != tt.want {
			t.Errorf("IsNewer(%q, %q) = %v, want %v", tt.installed, tt.latest, got, tt.want)
		}
	}

	if _, err := IsNewer("garbage", "1.0.0"); err == nil {
		t.Error("expected error for invalid installed version")
	}
}
