package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolvePaths_DefaultLayout(t *testing.T) {
	root := t.TempDir()
	state := t.TempDir()
	t.Setenv("XDG_STATE_HOME", state)
	if err := os.WriteFile(filepath.Join(root, "App.sln"), []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := &Config{WatchPaths: []string{root}}
	applyDefaults(cfg)

	got, err := ResolvePaths(cfg, root)
	if err != nil {
		t.Fatal(err)
	}
	if got.ProjectRoot != filepath.Clean(root) {
		t.Fatalf("expected project root %q, got %q", root, got.ProjectRoot)
	}
	if got.StateDir != filepath.Join(state, "csguard") {
		t.Fatalf("unexpected state dir: %q", got.StateDir)
	}
	if got.DBPath != filepath.Join(state, "csguard", "history.db") {
		t.Fatalf("unexpected db path: %q", got.DBPath)
	}
	if got.LogPath != filepath.Join(state, "csguard", "csguard.log") {
		t.Fatalf("unexpected log path: %q", got.LogPath)
	}
}

func TestResolvePaths_AbsoluteOverrides(t *testing.T) {
	root := t.TempDir()
	dbPath := filepath.Join(root, "custom", "history.db")
	cfg := &Config{
		Paths: Paths{ProjectRoot: root, StateDir: "state"},
		DB:    Database{Path: dbPath},
	}
	applyDefaults(cfg)

	got, err := ResolvePaths(cfg, root)
	if err != nil {
		t.Fatal(err)
	}
	if got.StateDir != filepath.Join(root, "state") {
		t.Fatalf("unexpected state dir: %q", got.StateDir)
	}
	if got.DBPath != dbPath {
		t.Fatalf("unexpected db path: %q", got.DBPath)
	}
}

func TestDetectProjectRoot_WalksUp(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "src", "App")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "csguard.toml"), []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := DetectProjectRoot([]string{"", nested})
	if err != nil {
		t.Fatal(err)
	}
	if got != filepath.Clean(root) {
		t.Fatalf("expected %q, got %q", root, got)
	}
}
