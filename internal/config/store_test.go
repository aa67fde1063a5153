package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStore_LoadMissingFileGivesDefaults(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(filepath.Join(dir, ConfigFile))

	cfg, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Repo.Path != filepath.Join(dir, RepoDir) {
		t.Errorf("Repo.Path = %q", cfg.Repo.Path)
	}
	if cfg.Repo.Remote != "origin" || cfg.Repo.Branch != "main" {
		t.Errorf("Repo = %+v", cfg.Repo)
	}
	if len(cfg.Workspaces) != 0 {
		t.Errorf("Workspaces = %v", cfg.Workspaces)
	}
	if cfg.DebounceDuration() != DefaultDebounce {
		t.Errorf("DebounceDuration() = %v", cfg.DebounceDuration())
	}
}

func TestStore_LoadParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFile)
	content := `repo:
  path: /srv/claude-config
  branch: trunk
workspaces:
  - path: /work/api
    name: api
debounce: 750ms
log_level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewStore(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Repo.Path != "/srv/claude-config" || cfg.Repo.Branch != "trunk" || cfg.Repo.Remote != "origin" {
		t.Errorf("Repo = %+v", cfg.Repo)
	}
	if got := cfg.WorkspacePaths(); len(got) != 1 || got[0] != "/work/api" {
		t.Errorf("WorkspacePaths() = %v", got)
	}
	if cfg.DebounceDuration() != 750*time.Millisecond {
		t.Errorf("DebounceDuration() = %v", cfg.DebounceDuration())
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
}

func TestStore_LoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFile)
	if err := os.WriteFile(path, []byte("workspaces: [\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewStore(path).Load(); err == nil {
		t.Error("Load() should fail on invalid YAML")
	}
}

func TestStore_AddRemoveWorkspace(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "cfg", ConfigFile))
	ws := t.TempDir()

	added, created, err := s.AddWorkspace(ws, "")
	if err != nil || !created {
		t.Fatalf("AddWorkspace() = %+v, %v, %v", added, created, err)
	}
	if added.Name != filepath.Base(ws) {
		t.Errorf("Name = %q, want directory base name", added.Name)
	}
	if added.AddedAt.IsZero() {
		t.Error("AddedAt should be set")
	}

	_, created, err = s.AddWorkspace(ws, "again")
	if err != nil || created {
		t.Errorf("duplicate AddWorkspace() created = %v, err = %v", created, err)
	}

	// Read-through: a second store over the same file sees the change.
	list, err := NewStore(s.Path()).Workspaces()
	if err != nil || len(list) != 1 {
		t.Fatalf("Workspaces() = %v, %v", list, err)
	}

	if _, err := s.RemoveWorkspace(ws); err != nil {
		t.Fatalf("RemoveWorkspace() error = %v", err)
	}
	if _, err := s.RemoveWorkspace(ws); !errors.Is(err, ErrWorkspaceNotFound) {
		t.Errorf("second RemoveWorkspace() error = %v, want ErrWorkspaceNotFound", err)
	}
}

func TestStore_AddWorkspaceRequiresDirectory(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), ConfigFile))
	if _, _, err := s.AddWorkspace(filepath.Join(t.TempDir(), "missing"), ""); err == nil {
		t.Error("AddWorkspace() should reject a missing directory")
	}
}

func TestStore_RemoveByName(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), ConfigFile))
	ws := t.TempDir()
	if _, _, err := s.AddWorkspace(ws, "api"); err != nil {
		t.Fatal(err)
	}
	removed, err := s.RemoveWorkspace("api")
	if err != nil || removed.Path != ws {
		t.Errorf("RemoveWorkspace(name) = %+v, %v", removed, err)
	}
}

func TestStore_Paths(t *testing.T) {
	s := NewStore(filepath.Join("/cfg", ConfigFile))
	if s.LockPath() != filepath.Join("/cfg", LockFile) {
		t.Errorf("LockPath() = %q", s.LockPath())
	}
	if s.EnvPath() != filepath.Join("/cfg", EnvFile) {
		t.Errorf("EnvPath() = %q", s.EnvPath())
	}
	if s.LogPath() != filepath.Join("/cfg", LogFile) {
		t.Errorf("LogPath() = %q", s.LogPath())
	}
}
