package daemon

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorewood/claudesync/internal/config"
	"github.com/gorewood/claudesync/internal/engine"
	"github.com/gorewood/claudesync/internal/gittest"
	"github.com/gorewood/claudesync/internal/retry"
)

type chanBackend struct {
	mu      sync.Mutex
	watched map[string]bool
	events  chan string
}

func newChanBackend() *chanBackend {
	return &chanBackend{watched: make(map[string]bool), events: make(chan string, 16)}
}

func (b *chanBackend) Add(path string, _ bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.watched[path] = true
	return nil
}

func (b *chanBackend) Remove(path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.watched, path)
	return nil
}

func (b *chanBackend) Events() <-chan string { return b.events }
func (b *chanBackend) Close() error { return nil }

func (b *chanBackend) isWatched(path string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.watched[path]
}

type harness struct {
	eng     *engine.Engine
	remote  string
	backend *chanBackend
	d       *Daemon
}

func newHarness(t *testing.T, remoteFiles map[string]string) *harness {
	t.Helper()
	remote := gittest.Remote(t, remoteFiles)
	clone := gittest.Clone(t, remote)
	store := config.NewStore(filepath.Join(t.TempDir(), "config.yaml"))
	if err := store.Save(&config.Config{Repo: config.RepoConfig{Path: clone, Branch: gittest.Branch}}); err != nil {
		t.Fatal(err)
	}
	eng, err := engine.New(engine.Options{
		Store: store,
		Home:  t.TempDir(),
		Retry: &retry.Policy{MaxRetries: 1, BaseDelay: 1},
	})
	if err != nil {
		t.Fatal(err)
	}
	h := &harness{eng: eng, remote: remote, backend: newChanBackend()}
	h.d = New(eng, Options{Backend: h.backend, Debounce: 10 * time.Millisecond})
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.d.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run() error = %v", err)
		}
	})
	select {
	case <-h.d.Started():
	case err := <-done:
		t.Fatalf("Run() returned early: %v", err)
	case <-time.After(30 * time.Second):
		t.Fatal("daemon did not start")
	}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(20 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestDaemon_StartupPullAndSweep(t *testing.T) {
	h := newHarness(t, map[string]string{"CLAUDE.md": "# Canonical\n"})
	ws := t.TempDir()
	if _, _, err := h.eng.Store.AddWorkspace(ws, ""); err != nil {
		t.Fatal(err)
	}
	gittest.WriteFile(t, filepath.Join(h.eng.Layout.GlobalAgentsRoot, "planner.md"), "plan")

	h.start(t)

	if data, err := os.ReadFile(filepath.Join(ws, "CLAUDE.shared.md")); err != nil || string(data) != "# Canonical\n" {
		t.Errorf("pulled shared rules = %q, %v", data, err)
	}
	if _, err := os.Stat(filepath.Join(ws, "CLAUDE.md")); err != nil {
		t.Errorf("merged output missing: %v", err)
	}
	if _, ok := gittest.ShowFile(t, h.remote, "agents/planner.md"); !ok {
		t.Error("sweep did not publish existing agent")
	}
	for _, p := range []string{ws, h.eng.Layout.GlobalSkillsRoot, h.eng.Layout.GlobalAgentsRoot, h.eng.Store.Dir()} {
		if !h.backend.isWatched(p) {
			t.Errorf("%s not watched", p)
		}
	}
}

func TestDaemon_HandlesEvents(t *testing.T) {
	h := newHarness(t, nil)
	w1, w2 := t.TempDir(), t.TempDir()
	for _, ws := range []string{w1, w2} {
		if _, _, err := h.eng.Store.AddWorkspace(ws, ""); err != nil {
			t.Fatal(err)
		}
	}
	h.start(t)

	shared := filepath.Join(w1, "CLAUDE.shared.md")
	gittest.WriteFile(t, shared, "# R")
	h.backend.events <- shared

	eventually(t, "shared rules on remote", func() bool {
		got, ok := gittest.ShowFile(t, h.remote, "CLAUDE.md")
		return ok && got == "# R"
	})
	eventually(t, "fan-out to second workspace", func() bool {
		data, err := os.ReadFile(filepath.Join(w2, "CLAUDE.shared.md"))
		return err == nil && string(data) == "# R"
	})
}

func TestDaemon_ConfigChangeRebuildsWatchSet(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)

	ws := t.TempDir()
	if _, _, err := h.eng.Store.AddWorkspace(ws, ""); err != nil {
		t.Fatal(err)
	}
	h.backend.events <- h.eng.Store.Path()

	eventually(t, "new workspace watched", func() bool { return h.backend.isWatched(ws) })
}

func TestDaemon_OfflineStartStillWatches(t *testing.T) {
	store := config.NewStore(filepath.Join(t.TempDir(), "config.yaml"))
	ws := t.TempDir()
	if _, _, err := store.AddWorkspace(ws, ""); err != nil {
		t.Fatal(err)
	}
	eng, err := engine.New(engine.Options{Store: store, Home: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	h := &harness{eng: eng, backend: newChanBackend()}
	h.d = New(eng, Options{Backend: h.backend, Debounce: 10 * time.Millisecond})
	h.start(t)

	if !h.backend.isWatched(ws) {
		t.Error("workspace should be watched without a repository clone")
	}

	// Private rules still merge locally.
	private := filepath.Join(ws, "CLAUDE.local.md")
	gittest.WriteFile(t, private, "local")
	h.backend.events <- private
	eventually(t, "merged output", func() bool {
		data, err := os.ReadFile(filepath.Join(ws, "CLAUDE.md"))
		return err == nil && string(data) == "local"
	})
}

func TestDaemon_RelevantSkillDirRemoval(t *testing.T) {
	h := newHarness(t, nil)
	h.eng.Layout.FoldCase = true
	d := New(h.eng, Options{Backend: newChanBackend()})

	root := h.eng.Layout.GlobalSkillsRoot
	recased := filepath.Join(filepath.Dir(root), strings.ToUpper(filepath.Base(root)))
	if !d.relevant(filepath.Join(recased, "review")) {
		t.Error("skill directory under a differently cased root should be relevant")
	}
	if d.relevant(filepath.Join(recased, "review", "notes")) {
		t.Error("nested directory should not be relevant")
	}

	h.eng.Layout.FoldCase = false
	if d.relevant(filepath.Join(recased, "review")) {
		t.Error("case must match when folding is off")
	}
}
