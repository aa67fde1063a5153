// Package gittest builds throwaway git repositories for tests: a bare
// "remote" plus working clones wired to it.
package gittest

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// Branch is the branch every fixture repository uses.
const Branch = "main"

// Isolate skips the test when git is missing and shields it from the
// user's global and system git configuration.
func Isolate(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	t.Setenv("GIT_CONFIG_GLOBAL", os.DevNull)
	t.Setenv("GIT_CONFIG_NOSYSTEM", "1")
	t.Setenv("GIT_TERMINAL_PROMPT", "0")
}

// Git runs git in dir and fails the test on error.
func Git(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.CommandContext(context.Background(), "git", append([]string{"-C", dir}, args...)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return strings.TrimSpace(string(out))
}

// Remote creates a bare repository seeded with one commit holding files.
// It returns the bare repository path.
func Remote(t *testing.T, files map[string]string) string {
	t.Helper()
	Isolate(t)

	root := t.TempDir()
	seed := filepath.Join(root, "seed")
	Git(t, root, "init", "--initial-branch="+Branch, seed)
	configure(t, seed)

	if len(files) == 0 {
		files = map[string]string{"README.md": "shared claude config\n"}
	}
	for rel, content := range files {
		WriteFile(t, filepath.Join(seed, filepath.FromSlash(rel)), content)
	}
	Git(t, seed, "add", "-A")
	Git(t, seed, "commit", "-m", "seed")

	bare := filepath.Join(root, "remote.git")
	Git(t, root, "clone", "--bare", seed, bare)
	return bare
}

// Clone clones remote into a new temp directory and configures an identity.
func Clone(t *testing.T, remote string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "clone")
	Git(t, filepath.Dir(dir), "clone", remote, dir)
	configure(t, dir)
	return dir
}

// CommitFile writes, commits and pushes one file from a clone.
func CommitFile(t *testing.T, clone, rel, content string) {
	t.Helper()
	WriteFile(t, filepath.Join(clone, filepath.FromSlash(rel)), content)
	Git(t, clone, "add", "-A")
	Git(t, clone, "commit", "-m", "update "+rel)
	Git(t, clone, "push", "origin", "HEAD:"+Branch)
}

// ShowFile returns the content of rel at the tip of the bare remote, and
// whether it exists there.
func ShowFile(t *testing.T, remote, rel string) (string, bool) {
	t.Helper()
	cmd := exec.CommandContext(context.Background(), "git", "-C", remote, "show", Branch+":"+rel)
	out, err := cmd.Output()
	if err != nil {
		return "", false
	}
	return string(out), true
}

// WriteFile writes content to path, creating parent directories.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func configure(t *testing.T, dir string) {
	t.Helper()
	Git(t, dir, "config", "user.email", "sync@example.com")
	Git(t, dir, "config", "user.name", "Sync Test")
	Git(t, dir, "config", "commit.gpgsign", "false")
}
