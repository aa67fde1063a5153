package repo

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorewood/claudesync/internal/git"
	"github.com/gorewood/claudesync/internal/gittest"
	"github.com/gorewood/claudesync/internal/lock"
	"github.com/gorewood/claudesync/internal/retry"
)

func newRealGateway(t *testing.T, clone string) *Gateway {
	t.Helper()
	l := lock.New(filepath.Join(t.TempDir(), "repo.lock"), lock.Options{})
	return New(clone, git.Open(clone), l, Options{
		Branch:    gittest.Branch,
		Forbidden: []string{"CLAUDE.local.md"},
		Retry:     retry.Policy{MaxRetries: 1, BaseDelay: 1},
	})
}

func TestGateway_PublishAndUnpublishWithGit(t *testing.T) {
	remote := gittest.Remote(t, nil)
	gw := newRealGateway(t, gittest.Clone(t, remote))
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "planner.md")
	gittest.WriteFile(t, src, "# Planner\n")

	res, err := gw.Publish(ctx, src, "agents/planner.md", "agent planner")
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if !res.Committed || !res.Pushed {
		t.Errorf("Publish() result = %+v", res)
	}
	if got, ok := gittest.ShowFile(t, remote, "agents/planner.md"); !ok || got != "# Planner\n" {
		t.Errorf("remote content = %q, %v", got, ok)
	}

	// Same content again is an empty diff.
	res, err = gw.Publish(ctx, src, "agents/planner.md", "agent planner")
	if err != nil || !res.NothingToDo() {
		t.Errorf("republish = %+v, %v; want nothing to do", res, err)
	}

	if _, err := gw.Unpublish(ctx, "agents/planner.md", "remove agent planner"); err != nil {
		t.Fatalf("Unpublish() error = %v", err)
	}
	if _, ok := gittest.ShowFile(t, remote, "agents/planner.md"); ok {
		t.Error("agent should be removed from remote")
	}
	if _, err := os.Stat(gw.Path("agents")); !os.IsNotExist(err) {
		t.Error("empty agents directory should be pruned")
	}

	pending, err := gw.HasPendingState(ctx)
	if err != nil || pending {
		t.Errorf("HasPendingState() = %v, %v; want false", pending, err)
	}
}

func TestGateway_PullKeepsLocalChanges(t *testing.T) {
	remote := gittest.Remote(t, map[string]string{"CLAUDE.md": "# v1\n"})
	other := gittest.Clone(t, remote)
	gw := newRealGateway(t, gittest.Clone(t, remote))

	gittest.CommitFile(t, other, "CLAUDE.md", "# v2\n")
	gittest.WriteFile(t, gw.Path("agents/wip.md"), "draft")

	if err := gw.Pull(context.Background()); err != nil {
		t.Fatalf("Pull() error = %v", err)
	}
	if got, _, _ := gw.ReadFile("CLAUDE.md"); got != "# v2\n" {
		t.Errorf("CLAUDE.md = %q, want pulled content", got)
	}
	if got, ok, _ := gw.ReadFile("agents/wip.md"); !ok || got != "draft" {
		t.Errorf("local change lost: %q, %v", got, ok)
	}
}

func TestGateway_PushAfterRemoteMoved(t *testing.T) {
	remote := gittest.Remote(t, nil)
	other := gittest.Clone(t, remote)
	gw := newRealGateway(t, gittest.Clone(t, remote))

	gittest.CommitFile(t, other, "agents/theirs.md", "theirs")

	src := filepath.Join(t.TempDir(), "ours.md")
	gittest.WriteFile(t, src, "ours")
	if _, err := gw.Publish(context.Background(), src, "agents/ours.md", "agent ours"); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	for _, rel := range []string{"agents/theirs.md", "agents/ours.md"} {
		if _, ok := gittest.ShowFile(t, remote, rel); !ok {
			t.Errorf("remote missing %s", rel)
		}
	}
}
