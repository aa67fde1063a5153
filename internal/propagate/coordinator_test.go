package propagate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorewood/claudesync/internal/classify"
	"github.com/gorewood/claudesync/internal/config"
	"github.com/gorewood/claudesync/internal/fsutil"
	"github.com/gorewood/claudesync/internal/merge"
	"github.com/gorewood/claudesync/internal/repo"
)

// fakeGateway keeps the "repository" in a temp dir and records calls.
type fakeGateway struct {
	dir        string
	calls      []string
	publishErr error
	pullErr    error
}

func newFakeGateway(t *testing.T) *fakeGateway {
	t.Helper()
	return &fakeGateway{dir: t.TempDir()}
}

func (f *fakeGateway) Pull(context.Context) error {
	f.calls = append(f.calls, "pull")
	return f.pullErr
}

func (f *fakeGateway) Publish(_ context.Context, src, rel, _ string) (repo.CommitResult, error) {
	f.calls = append(f.calls, "publish "+rel)
	if f.publishErr != nil {
		return repo.CommitResult{}, f.publishErr
	}
	changed, err := fsutil.CopyFile(src, f.Path(rel))
	if err != nil {
		return repo.CommitResult{}, err
	}
	return repo.CommitResult{Committed: changed, Pushed: changed}, nil
}

func (f *fakeGateway) Unpublish(_ context.Context, rel, _ string) (repo.CommitResult, error) {
	f.calls = append(f.calls, "unpublish "+rel)
	if err := os.Remove(f.Path(rel)); err != nil {
		return repo.CommitResult{}, err
	}
	return repo.CommitResult{Committed: true, Pushed: true}, nil
}

func (f *fakeGateway) ReadFile(rel string) (string, bool, error) {
	if !fsutil.Exists(f.Path(rel)) {
		return "", false, nil
	}
	s, err := fsutil.ReadOptional(f.Path(rel))
	return s, err == nil, err
}

func (f *fakeGateway) List(relDir string) ([]string, error) {
	entries, err := os.ReadDir(f.Path(relDir))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

func (f *fakeGateway) Path(rel string) string {
	return filepath.Join(f.dir, filepath.FromSlash(rel))
}

func (f *fakeGateway) write(t *testing.T, rel, content string) {
	t.Helper()
	writeFile(t, f.Path(rel), content)
}

type fixture struct {
	gw     *fakeGateway
	layout classify.Layout
	ws     []config.Workspace
	c      *Coordinator
}

func newFixture(t *testing.T, workspaces int) *fixture {
	t.Helper()
	home := t.TempDir()
	f := &fixture{gw: newFakeGateway(t), layout: classify.DefaultLayout(home)}
	f.layout.FoldCase = false
	for i := 0; i < workspaces; i++ {
		dir := filepath.Join(t.TempDir(), "ws")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		f.ws = append(f.ws, config.Workspace{Path: dir})
	}
	f.c = New(f.gw, f.layout, func() ([]config.Workspace, error) { return f.ws, nil }, nil)
	return f
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestRegenerate(t *testing.T) {
	f := newFixture(t, 1)
	ws := f.ws[0].Path

	changed, err := f.c.Regenerate(ws)
	if err != nil || changed {
		t.Fatalf("Regenerate(no rules) = %v, %v; want false, nil", changed, err)
	}
	if fsutil.Exists(filepath.Join(ws, "CLAUDE.md")) {
		t.Fatal("merged output must not be created without rules files")
	}

	writeFile(t, filepath.Join(ws, "CLAUDE.shared.md"), "# Team")
	writeFile(t, filepath.Join(ws, "CLAUDE.local.md"), "# Mine")
	changed, err = f.c.Regenerate(ws)
	if err != nil || !changed {
		t.Fatalf("Regenerate() = %v, %v; want true, nil", changed, err)
	}
	if got, want := readFile(t, filepath.Join(ws, "CLAUDE.md")), merge.Merge("# Team", "# Mine"); got != want {
		t.Errorf("merged = %q, want %q", got, want)
	}

	changed, err = f.c.Regenerate(ws)
	if err != nil || changed {
		t.Errorf("second Regenerate() = %v, %v; want unchanged", changed, err)
	}
}

func TestHandle_SharedRulePropagates(t *testing.T) {
	f := newFixture(t, 3)
	src := f.ws[0].Path
	writeFile(t, filepath.Join(src, "CLAUDE.shared.md"), "# R")
	writeFile(t, filepath.Join(f.ws[1].Path, "CLAUDE.local.md"), "# private one")

	out, err := f.c.Handle(context.Background(), Event{Path: filepath.Join(src, "CLAUDE.shared.md")})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if out.Action != ActionPropagated || out.Category != classify.SharedRule {
		t.Errorf("outcome = %+v", out)
	}

	if got, _, _ := f.gw.ReadFile("CLAUDE.md"); got != "# R" {
		t.Errorf("repository rules = %q", got)
	}
	if got := readFile(t, filepath.Join(src, "CLAUDE.md")); !strings.HasPrefix(got, "# R") {
		t.Errorf("source merged output = %q", got)
	}
	for _, w := range f.ws[1:] {
		if got := readFile(t, filepath.Join(w.Path, "CLAUDE.shared.md")); got != "# R" {
			t.Errorf("%s shared = %q", w.Path, got)
		}
	}
	merged := readFile(t, filepath.Join(f.ws[1].Path, "CLAUDE.md"))
	if merged != merge.Merge("# R", "# private one") {
		t.Errorf("fan-out merged = %q", merged)
	}
}

func TestHandle_UnregisteredWorkspaceIgnored(t *testing.T) {
	f := newFixture(t, 1)
	stray := t.TempDir()
	writeFile(t, filepath.Join(stray, "CLAUDE.shared.md"), "# R")

	out, err := f.c.Handle(context.Background(), Event{Path: filepath.Join(stray, "CLAUDE.shared.md")})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if out.Action != ActionNone || len(f.gw.calls) != 0 {
		t.Errorf("outcome = %+v, calls = %v", out, f.gw.calls)
	}
}

func TestHandle_PrivateRuleStaysLocal(t *testing.T) {
	f := newFixture(t, 2)
	ws := f.ws[0].Path
	writeFile(t, filepath.Join(ws, "CLAUDE.shared.md"), "# Team")
	writeFile(t, filepath.Join(ws, "CLAUDE.local.md"), "secret: K")

	out, err := f.c.Handle(context.Background(), Event{Path: filepath.Join(ws, "CLAUDE.local.md")})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if out.Action != ActionMerged {
		t.Errorf("action = %s, want merged", out.Action)
	}
	if len(f.gw.calls) != 0 {
		t.Errorf("private rules touched the repository: %v", f.gw.calls)
	}
	if got := readFile(t, filepath.Join(ws, "CLAUDE.md")); !strings.Contains(got, "secret: K") {
		t.Errorf("merged = %q", got)
	}
	if fsutil.Exists(filepath.Join(f.ws[1].Path, "CLAUDE.md")) {
		t.Error("private change must not reach other workspaces")
	}
}

func TestHandle_SharedRuleRemovedIsNotPushed(t *testing.T) {
	f := newFixture(t, 1)
	ws := f.ws[0].Path
	writeFile(t, filepath.Join(ws, "CLAUDE.local.md"), "# Mine")

	out, err := f.c.Handle(context.Background(), Event{Path: filepath.Join(ws, "CLAUDE.shared.md"), Op: Removed})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if out.Action != ActionMerged || len(f.gw.calls) != 0 {
		t.Errorf("outcome = %+v, calls = %v", out, f.gw.calls)
	}
	if got := readFile(t, filepath.Join(ws, "CLAUDE.md")); got != "# Mine" {
		t.Errorf("merged = %q, want private only", got)
	}
}

func TestPropagateSharedRules_PushFailureStopsFlow(t *testing.T) {
	f := newFixture(t, 2)
	src := f.ws[0].Path
	writeFile(t, filepath.Join(src, "CLAUDE.shared.md"), "# R")
	f.gw.publishErr = errors.New("remote unreachable")

	_, err := f.c.PropagateSharedRules(context.Background(), src)
	var step *StepError
	if !errors.As(err, &step) || step.Step != StepPush {
		t.Fatalf("error = %v, want push step error", err)
	}
	if !fsutil.Exists(filepath.Join(src, "CLAUDE.md")) {
		t.Error("local merge should still have happened")
	}
	if fsutil.Exists(filepath.Join(f.ws[1].Path, "CLAUDE.shared.md")) {
		t.Error("fan-out must not run after a failed push")
	}
}

func TestPropagateSharedRules_SkipsMissingWorkspace(t *testing.T) {
	f := newFixture(t, 2)
	f.ws = append(f.ws, config.Workspace{Path: filepath.Join(t.TempDir(), "gone")})
	src := f.ws[0].Path
	writeFile(t, filepath.Join(src, "CLAUDE.shared.md"), "# R")

	report, err := f.c.PropagateSharedRules(context.Background(), src)
	if err != nil {
		t.Fatalf("PropagateSharedRules() error = %v", err)
	}
	if len(report.Updated) != 1 || len(report.Skipped) != 1 {
		t.Errorf("report = %+v", report)
	}
	if !report.Pushed {
		t.Error("report should record the push")
	}
}

func TestHandle_GlobalSkill(t *testing.T) {
	f := newFixture(t, 0)
	manifest := filepath.Join(f.layout.GlobalSkillsRoot, "review", "SKILL.md")
	writeFile(t, manifest, "---\nname: review\n---\nbody")
	ctx := context.Background()

	out, err := f.c.Handle(ctx, Event{Path: manifest})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if out.Action != ActionPublished {
		t.Errorf("action = %s, want published", out.Action)
	}
	if got, ok, _ := f.gw.ReadFile("skills/review/SKILL.md"); !ok || !strings.Contains(got, "body") {
		t.Errorf("repository manifest = %q, %v", got, ok)
	}

	out, _ = f.c.Handle(ctx, Event{Path: manifest})
	if out.Action != ActionNone || out.Detail != ReasonUnchanged {
		t.Errorf("unchanged outcome = %+v", out)
	}

	if err := os.RemoveAll(filepath.Dir(manifest)); err != nil {
		t.Fatal(err)
	}
	out, err = f.c.Handle(ctx, Event{Path: filepath.Dir(manifest), Op: Removed})
	if err != nil {
		t.Fatalf("Handle(removed dir) error = %v", err)
	}
	if out.Action != ActionUnpublished {
		t.Errorf("removal outcome = %+v", out)
	}
	if _, ok, _ := f.gw.ReadFile("skills/review/SKILL.md"); ok {
		t.Error("manifest should be gone from repository")
	}
}

func TestHandle_GlobalAgent(t *testing.T) {
	f := newFixture(t, 0)
	agent := filepath.Join(f.layout.GlobalAgentsRoot, "planner.md")
	writeFile(t, agent, "# Planner")
	ctx := context.Background()

	if out, err := f.c.Handle(ctx, Event{Path: agent}); err != nil || out.Action != ActionPublished {
		t.Fatalf("Handle() = %+v, %v", out, err)
	}
	if !fsutil.Exists(f.gw.Path("agents/planner.md")) {
		t.Fatal("agent not published")
	}

	// A removal event for a file that is back on disk is a save, not a delete.
	if out, err := f.c.Handle(ctx, Event{Path: agent, Op: Removed}); err != nil || out.Action == ActionUnpublished {
		t.Errorf("rename-save outcome = %+v, %v", out, err)
	}

	if err := os.Remove(agent); err != nil {
		t.Fatal(err)
	}
	if out, err := f.c.Handle(ctx, Event{Path: agent, Op: Removed}); err != nil || out.Action != ActionUnpublished {
		t.Errorf("removal outcome = %+v, %v", out, err)
	}
}

func TestHandle_NestedGlobalAgent(t *testing.T) {
	f := newFixture(t, 0)
	agent := filepath.Join(f.layout.GlobalAgentsRoot, "team", "reviewer.md")
	writeFile(t, agent, "# Reviewer")
	ctx := context.Background()

	out, err := f.c.Handle(ctx, Event{Path: agent})
	if err != nil || out.Category != classify.GlobalAgent || out.Action != ActionPublished {
		t.Fatalf("Handle() = %+v, %v", out, err)
	}
	if !fsutil.Exists(f.gw.Path("agents/reviewer.md")) {
		t.Fatal("nested agent not published under its base name")
	}

	if err := os.Remove(agent); err != nil {
		t.Fatal(err)
	}
	if out, err := f.c.Handle(ctx, Event{Path: agent, Op: Removed}); err != nil || out.Action != ActionUnpublished {
		t.Errorf("removal outcome = %+v, %v", out, err)
	}
	if fsutil.Exists(f.gw.Path("agents/reviewer.md")) {
		t.Error("nested agent still published after removal")
	}
}

func TestHandle_LocalResourcesAreNotSynced(t *testing.T) {
	f := newFixture(t, 1)
	ws := f.ws[0].Path
	paths := []string{
		filepath.Join(classify.WorkspaceSkillsDir(ws), "lint", "SKILL.md"),
		filepath.Join(classify.WorkspaceAgentsDir(ws), "helper.md"),
	}
	for _, p := range paths {
		writeFile(t, p, "x")
		out, err := f.c.Handle(context.Background(), Event{Path: p})
		if err != nil {
			t.Fatalf("Handle(%s) error = %v", p, err)
		}
		if out.Action != ActionLocalOnly {
			t.Errorf("Handle(%s) action = %s, want local-only", p, out.Action)
		}
	}
	if len(f.gw.calls) != 0 {
		t.Errorf("local resources reached the repository: %v", f.gw.calls)
	}
}

func TestHandle_UnrelatedPath(t *testing.T) {
	f := newFixture(t, 1)
	out, err := f.c.Handle(context.Background(), Event{Path: filepath.Join(f.ws[0].Path, "main.go")})
	if err != nil || out.Action != ActionNone || out.Category != classify.Unrelated {
		t.Errorf("Handle() = %+v, %v", out, err)
	}
}

func TestSyncAllGlobalSkills_ContinuesPastProblems(t *testing.T) {
	f := newFixture(t, 0)
	root := f.layout.GlobalSkillsRoot
	writeFile(t, filepath.Join(root, "alpha", "SKILL.md"), "a")
	writeFile(t, filepath.Join(root, "beta", "notes.txt"), "no manifest")
	writeFile(t, filepath.Join(root, "gamma", "skill.md"), "g")

	report, err := f.c.SyncAllGlobalSkills(context.Background())
	if err != nil {
		t.Fatalf("SyncAllGlobalSkills() error = %v", err)
	}
	if report.Synced() != 2 || report.Skipped() != 1 || report.Failed() != 0 {
		t.Errorf("report = %+v", report)
	}
	if !fsutil.Exists(f.gw.Path("skills/gamma/skill.md")) {
		t.Error("lower-case manifest should keep its spelling in the repository")
	}
	for _, it := range report.Items {
		if it.ID == "beta" && it.Reason != ReasonNoManifest {
			t.Errorf("beta reason = %q", it.Reason)
		}
	}
}

func TestSyncAllGlobalAgents_RecordsFailures(t *testing.T) {
	f := newFixture(t, 0)
	writeFile(t, filepath.Join(f.layout.GlobalAgentsRoot, "a.md"), "a")
	writeFile(t, filepath.Join(f.layout.GlobalAgentsRoot, "b.md"), "b")
	f.gw.publishErr = errors.New("push rejected")

	report, err := f.c.SyncAllGlobalAgents(context.Background())
	if err != nil {
		t.Fatalf("SyncAllGlobalAgents() error = %v", err)
	}
	if report.Failed() != 2 || len(f.gw.calls) != 2 {
		t.Errorf("report = %+v, calls = %v", report, f.gw.calls)
	}
}

func TestPullAndPropagate(t *testing.T) {
	f := newFixture(t, 2)
	f.ws = append(f.ws, config.Workspace{Path: filepath.Join(t.TempDir(), "missing")})
	f.gw.write(t, "CLAUDE.md", "# Canonical")
	f.gw.write(t, "skills/review/SKILL.md", "review")
	f.gw.write(t, "agents/planner.md", "plan")
	f.gw.write(t, "agents/README.txt", "ignored")
	writeFile(t, filepath.Join(f.ws[0].Path, "CLAUDE.local.md"), "# Mine")

	report, err := f.c.PullAndPropagate(context.Background())
	if err != nil {
		t.Fatalf("PullAndPropagate() error = %v", err)
	}
	if f.gw.calls[0] != "pull" || len(f.gw.calls) != 1 {
		t.Errorf("calls = %v, want a single pull", f.gw.calls)
	}
	if len(report.Workspaces) != 2 || len(report.Skipped) != 1 {
		t.Errorf("workspaces = %v, skipped = %v", report.Workspaces, report.Skipped)
	}
	if got := readFile(t, filepath.Join(f.ws[0].Path, "CLAUDE.md")); got != merge.Merge("# Canonical", "# Mine") {
		t.Errorf("merged = %q", got)
	}
	if got := readFile(t, filepath.Join(f.layout.GlobalSkillsRoot, "review", "SKILL.md")); got != "review" {
		t.Errorf("installed skill = %q", got)
	}
	if len(report.Agents) != 1 || report.Agents[0] != "planner" {
		t.Errorf("agents = %v", report.Agents)
	}
	if fsutil.Exists(filepath.Join(f.layout.GlobalAgentsRoot, "README.txt")) {
		t.Error("non-markdown files must not be installed as agents")
	}

	// Nothing changed upstream: second run installs nothing.
	report, err = f.c.PullAndPropagate(context.Background())
	if err != nil || len(report.Workspaces)+len(report.Skills)+len(report.Agents) != 0 {
		t.Errorf("second run = %+v, %v", report, err)
	}
}

func TestPullAndPropagate_PullFailure(t *testing.T) {
	f := newFixture(t, 1)
	f.gw.pullErr = repo.ErrMergeConflict
	f.gw.write(t, "CLAUDE.md", "# Canonical")

	_, err := f.c.PullAndPropagate(context.Background())
	if !errors.Is(err, repo.ErrMergeConflict) {
		t.Fatalf("error = %v, want merge conflict", err)
	}
	if fsutil.Exists(filepath.Join(f.ws[0].Path, "CLAUDE.shared.md")) {
		t.Error("nothing should be installed after a failed pull")
	}
}
