package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gorewood/claudesync/internal/engine"
	"github.com/gorewood/claudesync/internal/fsutil"
	"github.com/gorewood/claudesync/internal/git"
	"github.com/gorewood/claudesync/internal/merge"
	"github.com/gorewood/claudesync/internal/resource"
)

func runCoreChecks(ctx context.Context, eng *engine.Engine, flags *doctorFlags) []checkResult {
	return []checkResult{
		checkGitBinary(ctx),
		checkConfigFile(eng),
		checkRepoClone(ctx, eng),
		checkLockFile(eng, flags),
	}
}

func checkGitBinary(ctx context.Context) checkResult {
	if !git.Available() {
		return checkResult{
			Name:    "Git",
			Status:  checkFail,
			Message: "git executable not found in PATH",
			Hint:    "install git and make sure it is on PATH",
		}
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	v, err := git.Version(ctx)
	if err != nil {
		return checkResult{Name: "Git", Status: checkWarn, Message: "could not read git version: " + err.Error()}
	}
	return checkResult{Name: "Git", Status: checkPass, Message: v}
}

func checkConfigFile(eng *engine.Engine) checkResult {
	if !fsutil.Exists(eng.Store.Path()) {
		return checkResult{
			Name:    "Config",
			Status:  checkWarn,
			Message: eng.Store.Path() + " not found (using defaults)",
			Hint:    "run 'claudesync workspace add <dir>' to create it",
		}
	}
	return checkResult{Name: "Config", Status: checkPass, Message: eng.Store.Path()}
}

func checkRepoClone(ctx context.Context, eng *engine.Engine) checkResult {
	if err := eng.RequireRepo(ctx); err != nil {
		return checkResult{
			Name:    "Repository",
			Status:  checkFail,
			Message: "no clone at " + eng.Repo.Dir(),
			Hint:    "git clone <your-config-repo> " + eng.Repo.Dir(),
		}
	}
	pending, err := eng.Repo.HasPendingState(ctx)
	if err != nil {
		return checkResult{Name: "Repository", Status: checkWarn, Message: "could not read state: " + err.Error()}
	}
	if pending {
		return checkResult{
			Name:    "Repository",
			Status:  checkWarn,
			Message: "uncommitted changes or unpushed commits in " + eng.Repo.Dir(),
			Hint:    "run 'claudesync pull' to reconcile, or resolve by hand with git",
		}
	}
	return checkResult{Name: "Repository", Status: checkPass, Message: eng.Repo.Dir()}
}

func checkLockFile(eng *engine.Engine, flags *doctorFlags) checkResult {
	st, err := eng.Lock.Inspect()
	if err != nil {
		return checkResult{Name: "Lock", Status: checkWarn, Message: "could not inspect lock: " + err.Error()}
	}
	if st == nil {
		return checkResult{Name: "Lock", Status: checkPass, Message: "not held"}
	}
	if !st.Stale {
		return checkResult{Name: "Lock", Status: checkPass, Message: "held by a live process"}
	}
	if flags.fix {
		if err := eng.Lock.ForceRemove(); err == nil {
			return checkResult{Name: "Lock", Status: checkPass, Message: "stale lock removed (auto-fixed)"}
		}
	}
	return checkResult{
		Name:    "Lock",
		Status:  checkWarn,
		Message: "stale lock: " + st.Reason,
		Hint:    "run 'claudesync unlock' or 'claudesync doctor --fix'",
	}
}

func runWorkspaceChecks(eng *engine.Engine, flags *doctorFlags) []checkResult {
	list, err := eng.Store.Workspaces()
	if err != nil {
		return []checkResult{{Name: "Workspaces", Status: checkFail, Message: err.Error()}}
	}
	if len(list) == 0 {
		return []checkResult{{
			Name:    "Workspaces",
			Status:  checkWarn,
			Message: "none registered",
			Hint:    "run 'claudesync workspace add <dir>'",
		}}
	}

	checks := make([]checkResult, 0, len(list))
	for _, ws := range list {
		checks = append(checks, checkWorkspace(eng, ws.Name, ws.Path, flags))
	}
	return checks
}

func checkWorkspace(eng *engine.Engine, name, dir string, flags *doctorFlags) checkResult {
	if !fsutil.IsDir(dir) {
		return checkResult{
			Name:    name,
			Status:  checkWarn,
			Message: dir + " does not exist",
			Hint:    "run 'claudesync workspace remove " + name + "' if it is gone for good",
		}
	}

	shared, err := fsutil.ReadOptional(filepath.Join(dir, eng.Layout.SharedRules))
	if err != nil {
		return checkResult{Name: name, Status: checkFail, Message: err.Error()}
	}
	private, err := fsutil.ReadOptional(filepath.Join(dir, eng.Layout.PrivateRules))
	if err != nil {
		return checkResult{Name: name, Status: checkFail, Message: err.Error()}
	}
	if shared == "" && private == "" {
		return checkResult{Name: name, Status: checkPass, Message: "no rules files"}
	}

	current, err := fsutil.ReadOptional(filepath.Join(dir, eng.Layout.MergedOutput))
	if err != nil {
		return checkResult{Name: name, Status: checkFail, Message: err.Error()}
	}
	if current == merge.Merge(shared, private) {
		return checkResult{Name: name, Status: checkPass, Message: eng.Layout.MergedOutput + " up to date"}
	}
	if flags.fix {
		if _, err := eng.Coordinator.Regenerate(dir); err == nil {
			return checkResult{Name: name, Status: checkPass, Message: eng.Layout.MergedOutput + " regenerated (auto-fixed)"}
		}
	}
	return checkResult{
		Name:    name,
		Status:  checkWarn,
		Message: eng.Layout.MergedOutput + " is out of date",
		Hint:    "run 'claudesync merge " + name + "' or 'claudesync doctor --fix'",
	}
}

func runGlobalChecks(eng *engine.Engine, flags *doctorFlags) []checkResult {
	roots := []struct{ name, dir string }{
		{"Skills", eng.Layout.GlobalSkillsRoot},
		{"Agents", eng.Layout.GlobalAgentsRoot},
	}

	if flags.fix {
		_ = eng.EnsureGlobalRoots() // reported by the checks below
	}

	checks := make([]checkResult, 0, len(roots)+1)
	for _, root := range roots {
		if fsutil.IsDir(root.dir) {
			checks = append(checks, checkResult{Name: root.name, Status: checkPass, Message: root.dir})
			continue
		}
		checks = append(checks, checkResult{
			Name:    root.name,
			Status:  checkWarn,
			Message: root.dir + " does not exist",
			Hint:    "run 'claudesync doctor --fix' to create it",
		})
	}
	return append(checks, checkSkillManifests(eng))
}

func checkSkillManifests(eng *engine.Engine) checkResult {
	skills, err := resource.ListSkills(eng.Layout.GlobalSkillsRoot, eng.Layout.SkillManifest)
	if err != nil {
		return checkResult{Name: "Manifests", Status: checkWarn, Message: err.Error()}
	}
	var missing, invalid []string
	for _, s := range skills {
		switch {
		case !s.HasManifest():
			missing = append(missing, s.ID)
		case s.Problem != "":
			invalid = append(invalid, s.ID)
		}
	}
	if len(missing) == 0 && len(invalid) == 0 {
		return checkResult{Name: "Manifests", Status: checkPass, Message: fmt.Sprintf("%d skill(s) ok", len(skills))}
	}
	if len(missing) == 0 {
		return checkResult{
			Name:    "Manifests",
			Status:  checkWarn,
			Message: fmt.Sprintf("%d skill(s) with invalid frontmatter: %v", len(invalid), invalid),
			Hint:    "fix the YAML between the --- lines",
		}
	}
	return checkResult{
		Name:    "Manifests",
		Status:  checkWarn,
		Message: fmt.Sprintf("%d skill(s) without %s: %v", len(missing), eng.Layout.SkillManifest, missing),
		Hint:    "skills without a manifest are not synced",
	}
}
