package classify

import (
	"path/filepath"
	"runtime"
)

// Well-known file names.
const (
	SharedRulesFile  = "CLAUDE.shared.md"
	PrivateRulesFile = "CLAUDE.local.md"
	MergedOutputFile = "CLAUDE.md"
	RepoRulesFile    = "CLAUDE.md"
	SkillManifest    = "SKILL.md"

	RepoSkillsDir = "skills"
	RepoAgentsDir = "agents"
)

// Layout names every file and root the engine reads or writes.
type Layout struct {
	SharedRules   string // workspace shared-rules file name
	PrivateRules  string // workspace private-rules file name
	MergedOutput  string // workspace merged-output file name
	RepoRules     string // canonical shared-rules file at the repository root
	SkillManifest string // matched case-insensitively

	GlobalSkillsRoot string
	GlobalAgentsRoot string

	// FoldCase makes global-root comparisons case-insensitive.
	FoldCase bool
}

// DefaultLayout returns the standard layout for the given home directory.
func DefaultLayout(home string) Layout {
	return Layout{
		SharedRules:      SharedRulesFile,
		PrivateRules:     PrivateRulesFile,
		MergedOutput:     MergedOutputFile,
		RepoRules:        RepoRulesFile,
		SkillManifest:    SkillManifest,
		GlobalSkillsRoot: filepath.Join(home, ".claude", "skills"),
		GlobalAgentsRoot: filepath.Join(home, ".claude", "agents"),
		FoldCase:         caseInsensitiveFS(runtime.GOOS),
	}
}

func caseInsensitiveFS(goos string) bool {
	return goos == "darwin" || goos == "windows"
}

// WorkspaceSkillsDir returns the local skills directory of a workspace.
func WorkspaceSkillsDir(workspace string) string {
	return filepath.Join(workspace, ".claude", "skills")
}

// WorkspaceAgentsDir returns the local agents directory of a workspace.
func WorkspaceAgentsDir(workspace string) string {
	return filepath.Join(workspace, ".claude", "agents")
}

// RepoSkillPath is the slash-separated repository path of a skill manifest.
func RepoSkillPath(id, manifest string) string {
	return RepoSkillsDir + "/" + id + "/" + manifest
}

// RepoAgentPath is the slash-separated repository path of an agent file.
func RepoAgentPath(file string) string {
	return RepoAgentsDir + "/" + file
}
