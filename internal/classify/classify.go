// Package classify decides what a changed file path means to the sync engine.
//
// Classification is a total function: every path maps to exactly one
// Category, with Unrelated as the fallback.
package classify

import (
	"path/filepath"
	"strings"
)

// Category is the kind of file a path refers to.
type Category int

// Categories, in no particular order. The zero value is Unrelated.
const (
	Unrelated Category = iota
	SharedRule
	PrivateRule
	GlobalSkill
	LocalSkill
	GlobalAgent
	LocalAgent
)

var categoryNames = map[Category]string{
	Unrelated:   "unrelated",
	SharedRule:  "shared-rule",
	PrivateRule: "private-rule",
	GlobalSkill: "global-skill",
	LocalSkill:  "local-skill",
	GlobalAgent: "global-agent",
	LocalAgent:  "local-agent",
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "unknown"
}

// IsGlobal reports whether the category is mirrored to the repository.
func (c Category) IsGlobal() bool {
	return c == GlobalSkill || c == GlobalAgent
}

// Result is the classification of one path.
type Result struct {
	Category Category
	Path     string
	// ID is the skill directory name or the agent file name without its
	// extension. Empty for rule files.
	ID string
	// RepoPath is where a global resource lives in the repository.
	RepoPath string
	// Workspace is the directory holding a rule file.
	Workspace string
}

// Classifier maps paths to categories for a fixed Layout.
type Classifier struct {
	layout Layout
}

// New creates a Classifier.
func New(layout Layout) *Classifier {
	return &Classifier{layout: layout}
}

// Layout returns the layout the classifier was built with.
func (c *Classifier) Layout() Layout {
	return c.layout
}

// Classify returns the category of path. Rules are checked in order:
// skill manifest, agent markdown under an agents directory, shared rules,
// private rules.
func (c *Classifier) Classify(path string) Result {
	path = filepath.Clean(path)
	base := filepath.Base(path)
	res := Result{Category: Unrelated, Path: path}

	switch {
	case strings.EqualFold(base, c.layout.SkillManifest):
		res.ID = filepath.Base(filepath.Dir(path))
		res.Category = LocalSkill
		if IsUnder(path, c.layout.GlobalSkillsRoot, c.layout.FoldCase) {
			res.Category = GlobalSkill
			res.RepoPath = RepoSkillPath(res.ID, base)
		}
	case inAgentsDir(path) && strings.EqualFold(filepath.Ext(base), ".md"):
		res.ID = strings.TrimSuffix(base, filepath.Ext(base))
		res.Category = LocalAgent
		if IsUnder(path, c.layout.GlobalAgentsRoot, c.layout.FoldCase) {
			res.Category = GlobalAgent
			res.RepoPath = RepoAgentPath(base)
		}
	case base == c.layout.SharedRules:
		res.Category = SharedRule
		res.Workspace = filepath.Dir(path)
	case base == c.layout.PrivateRules:
		res.Category = PrivateRule
		res.Workspace = filepath.Dir(path)
	}
	return res
}

func inAgentsDir(path string) bool {
	sep := string(filepath.Separator)
	return strings.Contains(filepath.ToSlash(path), "/agents/") ||
		strings.Contains(path, sep+"agents"+sep)
}

// SamePath reports whether a and b name the same location once cleaned.
func SamePath(a, b string, foldCase bool) bool {
	a, b = filepath.Clean(a), filepath.Clean(b)
	if foldCase {
		return strings.EqualFold(a, b)
	}
	return a == b
}

// IsUnder reports whether path is root itself or lies inside it. The
// comparison is segment-aware: "/a/skills-old/x" is not under "/a/skills".
func IsUnder(path, root string, foldCase bool) bool {
	if root == "" {
		return false
	}
	path = filepath.Clean(path)
	root = filepath.Clean(root)
	if foldCase {
		path = strings.ToLower(path)
		root = strings.ToLower(root)
	}
	if path == root {
		return true
	}
	if !strings.HasSuffix(root, string(filepath.Separator)) {
		root += string(filepath.Separator)
	}
	return strings.HasPrefix(path, root)
}
