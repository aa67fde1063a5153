// Package resource discovers skills and agents on disk and reads their
// manifest frontmatter.
package resource

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind distinguishes skills from agents.
type Kind string

// Resource kinds.
const (
	Skill Kind = "skill"
	Agent Kind = "agent"
)

// Resource is one skill or agent found under a root directory.
type Resource struct {
	Kind Kind
	ID   string
	// Path is the manifest (skill) or file (agent). Empty when a skill
	// directory has no manifest.
	Path string

	// From the manifest frontmatter. Name falls back to ID.
	Name        string
	Description string
	Model       string
	// Problem holds the frontmatter parse error, if any.
	Problem string
}

// HasManifest reports whether the resource has a file to sync.
func (r Resource) HasManifest() bool {
	return r.Path != ""
}

// Manifest is the frontmatter of a skill manifest or agent file.
type Manifest struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Model       string `yaml:"model,omitempty"`

	// Body after frontmatter
	Body string `yaml:"-"`
}

// ReadManifest loads and parses the file at path.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return ParseManifest(string(data))
}

// ParseManifest parses raw content with optional YAML frontmatter.
func ParseManifest(raw string) (*Manifest, error) {
	frontmatter, body := splitFrontmatter(raw)

	var m Manifest
	if frontmatter != "" {
		if err := yaml.Unmarshal([]byte(frontmatter), &m); err != nil {
			return nil, fmt.Errorf("invalid frontmatter: %w", err)
		}
	}
	m.Body = strings.TrimSpace(body)
	return &m, nil
}

// splitFrontmatter separates YAML frontmatter from content.
// Frontmatter is delimited by --- at the start and end.
func splitFrontmatter(raw string) (frontmatter, content string) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "---") {
		return "", raw
	}

	before, after, ok := strings.Cut(raw[3:], "\n---")
	if !ok {
		return "", raw
	}
	return strings.TrimSpace(before), strings.TrimSpace(after)
}

// FindManifest returns the path of the file in dir whose name matches
// manifest case-insensitively.
func FindManifest(dir, manifest string) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(e.Name(), manifest) {
			return filepath.Join(dir, e.Name()), true
		}
	}
	return "", false
}

// ListSkills returns one Resource per sub-directory of root, sorted by ID.
// A missing root yields nil.
func ListSkills(root, manifest string) ([]Resource, error) {
	entries, err := readDir(root)
	if err != nil {
		return nil, err
	}
	var out []Resource
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		path, _ := FindManifest(filepath.Join(root, e.Name()), manifest)
		out = append(out, describe(Resource{Kind: Skill, ID: e.Name(), Path: path}))
	}
	return out, nil
}

// ListAgents returns the markdown files directly under root, sorted by ID.
// A missing root yields nil.
func ListAgents(root string) ([]Resource, error) {
	entries, err := readDir(root)
	if err != nil {
		return nil, err
	}
	var out []Resource
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.EqualFold(filepath.Ext(name), ".md") {
			continue
		}
		out = append(out, describe(Resource{
			Kind: Agent,
			ID:   strings.TrimSuffix(name, filepath.Ext(name)),
			Path: filepath.Join(root, name),
		}))
	}
	return out, nil
}

// describe fills r's metadata from its manifest frontmatter.
func describe(r Resource) Resource {
	r.Name = r.ID
	if !r.HasManifest() {
		return r
	}
	m, err := ReadManifest(r.Path)
	if err != nil {
		r.Problem = err.Error()
		return r
	}
	if m.Name != "" {
		r.Name = m.Name
	}
	r.Description, r.Model = m.Description, m.Model
	return r
}

func readDir(root string) ([]os.DirEntry, error) {
	entries, err := os.ReadDir(root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", root, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	return entries, nil
}
