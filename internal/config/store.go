package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gorewood/claudesync/internal/fsutil"
)

// DefaultDebounce is how long a path must stay quiet before it is handled.
const DefaultDebounce = 500 * time.Millisecond

// ErrWorkspaceNotFound is returned when removing an unregistered workspace.
var ErrWorkspaceNotFound = errors.New("workspace not registered")

// Workspace is a registered local directory.
type Workspace struct {
	Path    string    `yaml:"path"`
	Name    string    `yaml:"name"`
	AddedAt time.Time `yaml:"added_at"`
}

// RepoConfig locates the shared repository clone.
type RepoConfig struct {
	Path   string `yaml:"path,omitempty"`
	Remote string `yaml:"remote,omitempty"`
	Branch string `yaml:"branch,omitempty"`
}

// Config is the content of config.yaml.
type Config struct {
	Repo       RepoConfig  `yaml:"repo"`
	Workspaces []Workspace `yaml:"workspaces"`
	Debounce   string      `yaml:"debounce,omitempty"`
	LogLevel   string      `yaml:"log_level,omitempty"`
}

// DebounceDuration parses Debounce, falling back to DefaultDebounce.
func (c *Config) DebounceDuration() time.Duration {
	if c.Debounce == "" {
		return DefaultDebounce
	}
	d, err := time.ParseDuration(c.Debounce)
	if err != nil || d <= 0 {
		return DefaultDebounce
	}
	return d
}

// WorkspacePaths returns the registered paths in registration order.
func (c *Config) WorkspacePaths() []string {
	paths := make([]string, 0, len(c.Workspaces))
	for _, w := range c.Workspaces {
		paths = append(paths, w.Path)
	}
	return paths
}

// Workspace looks up a registered workspace by path.
func (c *Config) Workspace(path string) (Workspace, bool) {
	clean := filepath.Clean(path)
	for _, w := range c.Workspaces {
		if filepath.Clean(w.Path) == clean {
			return w, true
		}
	}
	return Workspace{}, false
}

// Store is a read-through accessor for config.yaml. Every read goes to disk,
// so edits by other processes are always seen.
type Store struct {
	path string
	now  func() time.Time
}

// NewStore returns a Store for the file at path.
func NewStore(path string) *Store {
	return &Store{path: path, now: time.Now}
}

// DefaultStore returns the Store for Dir()/config.yaml.
func DefaultStore() *Store {
	return NewStore(filepath.Join(Dir(), ConfigFile))
}

// Path returns the config file path.
func (s *Store) Path() string {
	return s.path
}

// Dir returns the directory holding the config file and its siblings.
func (s *Store) Dir() string {
	return filepath.Dir(s.path)
}

// LockPath returns the repository lock marker path.
func (s *Store) LockPath() string {
	return filepath.Join(s.Dir(), LockFile)
}

// EnvPath returns the env file path.
func (s *Store) EnvPath() string {
	return filepath.Join(s.Dir(), EnvFile)
}

// LogPath returns the daemon log file path.
func (s *Store) LogPath() string {
	return filepath.Join(s.Dir(), LogFile)
}

// Load reads the config file. A missing file yields defaults.
func (s *Store) Load() (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading config %s: %w", s.path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", s.path, err)
		}
	}
	s.applyDefaults(cfg)
	return cfg, nil
}

func (s *Store) applyDefaults(cfg *Config) {
	if cfg.Repo.Path == "" {
		cfg.Repo.Path = filepath.Join(s.Dir(), RepoDir)
	}
	if cfg.Repo.Remote == "" {
		cfg.Repo.Remote = "origin"
	}
	if cfg.Repo.Branch == "" {
		cfg.Repo.Branch = "main"
	}
}

// Save writes cfg atomically.
func (s *Store) Save(cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := fsutil.AtomicWrite(s.path, data); err != nil {
		return fmt.Errorf("writing config %s: %w", s.path, err)
	}
	return nil
}

// Workspaces returns the current registered workspaces.
func (s *Store) Workspaces() ([]Workspace, error) {
	cfg, err := s.Load()
	if err != nil {
		return nil, err
	}
	return cfg.Workspaces, nil
}

// AddWorkspace registers dir. The path is made absolute and must be an
// existing directory. Registering the same path twice returns the existing
// entry and false.
func (s *Store) AddWorkspace(dir, name string) (Workspace, bool, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Workspace{}, false, fmt.Errorf("resolving %s: %w", dir, err)
	}
	if !fsutil.IsDir(abs) {
		return Workspace{}, false, fmt.Errorf("workspace %s is not a directory", abs)
	}

	cfg, err := s.Load()
	if err != nil {
		return Workspace{}, false, err
	}
	if existing, ok := cfg.Workspace(abs); ok {
		return existing, false, nil
	}

	if strings.TrimSpace(name) == "" {
		name = filepath.Base(abs)
	}
	ws := Workspace{Path: abs, Name: name, AddedAt: s.now().UTC().Truncate(time.Second)}
	cfg.Workspaces = append(cfg.Workspaces, ws)
	sort.SliceStable(cfg.Workspaces, func(i, j int) bool {
		return cfg.Workspaces[i].AddedAt.Before(cfg.Workspaces[j].AddedAt)
	})
	if err := s.Save(cfg); err != nil {
		return Workspace{}, false, err
	}
	return ws, true, nil
}

// RemoveWorkspace unregisters dir (by path or name).
func (s *Store) RemoveWorkspace(dir string) (Workspace, error) {
	cfg, err := s.Load()
	if err != nil {
		return Workspace{}, err
	}

	abs, _ := filepath.Abs(dir)
	for i, w := range cfg.Workspaces {
		if filepath.Clean(w.Path) == abs || w.Name == dir {
			cfg.Workspaces = append(cfg.Workspaces[:i], cfg.Workspaces[i+1:]...)
			return w, s.Save(cfg)
		}
	}
	return Workspace{}, fmt.Errorf("%w: %s", ErrWorkspaceNotFound, dir)
}
