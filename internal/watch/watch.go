// Package watch turns raw filesystem events into settled change events.
//
// Events are debounced per path: a new event for a path restarts its timer
// and the change fires only once the path has been quiet for the debounce
// interval. While a path's handler is running, further settled events for
// that path are skipped rather than queued.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/gorewood/claudesync/internal/output"
)

// DefaultDebounce is the quiet period before a change fires.
const DefaultDebounce = 500 * time.Millisecond

// Op is what happened to a path, decided when the event settles.
type Op int

// Operations.
const (
	Changed Op = iota
	Removed
)

// Event is a settled change.
type Event struct {
	Path string
	Op   Op
}

// Handler processes a settled event. It runs on its own goroutine.
type Handler func(ctx context.Context, ev Event)

// Target is one watched path.
type Target struct {
	Path      string
	Recursive bool
}

// Options configure a Detector.
type Options struct {
	Debounce time.Duration
	Backend  Backend
	Logger   *log.Logger

	// ConfigPath is watched through its directory; a settled change calls
	// OnConfigChange instead of the handler.
	ConfigPath     string
	OnConfigChange func(ctx context.Context)

	// Filter drops raw events early. Nil keeps everything.
	Filter func(path string) bool
}

// Detector debounces raw events and dispatches them to a Handler.
type Detector struct {
	handler Handler
	opts    Options
	backend Backend
	log     *log.Logger

	mu         sync.Mutex
	ctx        context.Context
	targets    map[string]Target
	timers     map[string]*pending
	processing map[string]bool
	seq        uint64
	closed     bool
	inflight   sync.WaitGroup
}

// New creates a Detector. opts.Backend defaults to a notify backend.
func New(handler Handler, opts Options) *Detector {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Backend == nil {
		opts.Backend = NewNotifyBackend()
	}
	return &Detector{
		handler:    handler,
		opts:       opts,
		backend:    opts.Backend,
		log:        output.OrDiscard(opts.Logger),
		ctx:        context.Background(),
		targets:    make(map[string]Target),
		timers:     make(map[string]*pending),
		processing: make(map[string]bool),
	}
}

// SetPaths makes the watched set equal targets. Paths already watched with
// the same mode are left alone; missing paths are logged and skipped.
func (d *Detector) SetPaths(targets []Target) error {
	want := make(map[string]Target, len(targets))
	for _, t := range targets {
		t.Path = filepath.Clean(t.Path)
		want[t.Path] = t
	}
	if d.opts.ConfigPath != "" {
		dir := filepath.Dir(filepath.Clean(d.opts.ConfigPath))
		if _, ok := want[dir]; !ok {
			want[dir] = Target{Path: dir}
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	add, remove := diffPaths(d.targets, want)
	var errs []error
	for _, t := range remove {
		if err := d.backend.Remove(t.Path); err != nil {
			errs = append(errs, err)
		}
		delete(d.targets, t.Path)
	}
	for _, t := range add {
		if _, err := os.Stat(t.Path); errors.Is(err, fs.ErrNotExist) {
			d.log.Debug("watch target missing, skipping", "path", t.Path)
			continue
		}
		if err := d.backend.Add(t.Path, t.Recursive); err != nil {
			errs = append(errs, err)
			continue
		}
		d.targets[t.Path] = t
	}
	d.log.Debug("watch set updated", "added", len(add), "removed", len(remove), "watching", len(d.targets))
	return errors.Join(errs...)
}

// Paths returns the watched paths, sorted.
func (d *Detector) Paths() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	paths := make([]string, 0, len(d.targets))
	for p := range d.targets {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// diffPaths returns the targets to add and remove to go from have to want.
// A target whose recursion mode changed is both removed and re-added.
func diffPaths(have, want map[string]Target) (add, remove []Target) {
	for p, t := range have {
		if w, ok := want[p]; !ok || w.Recursive != t.Recursive {
			remove = append(remove, t)
		}
	}
	for p, w := range want {
		if t, ok := have[p]; !ok || t.Recursive != w.Recursive {
			add = append(add, w)
		}
	}
	sort.Slice(add, func(i, j int) bool { return add[i].Path < add[j].Path })
	sort.Slice(remove, func(i, j int) bool { return remove[i].Path < remove[j].Path })
	return add, remove
}

// Run dispatches events until ctx is done, then cancels pending timers,
// waits for running handlers and closes the backend.
func (d *Detector) Run(ctx context.Context) error {
	d.mu.Lock()
	d.ctx = ctx
	d.mu.Unlock()

	events := d.backend.Events()
	for {
		select {
		case <-ctx.Done():
			return d.shutdown()
		case path := <-events:
			d.schedule(path)
		}
	}
}

func (d *Detector) shutdown() error {
	d.mu.Lock()
	d.closed = true
	for path, p := range d.timers {
		p.timer.Stop()
		delete(d.timers, path)
	}
	d.mu.Unlock()

	d.inflight.Wait()
	d.log.Debug("detector stopped")
	return d.backend.Close()
}

func (d *Detector) schedule(path string) {
	path = filepath.Clean(path)
	if d.opts.Filter != nil && !d.opts.Filter(path) && !d.isConfig(path) {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	if p, ok := d.timers[path]; ok {
		p.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.timers[path] = &pending{
		seq:   seq,
		timer: time.AfterFunc(d.opts.Debounce, func() { d.fire(path, seq) }),
	}
}

// pending is a debounce timer. seq tells a superseded timer that already
// fired apart from the current one.
type pending struct {
	seq   uint64
	timer *time.Timer
}

func (d *Detector) fire(path string, seq uint64) {
	d.mu.Lock()
	if p, ok := d.timers[path]; !ok || p.seq != seq || d.closed {
		d.mu.Unlock()
		return
	}
	delete(d.timers, path)
	if d.processing[path] {
		d.mu.Unlock()
		d.log.Info("change already being processed, skipping", "path", path)
		return
	}
	d.processing[path] = true
	d.inflight.Add(1)
	ctx := d.ctx
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		delete(d.processing, path)
		d.mu.Unlock()
		d.inflight.Done()
	}()

	if d.isConfig(path) {
		if d.opts.OnConfigChange != nil {
			d.opts.OnConfigChange(ctx)
		}
		return
	}

	ev := Event{Path: path, Op: Changed}
	if _, err := os.Lstat(path); errors.Is(err, fs.ErrNotExist) {
		ev.Op = Removed
	}
	d.handler(ctx, ev)
}

func (d *Detector) isConfig(path string) bool {
	return d.opts.ConfigPath != "" && path == filepath.Clean(d.opts.ConfigPath)
}
