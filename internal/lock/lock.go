// Package lock serializes mutations of the shared repository clone across
// goroutines and across processes on the same machine.
//
// The lock is a marker file created with an atomic create-if-absent. A marker
// that is too old, or whose owner process on this host has died, is stale and
// gets reclaimed. Reclamation runs under an OS advisory lock on a guard file
// so two waiters cannot both delete a freshly created marker.
package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/gorewood/claudesync/internal/output"
)

// Defaults: 150 polls at 200ms gives a 30s acquisition budget.
const (
	DefaultStaleAfter   = 5 * time.Minute
	DefaultPollInterval = 200 * time.Millisecond
	DefaultMaxRetries   = 150
)

// ErrTimeout is returned when the lock could not be acquired in time.
var ErrTimeout = errors.New("timed out waiting for repository lock")

// Marker is the content of the lock file.
type Marker struct {
	PID        int       `json:"pid"`
	Host       string    `json:"host"`
	AcquiredAt time.Time `json:"acquired_at"`
	Token      string    `json:"token"`
}

// TimeoutError names the lock file and its current holder.
type TimeoutError struct {
	Path   string
	Holder *Marker
}

func (e *TimeoutError) Error() string {
	if e.Holder == nil {
		return fmt.Sprintf("%s: %s", ErrTimeout, e.Path)
	}
	return fmt.Sprintf("%s: %s held by pid %d on %s since %s",
		ErrTimeout, e.Path, e.Holder.PID, e.Holder.Host, e.Holder.AcquiredAt.Format(time.RFC3339))
}

// Is matches ErrTimeout.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// Hint is the manual recovery action for a timeout.
func (e *TimeoutError) Hint() string {
	return fmt.Sprintf("if no other claudesync process is running, delete lock file at %s (or run 'claudesync unlock')", e.Path)
}

// AsExitError maps lock failures onto CLI exit codes. Other errors are
// returned unchanged.
func AsExitError(err error) error {
	var te *TimeoutError
	if errors.As(err, &te) {
		return output.NewLockedError(te.Error(), te.Hint(), err)
	}
	return err
}

// Options tune acquisition. Zero values take the defaults.
type Options struct {
	StaleAfter   time.Duration
	PollInterval time.Duration
	MaxRetries   int
	Logger       *log.Logger
}

// Lock guards one repository clone.
type Lock struct {
	path  string
	guard string
	opts  Options
	log   *log.Logger

	// sem serializes holders inside this process.
	sem   chan struct{}
	token string

	pid   int
	host  string
	now   func() time.Time
	alive func(pid int) bool
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Lock whose marker lives at path. The guard file used during
// stale reclamation is path + ".guard".
func New(path string, opts Options) *Lock {
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = DefaultStaleAfter
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return &Lock{
		path:  path,
		guard: path + ".guard",
		opts:  opts,
		log:   output.OrDiscard(opts.Logger),
		sem:   make(chan struct{}, 1),
		pid:   os.Getpid(),
		host:  host,
		now:   time.Now,
		alive: processAlive,
		sleep: sleepCtx,
	}
}

// Path returns the marker path.
func (l *Lock) Path() string {
	return l.path
}

// Acquire blocks until the lock is held, ctx is done, or the retry budget is
// spent. A budget timeout returns a *TimeoutError.
func (l *Lock) Acquire(ctx context.Context) error {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := l.acquireFile(ctx); err != nil {
		<-l.sem
		return err
	}
	return nil
}

func (l *Lock) acquireFile(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}

	var holder *Marker
	for attempt := 0; attempt <= l.opts.MaxRetries; attempt++ {
		marker := Marker{PID: l.pid, Host: l.host, AcquiredAt: l.now().UTC(), Token: newToken()}
		created, err := l.create(marker)
		if err != nil {
			return err
		}
		if created {
			l.token = marker.Token
			l.log.Debug("lock acquired", "path", l.path, "attempt", attempt)
			return nil
		}

		state, err := l.Inspect()
		if err != nil {
			return err
		}
		if state == nil {
			// Released between our create and read.
			continue
		}
		holder = state.Marker
		if state.Stale {
			reclaimed, err := l.reclaim(state)
			if err != nil {
				return err
			}
			if reclaimed {
				l.log.Warn("reclaimed stale lock", "path", l.path, "reason", state.Reason)
				continue
			}
		}

		if err := l.sleep(ctx, l.opts.PollInterval); err != nil {
			return err
		}
	}
	return &TimeoutError{Path: l.path, Holder: holder}
}

// create writes the marker to a temp file and hard-links it into place,
// which fails atomically when a marker already exists.
func (l *Lock) create(m Marker) (bool, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return false, fmt.Errorf("encode lock marker: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(l.path), ".lock-*")
	if err != nil {
		return false, fmt.Errorf("create lock temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return false, fmt.Errorf("write lock temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return false, fmt.Errorf("close lock temp file: %w", err)
	}

	err = os.Link(tmpPath, l.path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrExist):
		return false, nil
	}

	// Filesystems without hard links fall back to O_EXCL.
	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("create lock file: %w", err)
	}
	_, werr := f.Write(data)
	cerr := f.Close()
	if werr != nil || cerr != nil {
		_ = os.Remove(l.path)
		return false, fmt.Errorf("write lock file: %w", errors.Join(werr, cerr))
	}
	return true, nil
}

// reclaim deletes a stale marker if it is still the same marker once the
// guard is held.
func (l *Lock) reclaim(seen *State) (bool, error) {
	unlock, err := lockGuard(l.guard)
	if err != nil {
		return false, fmt.Errorf("lock guard: %w", err)
	}
	defer unlock()

	current, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("read lock file: %w", err)
	}
	if string(current) != string(seen.raw) {
		return false, nil
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("remove stale lock: %w", err)
	}
	return true, nil
}

// Release drops the lock if this Lock holds it. It is safe to call more than
// once and never fails; problems are logged.
func (l *Lock) Release() {
	select {
	case <-l.sem:
	default:
		return
	}
	token := l.token
	l.token = ""

	state, err := l.Inspect()
	if err != nil {
		l.log.Warn("reading lock on release", "path", l.path, "error", err)
		return
	}
	if state == nil || state.Marker == nil || state.Marker.Token != token {
		l.log.Warn("lock marker no longer ours, leaving it", "path", l.path)
		return
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		l.log.Warn("removing lock file", "path", l.path, "error", err)
		return
	}
	l.log.Debug("lock released", "path", l.path)
}

// WithLock runs fn while holding the lock and releases it on every exit path.
// Cancelling ctx interrupts acquisition only: fn receives a context that is
// detached from cancellation so a started mutation always finishes.
func (l *Lock) WithLock(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := l.Acquire(ctx); err != nil {
		return err
	}
	defer l.Release()
	return fn(context.WithoutCancel(ctx))
}

// State describes the marker currently on disk.
type State struct {
	Marker *Marker // nil when the file could not be parsed
	Age    time.Duration
	Stale  bool
	Reason string

	raw []byte
}

// Inspect reads the current marker. It returns nil, nil when the lock is free.
func (l *Lock) Inspect() (*State, error) {
	raw, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read lock file: %w", err)
	}

	st := &State{raw: raw}
	var m Marker
	if jerr := json.Unmarshal(raw, &m); jerr == nil && !m.AcquiredAt.IsZero() {
		st.Marker = &m
		st.Age = l.now().Sub(m.AcquiredAt)
	} else {
		// Torn or foreign file: fall back to its modification time.
		info, serr := os.Stat(l.path)
		if errors.Is(serr, fs.ErrNotExist) {
			return nil, nil
		}
		if serr != nil {
			return nil, fmt.Errorf("stat lock file: %w", serr)
		}
		st.Age = l.now().Sub(info.ModTime())
	}
	st.Stale, st.Reason = l.stale(st)
	return st, nil
}

func (l *Lock) stale(st *State) (bool, string) {
	if st.Age > l.opts.StaleAfter {
		return true, fmt.Sprintf("older than %s", l.opts.StaleAfter)
	}
	if m := st.Marker; m != nil && m.Host == l.host && m.PID > 0 && !l.alive(m.PID) {
		return true, fmt.Sprintf("process %d no longer exists", m.PID)
	}
	return false, ""
}

// ForceRemove deletes the marker regardless of owner. It is the manual
// recovery path behind 'claudesync unlock'.
func (l *Lock) ForceRemove() error {
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove lock file: %w", err)
	}
	return nil
}

func newToken() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
