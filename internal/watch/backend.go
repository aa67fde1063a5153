package watch

import (
	"fmt"
	"sync"

	"github.com/rjeczalik/notify"
)

// Backend delivers raw filesystem events for a set of watched paths.
type Backend interface {
	// Add starts watching path. A recursive watch covers the whole subtree.
	Add(path string, recursive bool) error
	// Remove stops watching path.
	Remove(path string) error
	// Events carries the paths of raw events from every watch.
	Events() <-chan string
	// Close stops every watch.
	Close() error
}

// NotifyBackend watches with rjeczalik/notify, one channel per path.
type NotifyBackend struct {
	mu      sync.Mutex
	watches map[string]*notifyWatch
	events  chan string
	closed  bool
}

type notifyWatch struct {
	ch   chan notify.EventInfo
	done chan struct{}
}

// NewNotifyBackend creates a backend with no watches.
func NewNotifyBackend() *NotifyBackend {
	return &NotifyBackend{
		watches: make(map[string]*notifyWatch),
		events:  make(chan string, 256),
	}
}

// Add implements Backend.
func (b *NotifyBackend) Add(path string, recursive bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("watch %s: backend closed", path)
	}
	if _, ok := b.watches[path]; ok {
		return nil
	}

	w := &notifyWatch{
		ch:   make(chan notify.EventInfo, 100),
		done: make(chan struct{}),
	}
	target := path
	if recursive {
		target = path + "/..."
	}
	if err := notify.Watch(target, w.ch, notify.All); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	b.watches[path] = w
	go b.forward(w)
	return nil
}

func (b *NotifyBackend) forward(w *notifyWatch) {
	for {
		select {
		case <-w.done:
			return
		case ev := <-w.ch:
			select {
			case b.events <- ev.Path():
			case <-w.done:
				return
			}
		}
	}
}

// Remove implements Backend.
func (b *NotifyBackend) Remove(path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	w, ok := b.watches[path]
	if !ok {
		return nil
	}
	notify.Stop(w.ch)
	close(w.done)
	delete(b.watches, path)
	return nil
}

// Events implements Backend.
func (b *NotifyBackend) Events() <-chan string {
	return b.events
}

// Close implements Backend. The events channel is left open; readers stop
// on their own context.
func (b *NotifyBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for path, w := range b.watches {
		notify.Stop(w.ch)
		close(w.done)
		delete(b.watches, path)
	}
	b.closed = true
	return nil
}
