//go:build !windows

package lock

import (
	"fmt"
	"os"

	"github.com/bobg/flock"
)

var guards flock.Locker

// lockGuard takes an exclusive advisory lock on path, creating it if needed.
func lockGuard(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create guard file: %w", err)
	}
	_ = f.Close()

	if err := guards.Lock(path); err != nil {
		return nil, err
	}
	return func() { _ = guards.Unlock(path) }, nil
}
