//go:build windows

package lock

import "sync"

var guardMu sync.Mutex

// lockGuard serializes reclamation within this process. Across processes the
// marker comparison in reclaim keeps a fresh marker from being deleted.
func lockGuard(string) (func(), error) {
	guardMu.Lock()
	return guardMu.Unlock, nil
}
