package scheduler

import "sync"

var (
	activeScheduler Submitter
	schedulerMu     sync.RWMutex
)

// SetActiveScheduler configures the submitter instance that the application should use.
// Passing nil clears any previously configured submitter.
func SetActiveScheduler(s Submitter) {
	schedulerMu.Lock()
	defer schedulerMu.Unlock()
	activeScheduler = s
}

// ActiveScheduler returns the currently configured submitter instance (may be nil).
func ActiveScheduler() Submitter {
	schedulerMu.RLock()
	defer schedulerMu.RUnlock()
	return activeScheduler
}

// ClearActiveScheduler resets the active submitter reference.
func ClearActiveScheduler() {
	SetActiveScheduler(nil)
}
