package core

import "sync"

// ActivityTracker is the shared "latest activity" cell written by the
// system event source and read by the capture loop. The two sides live in
// independent concurrency domains, so the cell is mutex-guarded and
// deliberately eventually consistent: a reader may observe a value up to
// one tick interval stale.
type ActivityTracker struct {
	mu          sync.RWMutex
	userActive  bool
	application string
}

func NewActivityTracker() *ActivityTracker {
	return &ActivityTracker{}
}

// Touch records an inbound activity event. A non-empty app also updates the
// current foreground application.
func (t *ActivityTracker) Touch(app string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.userActive = true
	if app != "" {
		t.application = app
	}
}

// Active reports whether any activity arrived since the last Reset.
func (t *ActivityTracker) Active() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.userActive
}

// Application returns the last seen foreground application, possibly "".
func (t *ActivityTracker) Application() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.application
}

// Reset consumes the activity flag. The capture loop calls this at the end
// of each tick so every tick sees at most one activity signal.
func (t *ActivityTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.userActive = false
}
