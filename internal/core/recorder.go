package core

import (
	"fmt"
	"sync"
)

// State is the recorder lifecycle state shared by all capture-like services.
type State int

const (
	StateIdle State = iota
	StateActive
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StatePaused:
		return "paused"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Recorder is the lifecycle state machine around the capture loop:
// Idle → Active → Paused → Active → Idle. Paused is reachable only from
// Active; Idle is terminal and re-entrant only via a fresh Start.
//
// State changes are pushed to every subscriber, exactly once per actual
// transition. External terminations (a revoked capture source) funnel
// through the same Stop path, so subscribers always learn about the stop.
type Recorder struct {
	loop   *Loop
	logger Logger

	mu      sync.Mutex
	state   State
	subs    map[int]chan State
	nextSub int
}

func NewRecorder(loop *Loop, logger Logger) *Recorder {
	r := &Recorder{
		loop:   loop,
		logger: logger,
		subs:   make(map[int]chan State),
	}
	loop.setSourceFailureHandler(r.Stop)
	loop.source.OnInvalidated(r.Stop)
	return r
}

// State returns the current lifecycle state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Subscribe registers a state-change observer. The returned channel is
// buffered; the cancel function removes the subscription.
func (r *Recorder) Subscribe() (<-chan State, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextSub
	r.nextSub++
	ch := make(chan State, 16)
	r.subs[id] = ch

	cancel := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.subs, id)
	}
	return ch, cancel
}

// notifyLocked pushes the current state to all subscribers. Callers hold mu.
// A subscriber that stopped draining its channel misses updates rather than
// blocking the recorder.
func (r *Recorder) notifyLocked() {
	for _, ch := range r.subs {
		select {
		case ch <- r.state:
		default:
		}
	}
}

// Start begins the capture tick chain. Only valid from Idle.
func (r *Recorder) Start() error {
	r.mu.Lock()
	if r.state != StateIdle {
		r.mu.Unlock()
		return fmt.Errorf("cannot start recorder in state %s", r.state)
	}
	r.state = StateActive
	r.notifyLocked()
	r.mu.Unlock()

	r.loop.start()
	r.logger.Info("recorder started")
	return nil
}

// Pause stops the tick chain from being re-posted. Only valid from Active.
func (r *Recorder) Pause() error {
	r.mu.Lock()
	if r.state != StateActive {
		r.mu.Unlock()
		return fmt.Errorf("cannot pause recorder in state %s", r.state)
	}
	r.state = StatePaused
	r.notifyLocked()
	r.mu.Unlock()

	r.loop.pause()
	r.logger.Info("recorder paused")
	return nil
}

// Resume re-posts the tick chain if it had actually stopped. Only valid
// from Paused.
func (r *Recorder) Resume() error {
	r.mu.Lock()
	if r.state != StatePaused {
		r.mu.Unlock()
		return fmt.Errorf("cannot resume recorder in state %s", r.state)
	}
	r.state = StateActive
	r.notifyLocked()
	r.mu.Unlock()

	r.loop.resume()
	r.logger.Info("recorder resumed")
	return nil
}

// Stop moves to Idle from any state and releases all capture resources.
// Idempotent: a second call is a no-op and subscribers are notified at most
// once per actual transition into Idle.
func (r *Recorder) Stop() {
	r.mu.Lock()
	already := r.state == StateIdle
	if !already {
		r.state = StateIdle
		r.notifyLocked()
	}
	r.mu.Unlock()

	// Loop teardown is itself idempotent; run it even on a repeat call so
	// an out-of-band invalidation racing a user stop cannot leak the source.
	r.loop.stop()
	if !already {
		r.logger.Info("recorder stopped")
	}
}
