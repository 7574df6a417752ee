package core

import (
	"sync"
	"time"
)

// ScreenSink persists an acquired frame as a pending screenshot file and
// returns the written path.
type ScreenSink interface {
	SaveFrame(frame *Frame, app string, tsMillis int64) (string, error)
}

// LoopConfig carries the capture loop's tunables.
type LoopConfig struct {
	// Interval between ticks. The next tick is scheduled only after the
	// previous one fully completes, so ticks never overlap.
	Interval time.Duration

	// RecordWhenActive skips capture when no activity signal arrived since
	// the previous tick.
	RecordWhenActive bool

	// LocationTracking enables the per-tick location poll.
	LocationTracking bool

	// UploadThreshold is the number of saved screenshots that triggers an
	// asynchronous upload. Zero disables the trigger.
	UploadThreshold int
}

// Loop is the periodic screen-capture loop. One tick polls location,
// evaluates skip conditions, acquires the latest frame and hands it to the
// sink. The loop self-reschedules: pausing simply stops the chain from being
// re-posted, and resuming re-posts exactly one tick only if the chain had
// actually died.
//
// Loop is driven by the Recorder; it is not safe to call start/pause/resume
// concurrently from multiple goroutines other than through the Recorder.
type Loop struct {
	cfg      LoopConfig
	source   FrameSource
	display  Display
	activity *ActivityTracker
	location LocationProvider
	sink     ScreenSink
	store    Store
	clock    Clock
	logger   Logger

	// onUploadTrigger fires (on its own goroutine) when the since-upload
	// counter reaches the threshold. May be nil.
	onUploadTrigger func()

	// onSourceFailure reports a broken capture source; the Recorder routes
	// it into Stop so the teardown funnels through the state machine.
	onSourceFailure func()

	mu          sync.Mutex
	active      bool
	loopStopped bool
	stopped     bool
	timer       *time.Timer
	sinceUpload int
}

// NewLoop wires a capture loop. location may be nil when location tracking
// is disabled; onUploadTrigger may be nil.
func NewLoop(cfg LoopConfig, source FrameSource, display Display, activity *ActivityTracker,
	location LocationProvider, sink ScreenSink, store Store, clock Clock, logger Logger) *Loop {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	return &Loop{
		cfg:      cfg,
		source:   source,
		display:  display,
		activity: activity,
		location: location,
		sink:     sink,
		store:    store,
		clock:    clock,
		logger:   logger,
	}
}

// SetUploadTrigger registers the threshold callback.
func (l *Loop) SetUploadTrigger(fn func()) { l.onUploadTrigger = fn }

// setSourceFailureHandler is called by the Recorder during Start.
func (l *Loop) setSourceFailureHandler(fn func()) { l.onSourceFailure = fn }

// start schedules the first tick.
func (l *Loop) start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}
	l.active = true
	l.loopStopped = false
	l.timer = time.AfterFunc(l.cfg.Interval, l.tick)
}

// pause stops the chain from being re-posted. A tick already scheduled will
// still fire, observe the paused state and let the chain die.
func (l *Loop) pause() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.active = false
}

// resume re-posts one tick, but only if the chain actually stopped. If a
// pending tick is still in flight the chain continues by itself and posting
// another would double-schedule.
func (l *Loop) resume() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}
	l.active = true
	if l.loopStopped {
		l.loopStopped = false
		l.timer = time.AfterFunc(l.cfg.Interval, l.tick)
	}
}

// stop cancels the pending tick and releases the capture source, in that
// order, synchronously. Safe to call twice.
func (l *Loop) stop() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.stopped = true
	l.active = false
	if l.timer != nil {
		l.timer.Stop()
	}
	l.mu.Unlock()

	// Release order matters: the image source owns OS-level capture
	// resources that must go before the loop object is discarded.
	if err := l.source.Release(); err != nil {
		l.logger.Warn("releasing capture source", "error", err)
	}
}

// tick is one iteration of the capture loop. Every external-resource error
// is caught here and converted into skip-this-tick or a full stop; a tick
// never panics the process.
func (l *Loop) tick() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	if !l.active {
		// Paused between scheduling and firing: let the chain die.
		l.loopStopped = true
		l.mu.Unlock()
		return
	}
	l.mu.Unlock()

	l.pollLocation()

	if !l.display.On() {
		l.logger.Debug("skipping capture, display off")
		l.reschedule()
		return
	}

	if l.cfg.RecordWhenActive && !l.activity.Active() {
		l.logger.Debug("skipping capture, user inactive")
		l.reschedule()
		return
	}

	frame, err := l.source.AcquireLatest()
	if err != nil {
		// A broken source is an unsolicited stop, not a skippable error.
		l.logger.Error("capture source failed", "error", err)
		if l.onSourceFailure != nil {
			l.onSourceFailure()
		}
		return
	}

	if frame != nil {
		app := l.activity.Application()
		if app == "" {
			app = "unknown"
		}
		ts := l.clock.Now().UnixMilli()
		if path, err := l.sink.SaveFrame(frame, app, ts); err != nil {
			l.logger.Error("failed to save screenshot", "error", err)
		} else {
			l.logger.Debug("screenshot saved", "path", path)
			l.countScreenshot()
		}
	}

	// Edge-triggered: each tick consumes at most one activity signal.
	l.activity.Reset()
	l.reschedule()
}

// pollLocation samples the last-known location and persists it only when it
// differs from the most recent stored sample.
func (l *Loop) pollLocation() {
	if !l.cfg.LocationTracking || l.location == nil {
		return
	}
	lat, lon, ok := l.location.Last()
	if !ok {
		return
	}
	last, err := l.store.LastLocation()
	if err != nil {
		l.logger.Warn("reading last location", "error", err)
		return
	}
	if last != nil && last.Latitude == lat && last.Longitude == lon {
		return
	}
	if _, err := l.store.AddLocation(lat, lon); err != nil {
		l.logger.Warn("recording location", "error", err)
	}
}

// countScreenshot advances the since-upload counter and fires the upload
// trigger when the threshold is reached. The trigger is fire-and-forget:
// its failure never blocks capture.
func (l *Loop) countScreenshot() {
	l.mu.Lock()
	l.sinceUpload++
	fire := l.cfg.UploadThreshold > 0 && l.sinceUpload >= l.cfg.UploadThreshold
	if fire {
		l.sinceUpload = 0
	}
	fn := l.onUploadTrigger
	l.mu.Unlock()

	if fire && fn != nil {
		go fn()
	}
}

// reschedule posts the next tick if the loop is still active; otherwise the
// chain dies and loopStopped records that fact for resume.
func (l *Loop) reschedule() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}
	if l.active {
		l.loopStopped = false
		l.timer = time.AfterFunc(l.cfg.Interval, l.tick)
	} else {
		l.loopStopped = true
	}
}
