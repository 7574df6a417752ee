package core_test

import (
	"sync/atomic"
	"testing"
	"time"

	"hindsight/internal/core"
	"hindsight/internal/testutil"
)

const testInterval = 5 * time.Millisecond

type loopFixture struct {
	source   *testutil.FakeFrameSource
	display  *testutil.FakeDisplay
	activity *core.ActivityTracker
	location *testutil.FakeLocationProvider
	sink     *testutil.FakeScreenSink
	clock    *testutil.ManualClock
	recorder *core.Recorder
	loop     *core.Loop
}

func newLoopFixture(t *testing.T, cfg core.LoopConfig) *loopFixture {
	t.Helper()
	if cfg.Interval == 0 {
		cfg.Interval = testInterval
	}
	f := &loopFixture{
		source:   testutil.NewFakeFrameSource(),
		display:  testutil.NewFakeDisplay(true),
		activity: core.NewActivityTracker(),
		location: testutil.NewFakeLocationProvider(),
		sink:     testutil.NewFakeScreenSink(),
		clock:    testutil.NewManualClock(),
	}
	st := testutil.NewTestStore(t, f.clock)
	f.loop = core.NewLoop(cfg, f.source, f.display, f.activity, f.location,
		f.sink, st, f.clock, core.NewNopLogger())
	f.recorder = core.NewRecorder(f.loop, core.NewNopLogger())
	t.Cleanup(f.recorder.Stop)
	return f
}

// waitFor polls cond for up to a second.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal(msg)
}

func TestLoopCapturesFrames(t *testing.T) {
	f := newLoopFixture(t, core.LoopConfig{})
	for i := 0; i < 3; i++ {
		f.source.FeedSolid()
	}
	f.activity.Touch("com-example-app")

	if err := f.recorder.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	waitFor(t, func() bool { return f.sink.SaveCount() >= 1 }, "no frame saved")
	if got := f.sink.Saves()[0].App; got != "com-example-app" {
		t.Errorf("saved frame tagged %q, want com-example-app", got)
	}
}

func TestLoopSkipsWhenInactive(t *testing.T) {
	f := newLoopFixture(t, core.LoopConfig{RecordWhenActive: true})
	f.source.FeedSolid()
	f.source.FeedSolid()

	if err := f.recorder.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// No activity signal: several intervals pass with zero files.
	time.Sleep(6 * testInterval)
	if n := f.sink.SaveCount(); n != 0 {
		t.Fatalf("saved %d frames while inactive, want 0", n)
	}

	// The chain kept rescheduling: one touch now yields a capture.
	f.activity.Touch("com-example-app")
	waitFor(t, func() bool { return f.sink.SaveCount() == 1 }, "no capture after activity")
}

func TestLoopActivityIsEdgeTriggered(t *testing.T) {
	f := newLoopFixture(t, core.LoopConfig{RecordWhenActive: true})
	for i := 0; i < 4; i++ {
		f.source.FeedSolid()
	}
	f.activity.Touch("app")

	if err := f.recorder.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// One signal is consumed by exactly one tick.
	waitFor(t, func() bool { return f.sink.SaveCount() == 1 }, "no capture")
	time.Sleep(6 * testInterval)
	if n := f.sink.SaveCount(); n != 1 {
		t.Errorf("saved %d frames from one activity signal, want 1", n)
	}
}

func TestLoopSkipsWhenDisplayOff(t *testing.T) {
	f := newLoopFixture(t, core.LoopConfig{})
	f.display.SetOn(false)
	f.source.FeedSolid()

	if err := f.recorder.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	time.Sleep(6 * testInterval)
	if n := f.sink.SaveCount(); n != 0 {
		t.Fatalf("saved %d frames with display off, want 0", n)
	}

	// Still rescheduling: turning the display back on resumes capture.
	f.display.SetOn(true)
	waitFor(t, func() bool { return f.sink.SaveCount() == 1 }, "no capture after display on")
}

func TestLoopUploadThreshold(t *testing.T) {
	f := newLoopFixture(t, core.LoopConfig{UploadThreshold: 3})
	var triggers atomic.Int32
	f.loop.SetUploadTrigger(func() { triggers.Add(1) })

	for i := 0; i < 4; i++ {
		f.source.FeedSolid()
	}
	if err := f.recorder.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// Four saves with threshold three: exactly one trigger, counter reset.
	waitFor(t, func() bool { return f.sink.SaveCount() == 4 }, "frames not saved")
	waitFor(t, func() bool { return triggers.Load() == 1 }, "upload trigger did not fire")
	time.Sleep(3 * testInterval)
	if n := triggers.Load(); n != 1 {
		t.Errorf("trigger fired %d times for 4 saves at threshold 3, want 1", n)
	}
}

func TestLoopLocationDistinctFilter(t *testing.T) {
	f := newLoopFixture(t, core.LoopConfig{LocationTracking: true})
	st := testutil.NewTestStore(t, f.clock)
	loop := core.NewLoop(core.LoopConfig{Interval: testInterval, LocationTracking: true},
		f.source, f.display, f.activity, f.location, f.sink, st, f.clock, core.NewNopLogger())
	rec := core.NewRecorder(loop, core.NewNopLogger())
	defer rec.Stop()

	f.location.SetFix(52.52, 13.405)
	if err := rec.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	waitFor(t, func() bool {
		locs, _ := st.Locations(0)
		return len(locs) == 1
	}, "location not recorded")

	// Same reading again: no duplicate row.
	time.Sleep(5 * testInterval)
	locs, _ := st.Locations(0)
	if len(locs) != 1 {
		t.Fatalf("unchanged fix produced %d rows, want 1", len(locs))
	}

	f.clock.Advance(time.Second)
	f.location.SetFix(48.86, 2.35)
	waitFor(t, func() bool {
		locs, _ := st.Locations(0)
		return len(locs) == 2
	}, "moved fix not recorded")
}

func TestLoopPauseResume(t *testing.T) {
	f := newLoopFixture(t, core.LoopConfig{})
	for i := 0; i < 10; i++ {
		f.source.FeedSolid()
	}

	if err := f.recorder.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitFor(t, func() bool { return f.sink.SaveCount() >= 1 }, "no capture before pause")

	if err := f.recorder.Pause(); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}
	// Let the in-flight tick finish and the chain die.
	time.Sleep(4 * testInterval)
	paused := f.sink.SaveCount()
	time.Sleep(4 * testInterval)
	if n := f.sink.SaveCount(); n != paused {
		t.Fatalf("captured %d frames while paused", n-paused)
	}

	if err := f.recorder.Resume(); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	waitFor(t, func() bool { return f.sink.SaveCount() > paused }, "no capture after resume")
}

func TestLoopSourceErrorStopsRecorder(t *testing.T) {
	f := newLoopFixture(t, core.LoopConfig{})
	f.source.FailAcquire(errSourceGone)

	ch, cancel := f.recorder.Subscribe()
	defer cancel()

	if err := f.recorder.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	drainUntil(t, ch, core.StateActive)
	drainUntil(t, ch, core.StateIdle)

	if !f.source.Released() {
		t.Error("capture source not released after failure stop")
	}
}
