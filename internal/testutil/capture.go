package testutil

import (
	"sync"

	"hindsight/internal/core"
)

// FakeFrameSource is a core.FrameSource fed by the test. Frames are consumed
// in FIFO order; AcquireLatest returns nil when the queue is empty.
type FakeFrameSource struct {
	mu           sync.Mutex
	frames       []*core.Frame
	acquireErr   error
	released     bool
	releaseCount int
	invalidated  func()
}

func NewFakeFrameSource() *FakeFrameSource {
	return &FakeFrameSource{}
}

// Feed queues a frame for the next AcquireLatest call.
func (f *FakeFrameSource) Feed(frame *core.Frame) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, frame)
}

// FeedSolid queues a small solid-color frame.
func (f *FakeFrameSource) FeedSolid() {
	px := make([]byte, 4*4*4)
	for i := range px {
		px[i] = 0x80
	}
	f.Feed(&core.Frame{Width: 4, Height: 4, Pixels: px})
}

// FailAcquire makes subsequent AcquireLatest calls return err.
func (f *FakeFrameSource) FailAcquire(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acquireErr = err
}

func (f *FakeFrameSource) AcquireLatest() (*core.Frame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.acquireErr != nil {
		return nil, f.acquireErr
	}
	if len(f.frames) == 0 {
		return nil, nil
	}
	frame := f.frames[0]
	f.frames = f.frames[1:]
	return frame, nil
}

func (f *FakeFrameSource) OnInvalidated(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = fn
}

// Invalidate simulates the platform revoking the source out-of-band.
func (f *FakeFrameSource) Invalidate() {
	f.mu.Lock()
	fn := f.invalidated
	f.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (f *FakeFrameSource) Release() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = true
	f.releaseCount++
	return nil
}

// Released reports whether Release has been called.
func (f *FakeFrameSource) Released() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released
}

// ReleaseCount returns how many times Release has been called.
func (f *FakeFrameSource) ReleaseCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.releaseCount
}

// FakeDisplay is a core.Display whose state is set directly by the test.
type FakeDisplay struct {
	mu sync.Mutex
	on bool
}

func NewFakeDisplay(on bool) *FakeDisplay {
	return &FakeDisplay{on: on}
}

func (d *FakeDisplay) On() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.on
}

func (d *FakeDisplay) SetOn(on bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.on = on
}

// FakeLocationProvider is a core.LocationProvider returning a fixed reading.
type FakeLocationProvider struct {
	mu       sync.Mutex
	lat, lon float64
	ok       bool
}

func NewFakeLocationProvider() *FakeLocationProvider {
	return &FakeLocationProvider{}
}

func (p *FakeLocationProvider) SetFix(lat, lon float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lat, p.lon, p.ok = lat, lon, true
}

func (p *FakeLocationProvider) ClearFix() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ok = false
}

func (p *FakeLocationProvider) Last() (float64, float64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lat, p.lon, p.ok
}
