package capture

import (
	"fmt"
	"sync"

	"hindsight/internal/config"
	"hindsight/internal/core"
)

// NewFrameSource returns a frame source for the configured backend type.
func NewFrameSource(cfg config.SourceConfig) (core.FrameSource, error) {
	switch cfg.Type {
	case "synthetic":
		return NewSyntheticSource(cfg.Width, cfg.Height), nil
	case "screen":
		return nil, fmt.Errorf("screen frame source not yet implemented")
	default:
		return nil, fmt.Errorf("unknown frame source type: %s", cfg.Type)
	}
}

// NewLocationProvider returns a location provider for the configured
// backend type, or nil for "none".
func NewLocationProvider(cfg config.LocationConfig) (core.LocationProvider, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "static":
		return &staticLocation{lat: cfg.Latitude, lon: cfg.Longitude}, nil
	default:
		return nil, fmt.Errorf("unknown location provider type: %s", cfg.Type)
	}
}

// SyntheticSource produces solid-color frames that change hue on every
// acquisition. It stands in for a real screen grabber on headless hosts
// and in tests of the full pipeline.
type SyntheticSource struct {
	mu          sync.Mutex
	width       int
	height      int
	counter     uint8
	released    bool
	invalidated func()
}

func NewSyntheticSource(width, height int) *SyntheticSource {
	if width <= 0 {
		width = 64
	}
	if height <= 0 {
		height = 64
	}
	return &SyntheticSource{width: width, height: height}
}

func (s *SyntheticSource) AcquireLatest() (*core.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return nil, fmt.Errorf("frame source is released")
	}
	s.counter++
	pixels := make([]byte, 4*s.width*s.height)
	for i := 0; i < len(pixels); i += 4 {
		pixels[i] = s.counter * 16
		pixels[i+1] = 255 - s.counter*16
		pixels[i+2] = s.counter * 8
		pixels[i+3] = 255
	}
	return &core.Frame{Width: s.width, Height: s.height, Pixels: pixels}, nil
}

func (s *SyntheticSource) OnInvalidated(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidated = fn
}

func (s *SyntheticSource) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = true
	return nil
}

// staticLocation always reports the same configured fix.
type staticLocation struct {
	lat float64
	lon float64
}

func (p *staticLocation) Last() (float64, float64, bool) {
	return p.lat, p.lon, true
}

// AlwaysOnDisplay reports the display as permanently on. Hosts without a
// reachable power-state signal use this so captures are never skipped for
// a display that cannot actually turn off.
type AlwaysOnDisplay struct{}

func (AlwaysOnDisplay) On() bool { return true }
