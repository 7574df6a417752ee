package capture

import (
	"bytes"
	"testing"

	"hindsight/internal/config"
)

func TestNewFrameSource(t *testing.T) {
	t.Run("synthetic", func(t *testing.T) {
		src, err := NewFrameSource(config.SourceConfig{Type: "synthetic", Width: 4, Height: 4})
		if err != nil {
			t.Fatalf("failed to create synthetic source: %v", err)
		}
		defer src.Release()

		first, err := src.AcquireLatest()
		if err != nil {
			t.Fatalf("failed to acquire frame: %v", err)
		}
		if first.Width != 4 || first.Height != 4 || len(first.Pixels) != 64 {
			t.Errorf("unexpected frame geometry: %dx%d, %d bytes", first.Width, first.Height, len(first.Pixels))
		}

		second, err := src.AcquireLatest()
		if err != nil {
			t.Fatalf("failed to acquire second frame: %v", err)
		}
		if bytes.Equal(first.Pixels, second.Pixels) {
			t.Error("expected consecutive synthetic frames to differ")
		}
	})

	t.Run("screen is not implemented", func(t *testing.T) {
		if _, err := NewFrameSource(config.SourceConfig{Type: "screen"}); err == nil {
			t.Error("expected error for screen source")
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		if _, err := NewFrameSource(config.SourceConfig{Type: "webcam"}); err == nil {
			t.Error("expected error for unknown source type")
		}
	})
}

func TestSyntheticSourceReleased(t *testing.T) {
	src := NewSyntheticSource(4, 4)
	if err := src.Release(); err != nil {
		t.Fatalf("failed to release: %v", err)
	}
	if _, err := src.AcquireLatest(); err == nil {
		t.Error("expected error acquiring from a released source")
	}
}

func TestNewLocationProvider(t *testing.T) {
	t.Run("none", func(t *testing.T) {
		p, err := NewLocationProvider(config.LocationConfig{Type: "none"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p != nil {
			t.Error("expected nil provider for none")
		}
	})

	t.Run("static", func(t *testing.T) {
		p, err := NewLocationProvider(config.LocationConfig{Type: "static", Latitude: 48.85, Longitude: 2.35})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		lat, lon, ok := p.Last()
		if !ok || lat != 48.85 || lon != 2.35 {
			t.Errorf("unexpected fix: %v %v %v", lat, lon, ok)
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		if _, err := NewLocationProvider(config.LocationConfig{Type: "gps"}); err == nil {
			t.Error("expected error for unknown location type")
		}
	})
}
