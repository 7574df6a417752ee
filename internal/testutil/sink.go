package testutil

import (
	"fmt"
	"sync"

	"hindsight/internal/core"
)

// SavedFrame records one FakeScreenSink.SaveFrame call.
type SavedFrame struct {
	App string
	TS  int64
}

// FakeScreenSink is a core.ScreenSink that records saves in memory.
type FakeScreenSink struct {
	mu      sync.Mutex
	saves   []SavedFrame
	saveErr error
}

func NewFakeScreenSink() *FakeScreenSink {
	return &FakeScreenSink{}
}

// FailSaves makes subsequent SaveFrame calls return err.
func (s *FakeScreenSink) FailSaves(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErr = err
}

func (s *FakeScreenSink) SaveFrame(_ *core.Frame, app string, ts int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return "", s.saveErr
	}
	s.saves = append(s.saves, SavedFrame{App: app, TS: ts})
	return fmt.Sprintf("%s_%d.jpg", app, ts), nil
}

// Saves returns a copy of the recorded saves.
func (s *FakeScreenSink) Saves() []SavedFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SavedFrame, len(s.saves))
	copy(out, s.saves)
	return out
}

// SaveCount returns the number of frames saved so far.
func (s *FakeScreenSink) SaveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saves)
}
