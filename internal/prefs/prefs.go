package prefs

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
)

// Prefs is the small mutable state that survives restarts but is not
// configuration: the sync cursor and the current endpoint order. Unlike the
// config file it is rewritten by the program itself, so every mutation goes
// through an atomic temp-file-and-rename rewrite.
type Prefs struct {
	mu   sync.Mutex
	path string
	data data
}

type data struct {
	// LastSyncTimestamp is the high-water mark of the last successful full
	// sync, unix millis. Advanced only after a successful round trip and
	// never moved backward.
	LastSyncTimestamp int64 `toml:"last_sync_timestamp"`

	// EndpointOrder holds the sync URLs most-recently-responsive first.
	EndpointOrder []string `toml:"endpoint_order"`
}

// Open loads preferences from path. A missing file yields zero values.
func Open(path string) (*Prefs, error) {
	p := &Prefs{path: path}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return nil, fmt.Errorf("failed to open prefs file: %w", err)
	}
	defer f.Close()

	if _, err := toml.NewDecoder(f).Decode(&p.data); err != nil {
		return nil, fmt.Errorf("failed to decode prefs: %w", err)
	}
	return p, nil
}

// LastSyncTimestamp returns the sync cursor.
func (p *Prefs) LastSyncTimestamp() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.data.LastSyncTimestamp
}

// SetLastSyncTimestamp advances the sync cursor. The cursor is monotonic:
// an attempt to move it backward is rejected.
func (p *Prefs) SetLastSyncTimestamp(ts int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ts < p.data.LastSyncTimestamp {
		return fmt.Errorf("sync cursor cannot move backward (%d < %d)", ts, p.data.LastSyncTimestamp)
	}
	old := p.data.LastSyncTimestamp
	p.data.LastSyncTimestamp = ts
	if err := p.writeLocked(); err != nil {
		p.data.LastSyncTimestamp = old
		return err
	}
	return nil
}

// EndpointOrder returns a copy of the persisted endpoint order, possibly empty.
func (p *Prefs) EndpointOrder() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.data.EndpointOrder))
	copy(out, p.data.EndpointOrder)
	return out
}

// SetEndpointOrder persists a new endpoint order (promoted URL first).
func (p *Prefs) SetEndpointOrder(urls []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	old := p.data.EndpointOrder
	p.data.EndpointOrder = append([]string{}, urls...)
	if err := p.writeLocked(); err != nil {
		p.data.EndpointOrder = old
		return err
	}
	return nil
}

// writeLocked rewrites the prefs file atomically. Callers hold mu.
func (p *Prefs) writeLocked() error {
	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create prefs directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".prefs-*.toml")
	if err != nil {
		return fmt.Errorf("failed to create temp prefs file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := toml.NewEncoder(tmp).Encode(&p.data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to encode prefs: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp prefs file: %w", err)
	}

	if err := os.Rename(tmpPath, p.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace prefs file: %w", err)
	}
	return nil
}
