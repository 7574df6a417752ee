package capture

import (
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"hindsight/internal/core"
)

// Screenshots manages the screenshot file lifecycle on disk:
//
//	<root>/
//	  pending/
//	    <app>_<millis>.jpg   (captured, awaiting upload)
//	  synced/
//	    <app>_<millis>.jpg   (uploaded, only when keepSynced is set)
//
// A file's presence in pending/ is itself the "needs upload" signal; no
// store row references it.
type Screenshots struct {
	pendingDir string
	syncedDir  string
	keepSynced bool
}

// NewScreenshots creates the directory structure rooted at root.
// When keepSynced is false, uploaded screenshots are deleted instead of
// being moved to synced/.
func NewScreenshots(root string, keepSynced bool) (*Screenshots, error) {
	pendingDir := filepath.Join(root, "pending")
	syncedDir := filepath.Join(root, "synced")

	if err := os.MkdirAll(pendingDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create pending directory: %w", err)
	}
	if err := os.MkdirAll(syncedDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create synced directory: %w", err)
	}

	return &Screenshots{
		pendingDir: pendingDir,
		syncedDir:  syncedDir,
		keepSynced: keepSynced,
	}, nil
}

var _ core.ScreenSink = (*Screenshots)(nil)

// SaveFrame encodes the frame as JPEG and writes it to the pending
// directory as {app}_{millis}.jpg. The server parses the filename for the
// application label and capture time, so the format is part of the protocol.
func (s *Screenshots) SaveFrame(frame *core.Frame, app string, tsMillis int64) (string, error) {
	img := &image.NRGBA{
		Pix:    frame.Pixels,
		Stride: 4 * frame.Width,
		Rect:   image.Rect(0, 0, frame.Width, frame.Height),
	}

	name := fmt.Sprintf("%s_%d.jpg", sanitizeApp(app), tsMillis)
	path := filepath.Join(s.pendingDir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create screenshot file: %w", err)
	}

	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 100}); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to encode screenshot: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to close screenshot file: %w", err)
	}

	return path, nil
}

// Pending returns the pending screenshot filenames, sorted by name. The
// timestamp suffix makes name order capture order within one application.
func (s *Screenshots) Pending() ([]string, error) {
	entries, err := os.ReadDir(s.pendingDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending screenshots: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jpg") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// PendingPath returns the absolute path of a pending screenshot.
func (s *Screenshots) PendingPath(name string) string {
	return filepath.Join(s.pendingDir, name)
}

// MarkSynced retires a pending screenshot after a confirmed upload: moved
// to the synced directory when keepSynced is set, deleted otherwise.
func (s *Screenshots) MarkSynced(name string) error {
	src := filepath.Join(s.pendingDir, name)
	if s.keepSynced {
		if err := os.Rename(src, filepath.Join(s.syncedDir, name)); err != nil {
			return fmt.Errorf("failed to move synced screenshot: %w", err)
		}
		return nil
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("failed to delete synced screenshot: %w", err)
	}
	return nil
}

// sanitizeApp keeps the filename parseable: the server splits on the last
// underscore, and path separators must never reach the filesystem.
func sanitizeApp(app string) string {
	app = strings.ReplaceAll(app, "/", "-")
	app = strings.ReplaceAll(app, string(filepath.Separator), "-")
	app = strings.ReplaceAll(app, "_", "-")
	if app == "" {
		app = "unknown"
	}
	return app
}
