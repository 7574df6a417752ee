package capture

import (
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"hindsight/internal/core"
)

func testFrame(w, h int) *core.Frame {
	pixels := make([]byte, 4*w*h)
	for i := 3; i < len(pixels); i += 4 {
		pixels[i] = 255
	}
	return &core.Frame{Width: w, Height: h, Pixels: pixels}
}

func TestSaveFrame(t *testing.T) {
	shots, err := NewScreenshots(t.TempDir(), false)
	if err != nil {
		t.Fatalf("failed to create screenshots: %v", err)
	}

	path, err := shots.SaveFrame(testFrame(8, 6), "browser", 1717243200123)
	if err != nil {
		t.Fatalf("failed to save frame: %v", err)
	}

	if got, want := filepath.Base(path), "browser_1717243200123.jpg"; got != want {
		t.Errorf("expected filename %s, got %s", want, got)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open saved screenshot: %v", err)
	}
	defer f.Close()

	img, err := jpeg.Decode(f)
	if err != nil {
		t.Fatalf("saved screenshot is not a valid jpeg: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() != 8 || bounds.Dy() != 6 {
		t.Errorf("expected 8x6 image, got %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestSaveFrameSanitizesApp(t *testing.T) {
	shots, err := NewScreenshots(t.TempDir(), false)
	if err != nil {
		t.Fatalf("failed to create screenshots: %v", err)
	}

	tests := []struct {
		app  string
		want string
	}{
		{"com/evil/../app", "com-evil-..-app_100.jpg"},
		{"my_app", "my-app_100.jpg"},
		{"", "unknown_100.jpg"},
	}

	for _, test := range tests {
		path, err := shots.SaveFrame(testFrame(2, 2), test.app, 100)
		if err != nil {
			t.Fatalf("failed to save frame for app %q: %v", test.app, err)
		}
		if got := filepath.Base(path); got != test.want {
			t.Errorf("app %q: expected filename %s, got %s", test.app, test.want, got)
		}
	}
}

func TestPendingSorted(t *testing.T) {
	shots, err := NewScreenshots(t.TempDir(), false)
	if err != nil {
		t.Fatalf("failed to create screenshots: %v", err)
	}

	for _, ts := range []int64{300, 100, 200} {
		if _, err := shots.SaveFrame(testFrame(2, 2), "app", ts); err != nil {
			t.Fatalf("failed to save frame: %v", err)
		}
	}

	names, err := shots.Pending()
	if err != nil {
		t.Fatalf("failed to list pending: %v", err)
	}
	want := []string{"app_100.jpg", "app_200.jpg", "app_300.jpg"}
	if len(names) != len(want) {
		t.Fatalf("expected %d pending screenshots, got %d", len(want), len(names))
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("pending[%d]: expected %s, got %s", i, want[i], names[i])
		}
	}
}

func TestMarkSyncedDeletes(t *testing.T) {
	root := t.TempDir()
	shots, err := NewScreenshots(root, false)
	if err != nil {
		t.Fatalf("failed to create screenshots: %v", err)
	}

	if _, err := shots.SaveFrame(testFrame(2, 2), "app", 100); err != nil {
		t.Fatalf("failed to save frame: %v", err)
	}
	if err := shots.MarkSynced("app_100.jpg"); err != nil {
		t.Fatalf("failed to mark synced: %v", err)
	}

	names, err := shots.Pending()
	if err != nil {
		t.Fatalf("failed to list pending: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("expected no pending screenshots, got %v", names)
	}
	if _, err := os.Stat(filepath.Join(root, "synced", "app_100.jpg")); !os.IsNotExist(err) {
		t.Errorf("expected synced file to be deleted, stat err: %v", err)
	}
}

func TestMarkSyncedKeeps(t *testing.T) {
	root := t.TempDir()
	shots, err := NewScreenshots(root, true)
	if err != nil {
		t.Fatalf("failed to create screenshots: %v", err)
	}

	if _, err := shots.SaveFrame(testFrame(2, 2), "app", 100); err != nil {
		t.Fatalf("failed to save frame: %v", err)
	}
	if err := shots.MarkSynced("app_100.jpg"); err != nil {
		t.Fatalf("failed to mark synced: %v", err)
	}

	if _, err := os.Stat(filepath.Join(root, "synced", "app_100.jpg")); err != nil {
		t.Errorf("expected synced file to be kept: %v", err)
	}
}
