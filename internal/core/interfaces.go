package core

import (
	"time"

	"hindsight/internal/model"
)

// Store provides the embedded record store shared by the capture loop and
// the sync engine. All multi-row mutations are implemented as a single
// transaction: callers must treat a failed batch write as "nothing happened".
type Store interface {
	// Annotation operations

	// AddAnnotation inserts a new annotation stamped with the current time.
	AddAnnotation(text string) (*model.Annotation, error)

	// Annotations returns annotations with timestamp strictly after the watermark.
	Annotations(after int64) ([]*model.Annotation, error)

	// DeleteAnnotation removes an annotation by id.
	DeleteAnnotation(id int64) error

	// Location operations

	// AddLocation inserts a location sample stamped with the current time.
	AddLocation(lat, lon float64) (*model.LocationSample, error)

	// Locations returns samples with timestamp strictly after the watermark.
	Locations(after int64) ([]*model.LocationSample, error)

	// LastLocation returns the most recent sample, or nil if none exist.
	LastLocation() (*model.LocationSample, error)

	// Content operations

	// AddContentBatch inserts server-provided content rows in one transaction.
	// Partial failure rolls the whole batch back.
	AddContentBatch(items []*model.ContentItem) error

	// Content returns content modified strictly after the watermark, ordered
	// by descending ranking score (feed order).
	Content(after int64, nonViewedOnly bool) ([]*model.ContentItem, error)

	// MarkViewed and MarkClicked flip one-way flags. Rows already set are
	// untouched; only false→true transitions bump last_modified_timestamp.
	MarkViewed(ids []int64) error
	MarkClicked(ids []int64) error

	// UpdateScore records user feedback on a content row.
	UpdateScore(id int64, score int) error

	// UpdateRankingScores applies a bulk ranking update in one transaction.
	UpdateRankingScores(rankings []*model.ContentRanking) error

	// MaxContentID returns the highest content id, or -1 when the table is empty.
	// Used as the delta-sync watermark for the pull protocol.
	MaxContentID() (int64, error)

	// DirtyContent returns the device-modifiable projection of content rows
	// modified strictly after the watermark.
	DirtyContent(after int64) ([]*model.SyncContent, error)

	// Wipe deletes every row from every table in one transaction.
	Wipe() error

	// Close closes the underlying connection.
	Close() error
}

// Logger provides structured logging for the pipeline. The args follow slog
// conventions: alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NopLogger is a Logger that discards all output. Use in tests.
type NopLogger struct{}

func NewNopLogger() *NopLogger { return &NopLogger{} }

func (*NopLogger) Debug(string, ...any) {}
func (*NopLogger) Info(string, ...any)  {}
func (*NopLogger) Warn(string, ...any)  {}
func (*NopLogger) Error(string, ...any) {}

// Clock abstracts time retrieval so pipeline logic is deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// Frame is one acquired screen image, ready for JPEG encoding.
type Frame struct {
	Width  int
	Height int
	// RGBA pixel data, 4 bytes per pixel, row-major.
	Pixels []byte
}

// FrameSource is the platform capture handle behind the capture loop.
// AcquireLatest never blocks: it returns nil when no new frame is available.
// Release tears the source down and must be safe to call twice.
// The invalidation callback registered via OnInvalidated fires when the
// platform revokes the source out-of-band; the loop treats that as an
// unsolicited stop.
type FrameSource interface {
	AcquireLatest() (*Frame, error)
	OnInvalidated(func())
	Release() error
}

// Display reports whether the physical display is on. Screenshots of a
// blanked screen are useless, so the loop skips capture while it is off.
type Display interface {
	On() bool
}

// LocationProvider supplies the last-known device location, or nil when no
// fix is available. Implementations must not block.
type LocationProvider interface {
	Last() (lat, lon float64, ok bool)
}
