package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"hindsight/internal/capture"
	"hindsight/internal/config"
	"hindsight/internal/core"
	"hindsight/internal/model"
	"hindsight/internal/prefs"
	"hindsight/internal/store"
	"hindsight/internal/sync"
)

// App is the application layer between the CLI and the pipeline. It
// constructs all dependencies from config, exposes the high-level
// operations the commands call, and manages the store lifecycle on Close.
type App struct {
	cfg     *config.Config
	store   core.Store
	prefs   *prefs.Prefs
	shots   *capture.Screenshots
	engine  *sync.Engine
	logger  core.Logger
	clock   core.Clock
	logFile *os.File
}

// NewApp creates a fully wired App from the given config. operation
// identifies the CLI command being run (e.g. "Record", "Sync").
// The caller must call Close when done.
func NewApp(cfg *config.Config, operation string) (*App, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if err := os.MkdirAll(cfg.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("creating base directory: %w", err)
	}

	runID := uuid.New().String()
	slogger, logFile, err := newLogger(cfg.LogDir, runID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	clock := core.RealClock{}

	st, err := store.NewSQLiteStore(filepath.Join(cfg.BaseDir, "hindsight.db"), clock)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("opening store: %w", err)
	}

	p, err := prefs.Open(filepath.Join(cfg.BaseDir, "prefs.toml"))
	if err != nil {
		st.Close()
		logFile.Close()
		return nil, fmt.Errorf("opening preferences: %w", err)
	}

	shots, err := capture.NewScreenshots(filepath.Join(cfg.BaseDir, "screenshots"), cfg.Server.KeepSynced)
	if err != nil {
		st.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating screenshot store: %w", err)
	}

	client := sync.NewClient(
		cfg.Server.PrimaryURL,
		cfg.Server.FallbackURL,
		cfg.Server.APIKey,
		p,
		time.Duration(cfg.Server.PrimaryConnectTimeoutMS)*time.Millisecond,
		time.Duration(cfg.Server.FallbackConnectTimeoutMS)*time.Millisecond,
		logger,
	)
	engine := sync.NewEngine(client, st, p, shots, clock,
		time.Duration(cfg.Server.UploadPacingMS)*time.Millisecond, logger)

	logger.Info("app initialized", "operation", operation, "device", cfg.DeviceID)

	return &App{
		cfg:     cfg,
		store:   st,
		prefs:   p,
		shots:   shots,
		engine:  engine,
		logger:  logger,
		clock:   clock,
		logFile: logFile,
	}, nil
}

// NewRecorder builds the capture pipeline from config. It is separate from
// NewApp because only the record command needs a frame source, and source
// construction can fail on hosts without one.
func (a *App) NewRecorder() (*core.Recorder, error) {
	source, err := capture.NewFrameSource(a.cfg.Capture.Source)
	if err != nil {
		return nil, fmt.Errorf("creating frame source: %w", err)
	}

	var location core.LocationProvider
	if a.cfg.Capture.LocationTracking {
		location, err = capture.NewLocationProvider(a.cfg.Capture.Location)
		if err != nil {
			source.Release()
			return nil, fmt.Errorf("creating location provider: %w", err)
		}
	}

	loop := core.NewLoop(core.LoopConfig{
		Interval:         time.Duration(a.cfg.Capture.IntervalMS) * time.Millisecond,
		RecordWhenActive: a.cfg.Capture.RecordWhenActive,
		LocationTracking: a.cfg.Capture.LocationTracking,
		UploadThreshold:  a.cfg.Capture.ScreenshotsPerUpload,
	}, source, capture.AlwaysOnDisplay{}, core.NewActivityTracker(), location, a.shots, a.store, a.clock, a.logger)

	loop.SetUploadTrigger(func() {
		ctx, cancel := context.WithTimeout(context.Background(), a.uploadBudget())
		defer cancel()
		if err := a.engine.Upload(ctx); err != nil {
			a.logger.Warn("threshold upload failed", "error", err)
		}
	})

	return core.NewRecorder(loop, a.logger), nil
}

// uploadBudget sizes the deadline for a threshold-triggered upload to the
// current backlog, so a slow link finishes the batch instead of being cut
// off mid-transfer. The deadline is a hung-transfer safety net, not a
// pacing bound.
func (a *App) uploadBudget() time.Duration {
	const perFile = 15 * time.Second
	budget := time.Minute
	if pending, err := a.shots.Pending(); err == nil {
		if scaled := time.Duration(len(pending)) * perFile; scaled > budget {
			budget = scaled
		}
	}
	return budget
}

// Sync runs one full sync cycle against the configured endpoints.
func (a *App) Sync(ctx context.Context) error {
	return a.engine.Run(ctx)
}

// AddAnnotation stores a new annotation stamped with the current time.
func (a *App) AddAnnotation(text string) (*model.Annotation, error) {
	return a.store.AddAnnotation(text)
}

// Annotations returns all stored annotations.
func (a *App) Annotations() ([]*model.Annotation, error) {
	return a.store.Annotations(0)
}

// DeleteAnnotation removes an annotation by id.
func (a *App) DeleteAnnotation(id int64) error {
	return a.store.DeleteAnnotation(id)
}

// Feed returns content in feed order, optionally hiding viewed entries.
func (a *App) Feed(nonViewedOnly bool) ([]*model.ContentItem, error) {
	return a.store.Content(0, nonViewedOnly)
}

// MarkViewed flags a content entry as viewed.
func (a *App) MarkViewed(id int64) error {
	return a.store.MarkViewed([]int64{id})
}

// MarkClicked flags a content entry as clicked.
func (a *App) MarkClicked(id int64) error {
	return a.store.MarkClicked([]int64{id})
}

// SetScore records user feedback on a content entry.
func (a *App) SetScore(id int64, score int) error {
	return a.store.UpdateScore(id, score)
}

// PostQuery submits a free-form query for server-side processing,
// optionally scoped to a capture-time window (unix millis, zero for open).
func (a *App) PostQuery(ctx context.Context, query string, fromMillis, toMillis int64) error {
	var from, to *int64
	if fromMillis > 0 {
		from = &fromMillis
	}
	if toMillis > 0 {
		to = &toMillis
	}
	return a.engine.PostQuery(ctx, query, from, to)
}

// Queries fetches all known queries and their results from the server.
func (a *App) Queries(ctx context.Context) ([]*model.Query, error) {
	return a.engine.Queries(ctx)
}

// Status summarizes local pipeline state for the status command.
type Status struct {
	Annotations        int
	ContentItems       int
	PendingScreenshots int
	LastSyncTimestamp  int64
	Endpoints          []string
}

// GetStatus reports counts of local records and the sync position.
func (a *App) GetStatus() (*Status, error) {
	annotations, err := a.store.Annotations(0)
	if err != nil {
		return nil, fmt.Errorf("counting annotations: %w", err)
	}
	content, err := a.store.Content(0, false)
	if err != nil {
		return nil, fmt.Errorf("counting content: %w", err)
	}
	pending, err := a.shots.Pending()
	if err != nil {
		return nil, fmt.Errorf("counting pending screenshots: %w", err)
	}

	return &Status{
		Annotations:        len(annotations),
		ContentItems:       len(content),
		PendingScreenshots: len(pending),
		LastSyncTimestamp:  a.prefs.LastSyncTimestamp(),
		Endpoints:          a.engine.Endpoints(),
	}, nil
}

// Wipe deletes every local record. Screenshots and the sync cursor are
// untouched: the cursor only ever moves forward.
func (a *App) Wipe() error {
	return a.store.Wipe()
}

// Close releases the store and the log file.
func (a *App) Close() error {
	var firstErr error
	if err := a.store.Close(); err != nil {
		firstErr = fmt.Errorf("closing store: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
