package sync

import (
	"context"
	"fmt"
	stdsync "sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"hindsight/internal/core"
	"hindsight/internal/prefs"
)

// ScreenshotStore is the pending-screenshot lifecycle the engine drives
// during upload.
type ScreenshotStore interface {
	Pending() ([]string, error)
	PendingPath(name string) string
	MarkSynced(name string) error
}

// Engine runs the three sync sub-operations against whichever endpoint
// currently answers: record push, content pull, and screenshot upload.
type Engine struct {
	client       *Client
	store        core.Store
	prefs        *prefs.Prefs
	shots        ScreenshotStore
	clock        core.Clock
	logger       core.Logger
	uploadPacing time.Duration
}

func NewEngine(client *Client, store core.Store, p *prefs.Prefs, shots ScreenshotStore, clock core.Clock, uploadPacing time.Duration, logger core.Logger) *Engine {
	return &Engine{
		client:       client,
		store:        store,
		prefs:        p,
		shots:        shots,
		clock:        clock,
		logger:       logger,
		uploadPacing: uploadPacing,
	}
}

// Endpoints returns the current endpoint order, first entry tried first.
func (e *Engine) Endpoints() []string {
	return e.client.Endpoints()
}

// Run performs one full sync cycle. The server is pinged first so an
// unreachable server fails the cycle cheaply, then the three sub-operations
// run concurrently. They touch disjoint state: push reads records, pull
// writes content rows, upload moves files. Partial failure is reported
// per sub-operation; the ones that succeeded keep their effects.
func (e *Engine) Run(ctx context.Context) error {
	session := uuid.NewString()
	logger := sessionLogger{inner: e.logger, session: session}
	logger.Info("sync cycle started", "endpoints", e.client.Endpoints())

	if err := e.client.Ping(ctx); err != nil {
		return fmt.Errorf("sync aborted: %w", err)
	}

	var (
		wg   stdsync.WaitGroup
		mu   stdsync.Mutex
		errs *multierror.Error
	)
	run := func(name string, op func(context.Context, core.Logger) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := op(ctx, logger); err != nil {
				logger.Error("sync sub-operation failed", "op", name, "error", err)
				mu.Lock()
				errs = multierror.Append(errs, fmt.Errorf("%s: %w", name, err))
				mu.Unlock()
			}
		}()
	}

	run("push", e.push)
	run("pull", e.pull)
	run("upload", e.upload)
	wg.Wait()

	if err := errs.ErrorOrNil(); err != nil {
		return err
	}
	logger.Info("sync cycle finished")
	return nil
}

// sessionLogger stamps every record of one sync cycle with a shared id so
// interleaved concurrent cycles can be told apart in the log.
type sessionLogger struct {
	inner   core.Logger
	session string
}

func (l sessionLogger) args(args []any) []any {
	return append([]any{"session", l.session}, args...)
}

func (l sessionLogger) Debug(msg string, args ...any) { l.inner.Debug(msg, l.args(args)...) }
func (l sessionLogger) Info(msg string, args ...any)  { l.inner.Info(msg, l.args(args)...) }
func (l sessionLogger) Warn(msg string, args ...any)  { l.inner.Warn(msg, l.args(args)...) }
func (l sessionLogger) Error(msg string, args ...any) { l.inner.Error(msg, l.args(args)...) }
