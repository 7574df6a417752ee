package sync

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"time"

	"hindsight/internal/core"
)

// Upload sends every pending screenshot, oldest first, then retires each
// confirmed file. Failures are handled per kind:
//
//   - transport error: the server is gone, abort the whole batch
//   - non-2xx response: the server rejected this one file, skip it and
//     keep going; it stays pending and is retried next cycle
//
// A short pause between files keeps a large backlog from saturating the
// link while the capture loop is still running.
func (e *Engine) Upload(ctx context.Context) error {
	return e.upload(ctx, e.logger)
}

func (e *Engine) upload(ctx context.Context, logger core.Logger) error {
	names, err := e.shots.Pending()
	if err != nil {
		return fmt.Errorf("failed to list pending screenshots: %w", err)
	}
	if len(names) == 0 {
		return nil
	}

	uploaded := 0
	skipped := 0
	for i, name := range names {
		if i > 0 && e.uploadPacing > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(e.uploadPacing):
			}
		}

		ok, err := e.uploadOne(ctx, name, logger)
		if err != nil {
			return fmt.Errorf("failed to upload %s: %w", name, err)
		}
		if !ok {
			skipped++
			continue
		}
		if err := e.shots.MarkSynced(name); err != nil {
			return fmt.Errorf("failed to retire %s: %w", name, err)
		}
		uploaded++
	}

	logger.Info("uploaded screenshots", "uploaded", uploaded, "skipped", skipped)
	return nil
}

// uploadOne posts a single screenshot as a multipart form. It returns
// false without error when the server answered but rejected the file.
func (e *Engine) uploadOne(ctx context.Context, name string, logger core.Logger) (bool, error) {
	resp, err := e.client.do(ctx, func(base string) (*http.Request, error) {
		f, err := os.Open(e.shots.PendingPath(name))
		if err != nil {
			return nil, err
		}

		pr, pw := io.Pipe()
		mw := multipart.NewWriter(pw)
		go func() {
			defer f.Close()
			part, err := mw.CreateFormFile("file", name)
			if err != nil {
				pw.CloseWithError(err)
				return
			}
			if _, err := io.Copy(part, f); err != nil {
				pw.CloseWithError(err)
				return
			}
			pw.CloseWithError(mw.Close())
		}()

		req, err := http.NewRequest(http.MethodPost, base+"/upload_image", pr)
		if err != nil {
			pr.Close()
			return nil, err
		}
		req.Header.Set("Content-Type", mw.FormDataContentType())
		return req, nil
	})
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Warn("server rejected screenshot", "name", name, "status", resp.StatusCode)
		return false, nil
	}
	return true, nil
}
