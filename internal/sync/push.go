package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"hindsight/internal/core"
	"hindsight/internal/model"
)

// pushPayload is the delta-sync request body: everything recorded or
// modified on the device since the last successful push.
type pushPayload struct {
	Annotations []*model.Annotation     `json:"annotations"`
	Locations   []*model.LocationSample `json:"locations"`
	Content     []*model.SyncContent    `json:"content"`
}

// Push uploads all records modified since the sync cursor, then advances
// the cursor. The cursor only moves after the server has acknowledged the
// payload: a failed push leaves it in place so the same rows are retried
// next cycle.
//
// The new cursor value is taken before collection, so a row modified while
// the push is in flight stays above the cursor and is carried next cycle.
func (e *Engine) Push(ctx context.Context) error {
	return e.push(ctx, e.logger)
}

func (e *Engine) push(ctx context.Context, logger core.Logger) error {
	cursor := e.prefs.LastSyncTimestamp()
	now := e.clock.Now().UnixMilli()

	annotations, err := e.store.Annotations(cursor)
	if err != nil {
		return fmt.Errorf("failed to collect annotations: %w", err)
	}
	locations, err := e.store.Locations(cursor)
	if err != nil {
		return fmt.Errorf("failed to collect locations: %w", err)
	}
	content, err := e.store.DirtyContent(cursor)
	if err != nil {
		return fmt.Errorf("failed to collect content changes: %w", err)
	}

	payload := pushPayload{
		Annotations: annotations,
		Locations:   locations,
		Content:     content,
	}
	if payload.Annotations == nil {
		payload.Annotations = []*model.Annotation{}
	}
	if payload.Locations == nil {
		payload.Locations = []*model.LocationSample{}
	}
	if payload.Content == nil {
		payload.Content = []*model.SyncContent{}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode sync payload: %w", err)
	}

	resp, err := e.client.do(ctx, func(base string) (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, base+"/sync_db", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return fmt.Errorf("failed to push records: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("push returned status %d", resp.StatusCode)
	}

	if err := e.prefs.SetLastSyncTimestamp(now); err != nil {
		return fmt.Errorf("failed to advance sync cursor: %w", err)
	}

	logger.Info("pushed records",
		"annotations", len(annotations),
		"locations", len(locations),
		"content", len(content),
		"cursor", now)
	return nil
}
