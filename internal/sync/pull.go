package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"hindsight/internal/core"
	"hindsight/internal/model"
)

// pullResponse is the server's delta for this device: content it has not
// seen yet, flags flipped on other devices, and fresh ranking scores for
// the rows the user has not viewed.
type pullResponse struct {
	NewContent     []*model.ContentItem    `json:"new_content"`
	NewlyViewedIDs []int64                 `json:"newly_viewed_content_ids"`
	RankingScores  []*model.ContentRanking `json:"non_viewed_content_ranking_scores"`
}

// Pull fetches content the server has produced since our highest known
// content id and applies it locally. A malformed response abandons the
// whole pull: nothing is applied from a payload we could not fully decode.
func (e *Engine) Pull(ctx context.Context) error {
	return e.pull(ctx, e.logger)
}

func (e *Engine) pull(ctx context.Context, logger core.Logger) error {
	maxID, err := e.store.MaxContentID()
	if err != nil {
		return fmt.Errorf("failed to read content watermark: %w", err)
	}
	cursor := e.prefs.LastSyncTimestamp()

	resp, err := e.client.do(ctx, func(base string) (*http.Request, error) {
		q := url.Values{}
		q.Set("last_content_id", strconv.FormatInt(maxID, 10))
		q.Set("last_sync_timestamp", strconv.FormatInt(cursor, 10))
		return http.NewRequest(http.MethodGet, base+"/get_new_content?"+q.Encode(), nil)
	})
	if err != nil {
		return fmt.Errorf("failed to fetch new content: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("content fetch returned status %d", resp.StatusCode)
	}

	var delta pullResponse
	if err := json.NewDecoder(resp.Body).Decode(&delta); err != nil {
		return fmt.Errorf("failed to decode content response: %w", err)
	}

	if len(delta.NewContent) > 0 {
		if err := e.store.AddContentBatch(delta.NewContent); err != nil {
			return fmt.Errorf("failed to store new content: %w", err)
		}
	}
	if len(delta.NewlyViewedIDs) > 0 {
		if err := e.store.MarkViewed(delta.NewlyViewedIDs); err != nil {
			return fmt.Errorf("failed to apply viewed flags: %w", err)
		}
	}
	if len(delta.RankingScores) > 0 {
		if err := e.store.UpdateRankingScores(delta.RankingScores); err != nil {
			return fmt.Errorf("failed to apply ranking scores: %w", err)
		}
	}

	logger.Info("pulled content",
		"new", len(delta.NewContent),
		"viewed", len(delta.NewlyViewedIDs),
		"rankings", len(delta.RankingScores))
	return nil
}
