package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"hindsight/internal/model"
)

// queryRequest is the post_query body. The context window narrows which
// captured records the server may consult; nil bounds mean unbounded.
type queryRequest struct {
	Query        string `json:"query"`
	ContextStart *int64 `json:"context_start_timestamp,omitempty"`
	ContextEnd   *int64 `json:"context_end_timestamp,omitempty"`
}

// PostQuery submits a free-form query for server-side processing, optionally
// scoped to a capture-time window. The result is not returned inline: the
// server answers asynchronously and the result shows up in a later Queries
// call.
func (e *Engine) PostQuery(ctx context.Context, query string, contextStart, contextEnd *int64) error {
	body, err := json.Marshal(queryRequest{
		Query:        query,
		ContextStart: contextStart,
		ContextEnd:   contextEnd,
	})
	if err != nil {
		return fmt.Errorf("failed to encode query: %w", err)
	}

	resp, err := e.client.do(ctx, func(base string) (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, base+"/post_query", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return fmt.Errorf("failed to post query: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("query post returned status %d", resp.StatusCode)
	}
	return nil
}

// Queries fetches all queries known to the server along with any results
// produced so far. A query without a result yet has an empty Result field.
func (e *Engine) Queries(ctx context.Context) ([]*model.Query, error) {
	resp, err := e.client.do(ctx, func(base string) (*http.Request, error) {
		return http.NewRequest(http.MethodGet, base+"/get_queries", nil)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch queries: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("query fetch returned status %d", resp.StatusCode)
	}

	var queries []*model.Query
	if err := json.NewDecoder(resp.Body).Decode(&queries); err != nil {
		return nil, fmt.Errorf("failed to decode queries: %w", err)
	}
	return queries, nil
}
