package sync

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	stdsync "sync"
	"time"

	"hindsight/internal/core"
	"hindsight/internal/prefs"
)

// apiKeyHeader is the authentication header name. The misspelling is
// shared with the server and must not be corrected on one side only.
const apiKeyHeader = "Hightsight-API-Key"

// Client issues authenticated requests against an endpoint pair. The first
// endpoint is tried with a short connect timeout; on connect failure or a
// non-2xx response the second endpoint is tried with a generous one. When
// the second endpoint succeeds the pair is swapped and the new order
// persisted, so the working endpoint is tried first from then on.
type Client struct {
	mu        stdsync.Mutex
	endpoints []string
	apiKey    string
	prefs     *prefs.Prefs
	logger    core.Logger

	// One cached client per attempt slot, so keep-alive connections are
	// reused across requests instead of leaking one per call.
	primary  *http.Client
	fallback *http.Client
}

// NewClient builds a client for the configured endpoint pair. A previously
// persisted endpoint order overrides the configured order when it still
// names the same two URLs.
func NewClient(primaryURL, fallbackURL, apiKey string, p *prefs.Prefs, primaryTimeout, fallbackTimeout time.Duration, logger core.Logger) *Client {
	endpoints := []string{primaryURL}
	if fallbackURL != "" {
		endpoints = append(endpoints, fallbackURL)
	}

	if saved := p.EndpointOrder(); sameSet(saved, endpoints) {
		endpoints = saved
	}

	return &Client{
		endpoints: endpoints,
		apiKey:    apiKey,
		prefs:     p,
		logger:    logger,
		primary:   newHTTPClient(primaryTimeout),
		fallback:  newHTTPClient(fallbackTimeout),
	}
}

func newHTTPClient(connectTimeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext:     (&net.Dialer{Timeout: connectTimeout}).DialContext,
			IdleConnTimeout: 90 * time.Second,
		},
	}
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for _, x := range a {
		found := false
		for _, y := range b {
			if x == y {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return len(a) > 0
}

// do runs the request built by build against each endpoint in order. The
// build function is called once per attempt because request bodies are
// single-use. The caller owns the returned response body.
//
// The response of the last endpoint is returned even when non-2xx, so
// callers can distinguish "server rejected this request" from "no server
// reachable".
func (c *Client) do(ctx context.Context, build func(baseURL string) (*http.Request, error)) (*http.Response, error) {
	c.mu.Lock()
	order := make([]string, len(c.endpoints))
	copy(order, c.endpoints)
	c.mu.Unlock()

	var lastErr error
	for i, base := range order {
		req, err := build(base)
		if err != nil {
			return nil, err
		}
		req.Header.Set(apiKeyHeader, c.apiKey)

		resp, err := c.httpClient(i).Do(req.WithContext(ctx))
		if err != nil {
			c.logger.Warn("endpoint unreachable", "url", base, "error", err)
			lastErr = err
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if i < len(order)-1 {
				c.logger.Warn("endpoint rejected request, trying next", "url", base, "status", resp.StatusCode)
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				lastErr = fmt.Errorf("endpoint %s returned status %d", base, resp.StatusCode)
				continue
			}
			return resp, nil
		}

		if i > 0 {
			c.promote(base)
		}
		return resp, nil
	}
	return nil, fmt.Errorf("all endpoints failed: %w", lastErr)
}

// httpClient returns the client for the attempt slot: the first endpoint
// must answer fast, later ones get more slack.
func (c *Client) httpClient(slot int) *http.Client {
	if slot > 0 {
		return c.fallback
	}
	return c.primary
}

// promote moves url to the front and persists the new order, so the
// endpoint that actually answered is tried first next time.
func (c *Client) promote(url string) {
	c.mu.Lock()
	reordered := []string{url}
	for _, e := range c.endpoints {
		if e != url {
			reordered = append(reordered, e)
		}
	}
	c.endpoints = reordered
	c.mu.Unlock()

	c.logger.Info("promoted endpoint", "url", url)
	if err := c.prefs.SetEndpointOrder(reordered); err != nil {
		c.logger.Warn("failed to persist endpoint order", "error", err)
	}
}

// Endpoints returns the current endpoint order, first entry tried first.
func (c *Client) Endpoints() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.endpoints))
	copy(out, c.endpoints)
	return out
}

// Ping checks that some endpoint is reachable and accepting the API key.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, func(base string) (*http.Request, error) {
		return http.NewRequest(http.MethodGet, base+"/ping", nil)
	})
	if err != nil {
		return fmt.Errorf("failed to ping server: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ping returned status %d", resp.StatusCode)
	}
	return nil
}
