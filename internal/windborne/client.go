// Package windborne talks to the WindBorne treasure gateway, which serves the
// last 24 hourly balloon snapshots as 00.json .. 23.json.
package windborne

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/i474232898/balloon-tracker/internal/upstream"
)

const DefaultBaseURL = "https://a.windbornesystems.com"

// StatusError is returned by FetchSnapshot for non-2xx gateway responses.
type StatusError struct {
	FileID     string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gateway returned status %d for file %s", e.StatusCode, e.FileID)
}

// Client fetches raw snapshot files. It never parses them.
type Client struct {
	baseURL string
	caller  *upstream.Caller
}

func NewClient(httpClient *http.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		caller:  upstream.NewCaller("windborne", httpClient),
	}
}

// FileURL is the upstream location of a snapshot file.
func (c *Client) FileURL(fileID string) string {
	return fmt.Sprintf("%s/treasure/%s.json", c.baseURL, fileID)
}

// Forward performs the request and returns the upstream status and body
// verbatim. An error means no usable response was received at all.
func (c *Client) Forward(ctx context.Context, fileID string) (upstream.Response, error) {
	resp, err := c.caller.Do(ctx, c.FileURL(fileID))
	if err != nil {
		return upstream.Response{}, fmt.Errorf("fetch %s: %w", fileID, err)
	}
	return resp, nil
}

// FetchSnapshot returns the raw body of a snapshot file, treating any
// non-2xx status as a *StatusError.
func (c *Client) FetchSnapshot(ctx context.Context, fileID string) ([]byte, error) {
	resp, err := c.Forward(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, &StatusError{FileID: fileID, StatusCode: resp.StatusCode}
	}
	return resp.Body, nil
}

// BreakerState reports the gateway circuit breaker state.
func (c *Client) BreakerState() string {
	return c.caller.State()
}
