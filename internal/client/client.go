// Package client provides the HTTP transport to the build report server.
//
// The server serves file regions: /content/<path>?s=<pos> returns the bytes
// of <path> from offset <pos> to the end of the file as text, and
// /tail/poll answers a batched "new bytes since cursor" request for many
// paths at once. This package is pure transport; all tailing bookkeeping
// lives in the tailer package.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/timvw/buildtail/internal/model"
)

const defaultTimeout = 10 * time.Second

// Client talks to a single report server.
type Client struct {
	base string
	http *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New creates a Client for the server at baseURL (e.g. "http://localhost:7777").
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server URL %q: scheme must be http or https", baseURL)
	}
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// PollBatch issues one batched poll for all given subscriptions. The request
// body is a JSON array of {id, path, pos} records; the response is a JSON
// object mapping id to the text beyond that id's cursor. Ids with no new
// data may be omitted from the response or present with an empty string.
func (c *Client) PollBatch(ctx context.Context, reqs []model.TailRequest) (map[string]string, error) {
	body, err := json.Marshal(reqs)
	if err != nil {
		return nil, fmt.Errorf("encoding poll batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/tail/poll", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building poll request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poll request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("poll request failed: server returned %s", resp.Status)
	}

	var updates map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&updates); err != nil {
		return nil, fmt.Errorf("decoding poll response: %w", err)
	}
	return updates, nil
}

// PollContent fetches the bytes of path beyond pos, using the server's
// file-region endpoint. An empty string with a nil error means the file has
// not grown.
func (c *Client) PollContent(ctx context.Context, path string, pos int64) (string, error) {
	u := c.contentURL(path)
	if pos > 0 {
		u += "?s=" + strconv.FormatInt(pos, 10)
	}
	return c.getText(ctx, u)
}

// Fetch retrieves the entire current content of path.
func (c *Client) Fetch(ctx context.Context, path string) (string, error) {
	return c.getText(ctx, c.contentURL(path))
}

func (c *Client) contentURL(path string) string {
	escaped := url.PathEscape(model.CleanPath(path))
	// Keep path separators readable in URLs; only escape within segments.
	escaped = strings.ReplaceAll(escaped, "%2F", "/")
	return c.base + "/content/" + escaped
}

func (c *Client) getText(ctx context.Context, u string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("building content request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("content request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("content request failed: server returned %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading content response: %w", err)
	}
	return string(data), nil
}
