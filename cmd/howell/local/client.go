package localcmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ryanlack616/howell-brain/api"
	"github.com/ryanlack616/howell-brain/pkg/brain"
	"github.com/ryanlack616/howell-brain/pkg/search"
	"github.com/ryanlack616/howell-brain/pkg/tier"
)

const clientTimeout = 30 * time.Second

// Client reads from a running daemon's HTTP API.
type Client struct {
	target string
	http   *http.Client
}

// NewClient creates a client for the API at target.
func NewClient(target string) *Client {
	return &Client{
		target: strings.TrimRight(target, "/"),
		http:   &http.Client{Timeout: clientTimeout},
	}
}

func (c *Client) Bootstrap(ctx context.Context, refresh bool) (*brain.Context, error) {
	q := url.Values{}
	if refresh {
		q.Set("refresh", "true")
	}
	out := &brain.Context{}
	if err := c.get(ctx, "/bootstrap", q, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Status(ctx context.Context) (*brain.Status, error) {
	out := &brain.Status{}
	if err := c.get(ctx, "/status", nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Search(ctx context.Context, query string) (search.Results, error) {
	var out search.Results
	err := c.get(ctx, "/search", url.Values{"q": {query}}, &out)
	return out, err
}

func (c *Client) Tier(ctx context.Context, t tier.Tier) (*api.TierResponse, error) {
	out := &api.TierResponse{}
	path := "/tiers/" + url.PathEscape(string(t))
	if err := c.get(ctx, path, url.Values{"format": {"markdown"}}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.target + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("contacting howell daemon at %s: %w", c.target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr api.ErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("howell daemon returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("howell daemon returned %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}
