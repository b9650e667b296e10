package airport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client implements Lookup against a server exposing /airport?id=.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the airport endpoint at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Lookup fetches one airport. An empty object or a 404 is ErrNotFound.
func (c *Client) Lookup(ctx context.Context, ident string) (*Info, error) {
	u := c.baseURL + "/airport?" + url.Values{"id": {ident}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("airport request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("airport API error: status %d: %s", resp.StatusCode, body)
	}

	var info Info
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if info.Ident == "" {
		return nil, ErrNotFound
	}
	return &info, nil
}
