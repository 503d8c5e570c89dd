package benchmark

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"focuswatch/internal/game"
)

var ErrFetchFailed = errors.New("benchmark fetch failed")

// APIKeyHeader carries the benchmark service credential
const APIKeyHeader = "X-API-Key"

// Client fetches benchmark curves from the remote benchmark service
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a benchmark client. An empty baseURL yields a client
// whose every fetch fails, which callers treat like an outage.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type benchmarkResponse struct {
	Role    string       `json:"role"`
	Bracket string       `json:"bracket"`
	Targets []Breakpoint `json:"targets"`
}

// Fetch retrieves the curve for role and bracket
func (c *Client) Fetch(ctx context.Context, role game.Role, bracket game.Bracket) (Curve, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("%w: no benchmark URL configured", ErrFetchFailed)
	}

	q := url.Values{}
	q.Set("role", string(role))
	q.Set("bracket", string(bracket))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/benchmarks?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	if c.apiKey != "" {
		req.Header.Set(APIKeyHeader, c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrFetchFailed, resp.StatusCode)
	}

	var body benchmarkResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrFetchFailed, err)
	}

	curve := Normalize(body.Targets)
	if len(curve) == 0 {
		return nil, fmt.Errorf("%w: empty curve for %s/%s", ErrFetchFailed, role, bracket)
	}
	return curve, nil
}
