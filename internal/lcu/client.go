package lcu

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"focuswatch/internal/champselect"
)

var (
	ErrLockfileNotFound    = errors.New("lockfile not found")
	ErrClientUnreachable   = errors.New("league client unreachable")
	ErrLiveDataUnreachable = errors.New("live client data unreachable")
	ErrNoChampSelect       = errors.New("not in champion select")
)

// Client talks to the League Client API. Credentials are discovered lazily
// from the lockfile and dropped on any connection failure, so the next call
// rediscovers them.
type Client struct {
	lockfiles  []string
	httpClient *http.Client
	log        *zap.SugaredLogger

	mu    sync.Mutex
	creds *Credentials
}

// NewClient creates a client that searches lockfiles in order
func NewClient(lockfiles []string, timeout time.Duration, log *zap.Logger) *Client {
	return &Client{
		lockfiles: lockfiles,
		httpClient: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: true, // LCU uses a self-signed cert
				},
			},
			Timeout: timeout,
		},
		log: log.Named("lcu").Sugar(),
	}
}

// Credentials returns the current credentials, discovering them if needed
func (c *Client) Credentials() (*Credentials, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.creds != nil {
		return c.creds, nil
	}

	path, err := FindLockfile(c.lockfiles)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrClientUnreachable, err)
	}
	creds, err := ParseLockfile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrClientUnreachable, err)
	}

	c.log.Infof("[LCU] Found client on port %s", creds.Port)
	c.creds = creds
	return creds, nil
}

// Reset drops cached credentials
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.creds = nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any) (*http.Response, error) {
	creds, err := c.Credentials()
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, creds.BaseURL()+endpoint, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", creds.AuthHeader())
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.Reset()
		return nil, fmt.Errorf("%w: %v", ErrClientUnreachable, err)
	}
	return resp, nil
}

// getJSON performs a GET and decodes a 200 response into out
func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	resp, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status: %d", endpoint, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// GameflowPhase returns the raw gameflow phase string
func (c *Client) GameflowPhase(ctx context.Context) (string, error) {
	var phase string
	if err := c.getJSON(ctx, "/lol-gameflow/v1/gameflow-phase", &phase); err != nil {
		return "", err
	}
	return phase, nil
}

// ChampSelectSession returns the parsed session and its raw document.
// ErrNoChampSelect is returned when no session exists.
func (c *Client) ChampSelectSession(ctx context.Context) (*champselect.Session, []byte, error) {
	resp, err := c.do(ctx, http.MethodGet, "/lol-champ-select/v1/session", nil)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil, ErrNoChampSelect
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("champ select session: unexpected status: %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}
	session, err := champselect.Parse(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse session: %w", err)
	}
	return session, raw, nil
}

// Summoner is the logged-in player
type Summoner struct {
	SummonerID  int64  `json:"summonerId"`
	AccountID   int64  `json:"accountId"`
	PUUID       string `json:"puuid"`
	DisplayName string `json:"displayName"`
	GameName    string `json:"gameName"`
}

// CurrentSummoner returns the logged-in player
func (c *Client) CurrentSummoner(ctx context.Context) (*Summoner, error) {
	var s Summoner
	if err := c.getJSON(ctx, "/lol-summoner/v1/current-summoner", &s); err != nil {
		return nil, fmt.Errorf("failed to get summoner: %w", err)
	}
	return &s, nil
}
