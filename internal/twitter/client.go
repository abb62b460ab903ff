// Package twitter is the thin adapter between twitlog and the social API:
// a bearer-token JSON client for the REST endpoints and a cookie-bearing
// web session for per-tweet metrics. The rest of twitlog only sees the
// Pager and MetricsSource interfaces.
package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
)

// DefaultAPIBase is the REST API root.
const DefaultAPIBase = "https://api.twitter.com/1.1/"

// REST endpoints used by the sync commands.
const (
	PathFollowerIDs  = "followers/ids"
	PathFriendIDs    = "friends/ids"
	PathUsersLookup  = "users/lookup"
	PathUserTimeline = "statuses/user_timeline"
)

// Pager fetches JSON from the REST API.
type Pager interface {
	// GetJSON decodes the response of one GET request into out.
	GetJSON(ctx context.Context, path string, params url.Values, out any) error
}

// APIError is a non-2xx response.
type APIError struct {
	Status int
	URL    string
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("GET %s: status %d: %s", e.URL, e.Status, e.Body)
}

// Client calls the REST API with an OAuth2 bearer token.
type Client struct {
	http   *http.Client
	base   *url.URL
	logger *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAPIBase points the client at another API root.
func WithAPIBase(base *url.URL) ClientOption {
	return func(c *Client) { c.base = base }
}

// WithClientLogger sets the logger requests are reported to.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// NewClient returns a client authenticating with bearerToken. The token
// source's HTTP client is taken from ctx when one is set with
// oauth2.HTTPClient.
func NewClient(ctx context.Context, bearerToken string, opts ...ClientOption) *Client {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: bearerToken, TokenType: "Bearer"})
	base, _ := url.Parse(DefaultAPIBase)
	c := &Client{
		http:   oauth2.NewClient(ctx, src),
		base:   base,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetJSON requests path (relative to the API root, without the .json
// suffix) and decodes the response into out.
func (c *Client) GetJSON(ctx context.Context, path string, params url.Values, out any) error {
	u := c.base.JoinPath(strings.TrimPrefix(path, "/") + ".json")
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	c.logger.Debug("api request", "url", u.String())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", u.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Status: resp.StatusCode, URL: u.Path, Body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", u.Path, err)
	}
	return nil
}
