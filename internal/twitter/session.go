package twitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
)

// DefaultWebBase is the site root the web session talks to.
const DefaultWebBase = "https://twitter.com"

// metricsPath is the per-tweet activity poll endpoint; the tweet id is
// appended.
const metricsPath = "/i/tfb/v1/tweet_activity/web/poll/"

// ErrNoCookies is returned when a web session is built without the cookies
// of a logged-in browser session.
var ErrNoCookies = errors.New("web session needs cookies (set TWITLOG_COOKIES)")

// MetricsSource returns the engagement counts of one tweet.
type MetricsSource interface {
	TweetMetrics(ctx context.Context, tweetID int64) (map[string]int64, error)
}

// WebSession reads tweet analytics with the cookies of a logged-in
// browser session.
type WebSession struct {
	http   *http.Client
	base   *url.URL
	logger *slog.Logger
}

// NewWebSession seeds a cookie jar for base with cookies. An empty base
// selects DefaultWebBase.
func NewWebSession(base string, cookies map[string]string, logger *slog.Logger) (*WebSession, error) {
	if len(cookies) == 0 {
		return nil, ErrNoCookies
	}
	if base == "" {
		base = DefaultWebBase
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse web base: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	list := make([]*http.Cookie, 0, len(cookies))
	for name, value := range cookies {
		list = append(list, &http.Cookie{Name: name, Value: value})
	}
	jar.SetCookies(u, list)
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSession{http: &http.Client{Jar: jar}, base: u, logger: logger}, nil
}

// ParseCookies decodes the JSON object form of TWITLOG_COOKIES.
func ParseCookies(text string) (map[string]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	var out map[string]string
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, fmt.Errorf("parse cookies: %w", err)
	}
	return out, nil
}

// TweetMetrics fetches the all-time counts of a tweet. Counts arrive as
// strings or numbers and are returned as integers.
func (s *WebSession) TweetMetrics(ctx context.Context, tweetID int64) (map[string]int64, error) {
	u := s.base.JoinPath(metricsPath + strconv.FormatInt(tweetID, 10))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	s.logger.Debug("metrics request", "tweet", tweetID)

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", u.Path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{Status: resp.StatusCode, URL: u.Path, Body: strings.TrimSpace(string(body))}
	}

	var payload struct {
		Metrics struct {
			All map[string]json.RawMessage `json:"all"`
		} `json:"metrics"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode metrics of tweet %d: %w", tweetID, err)
	}

	counts := make(map[string]int64, len(payload.Metrics.All))
	for name, raw := range payload.Metrics.All {
		n, err := parseCount(raw)
		if err != nil {
			return nil, fmt.Errorf("metric %s of tweet %d: %w", name, tweetID, err)
		}
		counts[name] = n
	}
	return counts, nil
}

func parseCount(raw json.RawMessage) (int64, error) {
	text := strings.Trim(string(raw), `"`)
	return strconv.ParseInt(text, 10, 64)
}
