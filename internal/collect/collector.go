// Package collect runs the sync passes that pull data from the API into
// the archive: relationships, profiles, tweets and tweet metrics.
package collect

import (
	"errors"
	"log/slog"
	"time"

	"github.com/mesh-intelligence/twitlog/internal/sqlite"
	"github.com/mesh-intelligence/twitlog/internal/twitter"
)

// ProfileBatchSize is the most user ids one users/lookup call accepts.
const ProfileBatchSize = 100

// TimelinePageSize is the tweet count requested per timeline call.
const TimelinePageSize = 200

// Errors returned when a pass is missing its collaborator.
var (
	ErrNoPager         = errors.New("no API client configured")
	ErrNoMetricsSource = errors.New("no web session configured")
)

// Collector syncs one user's archive over one connection.
type Collector struct {
	conn     *sqlite.Conn
	username string
	api      twitter.Pager
	metrics  twitter.MetricsSource
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Collector.
type Option func(*Collector)

// WithPager sets the REST API client.
func WithPager(p twitter.Pager) Option {
	return func(c *Collector) { c.api = p }
}

// WithMetricsSource sets the web session used for tweet metrics.
func WithMetricsSource(m twitter.MetricsSource) Option {
	return func(c *Collector) { c.metrics = m }
}

// WithLogger sets the logger progress is reported to.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Collector) { c.logger = logger }
}

// WithClock overrides the time recorded when a pass completes.
func WithClock(now func() time.Time) Option {
	return func(c *Collector) { c.now = now }
}

// New returns a Collector for username's archive on conn.
func New(conn *sqlite.Conn, username string, opts ...Option) *Collector {
	c := &Collector{
		conn:     conn,
		username: username,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
