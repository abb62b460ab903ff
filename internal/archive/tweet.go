package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mesh-intelligence/twitlog/internal/record"
	"github.com/mesh-intelligence/twitlog/internal/sqlite"
	"github.com/mesh-intelligence/twitlog/pkg/types"
)

// Tables owned by this file.
const (
	TweetsTable  = "tweets"
	MetricsTable = "tweet_metrics"
)

// Tweet is the current row of one of the owner's tweets.
type Tweet struct {
	record.Record
}

var tweetSchema = record.NewSchema[*Tweet](TweetsTable,
	payloadColumn[*Tweet](),
	record.Column[*Tweet]{Name: "last_metrics_id"},
)

// Payload returns the decoded tweet object.
func (t *Tweet) Payload() map[string]any {
	v, _ := t.Value(colJSON)
	m, _ := v.(map[string]any)
	return m
}

// Metrics is one archived set of engagement counts for a tweet.
type Metrics struct {
	Snapshot
}

var metricsSchema = record.NewSchema[*Metrics](MetricsTable, historyColumns[*Metrics]()...).
	Extend("", payloadColumn[*Metrics](), record.Column[*Metrics]{Name: "tweet_id"})

// TweetMetricsState pairs a stored tweet with the JSON of its newest
// metrics snapshot. LastJSON is empty when none was taken yet.
type TweetMetricsState struct {
	TweetID  int64
	LastJSON string
}

// MaxTweetID returns the newest stored tweet id; ok is false when no tweet
// is stored.
func MaxTweetID(ctx context.Context, c *sqlite.Conn) (id int64, ok bool, err error) {
	row, err := c.QueryRow(ctx, "SELECT max(id) AS id FROM tweets")
	if err != nil {
		return 0, false, err
	}
	id, ok = row.Int64("id")
	return id, ok, nil
}

// InsertTweet stores a tweet payload unless its id is already stored, and
// reports whether it was new.
func InsertTweet(ctx context.Context, c *sqlite.Conn, payload json.RawMessage) (bool, error) {
	obj, err := DecodePayload(payload)
	if err != nil {
		return false, err
	}
	id, err := payloadID(obj)
	if err != nil {
		return false, fmt.Errorf("insert tweet: %w", err)
	}
	text, err := EncodePayload(obj)
	if err != nil {
		return false, err
	}
	got, err := c.Insert(ctx, TweetsTable, map[string]any{"id": id, colJSON: text}, sqlite.OnConflictIgnore)
	if err != nil {
		return false, fmt.Errorf("insert tweet %d: %w", id, err)
	}
	return got != 0, nil
}

// LoadTweet reads the current row of a tweet.
func LoadTweet(ctx context.Context, c *sqlite.Conn, id int64) (*Tweet, error) {
	t := &Tweet{}
	if err := tweetSchema.Load(ctx, c, t, id); err != nil {
		return nil, fmt.Errorf("load tweet %d: %w", id, err)
	}
	return t, nil
}

// TweetMetricsStates lists every stored tweet with its newest metrics, in
// id order.
func TweetMetricsStates(ctx context.Context, c *sqlite.Conn) ([]TweetMetricsState, error) {
	rows, err := c.Query(ctx, `SELECT t.id AS id, m.json AS json
		FROM tweets AS t
		LEFT JOIN tweet_metrics AS m ON t.last_metrics_id = m.id
		ORDER BY t.id`)
	if err != nil {
		return nil, err
	}
	out := make([]TweetMetricsState, len(rows))
	for i, row := range rows {
		out[i].TweetID, _ = row.Int64("id")
		out[i].LastJSON, _ = row.String("json")
	}
	return out, nil
}

// RecordMetrics appends a metrics snapshot for a tweet when counts differ
// from lastJSON, and links it as the tweet's current one. It reports
// whether a snapshot was written.
func RecordMetrics(ctx context.Context, c *sqlite.Conn, tweetID int64, counts map[string]int64, lastJSON string) (bool, error) {
	text, err := EncodePayload(counts)
	if err != nil {
		return false, err
	}
	if text == lastJSON {
		return false, nil
	}

	err = c.Transaction(ctx, func(c *sqlite.Conn) error {
		m := &Metrics{}
		m.Set("tweet_id", tweetID)
		m.Set(colJSON, counts)
		id, err := metricsSchema.Persist(ctx, c, m, false)
		if err != nil {
			return err
		}
		t, err := LoadTweet(ctx, c, tweetID)
		if err != nil {
			return err
		}
		t.Set("last_metrics_id", id)
		_, err = tweetSchema.Persist(ctx, c, t, false)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("record metrics of tweet %d: %w", tweetID, err)
	}
	return true, nil
}

// LatestMetrics returns the newest metrics snapshot of a tweet, or
// types.ErrNotFound when none was taken.
func LatestMetrics(ctx context.Context, c *sqlite.Conn, tweetID int64) (*Metrics, error) {
	row, err := c.QueryRow(ctx, `SELECT m.* FROM tweet_metrics AS m
		JOIN tweets AS t ON t.last_metrics_id = m.id
		WHERE t.id = ?`, tweetID)
	if errors.Is(err, types.ErrNotFound) {
		return nil, fmt.Errorf("metrics of tweet %d: %w", tweetID, types.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	m := &Metrics{}
	if err := metricsSchema.Restore(m, row); err != nil {
		return nil, err
	}
	return m, nil
}

// Counts returns the metric counts of the snapshot.
func (m *Metrics) Counts() map[string]int64 {
	out := make(map[string]int64)
	for k, v := range m.Payload() {
		if n, ok := v.(json.Number); ok {
			if i, err := n.Int64(); err == nil {
				out[k] = i
			}
		}
	}
	return out
}
