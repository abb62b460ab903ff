package collect

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/mesh-intelligence/twitlog/internal/archive"
	"github.com/mesh-intelligence/twitlog/internal/schema"
	"github.com/mesh-intelligence/twitlog/internal/sqlite"
	"github.com/mesh-intelligence/twitlog/internal/twitter"
)

// UpdateTweets fetches the owner's timeline newer than the newest stored
// tweet and stores the new tweets. Retweets are excluded. It returns how
// many tweets were new.
func (c *Collector) UpdateTweets(ctx context.Context) (int, error) {
	if c.api == nil {
		return 0, ErrNoPager
	}
	params := url.Values{
		"screen_name": {c.username},
		"trim_user":   {"true"},
		"count":       {strconv.Itoa(TimelinePageSize)},
		"include_rts": {"false"},
	}
	if since, ok, err := archive.MaxTweetID(ctx, c.conn); err != nil {
		return 0, err
	} else if ok {
		params.Set("since_id", strconv.FormatInt(since, 10))
	}

	var tweets []json.RawMessage
	if err := c.api.GetJSON(ctx, twitter.PathUserTimeline, params, &tweets); err != nil {
		return 0, fmt.Errorf("fetch timeline: %w", err)
	}

	added := 0
	err := c.conn.Transaction(ctx, func(conn *sqlite.Conn) error {
		for _, t := range tweets {
			ok, err := archive.InsertTweet(ctx, conn, t)
			if err != nil {
				return err
			}
			if ok {
				added++
			}
		}
		return schema.MarkSynced(ctx, conn, schema.KeyTweetsSyncedAt, c.now())
	})
	if err != nil {
		return 0, err
	}
	c.logger.Info("tweets updated", "fetched", len(tweets), "added", added)
	return added, nil
}
