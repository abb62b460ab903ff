package collect

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/twitlog/internal/archive"
	"github.com/mesh-intelligence/twitlog/internal/schema"
)

// MetricsFetchLimit caps the web requests in flight during UpdateMetrics.
const MetricsFetchLimit = 4

// UpdateMetrics fetches the counts of every stored tweet and appends a
// metrics snapshot where they changed. Tweets are fetched in groups of
// MetricsFetchLimit; writes stay on the calling goroutine and each tweet is
// committed on its own. It returns how many snapshots were written.
func (c *Collector) UpdateMetrics(ctx context.Context) (int, error) {
	if c.metrics == nil {
		return 0, ErrNoMetricsSource
	}
	states, err := archive.TweetMetricsStates(ctx, c.conn)
	if err != nil {
		return 0, err
	}

	written := 0
	for group := range slices.Chunk(states, MetricsFetchLimit) {
		counts := make([]map[string]int64, len(group))
		g, gctx := errgroup.WithContext(ctx)
		for i, st := range group {
			g.Go(func() error {
				m, err := c.metrics.TweetMetrics(gctx, st.TweetID)
				if err != nil {
					return fmt.Errorf("fetch metrics of tweet %d: %w", st.TweetID, err)
				}
				counts[i] = m
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return written, err
		}

		for i, st := range group {
			changed, err := archive.RecordMetrics(ctx, c.conn, st.TweetID, counts[i], st.LastJSON)
			if err != nil {
				return written, err
			}
			c.logger.Debug("tweet metrics", "tweet", st.TweetID, "counts", counts[i], "changed", changed)
			if changed {
				written++
			}
		}
	}
	if err := schema.MarkSynced(ctx, c.conn, schema.KeyMetricsSyncedAt, c.now()); err != nil {
		return written, err
	}
	c.logger.Info("metrics updated", "tweets", len(states), "snapshots", written)
	return written, nil
}
