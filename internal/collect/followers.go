package collect

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/twitlog/internal/archive"
	"github.com/mesh-intelligence/twitlog/internal/schema"
	"github.com/mesh-intelligence/twitlog/internal/sqlite"
	"github.com/mesh-intelligence/twitlog/internal/twitter"
)

// RelationshipStats summarizes an UpdateRelationships pass.
type RelationshipStats struct {
	Followers int
	Friends   int
	NewUsers  int
	Changed   int
}

// UpdateRelationships merges the follower and friend id lists with the
// stored relationships. Unknown users are created, and a relationship
// snapshot is appended for every user whose state changed, including users
// that dropped out of both lists.
func (c *Collector) UpdateRelationships(ctx context.Context) (RelationshipStats, error) {
	if c.api == nil {
		return RelationshipStats{}, ErrNoPager
	}
	params := url.Values{"screen_name": {c.username}}
	followers, err := twitter.IDs(ctx, c.api, twitter.PathFollowerIDs, params)
	if err != nil {
		return RelationshipStats{}, fmt.Errorf("fetch follower ids: %w", err)
	}
	friends, err := twitter.IDs(ctx, c.api, twitter.PathFriendIDs, params)
	if err != nil {
		return RelationshipStats{}, fmt.Errorf("fetch friend ids: %w", err)
	}
	stats := RelationshipStats{Followers: len(followers), Friends: len(friends)}

	err = c.conn.Transaction(ctx, func(conn *sqlite.Conn) error {
		stored, err := archive.CurrentRelationships(ctx, conn)
		if err != nil {
			return err
		}
		next := make(map[int64]archive.RelationshipState, len(stored)+len(followers)+len(friends))
		for id := range stored {
			next[id] = archive.RelationshipState{UserID: id}
		}
		for _, id := range followers {
			st := next[id]
			st.UserID, st.IsFollower = id, true
			next[id] = st
		}
		for _, id := range friends {
			st := next[id]
			st.UserID, st.IsFriend = id, true
			next[id] = st
		}

		ids := make([]int64, 0, len(next))
		for id := range next {
			ids = append(ids, id)
		}
		slices.Sort(ids)

		for _, id := range ids {
			st := next[id]
			created, err := archive.EnsureUser(ctx, conn, id)
			if err != nil {
				return err
			}
			if created {
				stats.NewUsers++
			}
			if old, ok := stored[id]; ok && old == st {
				continue
			}
			if _, err := archive.RecordRelationship(ctx, conn, st); err != nil {
				return err
			}
			stats.Changed++
		}
		return schema.MarkSynced(ctx, conn, schema.KeyFollowersSyncedAt, c.now())
	})
	if err != nil {
		return RelationshipStats{}, err
	}
	c.logger.Info("relationships updated",
		"followers", stats.Followers, "friends", stats.Friends,
		"new_users", stats.NewUsers, "changed", stats.Changed)
	return stats, nil
}

// UpdateProfiles archives a profile for every user that has none, looking
// users up in batches of ProfileBatchSize. Each batch is committed on its
// own, so an interrupted pass keeps the profiles already fetched.
func (c *Collector) UpdateProfiles(ctx context.Context) (int, error) {
	if c.api == nil {
		return 0, ErrNoPager
	}
	ids, err := archive.UsersWithoutProfile(ctx, c.conn)
	if err != nil {
		return 0, err
	}

	total := 0
	for batch := range slices.Chunk(ids, ProfileBatchSize) {
		strs := make([]string, len(batch))
		for i, id := range batch {
			strs[i] = strconv.FormatInt(id, 10)
		}
		var profiles []json.RawMessage
		params := url.Values{"user_id": {strings.Join(strs, ",")}}
		if err := c.api.GetJSON(ctx, twitter.PathUsersLookup, params, &profiles); err != nil {
			return total, fmt.Errorf("look up %d users: %w", len(batch), err)
		}

		err := c.conn.Transaction(ctx, func(conn *sqlite.Conn) error {
			for _, p := range profiles {
				if _, err := archive.RecordProfile(ctx, conn, p); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return total, err
		}
		total += len(profiles)
		c.logger.Info("profiles archived", "count", len(profiles), "requested", len(batch))
	}
	return total, nil
}
