package archive

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/twitlog/internal/schema"
	"github.com/mesh-intelligence/twitlog/internal/sqlite"
	"github.com/mesh-intelligence/twitlog/pkg/types"
)

func openArchive(t *testing.T) *sqlite.Conn {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db := sqlite.New(filepath.Join(t.TempDir(), "alice.sqlite"),
		sqlite.WithLogger(logger), sqlite.WithMigrations(schema.Migrations()))
	require.NoError(t, db.Create(ctx, false))
	c, err := db.Connect(ctx, false)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestEncodePayload(t *testing.T) {
	text, err := EncodePayload(json.RawMessage(`{"z":1,"id":1234567890123456789,"status":{"x":1}}`), "status")
	require.NoError(t, err)
	assert.Equal(t, `{"id":1234567890123456789,"z":1}`, text, "keys sorted, big ids exact")

	text, err = EncodePayload(map[string]int64{"b": 2, "a": 1})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":2}`, text)

	_, err = EncodePayload(json.RawMessage(`[1,2]`))
	assert.Error(t, err)
}

func TestRelationships(t *testing.T) {
	ctx := context.Background()
	c := openArchive(t)

	created, err := EnsureUser(ctx, c, 10)
	require.NoError(t, err)
	assert.True(t, created)
	created, err = EnsureUser(ctx, c, 10)
	require.NoError(t, err)
	assert.False(t, created)

	first, err := RecordRelationship(ctx, c, RelationshipState{UserID: 10, IsFollower: true})
	require.NoError(t, err)
	second, err := RecordRelationship(ctx, c, RelationshipState{UserID: 10, IsFollower: true, IsFriend: true})
	require.NoError(t, err)
	assert.Greater(t, second, first)

	states, err := CurrentRelationships(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, map[int64]RelationshipState{
		10: {UserID: 10, IsFriend: true, IsFollower: true},
	}, states)

	u, err := LoadUser(ctx, c, 10)
	require.NoError(t, err)
	last, _ := u.Value("last_relationship_id")
	assert.Equal(t, second, last)
	assert.False(t, u.Dirty())

	row, err := c.QueryRow(ctx, "SELECT * FROM user_relationships WHERE id = ?", first)
	require.NoError(t, err)
	rel := &Relationship{}
	require.NoError(t, relationshipSchema.Restore(rel, row))
	assert.True(t, rel.IsFollower())
	assert.False(t, rel.IsFriend())
	_, ok := rel.CreatedAt()
	assert.True(t, ok)
}

func TestRelationship_MissingUser(t *testing.T) {
	ctx := context.Background()
	c := openArchive(t)

	_, err := RecordRelationship(ctx, c, RelationshipState{UserID: 99, IsFriend: true})
	require.Error(t, err)

	row, err := c.QueryRow(ctx, "SELECT count(*) AS n FROM user_relationships")
	require.NoError(t, err)
	n, _ := row.Int64("n")
	assert.Zero(t, n, "snapshot rolled back with the failed link")
}

func TestProfiles(t *testing.T) {
	ctx := context.Background()
	c := openArchive(t)
	_, err := EnsureUser(ctx, c, 1)
	require.NoError(t, err)
	_, err = EnsureUser(ctx, c, 2)
	require.NoError(t, err)

	ids, err := UsersWithoutProfile(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids)

	pid, err := RecordProfile(ctx, c, json.RawMessage(`{"id":2,"screen_name":"bob","status":{"text":"hi"}}`))
	require.NoError(t, err)

	ids, err = UsersWithoutProfile(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids)

	u, err := LoadUser(ctx, c, 2)
	require.NoError(t, err)
	assert.Equal(t, "bob", u.Name())

	p, err := LatestProfile(ctx, c, 2)
	require.NoError(t, err)
	id, _ := p.ID()
	assert.Equal(t, pid, id)
	assert.Equal(t, "bob", p.Payload()["screen_name"])
	assert.NotContains(t, p.Payload(), "status")

	row, err := c.QueryRow(ctx, "SELECT json FROM user_profiles WHERE id = ?", pid)
	require.NoError(t, err)
	text, _ := row.String("json")
	assert.Equal(t, `{"id":2,"screen_name":"bob"}`, text)
}

func TestTweetsAndMetrics(t *testing.T) {
	ctx := context.Background()
	c := openArchive(t)

	_, ok, err := MaxTweetID(ctx, c)
	require.NoError(t, err)
	assert.False(t, ok)

	inserted, err := InsertTweet(ctx, c, json.RawMessage(`{"text":"hello","id":100}`))
	require.NoError(t, err)
	assert.True(t, inserted)
	inserted, err = InsertTweet(ctx, c, json.RawMessage(`{"text":"changed","id":100}`))
	require.NoError(t, err)
	assert.False(t, inserted, "duplicates are ignored")
	_, err = InsertTweet(ctx, c, json.RawMessage(`{"text":"later","id":200}`))
	require.NoError(t, err)

	newest, ok, err := MaxTweetID(ctx, c)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(200), newest)

	tw, err := LoadTweet(ctx, c, 100)
	require.NoError(t, err)
	assert.Equal(t, "hello", tw.Payload()["text"])

	_, err = LatestMetrics(ctx, c, 100)
	assert.ErrorIs(t, err, types.ErrNotFound)

	states, err := TweetMetricsStates(ctx, c)
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, TweetMetricsState{TweetID: 100}, states[0])

	counts := map[string]int64{"Impressions": 10, "Engagements": 2}
	wrote, err := RecordMetrics(ctx, c, 100, counts, states[0].LastJSON)
	require.NoError(t, err)
	assert.True(t, wrote)

	states, err = TweetMetricsStates(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, `{"Engagements":2,"Impressions":10}`, states[0].LastJSON)

	wrote, err = RecordMetrics(ctx, c, 100, counts, states[0].LastJSON)
	require.NoError(t, err)
	assert.False(t, wrote, "unchanged counts are not archived again")

	m, err := LatestMetrics(ctx, c, 100)
	require.NoError(t, err)
	assert.Equal(t, counts, m.Counts())
}
