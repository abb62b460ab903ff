package schema

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mesh-intelligence/twitlog/internal/sqlite"
	"github.com/mesh-intelligence/twitlog/pkg/types"
)

// ConfigTable stores key/value settings that belong to one database.
const ConfigTable = "config"

// Keys written by the sync commands.
const (
	KeyFollowersSyncedAt = "followers_synced_at"
	KeyTweetsSyncedAt    = "tweets_synced_at"
	KeyMetricsSyncedAt   = "metrics_synced_at"
)

// GetConfig returns the value stored for key, or types.ErrNotFound.
func GetConfig(ctx context.Context, c *sqlite.Conn, key string) (string, error) {
	row, err := c.QueryRow(ctx, "SELECT value FROM config WHERE key = ?", key)
	if err != nil {
		return "", fmt.Errorf("get config %s: %w", key, err)
	}
	v, _ := row.String("value")
	return v, nil
}

// SetConfig stores value under key, replacing any previous value.
func SetConfig(ctx context.Context, c *sqlite.Conn, key, value string) error {
	_, err := c.Insert(ctx, ConfigTable, map[string]any{"key": key, "value": value}, sqlite.OnConflictReplace)
	if err != nil {
		return fmt.Errorf("set config %s: %w", key, err)
	}
	return nil
}

// MarkSynced records t as the completion time of the sync named by key.
func MarkSynced(ctx context.Context, c *sqlite.Conn, key string, t time.Time) error {
	return SetConfig(ctx, c, key, t.UTC().Format(time.RFC3339))
}

// LastSynced returns the time recorded by MarkSynced. ok is false when the
// sync has never completed.
func LastSynced(ctx context.Context, c *sqlite.Conn, key string) (t time.Time, ok bool, err error) {
	v, err := GetConfig(ctx, c, key)
	if errors.Is(err, types.ErrNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	t, err = time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse config %s: %w", key, err)
	}
	return t, true, nil
}
