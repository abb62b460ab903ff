package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mesh-intelligence/twitlog/internal/record"
	"github.com/mesh-intelligence/twitlog/internal/sqlite"
)

// Tables owned by this file.
const (
	UsersTable         = "users"
	ProfilesTable      = "user_profiles"
	RelationshipsTable = "user_relationships"
)

// profileStrip lists profile fields that are not archived: the embedded
// latest status changes on every fetch.
var profileStrip = []string{"status"}

// User is the current row for an account the owner is related to.
type User struct {
	record.Record
}

var userSchema = record.NewSchema[*User](UsersTable,
	record.Column[*User]{Name: "name"},
	record.Column[*User]{Name: "last_profile_id"},
	record.Column[*User]{Name: "last_relationship_id"},
)

// Name returns the screen name taken from the newest profile.
func (u *User) Name() string {
	v, _ := u.Value("name")
	s, _ := v.(string)
	return s
}

// Profile is one archived user profile.
type Profile struct {
	Snapshot
}

var profileSchema = record.NewSchema[*Profile](ProfilesTable, historyColumns[*Profile]()...).
	Extend("", payloadColumn[*Profile](profileStrip...), record.Column[*Profile]{Name: "user_id"})

// Relationship is one archived follow state between the owner and a user.
type Relationship struct {
	Snapshot
}

// relationshipSchema maps booleans to the 0/1 stored by SQLite.
var relationshipSchema = record.NewSchema[*Relationship](RelationshipsTable, historyColumns[*Relationship]()...).
	Extend("",
		record.Column[*Relationship]{Name: "user_id"},
		boolColumn[*Relationship]("is_friend"),
		boolColumn[*Relationship]("is_follower"),
	)

func boolColumn[T record.Mapped](name string) record.Column[T] {
	return record.Column[T]{
		Name: name,
		Getter: func(obj T) (any, bool) {
			v, ok := obj.Mapped().Value(name)
			if !ok {
				return nil, false
			}
			b, _ := v.(bool)
			return b, true
		},
		Restore: func(obj T, v any) error {
			row := sqlite.Row{name: v}
			b, ok := row.Bool(name)
			if !ok {
				return fmt.Errorf("%s holds %T", name, v)
			}
			obj.Mapped().Set(name, b)
			return nil
		},
	}
}

// IsFriend reports whether the owner follows the user.
func (r *Relationship) IsFriend() bool {
	v, _ := relationshipSchema.Value(r, "is_friend")
	b, _ := v.(bool)
	return b
}

// IsFollower reports whether the user follows the owner.
func (r *Relationship) IsFollower() bool {
	v, _ := relationshipSchema.Value(r, "is_follower")
	b, _ := v.(bool)
	return b
}

// RelationshipState is the newest relationship of a stored user.
type RelationshipState struct {
	UserID     int64
	IsFriend   bool
	IsFollower bool
}

// EnsureUser inserts an empty current row for id unless one exists, and
// reports whether it was created.
func EnsureUser(ctx context.Context, c *sqlite.Conn, id int64) (bool, error) {
	got, err := c.Insert(ctx, UsersTable, map[string]any{"id": id}, sqlite.OnConflictIgnore)
	if err != nil {
		return false, fmt.Errorf("ensure user %d: %w", id, err)
	}
	return got != 0, nil
}

// LoadUser reads the current row of a user.
func LoadUser(ctx context.Context, c *sqlite.Conn, id int64) (*User, error) {
	u := &User{}
	if err := userSchema.Load(ctx, c, u, id); err != nil {
		return nil, fmt.Errorf("load user %d: %w", id, err)
	}
	return u, nil
}

// CurrentRelationships returns the newest relationship of every user that
// has one, keyed by user id.
func CurrentRelationships(ctx context.Context, c *sqlite.Conn) (map[int64]RelationshipState, error) {
	rows, err := c.Query(ctx, `SELECT u.id AS id, r.is_friend AS is_friend, r.is_follower AS is_follower
		FROM users AS u
		JOIN user_relationships AS r ON u.last_relationship_id = r.id`)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]RelationshipState, len(rows))
	for _, row := range rows {
		var st RelationshipState
		st.UserID, _ = row.Int64("id")
		st.IsFriend, _ = row.Bool("is_friend")
		st.IsFollower, _ = row.Bool("is_follower")
		out[st.UserID] = st
	}
	return out, nil
}

// RecordRelationship appends a relationship snapshot for a user and makes
// it the user's current one.
func RecordRelationship(ctx context.Context, c *sqlite.Conn, st RelationshipState) (int64, error) {
	var id int64
	err := c.Transaction(ctx, func(c *sqlite.Conn) error {
		rel := &Relationship{}
		rel.Set("user_id", st.UserID)
		rel.Set("is_friend", st.IsFriend)
		rel.Set("is_follower", st.IsFollower)
		var err error
		if id, err = relationshipSchema.Persist(ctx, c, rel, false); err != nil {
			return err
		}
		return linkUser(ctx, c, st.UserID, "last_relationship_id", id, "")
	})
	if err != nil {
		return 0, fmt.Errorf("record relationship of user %d: %w", st.UserID, err)
	}
	return id, nil
}

// UsersWithoutProfile returns the ids of users that have never had a
// profile archived, in id order.
func UsersWithoutProfile(ctx context.Context, c *sqlite.Conn) ([]int64, error) {
	rows, err := c.Query(ctx, "SELECT id FROM users WHERE last_profile_id IS NULL ORDER BY id")
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(rows))
	for i, row := range rows {
		ids[i], _ = row.Int64("id")
	}
	return ids, nil
}

// RecordProfile appends a profile snapshot taken from payload and makes it
// the user's current one. The user id and screen name are read from the
// payload.
func RecordProfile(ctx context.Context, c *sqlite.Conn, payload json.RawMessage) (int64, error) {
	obj, err := DecodePayload(payload)
	if err != nil {
		return 0, err
	}
	userID, err := payloadID(obj)
	if err != nil {
		return 0, fmt.Errorf("record profile: %w", err)
	}
	name, _ := obj["screen_name"].(string)

	var id int64
	err = c.Transaction(ctx, func(c *sqlite.Conn) error {
		if _, err := EnsureUser(ctx, c, userID); err != nil {
			return err
		}
		p := &Profile{}
		p.Set("user_id", userID)
		p.Set(colJSON, obj)
		if id, err = profileSchema.Persist(ctx, c, p, false); err != nil {
			return err
		}
		return linkUser(ctx, c, userID, "last_profile_id", id, name)
	})
	if err != nil {
		return 0, fmt.Errorf("record profile of user %d: %w", userID, err)
	}
	return id, nil
}

// LatestProfile returns the newest archived profile of a user.
func LatestProfile(ctx context.Context, c *sqlite.Conn, userID int64) (*Profile, error) {
	row, err := c.QueryRow(ctx, `SELECT p.* FROM user_profiles AS p
		JOIN users AS u ON u.last_profile_id = p.id
		WHERE u.id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("latest profile of user %d: %w", userID, err)
	}
	p := &Profile{}
	if err := profileSchema.Restore(p, row); err != nil {
		return nil, err
	}
	return p, nil
}

// linkUser points the user's current row at a new snapshot, refreshing the
// screen name when one is given.
func linkUser(ctx context.Context, c *sqlite.Conn, userID int64, column string, snapshotID int64, name string) error {
	u, err := LoadUser(ctx, c, userID)
	if err != nil {
		return err
	}
	u.Set(column, snapshotID)
	if name != "" && name != u.Name() {
		u.Set("name", name)
	}
	_, err = userSchema.Persist(ctx, c, u, false)
	return err
}

var errNoPayloadID = errors.New("payload has no numeric id")

// payloadID reads the numeric id field of an API object.
func payloadID(obj map[string]any) (int64, error) {
	switch v := obj["id"].(type) {
	case json.Number:
		return v.Int64()
	case float64:
		return int64(v), nil
	}
	return 0, errNoPayloadID
}
