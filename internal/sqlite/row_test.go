package sqlite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRowAccessors(t *testing.T) {
	row := Row{
		"id":      int64(7),
		"name":    "alice",
		"blob":    []byte("raw"),
		"flag":    int64(1),
		"missing": nil,
		"at":      "2024-01-02 03:04:05",
	}

	v, ok := row.Get("missing")
	assert.True(t, ok, "NULL column is present")
	assert.Nil(t, v)

	_, ok = row.Get("nope")
	assert.False(t, ok)

	n, ok := row.Int64("id")
	assert.True(t, ok)
	assert.Equal(t, int64(7), n)

	_, ok = row.Int64("missing")
	assert.False(t, ok)

	s, ok := row.String("blob")
	assert.True(t, ok)
	assert.Equal(t, "raw", s)

	b, ok := row.Bool("flag")
	assert.True(t, ok)
	assert.True(t, b)

	at, ok := row.Time("at")
	assert.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), at)
}
