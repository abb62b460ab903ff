package sqlite

import (
	"strconv"
	"time"
)

// Row is one fetched result row keyed by column name. A column missing
// from the result and a column never selected are the same thing: the
// value is not present.
type Row map[string]any

// Get returns the raw value for name and whether it was present. A present
// SQL NULL is returned as (nil, true).
func (r Row) Get(name string) (any, bool) {
	v, ok := r[name]
	return v, ok
}

// Int64 returns the value for name as an int64. The second result is false
// when the column is absent, NULL, or not an integer.
func (r Row) Int64(name string) (int64, bool) {
	switch v := r[name].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// String returns the value for name as a string. Blobs are converted;
// other types report false.
func (r Row) String(name string) (string, bool) {
	switch v := r[name].(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	default:
		return "", false
	}
}

// Bool interprets integer and boolean values; SQLite stores BOOLEAN as 0/1.
func (r Row) Bool(name string) (bool, bool) {
	if b, ok := r[name].(bool); ok {
		return b, true
	}
	n, ok := r.Int64(name)
	return n != 0, ok
}

// Time returns the value for name as a time. The driver already converts
// TIMESTAMP columns; text in the default datetime('now') layout is parsed
// here.
func (r Row) Time(name string) (time.Time, bool) {
	switch v := r[name].(type) {
	case time.Time:
		return v, true
	case string:
		for _, layout := range []string{time.DateTime, time.RFC3339Nano} {
			if t, err := time.Parse(layout, v); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}
