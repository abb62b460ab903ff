// Package archive stores twitlog's domain data: users and tweets as
// current rows, and their profiles, relationships and metrics as
// append-only snapshots. Each current row points at its newest snapshot;
// a snapshot is written and linked inside one transaction scope.
package archive

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mesh-intelligence/twitlog/internal/record"
)

// Column names shared by the snapshot tables.
const (
	colCreatedAt = "created_at"
	colJSON      = "json"
)

// createdAtLayout is how SQLite's datetime('now') renders timestamps.
const createdAtLayout = time.DateTime

// historyColumns are carried by every snapshot table. created_at is left to
// the column default unless set explicitly.
func historyColumns[T record.Mapped]() []record.Column[T] {
	return []record.Column[T]{{
		Name: colCreatedAt,
		Persist: func(obj T) (any, error) {
			v, ok := obj.Mapped().Value(colCreatedAt)
			if !ok {
				return nil, record.ErrAbsent
			}
			if t, isTime := v.(time.Time); isTime {
				return t.UTC().Format(createdAtLayout), nil
			}
			return v, nil
		},
	}}
}

// payloadColumn maps the json column. The in-memory value is a decoded
// object; it is stored as compact JSON with sorted keys and the stripped
// top-level fields removed.
func payloadColumn[T record.Mapped](strip ...string) record.Column[T] {
	return record.Column[T]{
		Name: colJSON,
		Persist: func(obj T) (any, error) {
			v, ok := obj.Mapped().Value(colJSON)
			if !ok {
				return nil, record.ErrAbsent
			}
			return EncodePayload(v, strip...)
		},
		Restore: func(obj T, v any) error {
			text, ok := v.(string)
			if !ok {
				return fmt.Errorf("json column holds %T", v)
			}
			obj2, err := DecodePayload([]byte(text))
			if err != nil {
				return err
			}
			obj.Mapped().Set(colJSON, obj2)
			return nil
		},
	}
}

// DecodePayload parses a JSON object, keeping numbers exact.
func DecodePayload(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return out, nil
}

// EncodePayload renders v as compact JSON with sorted keys, dropping the
// named top-level fields. v may be raw JSON bytes or any value that
// marshals to an object.
func EncodePayload(v any, strip ...string) (string, error) {
	var raw []byte
	switch p := v.(type) {
	case json.RawMessage:
		raw = p
	case []byte:
		raw = p
	case string:
		raw = []byte(p)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("encode payload: %w", err)
		}
		raw = b
	}
	obj, err := DecodePayload(raw)
	if err != nil {
		return "", err
	}
	for _, key := range strip {
		delete(obj, key)
	}
	b, err := json.Marshal(obj)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	return string(b), nil
}

// Snapshot is the part every history row shares.
type Snapshot struct {
	record.Record
}

// CreatedAt returns when the snapshot was written.
func (s *Snapshot) CreatedAt() (time.Time, bool) {
	v, ok := s.Value(colCreatedAt)
	if !ok {
		return time.Time{}, false
	}
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(createdAtLayout, t)
		return parsed, err == nil
	}
	return time.Time{}, false
}

// Payload returns the decoded JSON object of a payload-carrying snapshot.
func (s *Snapshot) Payload() map[string]any {
	v, _ := s.Value(colJSON)
	m, _ := v.(map[string]any)
	return m
}
