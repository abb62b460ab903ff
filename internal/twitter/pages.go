package twitter

import (
	"context"
	"encoding/json"
	"iter"
	"net/url"
	"strconv"
)

// cursorPage is the envelope of cursored list endpoints.
type cursorPage struct {
	IDs        []int64 `json:"ids"`
	NextCursor int64   `json:"next_cursor"`
}

// Pages walks a cursored endpoint, yielding each raw page. Iteration stops
// after the page whose next_cursor is zero, or at the first error.
func Pages(ctx context.Context, p Pager, path string, params url.Values) iter.Seq2[json.RawMessage, error] {
	return func(yield func(json.RawMessage, error) bool) {
		q := cloneValues(params)
		cursor := int64(-1)
		for {
			q.Set("cursor", strconv.FormatInt(cursor, 10))
			var raw json.RawMessage
			if err := p.GetJSON(ctx, path, q, &raw); err != nil {
				yield(nil, err)
				return
			}
			if !yield(raw, nil) {
				return
			}
			var page cursorPage
			if err := json.Unmarshal(raw, &page); err != nil {
				yield(nil, err)
				return
			}
			if page.NextCursor == 0 {
				return
			}
			cursor = page.NextCursor
		}
	}
}

// IDs collects every id from a cursored id-list endpoint such as
// followers/ids.
func IDs(ctx context.Context, p Pager, path string, params url.Values) ([]int64, error) {
	var ids []int64
	for raw, err := range Pages(ctx, p, path, params) {
		if err != nil {
			return nil, err
		}
		var page cursorPage
		if err := json.Unmarshal(raw, &page); err != nil {
			return nil, err
		}
		ids = append(ids, page.IDs...)
	}
	return ids, nil
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v)+1)
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}
