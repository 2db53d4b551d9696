package pagination

import (
	"net/url"
	"strconv"
)

const (
	DefaultLimit = 10
	MaxLimit     = 50
)

// Pagination is a limit/offset page request.
type Pagination struct {
	Limit  int `form:"limit"`
	Offset int `form:"offset"`
}

// PageInfo describes where a page sits in the full result set.
type PageInfo struct {
	Count    int64   `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
}

// Normalize applies the default and maximum limit and clamps negative offsets.
// A non-positive limit falls back to def, anything above max is clamped to max.
func (p Pagination) Normalize(def, max int) Pagination {
	if def <= 0 {
		def = DefaultLimit
	}
	if max <= 0 {
		max = MaxLimit
	}
	if def > max {
		def = max
	}

	limit := p.Limit
	if limit <= 0 {
		limit = def
	}
	if limit > max {
		limit = max
	}

	offset := p.Offset
	if offset < 0 {
		offset = 0
	}

	return Pagination{Limit: limit, Offset: offset}
}

// ParseLimitOffset reads limit and offset from raw query values. Values that do
// not parse as non-negative integers are treated as absent.
func ParseLimitOffset(rawLimit, rawOffset string) Pagination {
	return Pagination{
		Limit:  parseNonNegative(rawLimit),
		Offset: parseNonNegative(rawOffset),
	}
}

// BuildPageInfo builds the count/next/previous envelope for a page of a
// result set. base is the request URL; limit and offset are rewritten in it.
func BuildPageInfo(base *url.URL, count int64, page Pagination) PageInfo {
	info := PageInfo{Count: count}
	if base == nil {
		return info
	}

	if int64(page.Offset+page.Limit) < count {
		next := withLimitOffset(base, page.Limit, page.Offset+page.Limit)
		info.Next = &next
	}

	if page.Offset > 0 {
		prevOffset := page.Offset - page.Limit
		var prev string
		if prevOffset <= 0 {
			prev = withLimitOffset(base, page.Limit, 0)
		} else {
			prev = withLimitOffset(base, page.Limit, prevOffset)
		}
		info.Previous = &prev
	}

	return info
}

func withLimitOffset(base *url.URL, limit, offset int) string {
	u := *base
	q := u.Query()
	q.Set("limit", strconv.Itoa(limit))
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	} else {
		q.Del("offset")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func parseNonNegative(value string) int {
	if value == "" {
		return 0
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return 0
	}
	return parsed
}
