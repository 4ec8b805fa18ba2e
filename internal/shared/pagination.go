package shared

import (
	"net/url"
	"strconv"
)

// DefaultPageLimit applies when a list request omits or exceeds bounds.
const DefaultPageLimit = 50

// MaxPageLimit caps a single list response.
const MaxPageLimit = 200

// ListPage bounds paginated listings.
type ListPage struct {
	Limit  int
	Offset int
}

// PageFromQuery reads limit/offset query parameters. Malformed values fall
// back to the defaults applied by Normalize.
func PageFromQuery(q url.Values) ListPage {
	var page ListPage
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			page.Limit = n
		}
	}
	if raw := q.Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			page.Offset = n
		}
	}
	return page
}

// Normalize clamps the page to usable bounds.
func (p ListPage) Normalize() ListPage {
	if p.Limit <= 0 || p.Limit > MaxPageLimit {
		p.Limit = DefaultPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
