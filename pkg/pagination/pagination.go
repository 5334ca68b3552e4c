package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 50
	MaxLimit     = 100
)

// Params holds pagination parameters extracted from a request.
type Params struct {
	Limit  int
	Offset int
}

// New clamps limit to [1, MaxLimit] (zero or negative selects DefaultLimit)
// and negative offsets to zero.
func New(limit, offset int) Params {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return Params{Limit: limit, Offset: offset}
}

// FromContext reads "limit" and "skip" (or "offset") from the query string.
// Unparseable values fall back to the defaults.
func FromContext(c echo.Context) Params {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	raw := c.QueryParam("skip")
	if raw == "" {
		raw = c.QueryParam("offset")
	}
	offset, _ := strconv.Atoi(raw)

	return New(limit, offset)
}

// HasNext reports whether a page of size n at these params may be followed
// by another.
func (p Params) HasNext(n int) bool {
	return n >= p.Limit
}

// NextOffset returns the offset for the next page.
func (p Params) NextOffset() int {
	return p.Offset + p.Limit
}
