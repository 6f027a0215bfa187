// Package pagination reads limit/offset query parameters and shapes list
// responses.
package pagination

import (
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

type Params struct {
	Limit  int
	Offset int
}

// FromContext reads limit and offset, clamping limit to [1, MaxLimit] and
// offset to >= 0. Unparseable values fall back to the defaults.
func FromContext(c echo.Context) Params {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if offset < 0 {
		offset = 0
	}
	return Params{Limit: limit, Offset: offset}
}

// Response is one page of a list endpoint. Data is never null.
type Response[T any] struct {
	Data    []T    `json:"data"`
	Total   int    `json:"total"`
	Limit   int    `json:"limit"`
	Offset  int    `json:"offset"`
	HasMore bool   `json:"has_more"`
	Links   []Link `json:"links,omitempty"`

	params Params
}

type Link struct {
	Relation string `json:"relation"`
	URL      string `json:"url"`
}

func NewResponse[T any](items []T, total int, p Params) *Response[T] {
	if items == nil {
		items = []T{}
	}
	return &Response[T]{
		Data:    items,
		Total:   total,
		Limit:   p.Limit,
		Offset:  p.Offset,
		HasMore: p.Offset+p.Limit < total,
		params:  p,
	}
}

// WithLinks adds self, next and previous links. filters are carried into
// every link; limit and offset in filters are overwritten.
func (r *Response[T]) WithLinks(basePath string, filters url.Values) *Response[T] {
	link := func(rel string, offset int) Link {
		q := url.Values{}
		for k, v := range filters {
			q[k] = v
		}
		q.Set("limit", strconv.Itoa(r.params.Limit))
		q.Set("offset", strconv.Itoa(offset))
		return Link{Relation: rel, URL: basePath + "?" + q.Encode()}
	}

	r.Links = []Link{link("self", r.params.Offset)}
	if r.HasMore {
		r.Links = append(r.Links, link("next", r.params.Offset+r.params.Limit))
	}
	if r.params.Offset > 0 {
		r.Links = append(r.Links, link("previous", max(r.params.Offset-r.params.Limit, 0)))
	}
	return r
}
