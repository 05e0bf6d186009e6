package client

import (
	"context"
	"strconv"

	"github.com/georgeglarson/venice-go/httpclient"
)

// Page is one page of a cursor-paginated listing.
type Page[T any] struct {
	// Data holds this page's items.
	Data []T `json:"data"`
	// HasMore reports whether the server has further pages.
	HasMore bool `json:"has_more"`
	// NextCursor is the cursor for the following page, empty on the last one.
	NextCursor string `json:"next_cursor"`
}

// PageParams control pagination for list endpoints.
type PageParams struct {
	// Limit is the maximum number of items per page. Zero lets the server
	// choose.
	Limit int
	// Cursor resumes listing from a previous page's NextCursor.
	Cursor string
}

// Pager walks a cursor-paginated list endpoint page by page. Not safe for
// concurrent use.
type Pager[T any] struct {
	client *Client
	path   string
	params PageParams
	opts   []httpclient.RequestOption
	done   bool
}

// NewPager creates a pager for a GET list endpoint.
func NewPager[T any](c *Client, path string, params PageParams, opts ...httpclient.RequestOption) *Pager[T] {
	return &Pager[T]{client: c, path: path, params: params, opts: opts}
}

// More reports whether another page may be available. It is true before the
// first fetch.
func (p *Pager[T]) More() bool {
	return !p.done
}

// Next fetches the next page and advances the cursor. After the last page,
// More reports false and further calls return an empty page.
func (p *Pager[T]) Next(ctx context.Context) (*Page[T], error) {
	if p.done {
		return &Page[T]{}, nil
	}

	opts := make([]httpclient.RequestOption, 0, len(p.opts)+2)
	opts = append(opts, p.opts...)
	if p.params.Limit > 0 {
		opts = append(opts, httpclient.WithQueryParam("limit", strconv.Itoa(p.params.Limit)))
	}
	if p.params.Cursor != "" {
		opts = append(opts, httpclient.WithQueryParam("cursor", p.params.Cursor))
	}

	resp, err := Get[Page[T]](p.client, ctx, p.path, opts...)
	if err != nil {
		return nil, err
	}

	page := resp.Data
	p.params.Cursor = page.NextCursor
	if !page.HasMore || page.NextCursor == "" {
		p.done = true
	}
	return &page, nil
}

// All drains the remaining pages and returns every item.
func (p *Pager[T]) All(ctx context.Context) ([]T, error) {
	var items []T
	for p.More() {
		page, err := p.Next(ctx)
		if err != nil {
			return items, err
		}
		items = append(items, page.Data...)
	}
	return items, nil
}
