package pagination

import (
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/einstalek/invoice-ai/pkg/query"
)

// SortFields decodes from either "field,-other" or a JSON array of sort objects.
type SortFields []query.SortField

func (s *SortFields) UnmarshalJSON(data []byte) error {
	var str string
	if json.Unmarshal(data, &str) == nil {
		*s = query.ParseSortFields(str)
		return nil
	}

	var fields []query.SortField
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*s = fields
	return nil
}

// PageRequest is a 1-based page with optional search and sort.
type PageRequest struct {
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
	Search   *string    `json:"search,omitempty"`
	Sort     SortFields `json:"sort,omitempty"`
}

// Normalize clamps the page to 1 and the size to cfg's bounds.
func (r *PageRequest) Normalize(cfg Config) {
	r.Page = max(r.Page, 1)
	if r.PageSize < 1 {
		r.PageSize = cfg.DefaultPageSize
	}
	r.PageSize = min(r.PageSize, cfg.MaxPageSize)
}

// Offset is the number of rows before the requested page.
func (r *PageRequest) Offset() int {
	return (r.Page - 1) * r.PageSize
}

// PageRequestFromQuery reads page, page_size, search and sort from a query
// string and normalizes the result.
func PageRequestFromQuery(values url.Values, cfg Config) PageRequest {
	req := PageRequest{Sort: query.ParseSortFields(values.Get("sort"))}
	req.Page, _ = strconv.Atoi(values.Get("page"))
	req.PageSize, _ = strconv.Atoi(values.Get("page_size"))
	if s := values.Get("search"); s != "" {
		req.Search = &s
	}
	req.Normalize(cfg)
	return req
}

// PageResult is one page of T plus the totals a client needs to page on.
type PageResult[T any] struct {
	Data       []T `json:"data"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
}

// NewPageResult wraps data as page of a result set holding total rows.
// Data is never nil and there is always at least one page.
func NewPageResult[T any](data []T, total, page, pageSize int) PageResult[T] {
	if data == nil {
		data = []T{}
	}
	return PageResult[T]{
		Data:       data,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: max((total+pageSize-1)/pageSize, 1),
	}
}

// Window cuts the requested page out of an already filtered and sorted
// slice. In-memory stores use it in place of LIMIT/OFFSET.
func Window[T any](all []T, req PageRequest) PageResult[T] {
	start := min(req.Offset(), len(all))
	end := min(start+req.PageSize, len(all))
	return NewPageResult(all[start:end], len(all), req.Page, req.PageSize)
}
