package models

import (
	"net/url"
	"strconv"
)

// SortOrder is the direction of a column sort
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Toggle returns the opposite direction
func (o SortOrder) Toggle() SortOrder {
	if o == SortAsc {
		return SortDesc
	}
	return SortAsc
}

// Sortable columns, using the backend's field names
const (
	SortByName          = "originalName"
	SortBySize          = "size"
	SortByCreatedAt     = "createdAt"
	SortByDownloadCount = "downloadCount"
	SortByMimeType      = "mimeType"
)

// DefaultPageSize is the page size used when none is configured
const DefaultPageSize = 10

// ListQuery describes one listing request
type ListQuery struct {
	Search    string
	Type      FileCategory
	SortBy    string
	SortOrder SortOrder
	Page      int
	PageSize  int
}

// DefaultListQuery sorts newest first on page 1
func DefaultListQuery(pageSize int) ListQuery {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	return ListQuery{
		SortBy:    SortByCreatedAt,
		SortOrder: SortDesc,
		Page:      1,
		PageSize:  pageSize,
	}
}

// Normalize clamps the page to 1 and fills missing sort settings
func (q ListQuery) Normalize() ListQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = DefaultPageSize
	}
	if q.SortBy == "" {
		q.SortBy = SortByCreatedAt
	}
	if q.SortOrder != SortAsc && q.SortOrder != SortDesc {
		q.SortOrder = SortDesc
	}
	return q
}

// Values encodes the query string parameters of GET /files. Empty search
// and type are omitted.
func (q ListQuery) Values() url.Values {
	q = q.Normalize()
	v := url.Values{}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Type != CategoryAll {
		v.Set("type", string(q.Type))
	}
	v.Set("sortBy", q.SortBy)
	v.Set("sortOrder", string(q.SortOrder))
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("pageSize", strconv.Itoa(q.PageSize))
	return v
}

// TotalPages is the number of pages needed for total items, at least 1
func (q ListQuery) TotalPages(total int) int {
	size := q.PageSize
	if size < 1 {
		size = DefaultPageSize
	}
	if total <= 0 {
		return 1
	}
	return (total + size - 1) / size
}
