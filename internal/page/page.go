// Package page runs a filtered, ordered query one page at a time and reports
// the total match count alongside the page, both read from one snapshot.
package page

import (
	"errors"
	"fmt"
)

// DefaultPageSize is used when the caller does not ask for a page size.
const DefaultPageSize = 10

// ErrInvalidParameter is returned for page sizes below 1. No query is issued.
var ErrInvalidParameter = errors.New("invalid page parameter")

// Params are the caller's paging inputs. Nil fields take their defaults.
type Params struct {
	Page     *int `json:"page,omitempty"`
	PageSize *int `json:"page_size,omitempty"`
}

// Of returns Params for an explicit page and page size.
func Of(page, size int) Params {
	return Params{Page: &page, PageSize: &size}
}

// Normalize resolves defaults. A missing or non-positive page becomes 1; a
// missing page size becomes DefaultPageSize; a page size below 1 is rejected.
func (p Params) Normalize() (page, size int, err error) {
	page = 1
	if p.Page != nil && *p.Page > 1 {
		page = *p.Page
	}
	size = DefaultPageSize
	if p.PageSize != nil {
		size = *p.PageSize
		if size <= 0 {
			return 0, 0, fmt.Errorf("%w: page_size must be positive, got %d", ErrInvalidParameter, size)
		}
	}
	return page, size, nil
}

// Result is one page of rows plus totals for the whole match set.
type Result[T any] struct {
	Items      []T   `json:"items"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalCount int64 `json:"total_count"`
	TotalPages int64 `json:"total_pages"`
}

// TotalPages returns ceil(count/size), or 0 when there are no rows.
func TotalPages(count int64, size int) int64 {
	if count <= 0 || size <= 0 {
		return 0
	}
	s := int64(size)
	return (count + s - 1) / s
}

// StoreError wraps a failure reported by the database while paging.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("page %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// RowError reports a row of the page that could not be scanned or decoded.
// The whole page fails; Index is the row's position within the page.
type RowError struct {
	Index int
	Err   error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("page row %d: %v", e.Index, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }
