package services

import "github.com/Lapkipomoshi/help-paw-backend/internal/utils"

// Page is one page of a listing together with the total match count.
type Page[T any] struct {
	Count   int64 `json:"count"`
	Results []T   `json:"results"`
}

func emptyPage[T any]() *Page[T] { return &Page[T]{Results: []T{}} }

func newPage[T any](items []T, total int64) *Page[T] {
	if items == nil {
		items = []T{}
	}
	return &Page[T]{Count: total, Results: items}
}

// PageRequest is a 1-based page number and page size; zero values take the
// defaults.
type PageRequest struct {
	Page int
	Size int
}

func (p PageRequest) bounds() (offset, limit int) { return utils.Offset(p.Page, p.Size) }
