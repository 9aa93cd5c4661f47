package domain

import "sort"

// DataStatus tracks progressive loading of the active viewport query.
type DataStatus struct {
	Total        int          `json:"total"`
	PageCount    int          `json:"page_count"`
	FetchedPages map[int]bool `json:"-"`
	Loading      bool         `json:"loading"`
}

// NewDataStatus returns an empty status for a fresh query.
func NewDataStatus() DataStatus {
	return DataStatus{FetchedPages: make(map[int]bool)}
}

// MarkFetched records a settled page and the totals reported with it.
func (s *DataStatus) MarkFetched(page, pageCount, total int) {
	if s.FetchedPages == nil {
		s.FetchedPages = make(map[int]bool)
	}
	s.FetchedPages[page] = true
	s.PageCount = pageCount
	s.Total = total
}

// Started reports whether at least one page has been fetched.
func (s DataStatus) Started() bool {
	return len(s.FetchedPages) > 0
}

// NextPage returns the lowest page not fetched yet. ok is false when every
// known page is fetched.
func (s DataStatus) NextPage() (page int, ok bool) {
	if !s.Started() {
		return 1, true
	}
	for p := 1; p <= s.PageCount; p++ {
		if !s.FetchedPages[p] {
			return p, true
		}
	}
	return 0, false
}

// Complete reports whether every page of the query has been fetched.
func (s DataStatus) Complete() bool {
	_, more := s.NextPage()
	return !more
}

// Percent is the share of pages fetched, 0-100.
func (s DataStatus) Percent() float64 {
	if !s.Started() {
		return 0
	}
	if s.PageCount <= 0 {
		return 100
	}
	n := 0
	for p := range s.FetchedPages {
		if p >= 1 && p <= s.PageCount {
			n++
		}
	}
	return float64(n) * 100 / float64(s.PageCount)
}

// Pages returns the fetched page numbers in ascending order.
func (s DataStatus) Pages() []int {
	pages := make([]int, 0, len(s.FetchedPages))
	for p := range s.FetchedPages {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return pages
}

// Clone returns a deep copy safe to hand to other goroutines.
func (s DataStatus) Clone() DataStatus {
	c := s
	c.FetchedPages = make(map[int]bool, len(s.FetchedPages))
	for p := range s.FetchedPages {
		c.FetchedPages[p] = true
	}
	return c
}

// StatusView is the JSON shape of a DataStatus.
type StatusView struct {
	Total        int     `json:"total"`
	PageCount    int     `json:"page_count"`
	FetchedPages []int   `json:"fetched_pages"`
	Percent      float64 `json:"percent"`
	Loading      bool    `json:"loading"`
	HasMore      bool    `json:"has_more"`
}

// View flattens the status for serialization.
func (s DataStatus) View() StatusView {
	_, more := s.NextPage()
	return StatusView{
		Total:        s.Total,
		PageCount:    s.PageCount,
		FetchedPages: s.Pages(),
		Percent:      s.Percent(),
		Loading:      s.Loading,
		HasMore:      s.Started() && more,
	}
}

// PageOf returns the 1-based page of items for a grid of pageSize cells,
// together with the page actually served and the number of pages. Out of
// range pages are clamped.
func PageOf[T any](items []T, page, pageSize int) ([]T, int, int) {
	if pageSize <= 0 {
		pageSize = 12
	}
	pages := (len(items) + pageSize - 1) / pageSize
	if page < 1 || pages == 0 {
		page = 1
	}
	if pages > 0 && page > pages {
		page = pages
	}
	start := (page - 1) * pageSize
	if start >= len(items) {
		return nil, page, pages
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], page, pages
}
