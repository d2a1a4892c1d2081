package job

import (
	"math"
	"sort"
	"strings"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100

	// MaxOffset bounds how deep a page request may reach.
	MaxOffset = math.MaxInt32
)

// ListFilter is a page request over published jobs. Nil pointers mean the
// filter is not applied.
type ListFilter struct {
	Page      int
	Limit     int
	Category  *string
	BudgetMin *float64
	BudgetMax *float64
	Search    *string
}

func (f ListFilter) Normalize() ListFilter {
	if f.Page < 1 {
		f.Page = DefaultPage
	}
	if f.Limit < 1 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	return f
}

// Offset is the number of rows skipped before the page. It saturates at
// MaxOffset instead of overflowing for huge page numbers.
func (f ListFilter) Offset() int {
	if f.Page <= 1 || f.Limit <= 0 {
		return 0
	}
	if f.Page-1 > MaxOffset/f.Limit {
		return MaxOffset
	}
	return (f.Page - 1) * f.Limit
}

// PageInRange reports whether the page starts within MaxOffset rows.
func (f ListFilter) PageInRange() bool {
	f = f.Normalize()
	return f.Page-1 <= MaxOffset/f.Limit
}

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

func NewPagination(page, limit, total int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}

type Page struct {
	Items      []Job      `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// Matches reports whether j passes f using in-process semantics: category is a
// case-insensitive substring match against any skill, unlike the exact skill
// membership the SQL path uses.
func (f ListFilter) Matches(j Job) bool {
	if j.Status != StatusPublished {
		return false
	}

	if f.Category != nil && *f.Category != "" {
		needle := strings.ToLower(*f.Category)
		found := false
		for _, s := range j.Skills {
			if strings.Contains(strings.ToLower(s), needle) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if f.BudgetMin != nil {
		if j.BudgetMin == nil || *j.BudgetMin < *f.BudgetMin {
			return false
		}
	}

	if f.BudgetMax != nil {
		if j.BudgetMax == nil || *j.BudgetMax > *f.BudgetMax {
			return false
		}
	}

	if f.Search != nil && *f.Search != "" {
		q := strings.ToLower(*f.Search)
		if !strings.Contains(strings.ToLower(j.Title), q) &&
			!strings.Contains(strings.ToLower(j.Description), q) {
			return false
		}
	}

	return true
}

// Paginate filters all, orders newest first and cuts out the requested page.
// The input slice is not modified.
func Paginate(all []Job, f ListFilter) Page {
	f = f.Normalize()

	matched := make([]Job, 0, len(all))
	for _, j := range all {
		if f.Matches(j) {
			matched = append(matched, j)
		}
	}

	sort.SliceStable(matched, func(a, b int) bool {
		return matched[a].CreatedAt.After(matched[b].CreatedAt)
	})

	start := min(max(f.Offset(), 0), len(matched))
	end := start + f.Limit
	if end > len(matched) {
		end = len(matched)
	}

	return Page{
		Items:      matched[start:end],
		Pagination: NewPagination(f.Page, f.Limit, len(matched)),
	}
}
