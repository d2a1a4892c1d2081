package job

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func sampleJobs() []Job {
	base := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	return []Job{
		{
			ID: "a", Title: "Professional Blog Post Writing", Description: "Tech trends",
			Skills: []string{"Content Writing", "SEO"}, BudgetMin: f64(150), BudgetMax: f64(300),
			Status: StatusPublished, CreatedAt: base,
		},
		{
			ID: "b", Title: "Marketing Copy", Description: "Launch a SaaS BLOG campaign",
			Skills: []string{"Marketing Copy", "SaaS"}, BudgetMin: f64(500), BudgetMax: f64(1000),
			Status: StatusPublished, CreatedAt: base.Add(24 * time.Hour),
		},
		{
			ID: "c", Title: "API docs", Description: "Developer platform",
			Skills: []string{"Technical Writing"}, BudgetMin: f64(50), BudgetMax: f64(80),
			Status: StatusPublished, CreatedAt: base.Add(48 * time.Hour),
		},
		{
			ID: "d", Title: "Draft blog", Description: "not visible",
			Skills: []string{"SEO"}, BudgetMin: f64(150), BudgetMax: f64(300),
			Status: StatusDraft, CreatedAt: base.Add(72 * time.Hour),
		},
		{
			ID: "e", Title: "Open budget", Description: "no budget set",
			Skills: []string{"Editing"}, Status: StatusPublished, CreatedAt: base.Add(96 * time.Hour),
		},
	}
}

func ids(p Page) []string {
	out := make([]string, 0, len(p.Items))
	for _, j := range p.Items {
		out = append(out, j.ID)
	}
	return out
}

func TestPaginate_OnlyPublishedNewestFirst(t *testing.T) {
	p := Paginate(sampleJobs(), ListFilter{Page: 1, Limit: 10})

	assert.Equal(t, []string{"e", "c", "b", "a"}, ids(p))
	assert.Equal(t, Pagination{Page: 1, Limit: 10, Total: 4, Pages: 1}, p.Pagination)
}

func TestPaginate_Filters(t *testing.T) {
	tests := []struct {
		name   string
		filter ListFilter
		want   []string
	}{
		{name: "search_case_insensitive_title", filter: ListFilter{Search: str("blog")}, want: []string{"b", "a"}},
		{name: "search_description", filter: ListFilter{Search: str("developer")}, want: []string{"c"}},
		{name: "category_substring_case_insensitive", filter: ListFilter{Category: str("writing")}, want: []string{"c", "a"}},
		{name: "budget_min_excludes_lower", filter: ListFilter{BudgetMin: f64(200)}, want: []string{"b"}},
		{name: "budget_min_includes_equal_or_higher", filter: ListFilter{BudgetMin: f64(100)}, want: []string{"b", "a"}},
		{name: "budget_max_narrowing", filter: ListFilter{BudgetMax: f64(300)}, want: []string{"c", "a"}},
		{name: "budget_both", filter: ListFilter{BudgetMin: f64(100), BudgetMax: f64(300)}, want: []string{"a"}},
		{name: "no_match", filter: ListFilter{Search: str("zzz")}, want: []string{}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			p := Paginate(sampleJobs(), tt.filter)
			assert.Equal(t, tt.want, ids(p))
			assert.Equal(t, len(tt.want), p.Pagination.Total)
		})
	}
}

func TestPaginate_PageMath(t *testing.T) {
	all := make([]Job, 0, 23)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 23; i++ {
		all = append(all, Job{
			ID:        fmt.Sprintf("j%02d", i),
			Status:    StatusPublished,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
	}

	for _, limit := range []int{1, 5, 10, 23, 50} {
		for page := 1; page <= 6; page++ {
			p := Paginate(all, ListFilter{Page: page, Limit: limit})

			wantPages := (23 + limit - 1) / limit
			assert.Equal(t, wantPages, p.Pagination.Pages, "limit=%d", limit)
			assert.LessOrEqual(t, len(p.Items), limit)
			assert.Equal(t, 23, p.Pagination.Total)
		}
	}

	p := Paginate(all, ListFilter{Page: 3, Limit: 10})
	assert.Len(t, p.Items, 3)
	assert.Equal(t, "j02", p.Items[0].ID)

	p = Paginate(all, ListFilter{Page: 9, Limit: 10})
	assert.Empty(t, p.Items)
}

func TestNewPagination_Empty(t *testing.T) {
	assert.Equal(t, Pagination{Page: 1, Limit: 10, Total: 0, Pages: 0}, NewPagination(1, 10, 0))
}

func TestNormalize(t *testing.T) {
	f := ListFilter{Page: 0, Limit: 500}.Normalize()
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, MaxLimit, f.Limit)
	assert.Equal(t, 0, f.Offset())

	f = ListFilter{Page: 3, Limit: 10}.Normalize()
	assert.Equal(t, 20, f.Offset())
}

func TestOffset_HugePageSaturates(t *testing.T) {
	f := ListFilter{Page: 1000000000000000001, Limit: 10}

	assert.Equal(t, MaxOffset, f.Offset())
	assert.False(t, f.PageInRange())
	assert.True(t, ListFilter{Page: 2, Limit: 100}.PageInRange())

	p := Paginate(sampleJobs(), f)
	assert.Empty(t, p.Items)
	assert.Equal(t, 1000000000000000001, p.Pagination.Page)
}
