package calendar

import (
	"math"
	"testing"
)

func TestPaginate_Basic(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}
	page := Paginate(items, 1, 5, 0)

	if len(page.Items) != 5 {
		t.Fatalf("expected 5 items on page 1, got %d", len(page.Items))
	}
	if page.HasPrev {
		t.Fatalf("expected HasPrev=false on first page")
	}
	if !page.HasNext {
		t.Fatalf("expected HasNext=true on first page")
	}
	if page.Total != len(items) || page.TotalPages != 3 {
		t.Fatalf("expected Total=%d TotalPages=3, got %d/%d", len(items), page.Total, page.TotalPages)
	}
}

func TestPaginate_LastPage(t *testing.T) {
	items := make([]int, 25)
	page := Paginate(items, 3, 0, 0)

	if page.PageSize != DefaultPageSize {
		t.Fatalf("expected default page size, got %d", page.PageSize)
	}
	if len(page.Items) != 5 {
		t.Fatalf("expected 5 items on last page, got %d", len(page.Items))
	}
	if !page.HasPrev || page.HasNext {
		t.Fatalf("expected HasPrev=true HasNext=false on last page")
	}
}

func TestPaginate_PageBeyondEnd(t *testing.T) {
	page := Paginate([]int{1, 2, 3}, 5, 2, 0)
	if len(page.Items) != 0 || page.HasNext {
		t.Fatalf("expected empty page without next, got %+v", page)
	}
}

func TestPaginate_Empty(t *testing.T) {
	var items []int
	page := Paginate(items, 0, 10, 0)

	if len(page.Items) != 0 {
		t.Fatalf("expected 0 items, got %d", len(page.Items))
	}
	if page.Page != 1 {
		t.Fatalf("expected page to default to 1, got %d", page.Page)
	}
	if page.HasNext || page.HasPrev {
		t.Fatalf("expected no prev/next for empty list")
	}
}

func TestPaginate_ClampsPageSize(t *testing.T) {
	items := make([]int, 250)
	page := Paginate(items, 1, 1<<62, 0)

	if page.PageSize != MaxPageSize {
		t.Fatalf("expected page size %d, got %d", MaxPageSize, page.PageSize)
	}
	if len(page.Items) != MaxPageSize || !page.HasNext {
		t.Fatalf("expected %d items with next, got %d next=%v", MaxPageSize, len(page.Items), page.HasNext)
	}
	if page.TotalPages != 3 {
		t.Fatalf("expected 3 pages, got %d", page.TotalPages)
	}
}

func TestPaginate_HugeValuesDoNotOverflow(t *testing.T) {
	items := make([]int, 25)
	cases := []struct {
		page, pageSize int
	}{
		{3, 1 << 62},
		{1 << 62, 10},
		{math.MaxInt, math.MaxInt},
		{math.MaxInt, 1},
	}
	for _, c := range cases {
		page := Paginate(items, c.page, c.pageSize, 0)
		if c.page > 1 && len(page.Items) != 0 {
			t.Fatalf("page=%d size=%d: expected empty page, got %d items", c.page, c.pageSize, len(page.Items))
		}
		if page.HasNext {
			t.Fatalf("page=%d size=%d: expected no next page", c.page, c.pageSize)
		}
	}
}
