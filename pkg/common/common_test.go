package common

import (
	"math"
	"net/http"
	"testing"
)

func TestNormalizePage(t *testing.T) {
	page, limit, offset := NormalizePage(0, 0)
	if page != 1 || limit != DefaultLimit || offset != 0 {
		t.Errorf("Expected defaults (1, %d, 0), got (%d, %d, %d)", DefaultLimit, page, limit, offset)
	}

	page, limit, offset = NormalizePage(3, 500)
	if limit != MaxLimit {
		t.Errorf("Expected limit capped at %d, got %d", MaxLimit, limit)
	}
	if offset != 2*MaxLimit {
		t.Errorf("Expected offset %d, got %d", 2*MaxLimit, offset)
	}
	if page != 3 {
		t.Errorf("Expected page 3, got %d", page)
	}

	page, _, offset = NormalizePage(math.MaxInt, MaxLimit)
	if page != MaxPage || offset != (MaxPage-1)*MaxLimit {
		t.Errorf("Expected page capped at %d, got page %d offset %d", MaxPage, page, offset)
	}
}

func TestPaginateResponse(t *testing.T) {
	// Test case 1: Normal pagination
	total := int64(100)
	data := []string{"item1", "item2"}

	res := PaginateResponse(data, total, 1, 10, "")

	if res.Message != "success" {
		t.Errorf("Expected default message, got %q", res.Message)
	}
	if res.Pagination.Page != 1 {
		t.Errorf("Expected Page 1, got %d", res.Pagination.Page)
	}
	if res.Pagination.TotalPages != 10 {
		t.Errorf("Expected TotalPages 10, got %d", res.Pagination.TotalPages)
	}
	if res.Pagination.Total != 100 {
		t.Errorf("Expected Total 100, got %d", res.Pagination.Total)
	}

	// Test case 2: Partial last page
	res = PaginateResponse(data, 21, 3, 10, "Transactions fetched")
	if res.Pagination.TotalPages != 3 {
		t.Errorf("Expected TotalPages 3, got %d", res.Pagination.TotalPages)
	}
	if res.Message != "Transactions fetched" {
		t.Errorf("Unexpected message %q", res.Message)
	}

	// Test case 3: Empty result
	res = PaginateResponse([]string{}, 0, 1, 10, "")
	if res.Pagination.TotalPages != 0 {
		t.Errorf("Expected TotalPages 0, got %d", res.Pagination.TotalPages)
	}
}

func TestResponses(t *testing.T) {
	ok := NewCreatedResponse(map[string]int{"id": 1}, "Created")
	if ok.Status != http.StatusCreated || !ok.Success {
		t.Errorf("Unexpected created response %+v", ok)
	}

	fail := NewErrorResponse("transaction not found", nil, http.StatusNotFound)
	if fail.Success || fail.Status != http.StatusNotFound {
		t.Errorf("Unexpected error response %+v", fail)
	}
}
