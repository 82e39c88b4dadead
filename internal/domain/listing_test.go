package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTotalPages(t *testing.T) {
	tests := []struct {
		total, size, want int
	}{
		{0, 20, 0},
		{1, 20, 1},
		{20, 20, 1},
		{21, 20, 2},
		{100, 7, 15},
		{5, 0, 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, TotalPages(tt.total, tt.size), "total=%d size=%d", tt.total, tt.size)
	}
}

func TestPageRequest_Offset(t *testing.T) {
	assert.Equal(t, 0, PageRequest{Page: 0, Size: 20}.Offset())
	assert.Equal(t, 60, PageRequest{Page: 3, Size: 20}.Offset())
}

func TestNewOrderPage(t *testing.T) {
	page := NewOrderPage([]Order{{PublicID: "a"}}, 41, PageRequest{Page: 2, Size: 20})

	assert.Equal(t, 41, page.TotalElements)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 20, page.Size)
	assert.Len(t, page.Orders, 1)
}

func TestEndOfDay(t *testing.T) {
	day := time.Date(2026, 5, 17, 0, 0, 0, 0, time.UTC)

	end := EndOfDay(day)

	assert.Equal(t, time.Date(2026, 5, 17, 23, 59, 59, 999999000, time.UTC), end)
	assert.True(t, end.Before(day.AddDate(0, 0, 1)))
}

func TestOrderFilter_IsEmpty(t *testing.T) {
	assert.True(t, OrderFilter{}.IsEmpty())
	assert.False(t, OrderFilter{Seller: "lucia"}.IsEmpty())
}
