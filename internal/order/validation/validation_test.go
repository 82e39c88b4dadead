package validation

import (
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"purchases/internal/domain"
	"purchases/internal/dto"
	apperrors "purchases/internal/errors"
)

func fields(t *testing.T, err error) []string {
	t.Helper()
	ve, ok := apperrors.IsValidationError(err)
	require.True(t, ok, "expected validation error, got %v", err)
	out := make([]string, len(ve.Details))
	for i, d := range ve.Details {
		out[i] = d.Field
	}
	return out
}

func TestCreateOrder_Valid(t *testing.T) {
	err := CreateOrder(dto.CreateOrderRequest{Items: []dto.CreateOrderItem{
		{ProductID: "p1", Quantity: 1},
		{ProductID: "p2", Quantity: 100},
	}})

	assert.NoError(t, err)
}

func TestCreateOrder_Empty(t *testing.T) {
	err := CreateOrder(dto.CreateOrderRequest{})

	assert.Equal(t, []string{"items"}, fields(t, err))
}

func TestCreateOrder_TooManyItems(t *testing.T) {
	items := make([]dto.CreateOrderItem, MaxItems+1)
	for i := range items {
		items[i] = dto.CreateOrderItem{ProductID: fmt.Sprintf("p%d", i), Quantity: 1}
	}

	err := CreateOrder(dto.CreateOrderRequest{Items: items})

	assert.Equal(t, []string{"items"}, fields(t, err))
}

func TestCreateOrder_FiftyItemsAllowed(t *testing.T) {
	items := make([]dto.CreateOrderItem, MaxItems)
	for i := range items {
		items[i] = dto.CreateOrderItem{ProductID: fmt.Sprintf("p%d", i), Quantity: 1}
	}

	assert.NoError(t, CreateOrder(dto.CreateOrderRequest{Items: items}))
}

func TestCreateOrder_DuplicateProduct(t *testing.T) {
	err := CreateOrder(dto.CreateOrderRequest{Items: []dto.CreateOrderItem{
		{ProductID: "p1", Quantity: 1},
		{ProductID: "p2", Quantity: 1},
		{ProductID: "p1", Quantity: 3},
	}})

	assert.Equal(t, []string{"items[2].productId"}, fields(t, err))
}

func TestCreateOrder_QuantityBounds(t *testing.T) {
	err := CreateOrder(dto.CreateOrderRequest{Items: []dto.CreateOrderItem{
		{ProductID: "p1", Quantity: 0},
		{ProductID: "p2", Quantity: 101},
		{ProductID: "", Quantity: 1},
	}})

	assert.Equal(t, []string{"items[0].quantity", "items[1].quantity", "items[2].productId"}, fields(t, err))
}

func TestPublicID(t *testing.T) {
	assert.NoError(t, PublicID("3f1c2a9e-8d55-4c41-9c39-2a7e1a6d0b11"))
	assert.Equal(t, []string{"publicId"}, fields(t, PublicID("42")))
}

func TestListQuery_Defaults(t *testing.T) {
	filter, page, err := ListQuery(url.Values{})

	require.NoError(t, err)
	assert.True(t, filter.IsEmpty())
	assert.Equal(t, domain.PageRequest{Page: 0, Size: 20}, page)
}

func TestListQuery_AllFilters(t *testing.T) {
	q := url.Values{
		"seller":   {"ana"},
		"status":   {"paid"},
		"dateFrom": {"2024-03-01"},
		"dateTo":   {"2024-03-31"},
		"page":     {"2"},
		"size":     {"50"},
	}

	filter, page, err := ListQuery(q)

	require.NoError(t, err)
	assert.Equal(t, "ana", filter.Seller)
	require.NotNil(t, filter.Status)
	assert.Equal(t, domain.OrderStatusPaid, *filter.Status)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *filter.DateFrom)
	assert.Equal(t, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), *filter.DateTo)
	assert.Equal(t, domain.PageRequest{Page: 2, Size: 50}, page)
}

func TestListQuery_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		query url.Values
		field string
	}{
		{"negative page", url.Values{"page": {"-1"}}, "page"},
		{"non numeric page", url.Values{"page": {"first"}}, "page"},
		{"zero size", url.Values{"size": {"0"}}, "size"},
		{"size too large", url.Values{"size": {"101"}}, "size"},
		{"unknown status", url.Values{"status": {"LOST"}}, "status"},
		{"bad date", url.Values{"dateFrom": {"01/03/2024"}}, "dateFrom"},
		{"reversed range", url.Values{"dateFrom": {"2024-04-01"}, "dateTo": {"2024-03-01"}}, "dateFrom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ListQuery(tt.query)
			assert.Equal(t, []string{tt.field}, fields(t, err))
		})
	}
}

func TestUpdateOrder(t *testing.T) {
	update, err := UpdateOrder([]byte(`{"status":"cancelled"}`))

	require.NoError(t, err)
	require.NotNil(t, update.Status)
	assert.Equal(t, domain.OrderStatusCancelled, *update.Status)
}

func TestUpdateOrder_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		fields []string
	}{
		{"not json", `status=PAID`, []string{"body"}},
		{"array", `[]`, []string{"body"}},
		{"empty object", `{}`, []string{"body"}},
		{"unknown field", `{"total":"1.00","status":"SHIPPED"}`, []string{"total"}},
		{"status not a string", `{"status":3}`, []string{"status"}},
		{"unknown status", `{"status":"LOST"}`, []string{"status"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UpdateOrder([]byte(tt.body))
			assert.Equal(t, tt.fields, fields(t, err))
		})
	}
}
