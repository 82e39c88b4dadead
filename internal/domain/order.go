package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch st := OrderStatus(s); st {
	case OrderStatusPending, OrderStatusPaid, OrderStatusShipped, OrderStatusCancelled:
		return st, true
	}
	return "", false
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusShipped || s == OrderStatusCancelled
}

// IsMutable reports whether an order in this status may be updated or deleted.
func (s OrderStatus) IsMutable() bool {
	return s == OrderStatusPending || s == OrderStatusPaid
}

// CanTransitionTo covers transitions requested through a generic update.
// PENDING to PAID is reserved to the confirmation flow and is not allowed here.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch s {
	case OrderStatusPending:
		return next == OrderStatusCancelled
	case OrderStatusPaid:
		return next == OrderStatusShipped
	}
	return false
}

type Order struct {
	ID            uint64
	PublicID      string
	BuyerUsername string
	BuyerName     string
	Status        OrderStatus
	Total         decimal.Decimal
	PaymentID     *string
	Items         []OrderItem
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewOrder builds a PENDING order whose total is the sum of its item totals.
func NewOrder(publicID, buyerUsername, buyerName string, items []OrderItem, now time.Time) *Order {
	return &Order{
		PublicID:      publicID,
		BuyerUsername: buyerUsername,
		BuyerName:     buyerName,
		Status:        OrderStatusPending,
		Total:         SumItemTotals(items),
		Items:         items,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func SumItemTotals(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Total)
	}
	return total
}

// OrderUpdate holds the fields a client may change on an existing order.
// Nil means unchanged.
type OrderUpdate struct {
	Status *OrderStatus
}

func (u OrderUpdate) IsEmpty() bool {
	return u.Status == nil
}
