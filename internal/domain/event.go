package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderEventType string

const (
	EventOrderCreated           OrderEventType = "order.created"
	EventOrderPaid              OrderEventType = "order.paid"
	EventOrderCancelled         OrderEventType = "order.cancelled"
	EventOrderShipped           OrderEventType = "order.shipped"
	EventOrderDeleted           OrderEventType = "order.deleted"
	EventOrderStockCommitFailed OrderEventType = "order.stock_commit_failed"
)

type OrderEvent struct {
	ID         string          `json:"id"`
	Type       OrderEventType  `json:"type"`
	OrderID    string          `json:"orderId"`
	Buyer      string          `json:"buyer"`
	Status     OrderStatus     `json:"status"`
	Total      decimal.Decimal `json:"total"`
	PaymentID  string          `json:"paymentId,omitempty"`
	OccurredAt time.Time       `json:"occurredAt"`
}

func NewOrderEvent(eventType OrderEventType, order *Order, now time.Time) OrderEvent {
	ev := OrderEvent{
		Type:       eventType,
		OrderID:    order.PublicID,
		Buyer:      order.BuyerUsername,
		Status:     order.Status,
		Total:      order.Total,
		OccurredAt: now,
	}
	if order.PaymentID != nil {
		ev.PaymentID = *order.PaymentID
	}
	return ev
}
