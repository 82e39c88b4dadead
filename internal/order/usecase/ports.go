package usecase

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"purchases/internal/clients"
	"purchases/internal/clients/catalog"
	"purchases/internal/clients/payment"
	"purchases/internal/domain"
	"purchases/internal/order/saga"
)

const tracerName = "purchases/internal/order/usecase"

type OrderStore interface {
	Add(ctx context.Context, order *domain.Order) (*domain.Order, error)
	FindByPublicID(ctx context.Context, publicID string) (*domain.Order, error)
	ListAll(ctx context.Context, page domain.PageRequest) (*domain.OrderPage, error)
	ListByFilter(ctx context.Context, filter domain.OrderFilter, page domain.PageRequest) (*domain.OrderPage, error)
	UpdateFields(ctx context.Context, publicID string, update domain.OrderUpdate) (*domain.Order, error)
	Delete(ctx context.Context, publicID string) (*domain.Order, error)
}

type ProductCatalog interface {
	GetProductByID(ctx context.Context, id string) clients.Result[catalog.Product]
}

type IdentityDirectory interface {
	GetSellerByUsername(ctx context.Context, username string) clients.Result[domain.Profile]
}

type PaymentService interface {
	UpdatePaymentStatus(ctx context.Context, purchaseID, status string) clients.Result[json.RawMessage]
	GetPaymentStatus(ctx context.Context, purchaseID string) clients.Result[payment.PaymentStatus]
}

type Confirmer interface {
	Confirm(ctx context.Context, publicID string, pay saga.PaymentDetails) (*domain.Order, *saga.Run, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event domain.OrderEvent) error
}

// publishEvent never fails the caller: a lost event is logged and dropped.
func publishEvent(ctx context.Context, publisher EventPublisher, logger *zap.Logger, eventType domain.OrderEventType, order *domain.Order) {
	if publisher == nil || order == nil {
		return
	}
	event := domain.NewOrderEvent(eventType, order, time.Now().UTC())
	if err := publisher.Publish(ctx, event); err != nil {
		logger.Warn("failed to publish order event",
			zap.String("eventType", string(eventType)),
			zap.String("orderId", order.PublicID),
			zap.Error(err))
	}
}
