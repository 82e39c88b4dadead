package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"purchases/internal/clients"
	"purchases/internal/clients/payment"
	"purchases/internal/domain"
	apperrors "purchases/internal/errors"
	"purchases/internal/order/validation"
)

type ManageOrdersUseCase struct {
	store     OrderStore
	payments  PaymentService
	publisher EventPublisher
	logger    *zap.Logger
}

func NewManageOrdersUseCase(store OrderStore, payments PaymentService, publisher EventPublisher, logger *zap.Logger) *ManageOrdersUseCase {
	return &ManageOrdersUseCase{
		store:     store,
		payments:  payments,
		publisher: publisher,
		logger:    logger,
	}
}

func (uc *ManageOrdersUseCase) Get(ctx context.Context, publicID string) (*domain.Order, error) {
	if err := validation.PublicID(publicID); err != nil {
		return nil, err
	}
	return uc.store.FindByPublicID(ctx, publicID)
}

// List parses the query string and returns one page of orders, newest first.
func (uc *ManageOrdersUseCase) List(ctx context.Context, query url.Values) (*domain.OrderPage, error) {
	filter, page, err := validation.ListQuery(query)
	if err != nil {
		return nil, err
	}
	if filter.IsEmpty() {
		return uc.store.ListAll(ctx, page)
	}
	return uc.store.ListByFilter(ctx, filter, page)
}

func (uc *ManageOrdersUseCase) Update(ctx context.Context, publicID string, body []byte) (*domain.Order, error) {
	if err := validation.PublicID(publicID); err != nil {
		return nil, err
	}
	update, err := validation.UpdateOrder(body)
	if err != nil {
		return nil, err
	}
	return uc.applyUpdate(ctx, publicID, update)
}

func (uc *ManageOrdersUseCase) Cancel(ctx context.Context, publicID string) (*domain.Order, error) {
	if err := validation.PublicID(publicID); err != nil {
		return nil, err
	}
	cancelled := domain.OrderStatusCancelled
	return uc.applyUpdate(ctx, publicID, domain.OrderUpdate{Status: &cancelled})
}

func (uc *ManageOrdersUseCase) applyUpdate(ctx context.Context, publicID string, update domain.OrderUpdate) (*domain.Order, error) {
	order, err := uc.store.UpdateFields(ctx, publicID, update)
	if err != nil {
		return nil, err
	}

	uc.logger.Info("order updated", zap.String("orderId", publicID), zap.String("status", string(order.Status)))

	switch order.Status {
	case domain.OrderStatusCancelled:
		publishEvent(ctx, uc.publisher, uc.logger, domain.EventOrderCancelled, order)
	case domain.OrderStatusShipped:
		publishEvent(ctx, uc.publisher, uc.logger, domain.EventOrderShipped, order)
	}
	return order, nil
}

func (uc *ManageOrdersUseCase) Delete(ctx context.Context, publicID string) error {
	if err := validation.PublicID(publicID); err != nil {
		return err
	}
	order, err := uc.store.Delete(ctx, publicID)
	if err != nil {
		return err
	}

	uc.logger.Info("order deleted", zap.String("orderId", publicID))
	publishEvent(ctx, uc.publisher, uc.logger, domain.EventOrderDeleted, order)
	return nil
}

// PaymentStatus asks the payment service about the charge of a confirmed
// order. Orders that were never charged have no payment to report.
func (uc *ManageOrdersUseCase) PaymentStatus(ctx context.Context, publicID string) (*domain.Order, *payment.PaymentStatus, error) {
	order, err := uc.Get(ctx, publicID)
	if err != nil {
		return nil, nil, err
	}
	if order.PaymentID == nil {
		return nil, nil, apperrors.NewNotFoundError(fmt.Sprintf("order %s has no payment", publicID))
	}

	r := uc.payments.GetPaymentStatus(ctx, publicID)
	switch r.Outcome {
	case clients.OutcomeOK:
		status := r.Value
		if status.PaymentID == "" {
			status.PaymentID = *order.PaymentID
		}
		return order, &status, nil
	case clients.OutcomeNotFound:
		return nil, nil, apperrors.NewNotFoundError(fmt.Sprintf("payment for order %s not found", publicID))
	case clients.OutcomeUnavailable:
		return nil, nil, apperrors.NewDependencyUnavailableError("payment", resultCause(r.Err, r.Detail))
	default:
		uc.logger.Warn("payment status lookup failed",
			zap.String("orderId", publicID),
			zap.String("outcome", r.Outcome.String()),
			zap.String("detail", r.Detail))
		return nil, nil, apperrors.NewInternalError("payment status lookup failed", errors.New(r.String()))
	}
}
