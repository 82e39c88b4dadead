package usecase

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"purchases/internal/domain"
	"purchases/internal/dto"
	apperrors "purchases/internal/errors"
	"purchases/internal/order/saga"
	"purchases/internal/order/validation"
)

const paymentStatusRequiresReview = "REQUIRES_REVIEW"

// ConfirmOrderUseCase runs the confirmation saga. Concurrent confirmations of
// the same order in this process share a single saga run.
type ConfirmOrderUseCase struct {
	confirmer Confirmer
	payments  PaymentService
	publisher EventPublisher
	logger    *zap.Logger
	inflight  singleflight.Group
}

func NewConfirmOrderUseCase(confirmer Confirmer, payments PaymentService, publisher EventPublisher, logger *zap.Logger) *ConfirmOrderUseCase {
	return &ConfirmOrderUseCase{
		confirmer: confirmer,
		payments:  payments,
		publisher: publisher,
		logger:    logger,
	}
}

func (uc *ConfirmOrderUseCase) Confirm(ctx context.Context, publicID string, req dto.ConfirmOrderRequest) (*domain.Order, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "ConfirmOrderUseCase.Confirm")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", publicID))

	if err := validation.PublicID(publicID); err != nil {
		return nil, err
	}

	pay := saga.PaymentDetails{
		Method:   req.PaymentMethod,
		Currency: req.Currency,
		Details:  req.Details,
	}

	// The saga keeps running if this caller goes away: a charge may already
	// be in flight.
	sagaCtx := context.WithoutCancel(ctx)
	ch := uc.inflight.DoChan(publicID, func() (any, error) {
		order, run, err := uc.confirmer.Confirm(sagaCtx, publicID, pay)
		uc.logRun(publicID, run)
		uc.afterConfirm(sagaCtx, publicID, order, err)
		return order, err
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			uc.logger.Info("confirmation coalesced with an in-flight run", zap.String("orderId", publicID))
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.Order), nil
	}
}

func (uc *ConfirmOrderUseCase) logRun(publicID string, run *saga.Run) {
	if run == nil {
		return
	}
	uc.logger.Info("confirmation saga finished",
		zap.String("orderId", publicID),
		zap.String("state", string(run.State)),
		zap.Any("states", run.States()))
}

func (uc *ConfirmOrderUseCase) afterConfirm(ctx context.Context, publicID string, order *domain.Order, err error) {
	if err == nil {
		publishEvent(ctx, uc.publisher, uc.logger, domain.EventOrderPaid, order)
		return
	}

	scErr, ok := apperrors.IsStockCommitError(err)
	if !ok {
		return
	}

	uc.logger.Error("stock commit failed after payment",
		zap.String("orderId", publicID),
		zap.String("paymentId", scErr.PaymentID),
		zap.String("failedProductId", scErr.Failed.ProductID),
		zap.Int("compensated", len(scErr.Compensated)),
		zap.Int("compensationFailed", len(scErr.CompensationFailed)))

	if uc.payments != nil {
		r := uc.payments.UpdatePaymentStatus(ctx, publicID, paymentStatusRequiresReview)
		if !r.IsOK() {
			uc.logger.Warn("failed to flag payment for review",
				zap.String("orderId", publicID),
				zap.String("paymentId", scErr.PaymentID),
				zap.String("outcome", r.Outcome.String()),
				zap.String("detail", r.Detail))
		}
	}

	publishEvent(ctx, uc.publisher, uc.logger, domain.EventOrderStockCommitFailed, order)
}
