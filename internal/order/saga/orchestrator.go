package saga

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"purchases/internal/clients"
	"purchases/internal/clients/payment"
	"purchases/internal/domain"
	apperrors "purchases/internal/errors"
	"purchases/internal/infrastructure/metrics"
)

const (
	tracerName = "purchases/internal/order/saga"

	DefaultPaymentMethod = "PLATFORM_BALANCE"
)

type Catalog interface {
	GetProductStock(ctx context.Context, id string) clients.Result[int]
	AdjustStock(ctx context.Context, id string, delta int) clients.Result[json.RawMessage]
}

type Payments interface {
	Charge(ctx context.Context, req payment.ChargeRequest) clients.Result[payment.Charge]
}

type Orders interface {
	FindByPublicID(ctx context.Context, publicID string) (*domain.Order, error)
	MarkPaid(ctx context.Context, publicID, paymentID string) (*domain.Order, error)
}

// PaymentDetails is what the buyer sends along with a confirmation.
type PaymentDetails struct {
	Method   string
	Currency string
	Details  map[string]any
}

// Orchestrator drives one order from PENDING to PAID: verify every item's
// stock, charge once, mark the order paid, then decrement stock item by item.
// A failed decrement restores the already decremented items.
type Orchestrator struct {
	catalog  Catalog
	payments Payments
	orders   Orders
	logger   *zap.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	now      func() time.Time
}

func NewOrchestrator(catalog Catalog, payments Payments, orders Orders, logger *zap.Logger, m *metrics.Metrics) *Orchestrator {
	return &Orchestrator{
		catalog:  catalog,
		payments: payments,
		orders:   orders,
		logger:   logger,
		metrics:  m,
		tracer:   otel.Tracer(tracerName),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Confirm runs the confirmation of the order identified by publicID. The
// returned Run is nil only when the preconditions failed.
func (o *Orchestrator) Confirm(ctx context.Context, publicID string, pay PaymentDetails) (*domain.Order, *Run, error) {
	ctx, span := o.tracer.Start(ctx, "saga.Confirm", trace.WithAttributes(attribute.String("order.id", publicID)))
	defer span.End()

	logger := o.logger.With(zap.String("orderId", publicID))

	order, err := o.orders.FindByPublicID(ctx, publicID)
	if err != nil {
		if _, ok := apperrors.IsNotFoundError(err); ok {
			o.countOutcome("not_found")
		} else {
			o.countOutcome("error")
		}
		recordError(span, err)
		return nil, nil, err
	}

	if order.Status != domain.OrderStatusPending {
		o.countOutcome("not_confirmable")
		err := apperrors.NewConflictErrorWithCode(apperrors.CodeOrderNotConfirmable,
			fmt.Sprintf("order %s is %s, only PENDING orders can be confirmed", publicID, order.Status),
			map[string]string{"status": string(order.Status)})
		recordError(span, err)
		return nil, nil, err
	}

	run := newRun(publicID, o.now())
	logger.Info("confirmation started", zap.Int("itemCount", len(order.Items)), zap.String("total", order.Total.StringFixed(2)))

	if err := o.verify(ctx, run, order, logger); err != nil {
		recordError(span, err)
		return nil, run, err
	}

	paid, err := o.charge(ctx, run, order, pay, logger)
	if err != nil {
		recordError(span, err)
		return nil, run, err
	}

	// Money has moved: finish stock work even if the caller goes away.
	if err := o.commit(context.WithoutCancel(ctx), run, order, logger); err != nil {
		recordError(span, err)
		return paid, run, err
	}

	o.moveTo(run, StateDone, "", logger)
	o.countOutcome("confirmed")
	span.SetAttributes(attribute.String("payment.id", run.PaymentID))
	return paid, run, nil
}

// VerifyStock checks every item of order against the catalog without changing
// anything. Items are checked one after the other.
func (o *Orchestrator) VerifyStock(ctx context.Context, order *domain.Order) []ItemAvailability {
	availability := make([]ItemAvailability, 0, len(order.Items))
	for _, item := range order.Items {
		availability = append(availability, o.checkItem(ctx, item))
	}
	return availability
}

func (o *Orchestrator) checkItem(ctx context.Context, item domain.OrderItem) ItemAvailability {
	a := ItemAvailability{
		ProductID: item.ProductPublicID,
		Name:      item.Name,
		Requested: item.Quantity,
	}

	r := o.catalog.GetProductStock(ctx, item.ProductPublicID)
	switch r.Outcome {
	case clients.OutcomeOK:
		stock := r.Value
		a.Stock = &stock
		a.Available = stock >= item.Quantity
		a.Reason = ReasonAvailable
		if !a.Available {
			a.Reason = ReasonInsufficientStock
		}
	case clients.OutcomeNotFound:
		a.Reason = ReasonProductNotFound
	case clients.OutcomeMalformed, clients.OutcomeRejected:
		a.Reason = ReasonStockUnknown
	default:
		a.Reason = ReasonUnreachable
	}
	return a
}

func (o *Orchestrator) verify(ctx context.Context, run *Run, order *domain.Order, logger *zap.Logger) error {
	ctx, span := o.tracer.Start(ctx, "saga.Verifying")
	defer span.End()

	run.Availability = o.VerifyStock(ctx, order)

	var missing []string
	for _, a := range run.Availability {
		if !a.Available {
			missing = append(missing, fmt.Sprintf("%s (%s)", a.ProductID, a.Reason))
		}
	}
	if len(missing) == 0 {
		o.moveTo(run, StateCharging, "", logger)
		return nil
	}

	note := "unavailable items: " + strings.Join(missing, ", ")
	o.moveTo(run, StateAborted, note, logger)
	o.countOutcome("insufficient_stock")
	return apperrors.NewConflictErrorWithCode(apperrors.CodeInsufficientStock,
		fmt.Sprintf("order %s cannot be confirmed: %d item(s) unavailable", order.PublicID, len(missing)),
		run.Availability)
}

func (o *Orchestrator) charge(ctx context.Context, run *Run, order *domain.Order, pay PaymentDetails, logger *zap.Logger) (*domain.Order, error) {
	ctx, span := o.tracer.Start(ctx, "saga.Charging")
	defer span.End()

	result := o.payments.Charge(ctx, chargeRequest(order, pay))
	if err := paymentFailure(result); err != nil {
		o.moveTo(run, StateAborted, err.Error(), logger)
		o.countOutcome(outcomeLabel(err))
		return nil, err
	}

	run.PaymentID = result.Value.PaymentID
	logger.Info("payment completed", zap.String("paymentId", run.PaymentID))

	paid, err := o.orders.MarkPaid(context.WithoutCancel(ctx), order.PublicID, run.PaymentID)
	if err != nil {
		logger.Error("charged order could not be marked paid, payment needs reconciliation",
			zap.String("paymentId", run.PaymentID), zap.Error(err))
		o.moveTo(run, StateAborted, "mark paid failed: "+err.Error(), logger)
		o.countOutcome("mark_paid_failed")
		return nil, err
	}

	o.moveTo(run, StateCommitting, "payment "+run.PaymentID, logger)
	return paid, nil
}

func chargeRequest(order *domain.Order, pay PaymentDetails) payment.ChargeRequest {
	method := pay.Method
	if method == "" {
		method = DefaultPaymentMethod
	}
	quantity := 0
	for _, item := range order.Items {
		quantity += item.Quantity
	}

	details := map[string]any{"quantity": quantity}
	for k, v := range pay.Details {
		details[k] = v
	}

	return payment.ChargeRequest{
		PurchaseID:    order.PublicID,
		Username:      order.BuyerUsername,
		Amount:        order.Total,
		Currency:      pay.Currency,
		PaymentMethod: method,
		Details:       details,
	}
}

// paymentFailure turns a non-completed charge into the error the caller sees.
func paymentFailure(r clients.Result[payment.Charge]) error {
	switch r.Outcome {
	case clients.OutcomeOK:
		if r.Value.Completed() {
			return nil
		}
		return apperrors.NewPaymentDeclinedError(
			fmt.Sprintf("payment was not completed (status %s)", r.Value.Status),
			map[string]string{"paymentId": r.Value.PaymentID, "status": r.Value.Status})
	case clients.OutcomeUnavailable:
		return apperrors.NewPaymentProcessingError("payment service unavailable", r.Detail)
	case clients.OutcomeFailed:
		return apperrors.NewPaymentProcessingError("payment processing failed", downstreamDetail(r))
	default:
		return apperrors.NewPaymentDeclinedError("payment declined: "+r.Detail, downstreamDetail(r))
	}
}

func downstreamDetail[T any](r clients.Result[T]) any {
	if len(r.Payload) > 0 {
		return r.Payload
	}
	return r.Detail
}

func outcomeLabel(err error) string {
	if pe, ok := apperrors.IsPaymentError(err); ok && pe.Kind == apperrors.PaymentProcessing {
		return "payment_failed"
	}
	return "payment_declined"
}

func (o *Orchestrator) commit(ctx context.Context, run *Run, order *domain.Order, logger *zap.Logger) error {
	ctx, span := o.tracer.Start(ctx, "saga.Committing")
	defer span.End()

	for _, item := range order.Items {
		stockItem := apperrors.StockItem{ProductID: item.ProductPublicID, Quantity: item.Quantity}

		r := o.catalog.AdjustStock(ctx, item.ProductPublicID, -item.Quantity)
		if r.IsOK() {
			run.Committed = append(run.Committed, stockItem)
			continue
		}

		reason := fmt.Sprintf("%s: %s", r.Outcome, r.Detail)
		logger.Error("stock commit failed",
			zap.String("productId", item.ProductPublicID),
			zap.Int("quantity", item.Quantity),
			zap.String("outcome", r.Outcome.String()),
			zap.String("detail", r.Detail))
		o.moveTo(run, StateCompensatingFailure, "commit failed for "+item.ProductPublicID, logger)
		o.compensate(ctx, run, logger)
		o.countOutcome("stock_commit_failed")

		return &apperrors.StockCommitError{
			OrderID:            order.PublicID,
			PaymentID:          run.PaymentID,
			Failed:             stockItem,
			Reason:             reason,
			Committed:          run.Committed,
			Compensated:        run.Compensated,
			CompensationFailed: run.CompensationFailed,
		}
	}
	return nil
}

// compensate restores every committed item with the inverse delta, in the
// order the items were committed. Failures are logged and recorded only.
func (o *Orchestrator) compensate(ctx context.Context, run *Run, logger *zap.Logger) {
	for _, item := range run.Committed {
		r := o.catalog.AdjustStock(ctx, item.ProductID, item.Quantity)
		if r.IsOK() {
			run.Compensated = append(run.Compensated, item)
			o.countCompensation("ok")
			logger.Info("stock compensated", zap.String("productId", item.ProductID), zap.Int("quantity", item.Quantity))
			continue
		}

		run.CompensationFailed = append(run.CompensationFailed, item)
		o.countCompensation("failed")
		logger.Error("stock compensation failed",
			zap.String("productId", item.ProductID),
			zap.Int("quantity", item.Quantity),
			zap.String("outcome", r.Outcome.String()),
			zap.String("detail", r.Detail))
	}
}

func (o *Orchestrator) moveTo(run *Run, to State, note string, logger *zap.Logger) {
	from := run.State
	if !run.moveTo(to, o.now(), note) {
		logger.Error("illegal saga transition", zap.String("from", string(from)), zap.String("to", string(to)))
		return
	}
	fields := []zap.Field{zap.String("from", string(from)), zap.String("to", string(to))}
	if note != "" {
		fields = append(fields, zap.String("note", note))
	}
	if to == StateAborted || to == StateCompensatingFailure {
		logger.Warn("saga transition", fields...)
		return
	}
	logger.Info("saga transition", fields...)
}

func (o *Orchestrator) countOutcome(outcome string) {
	if o.metrics != nil {
		o.metrics.Confirmations.WithLabelValues(outcome).Inc()
	}
}

func (o *Orchestrator) countCompensation(result string) {
	if o.metrics != nil {
		o.metrics.Compensations.WithLabelValues(result).Inc()
	}
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
