package controller

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"purchases/internal/clients/payment"
	"purchases/internal/domain"
	"purchases/internal/dto"
	apperrors "purchases/internal/errors"
	"purchases/internal/infrastructure/auth"
)

const maxBodyBytes = 1 << 20

type CreateOrderUseCase interface {
	Create(ctx context.Context, buyer string, req dto.CreateOrderRequest) (*domain.Order, error)
}

type ConfirmOrderUseCase interface {
	Confirm(ctx context.Context, publicID string, req dto.ConfirmOrderRequest) (*domain.Order, error)
}

type ManageOrdersUseCase interface {
	Get(ctx context.Context, publicID string) (*domain.Order, error)
	List(ctx context.Context, query url.Values) (*domain.OrderPage, error)
	Update(ctx context.Context, publicID string, body []byte) (*domain.Order, error)
	Cancel(ctx context.Context, publicID string) (*domain.Order, error)
	Delete(ctx context.Context, publicID string) error
	PaymentStatus(ctx context.Context, publicID string) (*domain.Order, *payment.PaymentStatus, error)
}

type OrderController struct {
	create  CreateOrderUseCase
	confirm ConfirmOrderUseCase
	manage  ManageOrdersUseCase
	logger  *zap.Logger
}

func NewOrderController(create CreateOrderUseCase, confirm ConfirmOrderUseCase, manage ManageOrdersUseCase, logger *zap.Logger) *OrderController {
	return &OrderController{
		create:  create,
		confirm: confirm,
		manage:  manage,
		logger:  logger,
	}
}

// Routes mounts the order endpoints. Callers are expected to wrap them with
// authentication.
func (c *OrderController) Routes(r chi.Router) {
	r.Post("/", c.Create)
	r.Get("/", c.List)
	r.Route("/{publicId}", func(r chi.Router) {
		r.Get("/", c.Get)
		r.Patch("/", c.Update)
		r.Delete("/", c.Delete)
		r.Post("/cancel", c.Cancel)
		r.Post("/confirm", c.Confirm)
		r.Get("/payment", c.PaymentStatus)
	})
}

func (c *OrderController) Create(w http.ResponseWriter, r *http.Request) {
	traceID := requestTraceID(r)
	logger := c.logger.With(zap.String("traceId", traceID))

	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		c.writeError(w, traceID, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}

	var req dto.CreateOrderRequest
	if err := c.decode(r, &req); err != nil {
		logger.Warn("invalid JSON body", zap.Error(err))
		c.handleUseCaseError(w, traceID, err, logger)
		return
	}

	order, err := c.create.Create(r.Context(), principal.Username, req)
	if err != nil {
		c.handleUseCaseError(w, traceID, err, logger)
		return
	}

	c.writeJSON(w, http.StatusCreated, dto.FromOrder(order))
}

func (c *OrderController) List(w http.ResponseWriter, r *http.Request) {
	traceID := requestTraceID(r)
	logger := c.logger.With(zap.String("traceId", traceID))

	page, err := c.manage.List(r.Context(), r.URL.Query())
	if err != nil {
		c.handleUseCaseError(w, traceID, err, logger)
		return
	}

	c.writeJSON(w, http.StatusOK, dto.FromOrderPage(page))
}

func (c *OrderController) Get(w http.ResponseWriter, r *http.Request) {
	traceID := requestTraceID(r)
	logger := c.logger.With(zap.String("traceId", traceID))

	order, err := c.manage.Get(r.Context(), chi.URLParam(r, "publicId"))
	if err != nil {
		c.handleUseCaseError(w, traceID, err, logger)
		return
	}

	c.writeJSON(w, http.StatusOK, dto.FromOrder(order))
}

func (c *OrderController) Update(w http.ResponseWriter, r *http.Request) {
	traceID := requestTraceID(r)
	logger := c.logger.With(zap.String("traceId", traceID))

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		c.handleUseCaseError(w, traceID, invalidBody(), logger)
		return
	}

	order, err := c.manage.Update(r.Context(), chi.URLParam(r, "publicId"), body)
	if err != nil {
		c.handleUseCaseError(w, traceID, err, logger)
		return
	}

	c.writeJSON(w, http.StatusOK, dto.FromOrder(order))
}

func (c *OrderController) Cancel(w http.ResponseWriter, r *http.Request) {
	traceID := requestTraceID(r)
	logger := c.logger.With(zap.String("traceId", traceID))

	order, err := c.manage.Cancel(r.Context(), chi.URLParam(r, "publicId"))
	if err != nil {
		c.handleUseCaseError(w, traceID, err, logger)
		return
	}

	c.writeJSON(w, http.StatusOK, dto.FromOrder(order))
}

func (c *OrderController) Delete(w http.ResponseWriter, r *http.Request) {
	traceID := requestTraceID(r)
	logger := c.logger.With(zap.String("traceId", traceID))

	if err := c.manage.Delete(r.Context(), chi.URLParam(r, "publicId")); err != nil {
		c.handleUseCaseError(w, traceID, err, logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Confirm accepts an empty body; the payment method then defaults to the
// platform balance.
func (c *OrderController) Confirm(w http.ResponseWriter, r *http.Request) {
	traceID := requestTraceID(r)
	publicID := chi.URLParam(r, "publicId")
	logger := c.logger.With(zap.String("traceId", traceID), zap.String("orderId", publicID))

	var req dto.ConfirmOrderRequest
	if err := c.decode(r, &req); err != nil && !errors.Is(err, io.EOF) {
		logger.Warn("invalid JSON body", zap.Error(err))
		c.handleUseCaseError(w, traceID, invalidBody(), logger)
		return
	}

	order, err := c.confirm.Confirm(r.Context(), publicID, req)
	if err != nil {
		c.handleUseCaseError(w, traceID, err, logger)
		return
	}

	c.writeJSON(w, http.StatusOK, dto.FromOrder(order))
}

func (c *OrderController) PaymentStatus(w http.ResponseWriter, r *http.Request) {
	traceID := requestTraceID(r)
	logger := c.logger.With(zap.String("traceId", traceID))

	order, status, err := c.manage.PaymentStatus(r.Context(), chi.URLParam(r, "publicId"))
	if err != nil {
		c.handleUseCaseError(w, traceID, err, logger)
		return
	}

	c.writeJSON(w, http.StatusOK, dto.PaymentStatusResponse{
		OrderID:   order.PublicID,
		PaymentID: status.PaymentID,
		Status:    status.Status,
		Amount:    status.Amount,
	})
}

// decode reads a JSON body into v. io.EOF is returned as is for an empty
// body so callers can decide whether a body is required.
func (c *OrderController) decode(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF):
		return err
	default:
		return invalidBody()
	}
}

func invalidBody() error {
	return apperrors.NewValidationError("invalid JSON body", apperrors.ValidationDetail{
		Field:   "body",
		Message: "request body must be valid JSON",
	})
}

// requestTraceID reuses the request id set by the router so handler logs and
// the access log share one traceId.
func requestTraceID(r *http.Request) string {
	if id := middleware.GetReqID(r.Context()); id != "" {
		return id
	}
	return uuid.New().String()
}

func (c *OrderController) handleUseCaseError(w http.ResponseWriter, traceID string, err error, logger *zap.Logger) {
	if errors.Is(err, io.EOF) {
		err = invalidBody()
	}

	if ve, ok := apperrors.IsValidationError(err); ok {
		c.writeError(w, traceID, http.StatusBadRequest, "VALIDATION_ERROR", ve.Message, ve.Details)
		return
	}

	if _, ok := apperrors.IsUnauthorizedError(err); ok {
		c.writeError(w, traceID, http.StatusUnauthorized, "UNAUTHORIZED", err.Error(), nil)
		return
	}

	if _, ok := apperrors.IsNotFoundError(err); ok {
		c.writeError(w, traceID, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
		return
	}

	if ce, ok := apperrors.IsConflictError(err); ok {
		code := ce.Code
		if code == "" {
			code = apperrors.CodeConflict
		}
		c.writeError(w, traceID, http.StatusConflict, code, ce.Message, ce.Details)
		return
	}

	if pe, ok := apperrors.IsPaymentError(err); ok {
		if pe.Kind == apperrors.PaymentDeclined {
			logger.Info("payment declined", zap.String("message", pe.Message))
			c.writeError(w, traceID, http.StatusPaymentRequired, "PAYMENT_DECLINED", pe.Message, pe.Detail)
			return
		}
		logger.Error("payment processing failed", zap.Error(err))
		c.writeError(w, traceID, http.StatusBadGateway, "PAYMENT_PROCESSING_FAILED", pe.Message, pe.Detail)
		return
	}

	if se, ok := apperrors.IsStockCommitError(err); ok {
		logger.Error("stock commit failed", zap.String("orderId", se.OrderID), zap.String("paymentId", se.PaymentID), zap.Error(err))
		c.writeError(w, traceID, http.StatusBadGateway, "STOCK_COMMIT_FAILED", err.Error(), dto.StockCommitFailure{
			OrderID:            se.OrderID,
			PaymentID:          se.PaymentID,
			Failed:             se.Failed,
			Reason:             se.Reason,
			Committed:          stockItems(se.Committed),
			Compensated:        stockItems(se.Compensated),
			CompensationFailed: stockItems(se.CompensationFailed),
		})
		return
	}

	if de, ok := apperrors.IsDependencyUnavailableError(err); ok {
		logger.Warn("dependency unavailable", zap.String("dependency", de.Dependency), zap.Error(err))
		c.writeError(w, traceID, http.StatusServiceUnavailable, "DEPENDENCY_UNAVAILABLE", err.Error(), map[string]string{"dependency": de.Dependency})
		return
	}

	if _, ok := apperrors.IsDeadlockError(err); ok {
		c.writeError(w, traceID, http.StatusConflict, "DEADLOCK", err.Error(), nil)
		return
	}

	logger.Error("unexpected error", zap.Error(err))
	c.writeError(w, traceID, http.StatusInternalServerError, "INTERNAL_ERROR", "an unexpected error occurred", nil)
}

func stockItems(items []apperrors.StockItem) []apperrors.StockItem {
	if items == nil {
		return []apperrors.StockItem{}
	}
	return items
}

func (c *OrderController) writeError(w http.ResponseWriter, traceID string, status int, code, message string, details any) {
	c.writeJSON(w, status, dto.ErrorResponse{
		TraceID:   traceID,
		Status:    status,
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
	})
}

func (c *OrderController) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		c.logger.Error("failed to encode response", zap.Error(err))
	}
}
