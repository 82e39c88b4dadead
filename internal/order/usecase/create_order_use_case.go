package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"purchases/internal/clients"
	"purchases/internal/domain"
	"purchases/internal/dto"
	apperrors "purchases/internal/errors"
	"purchases/internal/order/validation"
)

type CreateOrderUseCase struct {
	store     OrderStore
	catalog   ProductCatalog
	identity  IdentityDirectory
	publisher EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewCreateOrderUseCase(
	store OrderStore,
	catalog ProductCatalog,
	identity IdentityDirectory,
	publisher EventPublisher,
	logger *zap.Logger,
) *CreateOrderUseCase {
	return &CreateOrderUseCase{
		store:     store,
		catalog:   catalog,
		identity:  identity,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create validates the request, resolves the buyer and every product, and
// stores a new PENDING order priced from the catalog snapshot.
func (uc *CreateOrderUseCase) Create(ctx context.Context, buyer string, req dto.CreateOrderRequest) (*domain.Order, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "CreateOrderUseCase.Create")
	defer span.End()

	if err := validation.CreateOrder(req); err != nil {
		return nil, err
	}

	uc.logger.Info("create order started", zap.String("buyer", buyer), zap.Int("itemCount", len(req.Items)))

	profile, err := uc.resolveBuyer(ctx, buyer)
	if err != nil {
		return nil, err
	}

	items := make([]domain.OrderItem, len(req.Items))
	for i, requested := range req.Items {
		product, err := uc.resolveProduct(ctx, i, strings.TrimSpace(requested.ProductID))
		if err != nil {
			return nil, err
		}
		items[i] = domain.NewOrderItem(uuid.NewString(), i, product, requested.Quantity)
	}

	order := domain.NewOrder(uuid.NewString(), profile.Username, profile.DisplayName(), items, uc.now())
	span.SetAttributes(attribute.String("order.id", order.PublicID))

	saved, err := uc.store.Add(ctx, order)
	if err != nil {
		return nil, err
	}

	uc.logger.Info("order created",
		zap.String("orderId", saved.PublicID),
		zap.String("buyer", saved.BuyerUsername),
		zap.String("total", saved.Total.StringFixed(2)))
	publishEvent(ctx, uc.publisher, uc.logger, domain.EventOrderCreated, saved)

	return saved, nil
}

func (uc *CreateOrderUseCase) resolveBuyer(ctx context.Context, username string) (domain.Profile, error) {
	r := uc.identity.GetSellerByUsername(ctx, username)
	switch r.Outcome {
	case clients.OutcomeOK:
		return r.Value, nil
	case clients.OutcomeNotFound, clients.OutcomeRejected:
		return domain.Profile{}, apperrors.NewValidationError("unknown buyer", apperrors.ValidationDetail{
			Field:   "buyer",
			Message: fmt.Sprintf("user %s is not a known identity", username),
		})
	default:
		uc.logger.Warn("identity lookup failed", zap.String("buyer", username), zap.String("outcome", r.Outcome.String()), zap.String("detail", r.Detail))
		return domain.Profile{}, apperrors.NewDependencyUnavailableError("identity", resultCause(r.Err, r.Detail))
	}
}

func (uc *CreateOrderUseCase) resolveProduct(ctx context.Context, idx int, productID string) (domain.ProductSnapshot, error) {
	r := uc.catalog.GetProductByID(ctx, productID)
	switch r.Outcome {
	case clients.OutcomeOK:
		if !r.Value.HasPrice {
			return domain.ProductSnapshot{}, apperrors.NewNotFoundError(fmt.Sprintf("product %s has no price", productID))
		}
		return r.Value.ProductSnapshot, nil
	case clients.OutcomeNotFound, clients.OutcomeMalformed:
		return domain.ProductSnapshot{}, apperrors.NewNotFoundError(fmt.Sprintf("product %s not found", productID))
	case clients.OutcomeRejected:
		return domain.ProductSnapshot{}, apperrors.NewValidationError("product rejected", apperrors.ValidationDetail{
			Field:   "items[" + strconv.Itoa(idx) + "].productId",
			Message: r.Detail,
		})
	default:
		uc.logger.Warn("catalog lookup failed", zap.String("productId", productID), zap.String("outcome", r.Outcome.String()), zap.String("detail", r.Detail))
		return domain.ProductSnapshot{}, apperrors.NewDependencyUnavailableError("catalog", resultCause(r.Err, r.Detail))
	}
}

func resultCause(err error, detail string) error {
	if err != nil {
		return err
	}
	return errors.New(detail)
}
