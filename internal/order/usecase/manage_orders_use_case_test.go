package usecase

import (
	"context"
	"net/url"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"purchases/internal/clients"
	"purchases/internal/clients/payment"
	"purchases/internal/domain"
	apperrors "purchases/internal/errors"
)

const manageID = "0b5d7a3e-2c41-4f8e-a6d9-3e1c9b7f2a40"

func orderWithStatus(status domain.OrderStatus) *domain.Order {
	return &domain.Order{ID: 7, PublicID: manageID, BuyerUsername: "jane", Status: status, Total: decimal.NewFromInt(10)}
}

func TestManageOrders_Get(t *testing.T) {
	store := &mockOrderStore{
		FindByPublicIDFunc: func(ctx context.Context, publicID string) (*domain.Order, error) {
			assert.Equal(t, manageID, publicID)
			return orderWithStatus(domain.OrderStatusPending), nil
		},
	}
	uc := NewManageOrdersUseCase(store, nil, nil, zap.NewNop())

	order, err := uc.Get(context.Background(), manageID)

	require.NoError(t, err)
	assert.Equal(t, manageID, order.PublicID)
}

func TestManageOrders_GetInvalidID(t *testing.T) {
	uc := NewManageOrdersUseCase(&mockOrderStore{}, nil, nil, zap.NewNop())

	_, err := uc.Get(context.Background(), "abc")

	_, ok := apperrors.IsValidationError(err)
	assert.True(t, ok)
}

func TestManageOrders_ListWithoutFiltersUsesListAll(t *testing.T) {
	var listAll, listFiltered int
	store := &mockOrderStore{
		ListAllFunc: func(ctx context.Context, page domain.PageRequest) (*domain.OrderPage, error) {
			listAll++
			assert.Equal(t, domain.PageRequest{Page: 0, Size: domain.DefaultPageSize}, page)
			return domain.NewOrderPage(nil, 0, page), nil
		},
		ListByFilterFunc: func(ctx context.Context, filter domain.OrderFilter, page domain.PageRequest) (*domain.OrderPage, error) {
			listFiltered++
			return domain.NewOrderPage(nil, 0, page), nil
		},
	}
	uc := NewManageOrdersUseCase(store, nil, nil, zap.NewNop())

	_, err := uc.List(context.Background(), url.Values{})

	require.NoError(t, err)
	assert.Equal(t, 1, listAll)
	assert.Equal(t, 0, listFiltered)
}

func TestManageOrders_ListWithFilters(t *testing.T) {
	var got domain.OrderFilter
	store := &mockOrderStore{
		ListByFilterFunc: func(ctx context.Context, filter domain.OrderFilter, page domain.PageRequest) (*domain.OrderPage, error) {
			got = filter
			assert.Equal(t, 2, page.Page)
			assert.Equal(t, 5, page.Size)
			return domain.NewOrderPage([]domain.Order{*orderWithStatus(domain.OrderStatusPaid)}, 11, page), nil
		},
	}
	uc := NewManageOrdersUseCase(store, nil, nil, zap.NewNop())

	page, err := uc.List(context.Background(), url.Values{
		"seller": {"artist"},
		"status": {"paid"},
		"page":   {"2"},
		"size":   {"5"},
	})

	require.NoError(t, err)
	assert.Equal(t, "artist", got.Seller)
	require.NotNil(t, got.Status)
	assert.Equal(t, domain.OrderStatusPaid, *got.Status)
	assert.Equal(t, 3, page.TotalPages)
}

func TestManageOrders_ListInvalidQuery(t *testing.T) {
	uc := NewManageOrdersUseCase(&mockOrderStore{}, nil, nil, zap.NewNop())

	_, err := uc.List(context.Background(), url.Values{"status": {"LOST"}})

	_, ok := apperrors.IsValidationError(err)
	assert.True(t, ok)
}

func TestManageOrders_UpdatePublishesByStatus(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status domain.OrderStatus
		event  domain.OrderEventType
	}{
		{name: "cancel", body: `{"status":"CANCELLED"}`, status: domain.OrderStatusCancelled, event: domain.EventOrderCancelled},
		{name: "ship", body: `{"status":"SHIPPED"}`, status: domain.OrderStatusShipped, event: domain.EventOrderShipped},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockOrderStore{
				UpdateFieldsFunc: func(ctx context.Context, publicID string, update domain.OrderUpdate) (*domain.Order, error) {
					require.NotNil(t, update.Status)
					assert.Equal(t, tt.status, *update.Status)
					return orderWithStatus(*update.Status), nil
				},
			}
			pub := &recordingPublisher{}
			uc := NewManageOrdersUseCase(store, nil, pub, zap.NewNop())

			order, err := uc.Update(context.Background(), manageID, []byte(tt.body))

			require.NoError(t, err)
			assert.Equal(t, tt.status, order.Status)
			assert.Equal(t, []domain.OrderEventType{tt.event}, pub.types())
		})
	}
}

func TestManageOrders_UpdateRejectsUnknownFields(t *testing.T) {
	store := &mockOrderStore{
		UpdateFieldsFunc: func(ctx context.Context, publicID string, update domain.OrderUpdate) (*domain.Order, error) {
			t.Fatal("store must not be called")
			return nil, nil
		},
	}
	uc := NewManageOrdersUseCase(store, nil, nil, zap.NewNop())

	_, err := uc.Update(context.Background(), manageID, []byte(`{"total":"1"}`))

	_, ok := apperrors.IsValidationError(err)
	assert.True(t, ok)
}

func TestManageOrders_CancelConflict(t *testing.T) {
	store := &mockOrderStore{
		UpdateFieldsFunc: func(ctx context.Context, publicID string, update domain.OrderUpdate) (*domain.Order, error) {
			return nil, apperrors.NewConflictErrorWithCode(apperrors.CodeOrderNotMutable, "order is SHIPPED", nil)
		},
	}
	pub := &recordingPublisher{}
	uc := NewManageOrdersUseCase(store, nil, pub, zap.NewNop())

	_, err := uc.Cancel(context.Background(), manageID)

	ce, ok := apperrors.IsConflictError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeOrderNotMutable, ce.Code)
	assert.Empty(t, pub.types())
}

func TestManageOrders_Delete(t *testing.T) {
	store := &mockOrderStore{
		DeleteFunc: func(ctx context.Context, publicID string) (*domain.Order, error) {
			return orderWithStatus(domain.OrderStatusPending), nil
		},
	}
	pub := &recordingPublisher{}
	uc := NewManageOrdersUseCase(store, nil, pub, zap.NewNop())

	err := uc.Delete(context.Background(), manageID)

	require.NoError(t, err)
	assert.Equal(t, []domain.OrderEventType{domain.EventOrderDeleted}, pub.types())
}

func TestManageOrders_PaymentStatus(t *testing.T) {
	paymentID := "pay-9"
	paid := orderWithStatus(domain.OrderStatusPaid)
	paid.PaymentID = &paymentID

	tests := []struct {
		name   string
		order  *domain.Order
		result clients.Result[payment.PaymentStatus]
		check  func(t *testing.T, status *payment.PaymentStatus, err error)
	}{
		{
			name:   "ok",
			order:  paid,
			result: clients.OK(payment.PaymentStatus{Status: "COMPLETED", Amount: decimal.NewFromInt(10)}, 200, nil),
			check: func(t *testing.T, status *payment.PaymentStatus, err error) {
				require.NoError(t, err)
				assert.Equal(t, "COMPLETED", status.Status)
				assert.Equal(t, "pay-9", status.PaymentID)
			},
		},
		{
			name:  "order never charged",
			order: orderWithStatus(domain.OrderStatusPending),
			check: func(t *testing.T, status *payment.PaymentStatus, err error) {
				_, ok := apperrors.IsNotFoundError(err)
				assert.True(t, ok)
			},
		},
		{
			name:   "payment not found",
			order:  paid,
			result: clients.Result[payment.PaymentStatus]{Outcome: clients.OutcomeNotFound},
			check: func(t *testing.T, status *payment.PaymentStatus, err error) {
				_, ok := apperrors.IsNotFoundError(err)
				assert.True(t, ok)
			},
		},
		{
			name:   "payment unavailable",
			order:  paid,
			result: clients.Result[payment.PaymentStatus]{Outcome: clients.OutcomeUnavailable, Detail: "timeout"},
			check: func(t *testing.T, status *payment.PaymentStatus, err error) {
				de, ok := apperrors.IsDependencyUnavailableError(err)
				require.True(t, ok)
				assert.Equal(t, "payment", de.Dependency)
			},
		},
		{
			name:   "malformed answer",
			order:  paid,
			result: clients.Result[payment.PaymentStatus]{Outcome: clients.OutcomeMalformed, Detail: "missing status"},
			check: func(t *testing.T, status *payment.PaymentStatus, err error) {
				var ie *apperrors.InternalError
				assert.ErrorAs(t, err, &ie)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockOrderStore{
				FindByPublicIDFunc: func(ctx context.Context, publicID string) (*domain.Order, error) {
					return tt.order, nil
				},
			}
			payments := &mockPayments{
				GetPaymentStatusFunc: func(ctx context.Context, purchaseID string) clients.Result[payment.PaymentStatus] {
					assert.Equal(t, manageID, purchaseID)
					return tt.result
				},
			}
			uc := NewManageOrdersUseCase(store, payments, nil, zap.NewNop())

			_, status, err := uc.PaymentStatus(context.Background(), manageID)

			tt.check(t, status, err)
		})
	}
}
