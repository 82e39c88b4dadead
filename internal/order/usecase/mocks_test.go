package usecase

import (
	"context"
	"encoding/json"
	"sync"

	"purchases/internal/clients"
	"purchases/internal/clients/catalog"
	"purchases/internal/clients/payment"
	"purchases/internal/domain"
	"purchases/internal/order/saga"
)

// Mock implementations

type mockOrderStore struct {
	AddFunc            func(ctx context.Context, order *domain.Order) (*domain.Order, error)
	FindByPublicIDFunc func(ctx context.Context, publicID string) (*domain.Order, error)
	ListAllFunc        func(ctx context.Context, page domain.PageRequest) (*domain.OrderPage, error)
	ListByFilterFunc   func(ctx context.Context, filter domain.OrderFilter, page domain.PageRequest) (*domain.OrderPage, error)
	UpdateFieldsFunc   func(ctx context.Context, publicID string, update domain.OrderUpdate) (*domain.Order, error)
	DeleteFunc         func(ctx context.Context, publicID string) (*domain.Order, error)
}

func (m *mockOrderStore) Add(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	return m.AddFunc(ctx, order)
}

func (m *mockOrderStore) FindByPublicID(ctx context.Context, publicID string) (*domain.Order, error) {
	return m.FindByPublicIDFunc(ctx, publicID)
}

func (m *mockOrderStore) ListAll(ctx context.Context, page domain.PageRequest) (*domain.OrderPage, error) {
	return m.ListAllFunc(ctx, page)
}

func (m *mockOrderStore) ListByFilter(ctx context.Context, filter domain.OrderFilter, page domain.PageRequest) (*domain.OrderPage, error) {
	return m.ListByFilterFunc(ctx, filter, page)
}

func (m *mockOrderStore) UpdateFields(ctx context.Context, publicID string, update domain.OrderUpdate) (*domain.Order, error) {
	return m.UpdateFieldsFunc(ctx, publicID, update)
}

func (m *mockOrderStore) Delete(ctx context.Context, publicID string) (*domain.Order, error) {
	return m.DeleteFunc(ctx, publicID)
}

type mockCatalog struct {
	GetProductByIDFunc func(ctx context.Context, id string) clients.Result[catalog.Product]
}

func (m *mockCatalog) GetProductByID(ctx context.Context, id string) clients.Result[catalog.Product] {
	return m.GetProductByIDFunc(ctx, id)
}

type mockIdentity struct {
	GetSellerByUsernameFunc func(ctx context.Context, username string) clients.Result[domain.Profile]
}

func (m *mockIdentity) GetSellerByUsername(ctx context.Context, username string) clients.Result[domain.Profile] {
	return m.GetSellerByUsernameFunc(ctx, username)
}

type mockPayments struct {
	UpdatePaymentStatusFunc func(ctx context.Context, purchaseID, status string) clients.Result[json.RawMessage]
	GetPaymentStatusFunc    func(ctx context.Context, purchaseID string) clients.Result[payment.PaymentStatus]
}

func (m *mockPayments) UpdatePaymentStatus(ctx context.Context, purchaseID, status string) clients.Result[json.RawMessage] {
	return m.UpdatePaymentStatusFunc(ctx, purchaseID, status)
}

func (m *mockPayments) GetPaymentStatus(ctx context.Context, purchaseID string) clients.Result[payment.PaymentStatus] {
	return m.GetPaymentStatusFunc(ctx, purchaseID)
}

type mockConfirmer struct {
	ConfirmFunc func(ctx context.Context, publicID string, pay saga.PaymentDetails) (*domain.Order, *saga.Run, error)
}

func (m *mockConfirmer) Confirm(ctx context.Context, publicID string, pay saga.PaymentDetails) (*domain.Order, *saga.Run, error) {
	return m.ConfirmFunc(ctx, publicID, pay)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.OrderEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event domain.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) types() []domain.OrderEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.OrderEventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}
