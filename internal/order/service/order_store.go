package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"purchases/internal/domain"
	apperrors "purchases/internal/errors"
)

// TransactionManager runs fn inside one database transaction, committing when
// fn returns nil and rolling back otherwise.
type TransactionManager interface {
	WithinTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

type OrderRepository interface {
	FindByPublicID(ctx context.Context, publicID string) (*domain.Order, error)
	FindByPublicIDForUpdate(ctx context.Context, tx *sql.Tx, publicID string) (*domain.Order, error)
	Insert(ctx context.Context, tx *sql.Tx, order *domain.Order) (uint64, error)
	UpdateStatus(ctx context.Context, tx *sql.Tx, id uint64, status domain.OrderStatus, now time.Time) error
	MarkPaid(ctx context.Context, publicID, paymentID string, now time.Time) (int64, error)
	Delete(ctx context.Context, tx *sql.Tx, id uint64) error
	List(ctx context.Context, filter domain.OrderFilter, page domain.PageRequest) ([]domain.Order, int, error)
}

type OrderItemRepository interface {
	Insert(ctx context.Context, tx *sql.Tx, item domain.OrderItem) (uint64, error)
	FindByOrderIDs(ctx context.Context, orderIDs []uint64) (map[uint64][]domain.OrderItem, error)
}

// OrderStore persists the order aggregate: an order always travels with its
// items and every multi-row write happens in one transaction.
type OrderStore struct {
	tx               TransactionManager
	orderRepo        OrderRepository
	orderItemRepo    OrderItemRepository
	logger           *zap.Logger
	maxRetryAttempts int
	now              func() time.Time
}

func NewOrderStore(
	tx TransactionManager,
	orderRepo OrderRepository,
	orderItemRepo OrderItemRepository,
	logger *zap.Logger,
	maxRetryAttempts int,
) *OrderStore {
	if maxRetryAttempts < 1 {
		maxRetryAttempts = 1
	}
	return &OrderStore{
		tx:               tx,
		orderRepo:        orderRepo,
		orderItemRepo:    orderItemRepo,
		logger:           logger,
		maxRetryAttempts: maxRetryAttempts,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

func (s *OrderStore) FindByPublicID(ctx context.Context, publicID string) (*domain.Order, error) {
	order, err := s.orderRepo.FindByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}
	if err := s.attachItems(ctx, []*domain.Order{order}); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *OrderStore) ListAll(ctx context.Context, page domain.PageRequest) (*domain.OrderPage, error) {
	return s.ListByFilter(ctx, domain.OrderFilter{}, page)
}

func (s *OrderStore) ListByFilter(ctx context.Context, filter domain.OrderFilter, page domain.PageRequest) (*domain.OrderPage, error) {
	orders, total, err := s.orderRepo.List(ctx, filter, page)
	if err != nil {
		return nil, err
	}

	refs := make([]*domain.Order, len(orders))
	for i := range orders {
		refs[i] = &orders[i]
	}
	if err := s.attachItems(ctx, refs); err != nil {
		return nil, err
	}

	return domain.NewOrderPage(orders, total, page), nil
}

func (s *OrderStore) attachItems(ctx context.Context, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]uint64, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}

	items, err := s.orderItemRepo.FindByOrderIDs(ctx, ids)
	if err != nil {
		return err
	}
	for _, o := range orders {
		o.Items = items[o.ID]
	}
	return nil
}

// Add stores a new order with all its items. Deadlocks are retried with a
// short jittered backoff; other errors are returned as they are.
func (s *OrderStore) Add(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	// Backoff intervals: attempt 1 (0ms), attempt 2 (100ms), attempt 3 (200ms), etc.
	backoff := func(attempt int) time.Duration { return time.Duration(attempt-1) * 100 * time.Millisecond }

	for attempt := 1; attempt <= s.maxRetryAttempts; attempt++ {
		err := s.insert(ctx, order)
		if err == nil {
			s.logger.Info("order stored",
				zap.String("orderId", order.PublicID),
				zap.Int("itemCount", len(order.Items)),
				zap.String("total", order.Total.StringFixed(2)))
			return order, nil
		}

		if !isDeadlockError(err) {
			return nil, err
		}
		if attempt == s.maxRetryAttempts {
			break
		}

		base := backoff(attempt + 1)
		// ±20% jitter
		wait := base + time.Duration(float64(base)*(rand.Float64()*0.4-0.2))
		s.logger.Warn("deadlock detected, retrying",
			zap.Int("attempt", attempt),
			zap.Int("maxAttempts", s.maxRetryAttempts),
			zap.String("orderId", order.PublicID))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}

	return nil, apperrors.NewDeadlockError("max retries exceeded")
}

func (s *OrderStore) insert(ctx context.Context, order *domain.Order) error {
	return s.tx.WithinTx(ctx, func(tx *sql.Tx) error {
		id, err := s.orderRepo.Insert(ctx, tx, order)
		if err != nil {
			return err
		}

		for i := range order.Items {
			order.Items[i].OrderID = id
			itemID, err := s.orderItemRepo.Insert(ctx, tx, order.Items[i])
			if err != nil {
				return err
			}
			order.Items[i].ID = itemID
		}

		order.ID = id
		return nil
	})
}

// UpdateFields applies update to the order under a row lock. Only PENDING and
// PAID orders are mutable, and a status change must be a permitted transition.
func (s *OrderStore) UpdateFields(ctx context.Context, publicID string, update domain.OrderUpdate) (*domain.Order, error) {
	err := s.tx.WithinTx(ctx, func(tx *sql.Tx) error {
		current, err := s.orderRepo.FindByPublicIDForUpdate(ctx, tx, publicID)
		if err != nil {
			return err
		}

		if !current.Status.IsMutable() {
			return apperrors.NewConflictErrorWithCode(apperrors.CodeOrderNotMutable,
				fmt.Sprintf("order %s is %s and can no longer be modified", publicID, current.Status), nil)
		}

		if update.Status == nil {
			return nil
		}
		next := *update.Status
		if !current.Status.CanTransitionTo(next) {
			return apperrors.NewConflictErrorWithCode(apperrors.CodeInvalidTransition,
				fmt.Sprintf("order %s cannot move from %s to %s", publicID, current.Status, next),
				map[string]string{"from": string(current.Status), "to": string(next)})
		}

		return s.orderRepo.UpdateStatus(ctx, tx, current.ID, next, s.now())
	})
	if err != nil {
		return nil, err
	}

	return s.FindByPublicID(ctx, publicID)
}

// MarkPaid records a successful charge. The update only applies while the order
// is still PENDING, so a concurrent confirmation or cancellation makes it fail
// with a conflict instead of overwriting the other outcome.
func (s *OrderStore) MarkPaid(ctx context.Context, publicID, paymentID string) (*domain.Order, error) {
	rows, err := s.orderRepo.MarkPaid(ctx, publicID, paymentID, s.now())
	if err != nil {
		return nil, err
	}

	if rows == 0 {
		current, err := s.orderRepo.FindByPublicID(ctx, publicID)
		if err != nil {
			return nil, err
		}
		return nil, apperrors.NewConflictErrorWithCode(apperrors.CodeOrderNotConfirmable,
			fmt.Sprintf("order %s is %s, expected PENDING", publicID, current.Status), nil)
	}

	return s.FindByPublicID(ctx, publicID)
}

// Delete removes a non-terminal order together with its items and returns the
// order as it was.
func (s *OrderStore) Delete(ctx context.Context, publicID string) (*domain.Order, error) {
	var deleted *domain.Order
	err := s.tx.WithinTx(ctx, func(tx *sql.Tx) error {
		current, err := s.orderRepo.FindByPublicIDForUpdate(ctx, tx, publicID)
		if err != nil {
			return err
		}

		if current.Status.IsTerminal() {
			return apperrors.NewConflictErrorWithCode(apperrors.CodeOrderNotMutable,
				fmt.Sprintf("order %s is %s and can no longer be deleted", publicID, current.Status), nil)
		}

		if err := s.orderRepo.Delete(ctx, tx, current.ID); err != nil {
			return err
		}
		deleted = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

func isDeadlockError(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1213 || mysqlErr.Number == 1205
	}
	return false
}
