package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"purchases/internal/domain"
	"purchases/internal/errors"
)

const orderColumns = `o.id, o.public_id, o.buyer_username, o.buyer_name, o.status, o.total,
		       o.payment_id, o.created_at, o.updated_at`

type MySQLOrderRepository struct {
	db *sql.DB
}

func NewMySQLOrderRepository(db *sql.DB) *MySQLOrderRepository {
	return &MySQLOrderRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		order     domain.Order
		status    string
		paymentID sql.NullString
	)
	err := row.Scan(
		&order.ID, &order.PublicID, &order.BuyerUsername, &order.BuyerName, &status,
		&order.Total, &paymentID, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	order.Status = domain.OrderStatus(status)
	if paymentID.Valid {
		order.PaymentID = &paymentID.String
	}
	return &order, nil
}

func (r *MySQLOrderRepository) FindByPublicID(ctx context.Context, publicID string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders o WHERE o.public_id = ?`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, publicID))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("order %s not found", publicID))
	}
	if err != nil {
		return nil, fmt.Errorf("querying order by public id: %w", err)
	}

	return order, nil
}

// FindByPublicIDForUpdate locks the order row until tx ends.
func (r *MySQLOrderRepository) FindByPublicIDForUpdate(ctx context.Context, tx *sql.Tx, publicID string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders o WHERE o.public_id = ? FOR UPDATE`

	order, err := scanOrder(tx.QueryRowContext(ctx, query, publicID))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("order %s not found", publicID))
	}
	if err != nil {
		return nil, fmt.Errorf("locking order: %w", err)
	}

	return order, nil
}

func (r *MySQLOrderRepository) Insert(ctx context.Context, tx *sql.Tx, order *domain.Order) (uint64, error) {
	query := `
		INSERT INTO orders (public_id, buyer_username, buyer_name, status, total, payment_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := tx.ExecContext(ctx, query,
		order.PublicID, order.BuyerUsername, order.BuyerName, string(order.Status),
		order.Total, order.PaymentID, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting order: %w", err)
	}

	lastInsertID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting last insert id: %w", err)
	}

	return uint64(lastInsertID), nil
}

func (r *MySQLOrderRepository) UpdateStatus(ctx context.Context, tx *sql.Tx, id uint64, status domain.OrderStatus, now time.Time) error {
	query := `UPDATE orders SET status = ?, updated_at = ? WHERE id = ?`

	result, err := tx.ExecContext(ctx, query, string(status), now, id)
	if err != nil {
		return fmt.Errorf("updating order status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return errors.NewNotFoundError(fmt.Sprintf("order with id %d not found", id))
	}

	return nil
}

// MarkPaid moves a PENDING order to PAID in a single conditional statement and
// reports how many rows changed. Zero means the order is missing or no longer
// PENDING.
func (r *MySQLOrderRepository) MarkPaid(ctx context.Context, publicID, paymentID string, now time.Time) (int64, error) {
	query := `UPDATE orders SET status = ?, payment_id = ?, updated_at = ? WHERE public_id = ? AND status = ?`

	result, err := r.db.ExecContext(ctx, query,
		string(domain.OrderStatusPaid), paymentID, now, publicID, string(domain.OrderStatusPending),
	)
	if err != nil {
		return 0, fmt.Errorf("marking order paid: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}

	return rowsAffected, nil
}

func (r *MySQLOrderRepository) Delete(ctx context.Context, tx *sql.Tx, id uint64) error {
	result, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting order: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return errors.NewNotFoundError(fmt.Sprintf("order with id %d not found", id))
	}

	return nil
}

// List returns one page of orders matching filter, newest first, together with
// the total number of matching orders. Items are not loaded.
func (r *MySQLOrderRepository) List(ctx context.Context, filter domain.OrderFilter, page domain.PageRequest) ([]domain.Order, int, error) {
	where, args := filterClause(filter)

	var total int
	countQuery := `SELECT COUNT(*) FROM orders o` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting orders: %w", err)
	}

	orders := []domain.Order{}
	if total == 0 || page.Offset() >= total {
		return orders, total, nil
	}

	query := `SELECT ` + orderColumns + ` FROM orders o` + where +
		` ORDER BY o.created_at DESC, o.id DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, append(args, page.Size, page.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing orders: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning order: %w", err)
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating orders: %w", err)
	}

	return orders, total, nil
}

func filterClause(filter domain.OrderFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)

	if filter.Seller != "" {
		conds = append(conds, `EXISTS (SELECT 1 FROM order_items oi WHERE oi.order_id = o.id AND oi.seller_username = ?)`)
		args = append(args, filter.Seller)
	}
	if filter.Status != nil {
		conds = append(conds, `o.status = ?`)
		args = append(args, string(*filter.Status))
	}
	if filter.DateFrom != nil {
		conds = append(conds, `o.created_at >= ?`)
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conds = append(conds, `o.created_at <= ?`)
		args = append(args, domain.EndOfDay(*filter.DateTo))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
