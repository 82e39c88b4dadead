package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"purchases/internal/domain"
)

type MySQLOrderItemRepository struct {
	db *sql.DB
}

func NewMySQLOrderItemRepository(db *sql.DB) *MySQLOrderItemRepository {
	return &MySQLOrderItemRepository{db: db}
}

func (r *MySQLOrderItemRepository) Insert(ctx context.Context, tx *sql.Tx, item domain.OrderItem) (uint64, error) {
	query := `
		INSERT INTO order_items (public_id, order_id, position, product_public_id, name, image_src,
		                         description, seller_username, seller_name, seller_pfp, price, quantity, total)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := tx.ExecContext(ctx, query,
		item.PublicID, item.OrderID, item.Position, item.ProductPublicID, item.Name, item.ImageSrc,
		item.Description, item.SellerUsername, item.SellerName, item.SellerPfp,
		item.Price, item.Quantity, item.Total,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting order item: %w", err)
	}

	lastInsertID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting last insert id: %w", err)
	}

	return uint64(lastInsertID), nil
}

// FindByOrderIDs loads the items of every given order, keyed by order id and
// kept in their original position.
func (r *MySQLOrderItemRepository) FindByOrderIDs(ctx context.Context, orderIDs []uint64) (map[uint64][]domain.OrderItem, error) {
	items := make(map[uint64][]domain.OrderItem, len(orderIDs))
	if len(orderIDs) == 0 {
		return items, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(orderIDs)), ",")
	args := make([]any, len(orderIDs))
	for i, id := range orderIDs {
		args[i] = id
	}

	query := `
		SELECT id, public_id, order_id, position, product_public_id, name, image_src, description,
		       seller_username, seller_name, seller_pfp, price, quantity, total
		FROM order_items
		WHERE order_id IN (` + placeholders + `)
		ORDER BY order_id, position
	`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(
			&item.ID, &item.PublicID, &item.OrderID, &item.Position, &item.ProductPublicID,
			&item.Name, &item.ImageSrc, &item.Description, &item.SellerUsername,
			&item.SellerName, &item.SellerPfp, &item.Price, &item.Quantity, &item.Total,
		); err != nil {
			return nil, fmt.Errorf("scanning order item: %w", err)
		}
		items[item.OrderID] = append(items[item.OrderID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating order items: %w", err)
	}

	return items, nil
}
