package store

import (
	"context"
	"database/sql"

	"commerce-core/internal/apperr"
	"commerce-core/internal/models"
)

// CreateOrder persists an order together with all its items in one
// transaction. A partially created order is never observable.
func (s *Store) CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	orderQuery := `
		INSERT INTO orders (user_id, cart_id, status, payment_status, payment_method,
			subtotal, shipping_total, total, address_id,
			ship_name, ship_phone, ship_line1, ship_city, ship_state, ship_postal)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at, updated_at`

	row := tx.QueryRowxContext(ctx, orderQuery,
		order.UserID, order.CartID, order.Status, order.PaymentStatus, order.PaymentMethod,
		order.Subtotal, order.ShippingTotal, order.Total, order.AddressID,
		order.ShipName, order.ShipPhone, order.ShipLine1, order.ShipCity, order.ShipState, order.ShipPostal)
	if err := row.Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt); err != nil {
		return err
	}

	itemQuery := `
		INSERT INTO order_items (order_id, item_id, variant_id, quantity, base_price, final_price)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	for i := range items {
		items[i].OrderID = order.ID
		if err := tx.QueryRowxContext(ctx, itemQuery,
			order.ID, items[i].ItemID, items[i].VariantID,
			items[i].Quantity, items[i].BasePrice, items[i].FinalPrice,
		).Scan(&items[i].ID); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetOrderByID retrieves an order
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("order does not exist").WithOrder(id)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderItems retrieves all items for an order
func (s *Store) GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	return items, err
}

// SetItemExternalLinkage records the external fulfillment order created
// for an item. Write-once: an item that already carries a linkage is
// never overwritten.
func (s *Store) SetItemExternalLinkage(ctx context.Context, itemID int64, externalOrderID string, shipping, commission int64, status string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE order_items
		 SET external_order_id = $1, external_shipping = $2, external_commission = $3, external_status = $4
		 WHERE id = $5 AND external_order_id IS NULL`,
		externalOrderID, shipping, commission, status, itemID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.InvalidState("item already linked to an external order").WithItem(itemID)
	}
	return nil
}

// UpdateOrderTotals rewrites the order's money columns, keeping
// total = subtotal + shipping_total by construction.
func (s *Store) UpdateOrderTotals(ctx context.Context, orderID, subtotal, shippingTotal int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE orders SET subtotal = $1, shipping_total = $2, total = $1 + $2, updated_at = NOW()
		 WHERE id = $3`,
		subtotal, shippingTotal, orderID)
	return err
}

// UpdateOrderPaymentStatus records the gateway's reported state and
// transaction id
func (s *Store) UpdateOrderPaymentStatus(ctx context.Context, orderID int64, paymentStatus, externalTxID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE orders SET payment_status = $1, external_tx_id = $2, updated_at = NOW() WHERE id = $3",
		paymentStatus, externalTxID, orderID)
	return err
}

// UpdateOrderStatus updates the order's lifecycle status
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID int64, status string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2",
		status, orderID)
	return err
}

// OrderHasFulfillment reports whether any item of the order already
// carries an external linkage. Used as the exactly-once guard before
// triggering fulfillment submission.
func (s *Store) OrderHasFulfillment(ctx context.Context, orderID int64) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM order_items WHERE order_id = $1 AND external_order_id IS NOT NULL)",
		orderID)
	return exists, err
}
