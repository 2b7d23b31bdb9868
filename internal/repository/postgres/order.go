package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spokeworks/bikeshop/internal/domain"
	"github.com/spokeworks/bikeshop/internal/repository"
	"github.com/spokeworks/bikeshop/pkg/database"
	apperrors "github.com/spokeworks/bikeshop/pkg/errors"
)

// OrderRepository implements repository.OrderRepository using PostgreSQL.
type OrderRepository struct {
	db database.DBTX
}

// NewOrderRepository creates a PostgreSQL-backed order repository.
func NewOrderRepository(db database.DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts an order and its line items atomically.
func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var shippingJSON, billingJSON []byte

	if o.ShippingAddress != nil {
		shippingJSON, err = json.Marshal(o.ShippingAddress)
		if err != nil {
			return fmt.Errorf("marshal shipping address: %w", err)
		}
	}
	if o.BillingAddress != nil {
		billingJSON, err = json.Marshal(o.BillingAddress)
		if err != nil {
			return fmt.Errorf("marshal billing address: %w", err)
		}
	}

	orderQuery := `
		INSERT INTO orders (
			id, user_id, status, subtotal_amount, discount_amount, shipping_amount,
			total_amount, currency, coupon_id, coupon_code, payment_method, payment_id,
			shipping_address, billing_address, notes, canceled_reason, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err = tx.Exec(ctx, orderQuery,
		o.ID,
		o.UserID,
		o.Status,
		o.SubtotalAmount,
		o.DiscountAmount,
		o.ShippingAmount,
		o.TotalAmount,
		o.Currency,
		o.CouponID,
		o.CouponCode,
		o.PaymentMethod,
		o.PaymentID,
		shippingJSON,
		billingJSON,
		o.Notes,
		o.CanceledReason,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	itemQuery := `
		INSERT INTO order_items (id, order_id, product_id, name, sku, price, quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	for _, item := range o.Items {
		_, err = tx.Exec(ctx, itemQuery,
			item.ID,
			item.OrderID,
			item.ProductID,
			item.Name,
			item.SKU,
			item.Price,
			item.Quantity,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

const orderColumns = `id, user_id, status, subtotal_amount, discount_amount, shipping_amount,
	   total_amount, currency, coupon_id, coupon_code, payment_method, payment_id,
	   shipping_address, billing_address, notes, canceled_reason, created_at, updated_at`

// GetByID retrieves an order with its line items.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE id = $1`, orderColumns)

	var (
		o            domain.Order
		shippingJSON []byte
		billingJSON  []byte
	)

	err := r.db.QueryRow(ctx, query, id).Scan(
		&o.ID,
		&o.UserID,
		&o.Status,
		&o.SubtotalAmount,
		&o.DiscountAmount,
		&o.ShippingAmount,
		&o.TotalAmount,
		&o.Currency,
		&o.CouponID,
		&o.CouponCode,
		&o.PaymentMethod,
		&o.PaymentID,
		&shippingJSON,
		&billingJSON,
		&o.Notes,
		&o.CanceledReason,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("order", id)
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}

	if err := unmarshalAddress(shippingJSON, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal shipping address: %w", err)
	}
	if err := unmarshalAddress(billingJSON, &o.BillingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal billing address: %w", err)
	}

	items, err := r.loadOrderItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items

	return &o, nil
}

// List returns orders matching the filter with the total count. Line items
// are not loaded for listings; GetByID returns the full order.
func (r *OrderRepository) List(ctx context.Context, filter repository.OrderFilter) ([]domain.Order, int, error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.UserID != nil {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", argIndex))
		args = append(args, *filter.UserID)
		argIndex++
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, *filter.Status)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM orders
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		orderColumns, whereClause, argIndex, argIndex+1,
	)

	limit := filter.PerPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * limit
	}
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var totalCount int
	orders := make([]domain.Order, 0)

	for rows.Next() {
		var (
			o            domain.Order
			shippingJSON []byte
			billingJSON  []byte
		)

		if err := rows.Scan(
			&o.ID,
			&o.UserID,
			&o.Status,
			&o.SubtotalAmount,
			&o.DiscountAmount,
			&o.ShippingAmount,
			&o.TotalAmount,
			&o.Currency,
			&o.CouponID,
			&o.CouponCode,
			&o.PaymentMethod,
			&o.PaymentID,
			&shippingJSON,
			&billingJSON,
			&o.Notes,
			&o.CanceledReason,
			&o.CreatedAt,
			&o.UpdatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan order row: %w", err)
		}

		if err := unmarshalAddress(shippingJSON, &o.ShippingAddress); err != nil {
			return nil, 0, fmt.Errorf("unmarshal shipping address: %w", err)
		}
		if err := unmarshalAddress(billingJSON, &o.BillingAddress); err != nil {
			return nil, 0, fmt.Errorf("unmarshal billing address: %w", err)
		}

		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate order rows: %w", err)
	}

	return orders, totalCount, nil
}

// UpdateStatus changes the status of an order and optionally sets a cancel reason.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id, status, reason string) error {
	query := `
		UPDATE orders
		SET status = $1, canceled_reason = $2, updated_at = $3
		WHERE id = $4`

	ct, err := r.db.Exec(ctx, query, status, reason, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("order", id)
	}

	return nil
}

func (r *OrderRepository) loadOrderItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	query := `
		SELECT id, order_id, product_id, name, sku, price, quantity
		FROM order_items
		WHERE order_id = $1
		ORDER BY id`

	rows, err := r.db.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0)
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.Name,
			&item.SKU,
			&item.Price,
			&item.Quantity,
		); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order item rows: %w", err)
	}

	return items, nil
}

func unmarshalAddress(data []byte, target **domain.Address) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	var addr domain.Address
	if err := json.Unmarshal(data, &addr); err != nil {
		return err
	}
	*target = &addr
	return nil
}
