package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spokeworks/bikeshop/internal/domain"
	"github.com/spokeworks/bikeshop/internal/repository"
	"github.com/spokeworks/bikeshop/pkg/database"
	apperrors "github.com/spokeworks/bikeshop/pkg/errors"
)

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func setupOrderRepo(t *testing.T) (*OrderRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	return NewOrderRepository(mock), mock
}

func sampleOrder() *domain.Order {
	now := time.Date(2026, 8, 20, 9, 30, 0, 0, time.UTC)
	return &domain.Order{
		ID:             "ord-001",
		UserID:         "user-001",
		Status:         domain.OrderStatusPending,
		SubtotalAmount: 10000,
		DiscountAmount: 1000,
		ShippingAmount: 0,
		TotalAmount:    9000,
		Currency:       "GBP",
		CouponID:       "coup-001",
		CouponCode:     "SAVE10",
		PaymentMethod:  domain.PaymentMethodPayOnDelivery,
		ShippingAddress: &domain.Address{
			FullName:    "Alex Morgan",
			AddressLine: "12 Bridleway Road",
			City:        "Bristol",
			PostalCode:  "BS1 4DJ",
			Country:     "GB",
		},
		Items: []domain.OrderItem{
			{ID: "item-1", OrderID: "ord-001", ProductID: "prod-1", Name: "Road bike", SKU: "RB-56", Price: 10000, Quantity: 1},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func orderTestColumns() []string {
	return []string{
		"id", "user_id", "status", "subtotal_amount", "discount_amount", "shipping_amount",
		"total_amount", "currency", "coupon_id", "coupon_code", "payment_method", "payment_id",
		"shipping_address", "billing_address", "notes", "canceled_reason", "created_at", "updated_at",
	}
}

func orderRow(o *domain.Order) *pgxmock.Rows {
	var shippingJSON, billingJSON []byte
	if o.ShippingAddress != nil {
		shippingJSON, _ = json.Marshal(o.ShippingAddress)
	}
	if o.BillingAddress != nil {
		billingJSON, _ = json.Marshal(o.BillingAddress)
	}
	return pgxmock.NewRows(orderTestColumns()).
		AddRow(
			o.ID, o.UserID, o.Status, o.SubtotalAmount, o.DiscountAmount, o.ShippingAmount,
			o.TotalAmount, o.Currency, o.CouponID, o.CouponCode, o.PaymentMethod, o.PaymentID,
			shippingJSON, billingJSON, o.Notes, o.CanceledReason, o.CreatedAt, o.UpdatedAt,
		)
}

func orderItemRows(o *domain.Order) *pgxmock.Rows {
	rows := pgxmock.NewRows([]string{"id", "order_id", "product_id", "name", "sku", "price", "quantity"})
	for _, item := range o.Items {
		rows.AddRow(item.ID, item.OrderID, item.ProductID, item.Name, item.SKU, item.Price, item.Quantity)
	}
	return rows
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestOrderRepository_Create_Success(t *testing.T) {
	repo, mock := setupOrderRepo(t)
	defer mock.Close()

	o := sampleOrder()
	shippingJSON, _ := json.Marshal(o.ShippingAddress)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO orders").
		WithArgs(
			o.ID, o.UserID, o.Status, o.SubtotalAmount, o.DiscountAmount, o.ShippingAmount,
			o.TotalAmount, o.Currency, o.CouponID, o.CouponCode, o.PaymentMethod, o.PaymentID,
			shippingJSON, []byte(nil), o.Notes, o.CanceledReason, o.CreatedAt, o.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO order_items").
		WithArgs("item-1", "ord-001", "prod-1", "Road bike", "RB-56", int64(10000), 1).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := repo.Create(context.Background(), o)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_Create_ItemInsertFails_RollsBack(t *testing.T) {
	repo, mock := setupOrderRepo(t)
	defer mock.Close()

	o := sampleOrder()
	shippingJSON, _ := json.Marshal(o.ShippingAddress)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO orders").
		WithArgs(
			o.ID, o.UserID, o.Status, o.SubtotalAmount, o.DiscountAmount, o.ShippingAmount,
			o.TotalAmount, o.Currency, o.CouponID, o.CouponCode, o.PaymentMethod, o.PaymentID,
			shippingJSON, []byte(nil), o.Notes, o.CanceledReason, o.CreatedAt, o.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO order_items").
		WithArgs("item-1", "ord-001", "prod-1", "Road bike", "RB-56", int64(10000), 1).
		WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), o)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "insert order item")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// GetByID
// ---------------------------------------------------------------------------

func TestOrderRepository_GetByID_Success(t *testing.T) {
	repo, mock := setupOrderRepo(t)
	defer mock.Close()

	o := sampleOrder()
	mock.ExpectQuery("SELECT .+ FROM orders WHERE id").
		WithArgs(o.ID).
		WillReturnRows(orderRow(o))
	mock.ExpectQuery("SELECT .+ FROM order_items").
		WithArgs(o.ID).
		WillReturnRows(orderItemRows(o))

	got, err := repo.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.TotalAmount, got.TotalAmount)
	assert.Equal(t, o.CouponCode, got.CouponCode)
	require.NotNil(t, got.ShippingAddress)
	assert.Equal(t, "Bristol", got.ShippingAddress.City)
	assert.Nil(t, got.BillingAddress)
	require.Len(t, got.Items, 1)
	assert.Equal(t, int64(10000), got.Items[0].LineTotal())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := setupOrderRepo(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM orders WHERE id").
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows(orderTestColumns()))

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// List
// ---------------------------------------------------------------------------

func TestOrderRepository_List_ByUser(t *testing.T) {
	repo, mock := setupOrderRepo(t)
	defer mock.Close()

	o := sampleOrder()
	shippingJSON, _ := json.Marshal(o.ShippingAddress)
	rows := pgxmock.NewRows(append(orderTestColumns(), "total_count")).
		AddRow(
			o.ID, o.UserID, o.Status, o.SubtotalAmount, o.DiscountAmount, o.ShippingAmount,
			o.TotalAmount, o.Currency, o.CouponID, o.CouponCode, o.PaymentMethod, o.PaymentID,
			shippingJSON, []byte(nil), o.Notes, o.CanceledReason, o.CreatedAt, o.UpdatedAt,
			1,
		)

	userID := o.UserID
	mock.ExpectQuery("SELECT .+ FROM orders").
		WithArgs(userID, 20, 0).
		WillReturnRows(rows)

	orders, total, err := repo.List(context.Background(), repository.OrderFilter{UserID: &userID})
	require.NoError(t, err)
	assert.Len(t, orders, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// UpdateStatus
// ---------------------------------------------------------------------------

func TestOrderRepository_UpdateStatus(t *testing.T) {
	repo, mock := setupOrderRepo(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE orders").
		WithArgs(domain.OrderStatusConfirmed, "", pgxmock.AnyArg(), "ord-001").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	assert.NoError(t, repo.UpdateStatus(context.Background(), "ord-001", domain.OrderStatusConfirmed, ""))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_UpdateStatus_NotFound(t *testing.T) {
	repo, mock := setupOrderRepo(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE orders").
		WithArgs(domain.OrderStatusCanceled, "out of stock", pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdateStatus(context.Background(), "missing", domain.OrderStatusCanceled, "out of stock")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
