// Package repository defines the persistence interfaces the services depend
// on. Redis backs the transient stores (carts, checkout snapshots); Postgres
// backs the durable ones (coupons, shipping settings, orders, payments).
package repository

import (
	"context"

	"github.com/spokeworks/bikeshop/internal/domain"
)

// CartRepository persists carts keyed by user ID.
type CartRepository interface {
	// Get retrieves a cart by its user ID.
	Get(ctx context.Context, userID string) (*domain.Cart, error)

	// Save persists a cart, overwriting any existing cart for the user.
	Save(ctx context.Context, cart *domain.Cart) error

	// SaveIfVersion persists the cart only if the stored version still
	// equals expectedVersion. Returns false when another writer got there
	// first; the caller surfaces that as a conflict.
	SaveIfVersion(ctx context.Context, cart *domain.Cart, expectedVersion int) (bool, error)

	// Delete removes a cart by user ID.
	Delete(ctx context.Context, userID string) error
}

// SnapshotRepository persists single-use checkout snapshots keyed by user ID.
type SnapshotRepository interface {
	// Put stores the snapshot, replacing any previous one for the user.
	Put(ctx context.Context, snapshot *domain.CheckoutSnapshot) error

	// Get retrieves the snapshot without consuming it.
	Get(ctx context.Context, userID string) (*domain.CheckoutSnapshot, error)

	// Take atomically retrieves and deletes the snapshot, enforcing
	// exactly-once consumption at order placement.
	Take(ctx context.Context, userID string) (*domain.CheckoutSnapshot, error)

	// Delete discards the snapshot, used when the customer abandons checkout.
	Delete(ctx context.Context, userID string) error
}

// CouponFilter narrows coupon listing.
type CouponFilter struct {
	Status  *string
	Page    int
	PerPage int
}

// CouponRepository persists coupons and their usage records.
type CouponRepository interface {
	Create(ctx context.Context, c *domain.Coupon) error
	GetByID(ctx context.Context, id string) (*domain.Coupon, error)
	GetByCode(ctx context.Context, code string) (*domain.Coupon, error)
	List(ctx context.Context, filter CouponFilter) ([]domain.Coupon, int, error)
	Update(ctx context.Context, c *domain.Coupon) error
	Delete(ctx context.Context, id string) error

	// IncrementUsage atomically increments the coupon's usage counter.
	IncrementUsage(ctx context.Context, id string) error

	// RecordUsage stores a redemption record.
	RecordUsage(ctx context.Context, usage *domain.CouponUsage) error
}

// ShippingSettingsRepository persists the single shop-wide settings row.
type ShippingSettingsRepository interface {
	// Get returns the current settings, or a not-found error when they
	// have never been configured.
	Get(ctx context.Context) (*domain.ShippingSettings, error)

	// Upsert writes the settings, creating the row on first save.
	Upsert(ctx context.Context, s *domain.ShippingSettings) error
}

// OrderFilter narrows order listing.
type OrderFilter struct {
	UserID  *string
	Status  *string
	Page    int
	PerPage int
}

// OrderRepository persists orders and their line items.
type OrderRepository interface {
	Create(ctx context.Context, o *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context, filter OrderFilter) ([]domain.Order, int, error)

	// UpdateStatus moves the order to a new status, recording an optional
	// cancellation reason.
	UpdateStatus(ctx context.Context, id, status, reason string) error
}

// PaymentRepository persists payment intents.
type PaymentRepository interface {
	Create(ctx context.Context, p *domain.PaymentIntent) error
	GetByID(ctx context.Context, id string) (*domain.PaymentIntent, error)

	// UpdateStatus transitions the intent, recording the provider reference,
	// linked order, or failure reason as they become known.
	UpdateStatus(ctx context.Context, p *domain.PaymentIntent) error
}
