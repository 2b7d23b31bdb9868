// Package event publishes the shop's domain events to Kafka. Publishing is
// best-effort: callers log failures and carry on, the customer-facing flow
// never fails because the broker is down.
package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spokeworks/bikeshop/internal/domain"
	pkgkafka "github.com/spokeworks/bikeshop/pkg/kafka"
)

// Topics for the shop's domain events.
var (
	TopicCartUpdated          = pkgkafka.Topic("cart", "updated")
	TopicCartCleared          = pkgkafka.Topic("cart", "cleared")
	TopicCouponApplied        = pkgkafka.Topic("coupon", "applied")
	TopicCheckoutCaptured     = pkgkafka.Topic("checkout", "captured")
	TopicOrderPlaced          = pkgkafka.Topic("order", "placed")
	TopicOrderStatusChanged   = pkgkafka.Topic("order", "status-changed")
	TopicPaymentCaptured      = pkgkafka.Topic("payment", "captured")
	TopicPaymentUnreconciled  = pkgkafka.Topic("payment", "unreconciled")
)

// Aggregate type constants.
const (
	AggregateTypeCart     = "cart"
	AggregateTypeCoupon   = "coupon"
	AggregateTypeCheckout = "checkout"
	AggregateTypeOrder    = "order"
	AggregateTypePayment  = "payment"
)

// Source identifier for events originating from this service.
const Source = "bikeshop"

// CartUpdatedData is the payload for cart.updated events.
type CartUpdatedData struct {
	UserID      string `json:"user_id"`
	ItemCount   int    `json:"item_count"`
	TotalAmount int64  `json:"total_amount"`
	Currency    string `json:"currency"`
}

// CouponAppliedData is the payload for coupon.applied events.
type CouponAppliedData struct {
	UserID         string `json:"user_id"`
	CouponID       string `json:"coupon_id"`
	CouponCode     string `json:"coupon_code"`
	CartTotal      int64  `json:"cart_total"`
	DiscountAmount int64  `json:"discount_amount"`
	FinalAmount    int64  `json:"final_amount"`
}

// CheckoutCapturedData is the payload for checkout.captured events.
type CheckoutCapturedData struct {
	UserID        string `json:"user_id"`
	SnapshotID    string `json:"snapshot_id"`
	Subtotal      int64  `json:"subtotal"`
	Discount      int64  `json:"discount"`
	Shipping      int64  `json:"shipping"`
	ShippingState string `json:"shipping_state"`
	Total         int64  `json:"total"`
}

// OrderPlacedData is the payload for order.placed events.
type OrderPlacedData struct {
	OrderID       string `json:"order_id"`
	UserID        string `json:"user_id"`
	TotalAmount   int64  `json:"total_amount"`
	PaymentMethod string `json:"payment_method"`
	CouponCode    string `json:"coupon_code,omitempty"`
}

// OrderStatusChangedData is the payload for order.status-changed events.
type OrderStatusChangedData struct {
	OrderID    string `json:"order_id"`
	UserID     string `json:"user_id"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
	Reason     string `json:"reason,omitempty"`
}

// PaymentCapturedData is the payload for payment.captured events.
type PaymentCapturedData struct {
	PaymentID   string `json:"payment_id"`
	UserID      string `json:"user_id"`
	OrderID     string `json:"order_id,omitempty"`
	Amount      int64  `json:"amount"`
	ProviderRef string `json:"provider_ref,omitempty"`
}

// Producer publishes the shop's domain events.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates an event producer.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	event, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, Source, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}
	return nil
}

// PublishCartUpdated publishes a cart.updated event.
func (p *Producer) PublishCartUpdated(ctx context.Context, cart *domain.Cart) error {
	return p.publish(ctx, TopicCartUpdated, cart.UserID, AggregateTypeCart, CartUpdatedData{
		UserID:      cart.UserID,
		ItemCount:   cart.ItemCount(),
		TotalAmount: cart.TotalAmount(),
		Currency:    cart.Currency,
	})
}

// PublishCartCleared publishes a cart.cleared event.
func (p *Producer) PublishCartCleared(ctx context.Context, userID string) error {
	return p.publish(ctx, TopicCartCleared, userID, AggregateTypeCart, map[string]string{"user_id": userID})
}

// PublishCouponApplied publishes a coupon.applied event.
func (p *Producer) PublishCouponApplied(ctx context.Context, userID string, applied *domain.AppliedCoupon, cartTotal int64) error {
	return p.publish(ctx, TopicCouponApplied, applied.CouponID, AggregateTypeCoupon, CouponAppliedData{
		UserID:         userID,
		CouponID:       applied.CouponID,
		CouponCode:     applied.CouponCode,
		CartTotal:      cartTotal,
		DiscountAmount: applied.DiscountAmount,
		FinalAmount:    applied.FinalAmount,
	})
}

// PublishCheckoutCaptured publishes a checkout.captured event.
func (p *Producer) PublishCheckoutCaptured(ctx context.Context, snap *domain.CheckoutSnapshot) error {
	return p.publish(ctx, TopicCheckoutCaptured, snap.ID, AggregateTypeCheckout, CheckoutCapturedData{
		UserID:        snap.UserID,
		SnapshotID:    snap.ID,
		Subtotal:      snap.Subtotal,
		Discount:      snap.Discount,
		Shipping:      snap.Shipping,
		ShippingState: snap.ShippingState,
		Total:         snap.Total,
	})
}

// PublishOrderPlaced publishes an order.placed event.
func (p *Producer) PublishOrderPlaced(ctx context.Context, order *domain.Order) error {
	return p.publish(ctx, TopicOrderPlaced, order.ID, AggregateTypeOrder, OrderPlacedData{
		OrderID:       order.ID,
		UserID:        order.UserID,
		TotalAmount:   order.TotalAmount,
		PaymentMethod: order.PaymentMethod,
		CouponCode:    order.CouponCode,
	})
}

// PublishOrderStatusChanged publishes an order.status-changed event.
func (p *Producer) PublishOrderStatusChanged(ctx context.Context, order *domain.Order, fromStatus, reason string) error {
	return p.publish(ctx, TopicOrderStatusChanged, order.ID, AggregateTypeOrder, OrderStatusChangedData{
		OrderID:    order.ID,
		UserID:     order.UserID,
		FromStatus: fromStatus,
		ToStatus:   order.Status,
		Reason:     reason,
	})
}

// PublishPaymentCaptured publishes a payment.captured event.
func (p *Producer) PublishPaymentCaptured(ctx context.Context, intent *domain.PaymentIntent) error {
	return p.publish(ctx, TopicPaymentCaptured, intent.ID, AggregateTypePayment, PaymentCapturedData{
		PaymentID:   intent.ID,
		UserID:      intent.UserID,
		OrderID:     intent.OrderID,
		Amount:      intent.Amount,
		ProviderRef: intent.ProviderRef,
	})
}

// PublishPaymentUnreconciled publishes a payment.unreconciled event. This is
// the alert for support: money captured, no order record.
func (p *Producer) PublishPaymentUnreconciled(ctx context.Context, intent *domain.PaymentIntent) error {
	return p.publish(ctx, TopicPaymentUnreconciled, intent.ID, AggregateTypePayment, PaymentCapturedData{
		PaymentID:   intent.ID,
		UserID:      intent.UserID,
		Amount:      intent.Amount,
		ProviderRef: intent.ProviderRef,
	})
}
