package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/spokeworks/bikeshop/internal/domain"
	"github.com/spokeworks/bikeshop/internal/event"
	"github.com/spokeworks/bikeshop/internal/provider"
	"github.com/spokeworks/bikeshop/internal/repository"
	apperrors "github.com/spokeworks/bikeshop/pkg/errors"
	"github.com/spokeworks/bikeshop/pkg/pagination"
)

// PlaceOrderInput holds the parameters for placing an order from the pending
// checkout snapshot.
type PlaceOrderInput struct {
	PaymentMethod   string          `json:"payment_method" validate:"required,oneof=pay_on_delivery card"`
	PaymentID       string          `json:"payment_id"`
	ShippingAddress *domain.Address `json:"shipping_address" validate:"required"`
	BillingAddress  *domain.Address `json:"billing_address"`
	Notes           string          `json:"notes" validate:"max=1000"`
}

// OrderService places orders from checkout snapshots and manages their
// lifecycle. Card payments run in two phases: an intent is created and
// captured against the snapshot total first, then the order is confirmed
// against the captured intent.
type OrderService struct {
	orders   repository.OrderRepository
	payments repository.PaymentRepository
	coupons  repository.CouponRepository
	checkout *CheckoutService
	cart     *CartService
	provider provider.Provider
	producer *event.Producer
	logger   *slog.Logger
}

// NewOrderService creates an order service.
func NewOrderService(
	orders repository.OrderRepository,
	payments repository.PaymentRepository,
	coupons repository.CouponRepository,
	checkout *CheckoutService,
	cart *CartService,
	paymentProvider provider.Provider,
	producer *event.Producer,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{
		orders:   orders,
		payments: payments,
		coupons:  coupons,
		checkout: checkout,
		cart:     cart,
		provider: paymentProvider,
		producer: producer,
		logger:   logger,
	}
}

// Place consumes the user's checkout snapshot and creates the order. For
// pay-on-delivery the order is placed directly; for card the caller must
// first create and capture a payment intent and pass its id here.
func (s *OrderService) Place(ctx context.Context, userID string, input PlaceOrderInput) (*domain.Order, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}
	if !domain.IsValidPaymentMethod(input.PaymentMethod) {
		return nil, apperrors.InvalidInput("invalid payment method")
	}
	if err := validateAddress(input.ShippingAddress); err != nil {
		return nil, err
	}

	switch input.PaymentMethod {
	case domain.PaymentMethodPayOnDelivery:
		return s.placePayOnDelivery(ctx, userID, input)
	case domain.PaymentMethodCard:
		if input.PaymentID == "" {
			return nil, apperrors.InvalidInput("payment id is required for card orders")
		}
		return s.confirmCardOrder(ctx, userID, input)
	default:
		return nil, apperrors.InvalidInput("invalid payment method")
	}
}

func (s *OrderService) placePayOnDelivery(ctx context.Context, userID string, input PlaceOrderInput) (*domain.Order, error) {
	snapshot, err := s.checkout.Take(ctx, userID)
	if err != nil {
		return nil, err
	}

	order, err := s.createOrderFromSnapshot(ctx, userID, snapshot, input, "")
	if err != nil {
		// No money has moved; put the snapshot back so the customer can retry.
		if restoreErr := s.checkout.Restore(ctx, snapshot); restoreErr != nil {
			s.logger.ErrorContext(ctx, "failed to restore checkout snapshot",
				slog.String("snapshot_id", snapshot.ID),
				slog.String("error", restoreErr.Error()),
			)
		}
		return nil, err
	}

	s.finalizeOrder(ctx, order)
	return order, nil
}

// CreatePaymentIntent starts the card flow: it creates a provider intent for
// the exact snapshot total without consuming the snapshot. The snapshot is
// consumed later, when the captured intent is confirmed into an order.
func (s *OrderService) CreatePaymentIntent(ctx context.Context, userID string) (*domain.PaymentIntent, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}

	snapshot, err := s.checkout.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}

	intent := &domain.PaymentIntent{
		ID:           uuid.New().String(),
		UserID:       userID,
		SnapshotID:   snapshot.ID,
		Amount:       snapshot.Total,
		Currency:     snapshot.Currency,
		Status:       domain.PaymentStatusPending,
		ProviderName: s.provider.Name(),
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}

	providerIntent, err := s.provider.CreateIntent(ctx, &provider.CreateIntentInput{
		Amount:      snapshot.Total,
		Currency:    snapshot.Currency,
		Description: "bikeshop order",
		Reference:   intent.ID,
		Metadata: map[string]string{
			"snapshot_id": snapshot.ID,
			"user_id":     userID,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create provider intent: %w", err)
	}

	intent.ProviderRef = providerIntent.ProviderRef
	intent.ClientSecret = providerIntent.ClientSecret
	if providerIntent.Status == provider.IntentStatusFailed {
		intent.Status = domain.PaymentStatusFailed
		intent.FailureReason = providerIntent.FailureReason
	}

	if err := s.payments.Create(ctx, intent); err != nil {
		return nil, fmt.Errorf("store payment intent: %w", err)
	}

	if intent.Status == domain.PaymentStatusFailed {
		return nil, apperrors.PaymentFailed(intent.FailureReason)
	}

	s.logger.InfoContext(ctx, "payment intent created",
		slog.String("payment_id", intent.ID),
		slog.String("snapshot_id", snapshot.ID),
		slog.Int64("amount", intent.Amount),
	)

	return intent, nil
}

// confirmCardOrder verifies the captured intent, consumes the snapshot, and
// creates the order. If the order cannot be created after the payment was
// captured, the intent is marked captured-unreconciled and the customer is
// directed to support. Retrying the payment at that point would charge twice.
func (s *OrderService) confirmCardOrder(ctx context.Context, userID string, input PlaceOrderInput) (*domain.Order, error) {
	intent, err := s.payments.GetByID(ctx, input.PaymentID)
	if err != nil {
		return nil, fmt.Errorf("get payment intent: %w", err)
	}
	if intent.UserID != userID {
		return nil, apperrors.Forbidden("payment intent belongs to another user")
	}
	if intent.OrderID != "" {
		return nil, apperrors.Conflict("payment intent is already attached to an order")
	}

	providerIntent, err := s.provider.RetrieveIntent(ctx, intent.ProviderRef)
	if err != nil {
		return nil, fmt.Errorf("retrieve provider intent: %w", err)
	}
	if providerIntent.Status != provider.IntentStatusCaptured {
		return nil, apperrors.PaymentFailed("payment has not been captured")
	}
	if providerIntent.Amount != intent.Amount {
		return nil, apperrors.PaymentFailed("captured amount does not match the payment intent")
	}

	if intent.Status == domain.PaymentStatusPending {
		intent.Status = domain.PaymentStatusCaptured
		if err := s.payments.UpdateStatus(ctx, intent); err != nil {
			s.logger.ErrorContext(ctx, "failed to record payment capture",
				slog.String("payment_id", intent.ID),
				slog.String("error", err.Error()),
			)
		}
		if err := s.producer.PublishPaymentCaptured(ctx, intent); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish payment.captured event",
				slog.String("payment_id", intent.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	snapshot, err := s.checkout.Take(ctx, userID)
	if err != nil {
		// Money has moved but the priced snapshot is gone. Never ask the
		// customer to pay again; flag the intent for manual reconciliation.
		return nil, s.markUnreconciled(ctx, intent, fmt.Sprintf("snapshot missing after capture: %v", err))
	}
	if snapshot.Total != intent.Amount {
		return nil, s.markUnreconciled(ctx, intent, "snapshot total does not match captured amount")
	}

	order, err := s.createOrderFromSnapshot(ctx, userID, snapshot, input, intent.ID)
	if err != nil {
		return nil, s.markUnreconciled(ctx, intent, fmt.Sprintf("order creation failed after capture: %v", err))
	}

	intent.OrderID = order.ID
	if err := s.payments.UpdateStatus(ctx, intent); err != nil {
		s.logger.ErrorContext(ctx, "failed to attach order to payment intent",
			slog.String("payment_id", intent.ID),
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	s.finalizeOrder(ctx, order)
	return order, nil
}

// markUnreconciled records that a captured payment could not be matched to an
// order and returns the error the handler surfaces to the customer.
func (s *OrderService) markUnreconciled(ctx context.Context, intent *domain.PaymentIntent, reason string) error {
	intent.Status = domain.PaymentStatusCapturedUnreconciled
	intent.FailureReason = reason
	if err := s.payments.UpdateStatus(ctx, intent); err != nil {
		s.logger.ErrorContext(ctx, "failed to mark payment as captured-unreconciled",
			slog.String("payment_id", intent.ID),
			slog.String("error", err.Error()),
		)
	}
	if err := s.producer.PublishPaymentUnreconciled(ctx, intent); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish payment.unreconciled event",
			slog.String("payment_id", intent.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.ErrorContext(ctx, "payment captured but order confirmation failed",
		slog.String("payment_id", intent.ID),
		slog.String("user_id", intent.UserID),
		slog.String("reason", reason),
	)

	return apperrors.PaymentCapturedUnreconciled(intent.ID)
}

func (s *OrderService) createOrderFromSnapshot(ctx context.Context, userID string, snapshot *domain.CheckoutSnapshot, input PlaceOrderInput, paymentID string) (*domain.Order, error) {
	cart, err := s.cart.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, apperrors.InvalidInput("cart is empty")
	}

	orderID := uuid.New().String()
	items := make([]domain.OrderItem, 0, len(cart.Items))
	for _, ci := range cart.Items {
		items = append(items, domain.OrderItem{
			ID:        uuid.New().String(),
			OrderID:   orderID,
			ProductID: ci.ProductID,
			Name:      ci.Name,
			SKU:       ci.SKU,
			Price:     ci.Price,
			Quantity:  ci.Quantity,
		})
	}

	billing := input.BillingAddress
	if billing == nil {
		billing = input.ShippingAddress
	}

	now := time.Now().UTC()
	order := &domain.Order{
		ID:              orderID,
		UserID:          userID,
		Status:          domain.OrderStatusPending,
		Items:           items,
		SubtotalAmount:  snapshot.Subtotal,
		DiscountAmount:  snapshot.Discount,
		CouponID:        snapshot.CouponID,
		CouponCode:      snapshot.CouponCode,
		ShippingAmount:  snapshot.Shipping,
		TotalAmount:     snapshot.Total,
		Currency:        snapshot.Currency,
		PaymentMethod:   input.PaymentMethod,
		PaymentID:       paymentID,
		ShippingAddress: input.ShippingAddress,
		BillingAddress:  billing,
		Notes:           input.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	return order, nil
}

// finalizeOrder records the coupon redemption, clears the cart, and
// publishes the placed event. All are best-effort; the order already exists.
func (s *OrderService) finalizeOrder(ctx context.Context, order *domain.Order) {
	s.recordCouponRedemption(ctx, order)

	if err := s.cart.ClearCart(ctx, order.UserID); err != nil {
		s.logger.ErrorContext(ctx, "failed to clear cart after order placement",
			slog.String("order_id", order.ID),
			slog.String("user_id", order.UserID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.producer.PublishOrderPlaced(ctx, order); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.placed event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "order placed",
		slog.String("order_id", order.ID),
		slog.String("user_id", order.UserID),
		slog.String("payment_method", order.PaymentMethod),
		slog.Int64("total_amount", order.TotalAmount),
	)
}

// recordCouponRedemption bumps the coupon's usage counter and stores the
// redemption record once the order exists. The order is the redemption, not
// the storefront apply preview, so usage only moves here.
func (s *OrderService) recordCouponRedemption(ctx context.Context, order *domain.Order) {
	if order.CouponID == "" {
		return
	}

	if err := s.coupons.IncrementUsage(ctx, order.CouponID); err != nil {
		s.logger.ErrorContext(ctx, "failed to increment coupon usage",
			slog.String("coupon_id", order.CouponID),
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	usage := &domain.CouponUsage{
		ID:              uuid.New().String(),
		CouponID:        order.CouponID,
		UserID:          order.UserID,
		OrderID:         order.ID,
		DiscountApplied: order.DiscountAmount,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.coupons.RecordUsage(ctx, usage); err != nil {
		s.logger.ErrorContext(ctx, "failed to record coupon usage",
			slog.String("coupon_id", order.CouponID),
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}
}

// Get returns an order, scoped to its owner unless admin is set.
func (s *OrderService) Get(ctx context.Context, orderID, userID string, admin bool) (*domain.Order, error) {
	if orderID == "" {
		return nil, apperrors.InvalidInput("order id is required")
	}
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if !admin && order.UserID != userID {
		return nil, apperrors.NotFound("order", orderID)
	}
	return order, nil
}

// List returns a page of orders. A non-admin caller only sees their own.
func (s *OrderService) List(ctx context.Context, userID string, status *string, page pagination.Params) ([]domain.Order, int, error) {
	if status != nil && !domain.IsValidOrderStatus(*status) {
		return nil, 0, apperrors.InvalidInput("invalid order status")
	}
	var userFilter *string
	if userID != "" {
		userFilter = &userID
	}
	filter := repository.OrderFilter{
		UserID:  userFilter,
		Status:  status,
		Page:    page.Page,
		PerPage: page.PerPage,
	}
	orders, total, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	return orders, total, nil
}

// UpdateStatus moves an order along its lifecycle, enforcing the allowed
// transitions.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID, newStatus, reason string) (*domain.Order, error) {
	if orderID == "" {
		return nil, apperrors.InvalidInput("order id is required")
	}
	if !domain.IsValidOrderStatus(newStatus) {
		return nil, apperrors.InvalidInput("invalid order status")
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order for status update: %w", err)
	}
	if !order.CanTransitionTo(newStatus) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("cannot transition order from %s to %s", order.Status, newStatus))
	}

	fromStatus := order.Status
	if err := s.orders.UpdateStatus(ctx, orderID, newStatus, reason); err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	order.Status = newStatus
	order.UpdatedAt = time.Now().UTC()
	if newStatus == domain.OrderStatusCanceled {
		order.CanceledReason = reason
	}

	if err := s.producer.PublishOrderStatusChanged(ctx, order, fromStatus, reason); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.status-changed event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "order status updated",
		slog.String("order_id", order.ID),
		slog.String("from", fromStatus),
		slog.String("to", newStatus),
	)

	return order, nil
}

// Cancel cancels an order. A captured card payment is refunded through the
// provider before the status change.
func (s *OrderService) Cancel(ctx context.Context, orderID, userID, reason string, admin bool) (*domain.Order, error) {
	order, err := s.Get(ctx, orderID, userID, admin)
	if err != nil {
		return nil, err
	}
	if !order.CanTransitionTo(domain.OrderStatusCanceled) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("cannot cancel an order in status %s", order.Status))
	}

	if order.PaymentMethod == domain.PaymentMethodCard && order.PaymentID != "" {
		if err := s.refundPayment(ctx, order, reason); err != nil {
			return nil, err
		}
	}

	return s.UpdateStatus(ctx, orderID, domain.OrderStatusCanceled, reason)
}

func (s *OrderService) refundPayment(ctx context.Context, order *domain.Order, reason string) error {
	intent, err := s.payments.GetByID(ctx, order.PaymentID)
	if err != nil {
		return fmt.Errorf("get payment intent for refund: %w", err)
	}
	if !intent.IsCaptured() {
		return nil
	}

	result, err := s.provider.Refund(ctx, &provider.RefundInput{
		ProviderRef: intent.ProviderRef,
		Amount:      intent.Amount,
		Currency:    intent.Currency,
		Reason:      reason,
	})
	if err != nil {
		return fmt.Errorf("refund payment: %w", err)
	}

	intent.Status = domain.PaymentStatusRefunded
	if err := s.payments.UpdateStatus(ctx, intent); err != nil {
		s.logger.ErrorContext(ctx, "failed to record refund",
			slog.String("payment_id", intent.ID),
			slog.String("refund_id", result.ProviderRefundID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "payment refunded",
		slog.String("payment_id", intent.ID),
		slog.String("order_id", order.ID),
		slog.Int64("amount", intent.Amount),
	)

	return nil
}

func validateAddress(a *domain.Address) error {
	if a == nil {
		return apperrors.InvalidInput("shipping address is required")
	}
	if a.FullName == "" || a.AddressLine == "" || a.City == "" || a.PostalCode == "" {
		return apperrors.InvalidInput("shipping address must include name, address line, city, and postal code")
	}
	return nil
}
