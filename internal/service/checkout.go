package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/spokeworks/bikeshop/internal/domain"
	"github.com/spokeworks/bikeshop/internal/event"
	"github.com/spokeworks/bikeshop/internal/pricing"
	"github.com/spokeworks/bikeshop/internal/repository"
	apperrors "github.com/spokeworks/bikeshop/pkg/errors"
)

// CheckoutService captures single-use price snapshots when the customer
// proceeds from cart to checkout. The snapshot is the only source of truth
// for the amount charged; once consumed it is gone and the client returns to
// the cart.
type CheckoutService struct {
	snapshots   repository.SnapshotRepository
	cartRepo    repository.CartRepository
	couponRepo  repository.CouponRepository
	shipping    *ShippingService
	producer    *event.Producer
	logger      *slog.Logger
	snapshotTTL time.Duration
}

// NewCheckoutService creates a checkout service.
func NewCheckoutService(
	snapshots repository.SnapshotRepository,
	cartRepo repository.CartRepository,
	couponRepo repository.CouponRepository,
	shipping *ShippingService,
	producer *event.Producer,
	logger *slog.Logger,
	snapshotTTL time.Duration,
) *CheckoutService {
	return &CheckoutService{
		snapshots:   snapshots,
		cartRepo:    cartRepo,
		couponRepo:  couponRepo,
		shipping:    shipping,
		producer:    producer,
		logger:      logger,
		snapshotTTL: snapshotTTL,
	}
}

// Proceed captures the checkout snapshot for the user's current cart. The
// coupon code, when given, is re-validated here so a stale cart-side discount
// can never leak into the charged amount. Proceeding requires a known
// shipping quote: with no settings configured the total cannot be computed,
// and guessing free shipping is exactly the failure this exists to prevent.
func (s *CheckoutService) Proceed(ctx context.Context, userID, couponCode string) (*domain.CheckoutSnapshot, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}

	cart, err := s.cartRepo.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	cartTotal := cart.TotalAmount()
	if cartTotal <= 0 {
		return nil, apperrors.InvalidInput("cannot check out an empty cart")
	}

	var applied *pricing.AppliedCoupon
	var couponID string
	if code := normalizeCode(couponCode); code != "" {
		coupon, err := s.couponRepo.GetByCode(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("get coupon by code: %w", err)
		}
		if !coupon.IsActive(time.Now().UTC()) {
			return nil, apperrors.InvalidInput("coupon is not active")
		}
		domainApplied, err := domain.NewAppliedCoupon(coupon, cartTotal)
		if err != nil {
			return nil, apperrors.InvalidInput(err.Error())
		}
		couponID = coupon.ID
		applied = &pricing.AppliedCoupon{
			CouponID:       coupon.ID,
			Code:           coupon.Code,
			DiscountAmount: domainApplied.DiscountAmount,
			DiscountType:   coupon.DiscountType,
			FinalAmount:    domainApplied.FinalAmount,
		}
	}

	settings, err := s.shipping.Settings(ctx)
	if err != nil {
		return nil, err
	}

	breakdown := pricing.Aggregate(cartTotal, applied, settings)
	if !breakdown.Shipping.Known() {
		return nil, apperrors.ServiceUnavailable("shipping settings are not available, please try again")
	}

	now := time.Now().UTC()
	snapshot := &domain.CheckoutSnapshot{
		ID:            uuid.New().String(),
		UserID:        userID,
		Subtotal:      breakdown.Subtotal,
		Discount:      breakdown.Discount,
		CouponID:      couponID,
		CouponCode:    breakdown.CouponCode,
		Shipping:      breakdown.Shipping.Cost,
		ShippingState: string(breakdown.Shipping.State),
		Total:         breakdown.GrandTotal,
		Currency:      domain.Currency,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.snapshotTTL),
	}

	if err := s.snapshots.Put(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("store checkout snapshot: %w", err)
	}

	if err := s.producer.PublishCheckoutCaptured(ctx, snapshot); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish checkout.captured event",
			slog.String("snapshot_id", snapshot.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "checkout snapshot captured",
		slog.String("snapshot_id", snapshot.ID),
		slog.String("user_id", userID),
		slog.Int64("subtotal", snapshot.Subtotal),
		slog.Int64("discount", snapshot.Discount),
		slog.Int64("shipping", snapshot.Shipping),
		slog.Int64("total", snapshot.Total),
	)

	return snapshot, nil
}

// Snapshot returns the user's pending snapshot without consuming it. A
// missing or expired snapshot is not found; the client returns to the cart.
func (s *CheckoutService) Snapshot(ctx context.Context, userID string) (*domain.CheckoutSnapshot, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}
	snapshot, err := s.snapshots.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if snapshot.IsExpired() {
		return nil, apperrors.NotFound("checkout snapshot", userID)
	}
	return snapshot, nil
}

// Take atomically consumes the user's snapshot. Exactly one caller can win;
// a second Take reports not found.
func (s *CheckoutService) Take(ctx context.Context, userID string) (*domain.CheckoutSnapshot, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}
	snapshot, err := s.snapshots.Take(ctx, userID)
	if err != nil {
		return nil, err
	}
	if snapshot.IsExpired() {
		return nil, apperrors.NotFound("checkout snapshot", userID)
	}
	return snapshot, nil
}

// Restore puts a consumed snapshot back, e.g. when order placement fails
// before any payment was taken and the customer should be able to retry.
func (s *CheckoutService) Restore(ctx context.Context, snapshot *domain.CheckoutSnapshot) error {
	if snapshot.IsExpired() {
		return nil
	}
	return s.snapshots.Put(ctx, snapshot)
}

// Abandon discards the user's pending snapshot, if any.
func (s *CheckoutService) Abandon(ctx context.Context, userID string) error {
	if userID == "" {
		return apperrors.InvalidInput("user id is required")
	}
	if err := s.snapshots.Delete(ctx, userID); err != nil {
		return fmt.Errorf("delete checkout snapshot: %w", err)
	}
	s.logger.InfoContext(ctx, "checkout abandoned", slog.String("user_id", userID))
	return nil
}
