package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spokeworks/bikeshop/internal/domain"
	"github.com/spokeworks/bikeshop/internal/event"
	"github.com/spokeworks/bikeshop/internal/repository"
	apperrors "github.com/spokeworks/bikeshop/pkg/errors"
	"github.com/spokeworks/bikeshop/pkg/money"
	"github.com/spokeworks/bikeshop/pkg/pagination"
)

// CreateCouponInput holds the parameters for creating a coupon.
type CreateCouponInput struct {
	Code              string `json:"code" validate:"omitempty,min=3,max=32"`
	Description       string `json:"description" validate:"max=500"`
	DiscountType      string `json:"discount_type" validate:"required,oneof=PERCENTAGE FIXED_AMOUNT"`
	DiscountValue     int64  `json:"discount_value" validate:"required,gt=0"`
	MinOrderAmount    int64  `json:"min_order_amount" validate:"gte=0"`
	MaxDiscountAmount int64  `json:"max_discount_amount" validate:"gte=0"`
	MaxUsageCount     int    `json:"max_usage_count" validate:"gte=0"`
	StartDate         string `json:"start_date"`
	EndDate           string `json:"end_date"`
}

// UpdateCouponInput holds the mutable fields of a coupon. Nil means unchanged.
type UpdateCouponInput struct {
	Description       *string `json:"description" validate:"omitempty,max=500"`
	Status            *string `json:"status" validate:"omitempty,oneof=active paused expired archived"`
	MinOrderAmount    *int64  `json:"min_order_amount" validate:"omitempty,gte=0"`
	MaxDiscountAmount *int64  `json:"max_discount_amount" validate:"omitempty,gte=0"`
	MaxUsageCount     *int    `json:"max_usage_count" validate:"omitempty,gte=0"`
	EndDate           *string `json:"end_date"`
}

// CouponValidation is the result of checking a code against a cart total
// without applying it.
type CouponValidation struct {
	Valid          bool   `json:"valid"`
	Code           string `json:"code"`
	Reason         string `json:"reason,omitempty"`
	DiscountAmount int64  `json:"discount_amount,omitempty"`
	Shortfall      int64  `json:"shortfall,omitempty"`
	Message        string `json:"message,omitempty"`
}

// CouponService implements coupon validation, application, and admin CRUD.
type CouponService struct {
	repo     repository.CouponRepository
	cartRepo repository.CartRepository
	producer *event.Producer
	logger   *slog.Logger
}

// NewCouponService creates a coupon service.
func NewCouponService(repo repository.CouponRepository, cartRepo repository.CartRepository, producer *event.Producer, logger *slog.Logger) *CouponService {
	return &CouponService{
		repo:     repo,
		cartRepo: cartRepo,
		producer: producer,
		logger:   logger,
	}
}

// Validate checks whether a code can be applied to the given cart total.
// An ineligible-but-real coupon reports the shortfall so the storefront can
// show how much more the shopper needs to add.
func (s *CouponService) Validate(ctx context.Context, code string, cartTotal int64) (*CouponValidation, error) {
	code = normalizeCode(code)
	if code == "" {
		return nil, apperrors.InvalidInput("coupon code is required")
	}
	if cartTotal < 0 {
		return nil, apperrors.InvalidInput("cart total must not be negative")
	}

	coupon, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("get coupon by code: %w", err)
	}

	if !coupon.IsActive(time.Now().UTC()) {
		return &CouponValidation{
			Valid:  false,
			Code:   code,
			Reason: "not_active",
		}, nil
	}

	if shortfall := coupon.ShortfallFor(cartTotal); shortfall > 0 {
		return &CouponValidation{
			Valid:     false,
			Code:      code,
			Reason:    "min_order_not_met",
			Shortfall: shortfall,
			Message:   fmt.Sprintf("add %s more to use this coupon", money.Format(shortfall)),
		}, nil
	}

	return &CouponValidation{
		Valid:          true,
		Code:           code,
		DiscountAmount: coupon.Discount(cartTotal),
	}, nil
}

// Apply applies a coupon to the user's current cart and returns the applied
// result. The returned final amount always equals the cart total minus the
// discount. This is a preview: usage is recorded only when an order placed
// with the coupon actually lands, so repeated applies never burn the
// coupon's usage budget.
func (s *CouponService) Apply(ctx context.Context, userID, code string) (*domain.AppliedCoupon, error) {
	code = normalizeCode(code)
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}
	if code == "" {
		return nil, apperrors.InvalidInput("coupon code is required")
	}

	cart, err := s.cartRepo.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	cartTotal := cart.TotalAmount()
	if cartTotal <= 0 {
		return nil, apperrors.InvalidInput("cannot apply a coupon to an empty cart")
	}

	coupon, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("get coupon by code: %w", err)
	}

	if !coupon.IsActive(time.Now().UTC()) {
		return nil, apperrors.InvalidInput("coupon is not active")
	}
	if shortfall := coupon.ShortfallFor(cartTotal); shortfall > 0 {
		return nil, apperrors.InvalidInput(fmt.Sprintf("add %s more to use this coupon", money.Format(shortfall)))
	}

	applied, err := domain.NewAppliedCoupon(coupon, cartTotal)
	if err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}

	if err := s.producer.PublishCouponApplied(ctx, userID, applied, cartTotal); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish coupon.applied event",
			slog.String("coupon_id", coupon.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "coupon applied",
		slog.String("user_id", userID),
		slog.String("code", code),
		slog.Int64("cart_total", cartTotal),
		slog.Int64("discount_amount", applied.DiscountAmount),
		slog.Int64("final_amount", applied.FinalAmount),
	)

	return applied, nil
}

// Create creates a new coupon. An empty code gets a generated one.
func (s *CouponService) Create(ctx context.Context, input CreateCouponInput) (*domain.Coupon, error) {
	if !domain.IsValidDiscountType(input.DiscountType) {
		return nil, apperrors.InvalidInput("invalid discount type")
	}
	if input.DiscountValue <= 0 {
		return nil, apperrors.InvalidInput("discount value must be greater than 0")
	}
	if input.DiscountType == domain.DiscountTypePercentage && input.DiscountValue > 10000 {
		return nil, apperrors.InvalidInput("percentage discount must not exceed 10000 basis points")
	}
	if input.MinOrderAmount < 0 {
		return nil, apperrors.InvalidInput("min order amount must not be negative")
	}

	code := normalizeCode(input.Code)
	if code == "" {
		generated, err := generateCouponCode()
		if err != nil {
			return nil, fmt.Errorf("generate coupon code: %w", err)
		}
		code = generated
	}

	now := time.Now().UTC()
	coupon := &domain.Coupon{
		ID:                uuid.New().String(),
		Code:              code,
		Description:       input.Description,
		DiscountType:      input.DiscountType,
		DiscountValue:     input.DiscountValue,
		MinOrderAmount:    input.MinOrderAmount,
		MaxDiscountAmount: input.MaxDiscountAmount,
		MaxUsageCount:     input.MaxUsageCount,
		Status:            domain.CouponStatusActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if input.StartDate != "" {
		t, err := time.Parse(time.RFC3339, input.StartDate)
		if err != nil {
			return nil, apperrors.InvalidInput("start_date must be an RFC 3339 timestamp")
		}
		coupon.StartDate = &t
	}
	if input.EndDate != "" {
		t, err := time.Parse(time.RFC3339, input.EndDate)
		if err != nil {
			return nil, apperrors.InvalidInput("end_date must be an RFC 3339 timestamp")
		}
		if coupon.StartDate != nil && !t.After(*coupon.StartDate) {
			return nil, apperrors.InvalidInput("end_date must be after start_date")
		}
		coupon.EndDate = &t
	}

	if err := s.repo.Create(ctx, coupon); err != nil {
		return nil, fmt.Errorf("create coupon: %w", err)
	}

	s.logger.InfoContext(ctx, "coupon created",
		slog.String("coupon_id", coupon.ID),
		slog.String("code", coupon.Code),
		slog.String("discount_type", coupon.DiscountType),
	)

	return coupon, nil
}

// Get returns a coupon by id.
func (s *CouponService) Get(ctx context.Context, id string) (*domain.Coupon, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("coupon id is required")
	}
	coupon, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get coupon: %w", err)
	}
	return coupon, nil
}

// List returns a page of coupons, optionally filtered by status.
func (s *CouponService) List(ctx context.Context, status *string, page pagination.Params) ([]domain.Coupon, int, error) {
	if status != nil && !domain.IsValidCouponStatus(*status) {
		return nil, 0, apperrors.InvalidInput("invalid coupon status")
	}
	filter := repository.CouponFilter{
		Status:  status,
		Page:    page.Page,
		PerPage: page.PerPage,
	}
	coupons, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list coupons: %w", err)
	}
	return coupons, total, nil
}

// Update applies a partial update to a coupon.
func (s *CouponService) Update(ctx context.Context, id string, input UpdateCouponInput) (*domain.Coupon, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("coupon id is required")
	}

	coupon, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get coupon for update: %w", err)
	}

	if input.Description != nil {
		coupon.Description = *input.Description
	}
	if input.Status != nil {
		if !domain.IsValidCouponStatus(*input.Status) {
			return nil, apperrors.InvalidInput("invalid coupon status")
		}
		coupon.Status = *input.Status
	}
	if input.MinOrderAmount != nil {
		if *input.MinOrderAmount < 0 {
			return nil, apperrors.InvalidInput("min order amount must not be negative")
		}
		coupon.MinOrderAmount = *input.MinOrderAmount
	}
	if input.MaxDiscountAmount != nil {
		coupon.MaxDiscountAmount = *input.MaxDiscountAmount
	}
	if input.MaxUsageCount != nil {
		coupon.MaxUsageCount = *input.MaxUsageCount
	}
	if input.EndDate != nil {
		if *input.EndDate == "" {
			coupon.EndDate = nil
		} else {
			t, err := time.Parse(time.RFC3339, *input.EndDate)
			if err != nil {
				return nil, apperrors.InvalidInput("end_date must be an RFC 3339 timestamp")
			}
			coupon.EndDate = &t
		}
	}

	coupon.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, coupon); err != nil {
		return nil, fmt.Errorf("update coupon: %w", err)
	}

	s.logger.InfoContext(ctx, "coupon updated", slog.String("coupon_id", coupon.ID))

	return coupon, nil
}

// Archive retires a coupon. Archived coupons stay in the table for reporting.
func (s *CouponService) Archive(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("coupon id is required")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("archive coupon: %w", err)
	}
	s.logger.InfoContext(ctx, "coupon archived", slog.String("coupon_id", id))
	return nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// generateCouponCode produces an 8-character code from an alphabet with the
// ambiguous characters removed.
func generateCouponCode() (string, error) {
	var b strings.Builder
	for i := 0; i < 8; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			return "", err
		}
		b.WriteByte(codeAlphabet[n.Int64()])
	}
	return b.String(), nil
}
