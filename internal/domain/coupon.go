package domain

import (
	"fmt"
	"time"
)

// Discount type constants. Wire values are uppercase to match the storefront
// contract.
const (
	DiscountTypePercentage  = "PERCENTAGE"
	DiscountTypeFixedAmount = "FIXED_AMOUNT"
)

// Coupon status constants.
const (
	CouponStatusActive   = "active"
	CouponStatusPaused   = "paused"
	CouponStatusExpired  = "expired"
	CouponStatusArchived = "archived"
)

// Coupon is a discount code customers can apply at checkout.
type Coupon struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	Description string `json:"description"`
	// DiscountType is PERCENTAGE or FIXED_AMOUNT.
	DiscountType string `json:"discount_type"`
	// DiscountValue is basis points for percentage coupons (1000 = 10%)
	// and pence for fixed-amount coupons.
	DiscountValue int64 `json:"discount_value"`
	// MinOrderAmount is the cart total in pence required for eligibility.
	MinOrderAmount int64 `json:"min_order_amount"`
	// MaxDiscountAmount caps percentage discounts in pence. Zero means no cap.
	MaxDiscountAmount int64  `json:"max_discount_amount"`
	Status            string `json:"status"`
	// MaxUsageCount caps total redemptions. Zero means unlimited.
	MaxUsageCount     int `json:"max_usage_count"`
	CurrentUsageCount int `json:"current_usage_count"`
	// StartDate and EndDate bound the active window. Nil means unbounded
	// on that side.
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CouponUsage records a single redemption of a coupon.
type CouponUsage struct {
	ID              string    `json:"id"`
	CouponID        string    `json:"coupon_id"`
	UserID          string    `json:"user_id"`
	OrderID         string    `json:"order_id,omitempty"`
	DiscountApplied int64     `json:"discount_applied"`
	CreatedAt       time.Time `json:"created_at"`
}

// ValidDiscountTypes returns the set of valid discount types.
func ValidDiscountTypes() []string {
	return []string{DiscountTypePercentage, DiscountTypeFixedAmount}
}

// IsValidDiscountType checks whether the given type string is valid.
func IsValidDiscountType(t string) bool {
	for _, v := range ValidDiscountTypes() {
		if v == t {
			return true
		}
	}
	return false
}

// ValidCouponStatuses returns the set of valid coupon statuses.
func ValidCouponStatuses() []string {
	return []string{
		CouponStatusActive,
		CouponStatusPaused,
		CouponStatusExpired,
		CouponStatusArchived,
	}
}

// IsValidCouponStatus checks whether the given status string is valid.
func IsValidCouponStatus(status string) bool {
	for _, s := range ValidCouponStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

// IsActive reports whether the coupon is live at the given instant: status
// active, inside the date window, and under its usage limit. A nil start or
// end date leaves that side of the window open.
func (c *Coupon) IsActive(now time.Time) bool {
	if c.Status != CouponStatusActive {
		return false
	}
	if c.StartDate != nil && now.Before(*c.StartDate) {
		return false
	}
	if c.EndDate != nil && now.After(*c.EndDate) {
		return false
	}
	if c.MaxUsageCount > 0 && c.CurrentUsageCount >= c.MaxUsageCount {
		return false
	}
	return true
}

// EligibleFor reports whether the cart total meets the coupon's minimum
// order amount.
func (c *Coupon) EligibleFor(cartTotal int64) bool {
	return cartTotal >= c.MinOrderAmount
}

// ShortfallFor returns how many more pence the cart needs before the coupon
// becomes eligible, zero when already eligible. Drives the "add £X more to
// use this coupon" message.
func (c *Coupon) ShortfallFor(cartTotal int64) int64 {
	if shortfall := c.MinOrderAmount - cartTotal; shortfall > 0 {
		return shortfall
	}
	return 0
}

// Discount computes the discount in pence for the given order amount.
// Percentage discounts are integer basis-point arithmetic capped by
// MaxDiscountAmount; fixed discounts are clamped so they never exceed the
// order amount.
func (c *Coupon) Discount(orderAmount int64) int64 {
	var discount int64
	switch c.DiscountType {
	case DiscountTypePercentage:
		discount = orderAmount * c.DiscountValue / 10000
		if c.MaxDiscountAmount > 0 && discount > c.MaxDiscountAmount {
			discount = c.MaxDiscountAmount
		}
	case DiscountTypeFixedAmount:
		discount = c.DiscountValue
	}
	if discount > orderAmount {
		discount = orderAmount
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}

// AppliedCoupon is the result of applying a coupon to a cart total.
// FinalAmount is the single trusted post-discount figure downstream pricing
// builds on.
type AppliedCoupon struct {
	CouponID       string `json:"coupon_id"`
	CouponCode     string `json:"coupon_code"`
	DiscountAmount int64  `json:"discount_amount"`
	DiscountType   string `json:"discount_type"`
	FinalAmount    int64  `json:"final_amount"`
}

// NewAppliedCoupon applies the coupon to the cart total. FinalAmount is
// computed here, exactly once, as cartTotal minus the discount; nothing else
// ever recomputes it.
func NewAppliedCoupon(c *Coupon, cartTotal int64) (*AppliedCoupon, error) {
	if !c.EligibleFor(cartTotal) {
		return nil, fmt.Errorf("coupon %s requires a minimum order of %d, cart total is %d", c.Code, c.MinOrderAmount, cartTotal)
	}
	discount := c.Discount(cartTotal)
	return &AppliedCoupon{
		CouponID:       c.ID,
		CouponCode:     c.Code,
		DiscountAmount: discount,
		DiscountType:   c.DiscountType,
		FinalAmount:    cartTotal - discount,
	}, nil
}
