package domain

import "time"

// ShippingState mirrors pricing.QuoteState on the stored snapshot.
const (
	SnapshotShippingUnknown = "unknown"
	SnapshotShippingFree    = "free"
	SnapshotShippingCharged = "charged"
)

// CheckoutSnapshot is the single-use price record captured when the customer
// proceeds from cart to checkout. It is the only source of truth for the
// checkout summary and for the amount ultimately charged; if it is missing
// the client returns to the cart. All amounts are pence.
type CheckoutSnapshot struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Subtotal      int64     `json:"subtotal"`
	Discount      int64     `json:"discount"`
	CouponID      string    `json:"coupon_id,omitempty"`
	CouponCode    string    `json:"coupon_code,omitempty"`
	Shipping      int64     `json:"shipping"`
	ShippingState string    `json:"shipping_state"`
	Total         int64     `json:"total"`
	Currency      string    `json:"currency"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// IsExpired reports whether the snapshot has passed its expiry time.
func (s *CheckoutSnapshot) IsExpired() bool {
	return time.Now().UTC().After(s.ExpiresAt)
}
