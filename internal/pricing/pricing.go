// Package pricing owns the checkout price computation: combining the cart's
// authoritative subtotal, an optional applied coupon, and the free-shipping
// threshold rule into the amount the customer is asked to pay. All amounts are
// pence. Every surface that displays or charges a total derives it from here.
package pricing

// Settings is the shipping configuration the quote rule evaluates against.
type Settings struct {
	// ShippingCharge is the flat delivery charge in pence.
	ShippingCharge int64
	// FreeShippingThreshold is the order amount in pence at or above which
	// the charge is waived.
	FreeShippingThreshold int64
}

// QuoteState distinguishes a confirmed-free quote from one we simply cannot
// make yet. Settings that have not loaded must never be presented as free
// shipping.
type QuoteState string

const (
	// QuoteUnknown means no shipping settings were available. The caller
	// must not treat the cost as final.
	QuoteUnknown QuoteState = "unknown"
	// QuoteFree means the amount met the free-shipping threshold.
	QuoteFree QuoteState = "free"
	// QuoteCharged means the flat shipping charge applies.
	QuoteCharged QuoteState = "charged"
)

// ShippingQuote is the result of evaluating the shipping rule for an amount.
type ShippingQuote struct {
	State QuoteState
	// Cost is the shipping cost in pence. Zero when State is QuoteUnknown
	// or QuoteFree; only meaningful as a charge when State is QuoteCharged.
	Cost int64
}

// Known reports whether the quote is backed by loaded settings.
func (q ShippingQuote) Known() bool {
	return q.State != QuoteUnknown
}

// QuoteShipping evaluates the shipping rule for the given amount. A nil
// settings record yields QuoteUnknown, not free shipping.
func QuoteShipping(amount int64, settings *Settings) ShippingQuote {
	if settings == nil {
		return ShippingQuote{State: QuoteUnknown}
	}
	if amount >= settings.FreeShippingThreshold {
		return ShippingQuote{State: QuoteFree}
	}
	return ShippingQuote{State: QuoteCharged, Cost: settings.ShippingCharge}
}

// QualifiesForFreeShipping reports whether the amount meets the threshold.
// It is false when settings are nil: absence of settings is not confirmation.
func QualifiesForFreeShipping(amount int64, settings *Settings) bool {
	return settings != nil && amount >= settings.FreeShippingThreshold
}

// AmountNeededForFreeShipping returns how many more pence the order needs to
// qualify for free shipping, zero once the threshold is met, and zero when
// settings are nil (no threshold to chase).
func AmountNeededForFreeShipping(amount int64, settings *Settings) int64 {
	if settings == nil {
		return 0
	}
	if remaining := settings.FreeShippingThreshold - amount; remaining > 0 {
		return remaining
	}
	return 0
}

// AppliedCoupon is the trusted result of a coupon application. FinalAmount is
// the single post-discount figure; the aggregator never recomputes
// subtotal minus discount on its own.
type AppliedCoupon struct {
	CouponID       string
	Code           string
	DiscountAmount int64
	DiscountType   string
	FinalAmount    int64
}

// Breakdown is the full price decomposition for a cart at one instant. The
// checkout snapshot is captured verbatim from a Breakdown so the total the
// customer saw is the total that gets charged.
type Breakdown struct {
	Subtotal   int64
	Discount   int64
	CouponID   string
	CouponCode string
	// Effective is the amount shipping is evaluated against: the coupon's
	// FinalAmount when a coupon is applied, the raw subtotal otherwise.
	Effective  int64
	Shipping   ShippingQuote
	GrandTotal int64
}

// Aggregate combines the cart total, an optional applied coupon, and the
// shipping rule. With no coupon the effective amount is exactly the cart
// total. GrandTotal equals Effective plus the quoted shipping cost; when the
// quote is unknown, GrandTotal equals Effective and must not be treated as
// final.
func Aggregate(cartTotal int64, coupon *AppliedCoupon, settings *Settings) Breakdown {
	b := Breakdown{
		Subtotal:  cartTotal,
		Effective: cartTotal,
	}
	if coupon != nil {
		b.Discount = coupon.DiscountAmount
		b.CouponID = coupon.CouponID
		b.CouponCode = coupon.Code
		b.Effective = coupon.FinalAmount
	}
	b.Shipping = QuoteShipping(b.Effective, settings)
	b.GrandTotal = b.Effective + b.Shipping.Cost
	return b
}
