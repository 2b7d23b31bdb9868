package domain

import "time"

// ShippingSettings is the shop-wide delivery configuration. Admin-updatable,
// read-cacheable per session, treated as static during a checkout flow.
type ShippingSettings struct {
	// ShippingCharge is the flat delivery charge in pence.
	ShippingCharge int64 `json:"shipping_charge"`
	// FreeShippingThreshold is the order amount in pence at or above which
	// delivery is free.
	FreeShippingThreshold int64     `json:"free_shipping_threshold"`
	UpdatedAt             time.Time `json:"updated_at"`
}
