package domain

import (
	"time"

	"github.com/spokeworks/bikeshop/pkg/money"
)

// Currency is the shop's single deployment currency.
const Currency = "GBP"

// VATRateBasisPoints is the standard UK VAT rate applied to all listed prices.
// Prices are VAT-inclusive; the summary exposes the net/VAT split.
const VATRateBasisPoints = 2000

// Cart is a customer's shopping cart. Prices are pence.
type Cart struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Items     []CartItem `json:"items"`
	Currency  string     `json:"currency"`
	Version   int        `json:"version"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ExpiresAt time.Time  `json:"expires_at"`
}

// CartItem is a single line item in the cart.
type CartItem struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	SKU       string `json:"sku"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
	ImageURL  string `json:"image_url,omitempty"`
}

// TotalAmount is the VAT-inclusive total of all items in pence.
func (c *Cart) TotalAmount() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.Price * int64(item.Quantity)
	}
	return total
}

// ItemCount returns the total number of units in the cart.
func (c *Cart) ItemCount() int {
	var count int
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

// FindItemIndex returns the index of the line item for the given product, or
// -1 when the product is not in the cart.
func (c *Cart) FindItemIndex(productID string) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// CartSummary is the authoritative monetary breakdown of a cart, recomputed
// server-side on every mutation. Amounts are pence; Formatted carries the
// display strings so clients never do their own currency formatting.
type CartSummary struct {
	Total     int64            `json:"total"`
	NetAmount int64            `json:"net_amount"`
	VATAmount int64            `json:"vat_amount"`
	Currency  string           `json:"currency"`
	ItemCount int              `json:"item_count"`
	Formatted FormattedSummary `json:"formatted"`
}

// FormattedSummary holds display-ready amounts ("£40.00"). Cosmetic only,
// never fed back into arithmetic.
type FormattedSummary struct {
	Total     string `json:"total"`
	NetAmount string `json:"net_amount"`
	VATAmount string `json:"vat_amount"`
}

// Summary computes the cart's monetary breakdown. The gross total is split
// into net and VAT with integer arithmetic so net + VAT always equals gross.
func (c *Cart) Summary() CartSummary {
	gross := c.TotalAmount()
	net, vat := money.SplitVAT(gross, VATRateBasisPoints)
	return CartSummary{
		Total:     gross,
		NetAmount: net,
		VATAmount: vat,
		Currency:  Currency,
		ItemCount: c.ItemCount(),
		Formatted: FormattedSummary{
			Total:     money.Format(gross),
			NetAmount: money.Format(net),
			VATAmount: money.Format(vat),
		},
	}
}
